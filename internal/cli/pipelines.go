package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/lake"
)

type WarehouseOptions struct {
	Policy string
	DryRun bool
}

func (o *WarehouseOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Policy, "policy", etl.AbortOnError.String(), "Statement error policy: abort-on-error or collect-errors")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", false, "Log the phases without executing them")
}

func NewCreateTablesCmd(opts *GlobalOptions) *cobra.Command {
	wopts := &WarehouseOptions{}
	cmd := &cobra.Command{
		Use:   "create-tables",
		Short: "Drop and recreate the staging and star-schema tables",
		RunE: func(c *cobra.Command, args []string) error {
			return runCreateTables(c.Context(), opts, wopts)
		},
	}
	wopts.bind(cmd)
	return cmd
}

func NewETLCmd(opts *GlobalOptions) *cobra.Command {
	wopts := &WarehouseOptions{}
	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Stage the raw JSON and load the star schema in the warehouse",
		RunE: func(c *cobra.Command, args []string) error {
			return runETL(c.Context(), opts, wopts, c.OutOrStdout())
		},
	}
	wopts.bind(cmd)
	return cmd
}

type LakeOptions struct {
	Input  string
	Output string
	DryRun bool
}

func NewLakeCmd(opts *GlobalOptions) *cobra.Command {
	lopts := &LakeOptions{}
	cmd := &cobra.Command{
		Use:   "lake",
		Short: "Build the star schema as partitioned Parquet in object storage",
		RunE: func(c *cobra.Command, args []string) error {
			return runLake(c.Context(), opts, lopts, c.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&lopts.Input, "input", "i", "", "Input location (overrides lake.input)")
	cmd.Flags().StringVarP(&lopts.Output, "output", "o", "", "Output location (overrides lake.output)")
	cmd.Flags().BoolVar(&lopts.DryRun, "dry-run", false, "Log the steps without executing them")
	return cmd
}

func newLakePipeline(ctx context.Context, a *app, input, output string) (*lake.Pipeline, error) {
	p, err := lake.New(ctx, input, output, a.cfg.StorageOptions(), a.log.Named("lake"))
	if err != nil {
		return nil, err
	}
	p.Recorder = a.recorder
	return p, nil
}
