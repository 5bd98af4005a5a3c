package cli

import (
	"github.com/spf13/cobra"

	"github.com/BartekS5/sparkify/internal/config"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
}

func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sparkify",
		Short: "Sparkify - song play analytics pipelines",
		Long: `Sparkify builds a star schema of song plays from the raw song catalog
and user activity logs. It bootstraps and loads a SQL warehouse, writes a
partitioned Parquet data lake, and runs the orchestrated hourly DAG.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "Path to config file")

	rootCmd.AddCommand(
		NewCreateTablesCmd(opts),
		NewETLCmd(opts),
		NewLakeCmd(opts),
		NewDAGCmd(opts),
		NewQualityCmd(opts),
		NewHistoryCmd(opts),
	)

	return rootCmd
}
