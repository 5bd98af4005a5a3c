package operators

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BartekS5/sparkify/internal/etl"
	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/logger"
)

// StageToWarehouse empties a staging table and reloads it from JSON in
// object storage. Key is a template over the run's logical date.
//
// On Redshift the load is a single COPY authorised with the credentials
// resolved for CredentialsID. Other engines load through the client
// stager, reading the objects with Opener.
type StageToWarehouse struct {
	Table  string
	Bucket string
	Key    string
	Region string
	// JSONPaths is "auto" or the key of a JSONPaths file in Bucket.
	JSONPaths string
	// TimeFormat is the COPY TIMEFORMAT, e.g. "epochmillisecs" for the
	// event log's ts. Empty leaves the engine default.
	TimeFormat    string
	ConnID        string
	CredentialsID string
	// Scheme of the source URLs; "s3" when empty.
	Scheme string

	Conns       *ConnRegistry
	Credentials CredentialProvider
	Opener      warehouse.Opener
	Logger      *logger.Logger
}

func (o *StageToWarehouse) url(key string) string {
	scheme := o.Scheme
	if scheme == "" {
		scheme = "s3"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, strings.TrimSuffix(o.Bucket, "/"), strings.TrimPrefix(key, "/"))
}

func (o *StageToWarehouse) source(rc RunContext) (from, jsonPaths string, err error) {
	key, err := render("s3_key", o.Key, rc)
	if err != nil {
		return "", "", err
	}
	jsonPaths = "auto"
	if o.JSONPaths != "" && !strings.EqualFold(o.JSONPaths, "auto") {
		jsonPaths = o.url(o.JSONPaths)
	}
	return o.url(key), jsonPaths, nil
}

// CopySQL renders the COPY statement for rc.
func (o *StageToWarehouse) CopySQL(ctx context.Context, rc RunContext) (string, error) {
	if o.Credentials == nil {
		return "", fmt.Errorf("stage %s: no credential provider", o.Table)
	}
	from, jsonPaths, err := o.source(rc)
	if err != nil {
		return "", err
	}
	id := o.CredentialsID
	if id == "" {
		id = DefaultCredentialsID
	}
	creds, err := o.Credentials.Credentials(ctx, id)
	if err != nil {
		return "", err
	}
	return warehouse.CopyStatement(warehouse.CopyOptions{
		Table:           o.Table,
		From:            from,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Region:          o.Region,
		JSONPaths:       jsonPaths,
		TimeFormat:      o.TimeFormat,
	})
}

func (o *StageToWarehouse) Execute(ctx context.Context, rc RunContext) (int64, error) {
	log := orDefault(o.Logger).With("task_table", o.Table)
	conn, err := o.Conns.Get(ctx, o.ConnID)
	if err != nil {
		return 0, err
	}

	if conn.Dialect.SupportsCopy() {
		copySQL, err := o.CopySQL(ctx, rc)
		if err != nil {
			return 0, err
		}
		log.Info("Truncating table")
		if _, err := conn.DB.ExecContext(ctx, conn.Dialect.Truncate(o.Table)); err != nil {
			return 0, fmt.Errorf("truncate %s: %w", o.Table, err)
		}
		log.Info("Copying data from S3")
		res, err := conn.DB.ExecContext(ctx, copySQL)
		if err != nil {
			return 0, fmt.Errorf("copy into %s: %w", o.Table, err)
		}
		log.Info("Successfully copied data")
		return rowsAffected(res), nil
	}

	if o.Opener == nil {
		return 0, fmt.Errorf("stage %s: dialect %s needs an object store opener: %w", o.Table, conn.Dialect, warehouse.ErrUnsupported)
	}
	from, jsonPaths, err := o.source(rc)
	if err != nil {
		return 0, err
	}
	stager := warehouse.NewClientStager(o.Opener, conn.Dialect, log)
	log.Info("Staging through the client stager", "from", from)
	return etl.InTx(ctx, conn.DB, func(tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, conn.Dialect.DeleteAll(o.Table)); err != nil {
			return 0, fmt.Errorf("clear %s: %w", o.Table, err)
		}
		return stager.Stage(ctx, tx, warehouse.StageSource{Table: o.Table, Location: from, JSONPaths: jsonPaths})
	})
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
