// Package config loads the sparkify configuration once at process start.
// Values come from a YAML file with environment variable overrides;
// secrets (passwords, AWS keys) are only ever read from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BartekS5/sparkify/pkg/storage"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "configs/sparkify.yaml"

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds everything the pipelines need. It is built by Load and
// passed explicitly into every component.
type Config struct {
	Cluster     ClusterConfig         `yaml:"cluster"`
	IAMRole     IAMRoleConfig         `yaml:"iam_role"`
	S3          S3Config              `yaml:"s3"`
	AWS         AWSConfig             `yaml:"aws"`
	Lake        LakeConfig            `yaml:"lake"`
	Connections map[string]Connection `yaml:"connections"`
	Temporal    TemporalConfig        `yaml:"temporal"`
	DAG         DAGConfig             `yaml:"dag"`
	Mongo       MongoConfig           `yaml:"mongo"`
	Metrics     MetricsConfig         `yaml:"metrics"`
	Log         LogConfig             `yaml:"log"`
}

// ClusterConfig is the warehouse the bootstrap and ETL commands talk to.
type ClusterConfig struct {
	// Dialect selects SQL rendering: redshift, postgres, sqlserver or sqlite.
	Dialect  string `yaml:"dialect" env:"DWH_DIALECT" env-default:"redshift"`
	Host     string `yaml:"host" env:"DWH_HOST"`
	Port     int    `yaml:"port" env:"DWH_PORT" env-default:"5439"`
	DBName   string `yaml:"db_name" env:"DWH_DB" env-default:"dev"`
	User     string `yaml:"user" env:"DWH_DB_USER"`
	Password string `yaml:"-" env:"DWH_DB_PASSWORD"` // Secret - not in YAML
	SSLMode  string `yaml:"ssl_mode" env:"DWH_SSLMODE" env-default:"require"`
	// Path is the database file for the sqlite dialect.
	Path string `yaml:"path" env:"DWH_PATH" env-default:"sparkify.db"`
}

type IAMRoleConfig struct {
	ARN string `yaml:"arn" env:"DWH_ROLE_ARN"`
}

// S3Config points at the raw datasets consumed by the warehouse ETL.
type S3Config struct {
	LogData     string `yaml:"log_data" env:"S3_LOG_DATA" env-default:"s3://udacity-dend/log_data"`
	LogJSONPath string `yaml:"log_jsonpath" env:"S3_LOG_JSONPATH" env-default:"s3://udacity-dend/log_json_path.json"`
	SongData    string `yaml:"song_data" env:"S3_SONG_DATA" env-default:"s3://udacity-dend/song_data"`
	Region      string `yaml:"region" env:"S3_REGION" env-default:"us-west-2"`
}

// AWSConfig carries credentials for object storage access. Keys are
// optional; when empty the SDK default chain (or Profile) is used.
type AWSConfig struct {
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" env:"AWS_SESSION_TOKEN"`
	Profile         string `yaml:"profile" env:"AWS_PROFILE"`
	// Endpoint overrides the S3 endpoint (MinIO or other S3-compatible stores).
	Endpoint string `yaml:"endpoint" env:"AWS_ENDPOINT_URL_S3"`
	UseSSL   bool   `yaml:"use_ssl" env:"AWS_USE_SSL" env-default:"true"`
}

// LakeConfig holds the input and output locations of the lake ETL, as
// URLs: s3://bucket/prefix, minio://bucket/prefix or file:///dir.
type LakeConfig struct {
	Input  string `yaml:"input" env:"LAKE_INPUT" env-default:"s3://udacity-dend/"`
	Output string `yaml:"output" env:"LAKE_OUTPUT" env-default:"s3://sparkify-dend/"`
}

// Connection is a named database connection used by the DAG operators.
type Connection struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

type TemporalConfig struct {
	Address   string `yaml:"address" env:"TEMPORAL_ADDRESS" env-default:"localhost:7233"`
	Namespace string `yaml:"namespace" env:"TEMPORAL_NAMESPACE" env-default:"default"`
	TaskQueue string `yaml:"task_queue" env:"TEMPORAL_TASK_QUEUE" env-default:"sparkify"`
}

// DAGConfig tunes the orchestrated pipeline.
type DAGConfig struct {
	// LogKey is the staging key for events, a template over the logical
	// date such as "log_data/{{.Year}}/{{.Month}}". Empty means the whole
	// s3.log_data prefix.
	LogKey   string        `yaml:"log_key" env:"DAG_LOG_KEY"`
	Interval time.Duration `yaml:"interval" env:"DAG_INTERVAL" env-default:"1h"`
	ConnID   string        `yaml:"conn_id" env:"DAG_CONN_ID" env-default:"redshift"`

	// CredentialsID selects an entry of AWSProfiles, or the aws section
	// when absent.
	CredentialsID string            `yaml:"credentials_id" env:"DAG_CREDENTIALS_ID" env-default:"aws_credentials"`
	AWSProfiles   map[string]string `yaml:"aws_profiles"`

	// Checks replace the default data-quality checks when set.
	Checks []QualityCheck `yaml:"checks"`
}

// QualityCheck asserts that Table has rows and that Column holds exactly
// ExpectedNulls nulls.
type QualityCheck struct {
	Table         string `yaml:"table"`
	Column        string `yaml:"column"`
	ExpectedNulls int64  `yaml:"expected_nulls"`
}

// MongoConfig enables run history when URI is set.
type MongoConfig struct {
	URI        string `yaml:"-" env:"MONGO_CONNECTION_STRING"`
	Database   string `yaml:"database" env:"MONGO_DATABASE" env-default:"sparkify"`
	Collection string `yaml:"collection" env:"MONGO_COLLECTION" env-default:"runs"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" env:"METRICS_PUSHGATEWAY_URL"`
	Job            string `yaml:"job" env:"METRICS_JOB" env-default:"sparkify"`
}

type LogConfig struct {
	Mode  string `yaml:"mode" env:"LOG_MODE" env-default:"dev"`
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

// Load reads path (if it exists) and applies environment overrides.
// A missing file is not an error: the environment and defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Connections == nil {
		cfg.Connections = map[string]Connection{}
	}
	if _, ok := cfg.Connections["redshift"]; !ok && cfg.Cluster.Host != "" {
		cfg.Connections["redshift"] = Connection{Dialect: cfg.Cluster.Dialect, DSN: cfg.Cluster.DSN()}
	}

	return cfg, nil
}

var dialects = map[string]bool{
	"redshift":  true,
	"postgres":  true,
	"sqlserver": true,
	"sqlite":    true,
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if !dialects[c.Cluster.Dialect] {
		errs = append(errs, fmt.Errorf("%w: cluster.dialect %q is not supported", ErrInvalid, c.Cluster.Dialect))
	}
	if c.Cluster.Dialect != "sqlite" && c.Cluster.Host == "" {
		errs = append(errs, fmt.Errorf("%w: cluster.host is required for %s", ErrInvalid, c.Cluster.Dialect))
	}
	if c.Cluster.Dialect == "redshift" && c.IAMRole.ARN == "" {
		errs = append(errs, fmt.Errorf("%w: iam_role.arn is required for redshift COPY", ErrInvalid))
	}
	for _, loc := range []struct{ name, val string }{
		{"s3.log_data", c.S3.LogData},
		{"s3.song_data", c.S3.SongData},
		{"lake.input", c.Lake.Input},
		{"lake.output", c.Lake.Output},
	} {
		if _, err := url.Parse(loc.val); err != nil || !strings.Contains(loc.val, "://") {
			errs = append(errs, fmt.Errorf("%w: %s must be a URL, got %q", ErrInvalid, loc.name, loc.val))
		}
	}
	for id, conn := range c.Connections {
		if !dialects[conn.Dialect] {
			errs = append(errs, fmt.Errorf("%w: connections.%s.dialect %q is not supported", ErrInvalid, id, conn.Dialect))
		}
		if conn.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: connections.%s.dsn is required", ErrInvalid, id))
		}
	}

	return errors.Join(errs...)
}

// DSN renders the warehouse connection string for the cluster dialect.
func (c ClusterConfig) DSN() string {
	switch c.Dialect {
	case "sqlserver":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	case "sqlite":
		return "file:" + c.Path + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
		}
		return u.String()
	}
}

// StorageOptions returns the object storage options for the AWS section,
// using the S3 region.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Region:          c.S3.Region,
		Endpoint:        c.AWS.Endpoint,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		SessionToken:    c.AWS.SessionToken,
		Profile:         c.AWS.Profile,
		UseSSL:          c.AWS.UseSSL,
	}
}
