package warehouse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned when a dialect cannot perform an operation.
var ErrUnsupported = errors.New("not supported by dialect")

// Dialect renders the schema and statements for one SQL engine.
type Dialect string

const (
	Redshift  Dialect = "redshift"
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "sqlserver"
	SQLite    Dialect = "sqlite"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case Redshift, Postgres, SQLServer, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", s)
	}
}

// SupportsCopy reports whether the engine can bulk-load JSON straight
// from S3 with a COPY statement.
func (d Dialect) SupportsCopy() bool {
	return d == Redshift
}

func (d Dialect) columnType(c Column) string {
	switch d {
	case SQLite:
		switch c.Type {
		case Identity:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		case Int:
			return "INTEGER"
		case Double:
			return "REAL"
		case Timestamp:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	case SQLServer:
		switch c.Type {
		case Identity:
			return "INT IDENTITY(1,1)"
		case Int:
			return "INT"
		case Double:
			return "FLOAT"
		case Timestamp:
			return "DATETIME2"
		case Char1:
			return "NCHAR(1)"
		default:
			// Indexed columns cannot be NVARCHAR(MAX).
			if c.PrimaryKey || c.References != "" {
				return "NVARCHAR(255)"
			}
			return "NVARCHAR(MAX)"
		}
	case Postgres:
		switch c.Type {
		case Identity:
			return "INT GENERATED BY DEFAULT AS IDENTITY"
		case Int:
			return "INT"
		case Double:
			return "DOUBLE PRECISION"
		case Timestamp:
			return "TIMESTAMP"
		case Char1:
			return "CHAR(1)"
		default:
			return "VARCHAR"
		}
	default:
		switch c.Type {
		case Identity:
			return "INT IDENTITY(0,1)"
		case Int:
			return "INT"
		case Double:
			return "DOUBLE PRECISION"
		case Timestamp:
			return "TIMESTAMP"
		case Char1:
			return "CHAR(1)"
		default:
			return "VARCHAR(MAX)"
		}
	}
}

func (d Dialect) columnDef(c Column) string {
	parts := []string{c.Name, d.columnType(c)}
	if d == Redshift {
		if c.SortKey {
			parts = append(parts, "SORTKEY")
		}
		if c.DistKey {
			parts = append(parts, "DISTKEY")
		}
	}
	// SQLite declares the primary key inside the AUTOINCREMENT type.
	if c.PrimaryKey && !(d == SQLite && c.Type == Identity) {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.References != "" {
		parts = append(parts, "REFERENCES "+c.References)
	}
	return strings.Join(parts, " ")
}

// CreateTable renders an idempotent CREATE TABLE.
func (d Dialect) CreateTable(t Table) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, "    "+d.columnDef(c))
	}
	body := strings.Join(defs, ",\n")

	var b strings.Builder
	if d == SQLServer {
		fmt.Fprintf(&b, "IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n%s)", t.Name, t.Name, body)
		return b.String()
	}
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n%s)", t.Name, body)
	if d == Redshift && t.DistAll {
		b.WriteString("\nDISTSTYLE ALL")
	}
	return b.String()
}

// DropTable renders DROP TABLE IF EXISTS, cascading where the engine
// supports it.
func (d Dialect) DropTable(name string) string {
	switch d {
	case Redshift, Postgres:
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", name)
	default:
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
	}
}

// Truncate empties table as fast as the engine allows. On Redshift this
// commits the surrounding transaction, so use DeleteAll inside one.
func (d Dialect) Truncate(table string) string {
	switch d {
	case SQLite:
		return "DELETE FROM " + table
	case SQLServer:
		return "TRUNCATE TABLE " + table
	default:
		return "TRUNCATE " + table
	}
}

// DeleteAll empties table transactionally.
func (d Dialect) DeleteAll(table string) string {
	return "DELETE FROM " + table
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	switch d {
	case SQLite:
		return "?"
	case SQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return fmt.Sprintf("$%d", n)
	}
}

// MaxParams bounds the bind parameters of one statement.
func (d Dialect) MaxParams() int {
	switch d {
	case SQLServer:
		return 2000
	case SQLite:
		return 32000
	default:
		return 65000
	}
}

// datePart renders a calendar field of a timestamp expression. Weekday is
// 0 for Sunday through 6 for Saturday; week is the ISO-8601 week.
func (d Dialect) datePart(field, expr string) string {
	switch d {
	case SQLite:
		switch field {
		case "weekday":
			return fmt.Sprintf("CAST(strftime('%%w', %s) AS INTEGER)", expr)
		case "week":
			return fmt.Sprintf("(CAST(strftime('%%j', date(%s, '-3 days', 'weekday 4')) AS INTEGER) - 1) / 7 + 1", expr)
		default:
			f := map[string]string{"hour": "%H", "day": "%d", "month": "%m", "year": "%Y"}[field]
			return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", f, expr)
		}
	case SQLServer:
		switch field {
		case "weekday":
			return fmt.Sprintf("(DATEPART(weekday, %s) + @@DATEFIRST - 1) %% 7", expr)
		case "week":
			return fmt.Sprintf("DATEPART(iso_week, %s)", expr)
		default:
			return fmt.Sprintf("DATEPART(%s, %s)", field, expr)
		}
	case Postgres:
		if field == "weekday" {
			field = "dow"
		}
		return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS INT)", field, expr)
	default:
		if field == "weekday" {
			field = "dayofweek"
		}
		return fmt.Sprintf("EXTRACT(%s FROM %s)", field, expr)
	}
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
