// Package operators holds the task bodies of the orchestrated sparkify
// pipeline. Each operator is a small parameterised struct whose Execute
// runs one warehouse action and fails loudly; retries and scheduling are
// left to the orchestrator.
package operators

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/BartekS5/sparkify/pkg/logger"
)

// RunContext identifies the DAG run an operator executes for.
type RunContext struct {
	RunID       string
	LogicalDate time.Time
}

// Operator is one task body. Execute returns the rows it touched, or -1
// when the engine does not report a count.
type Operator interface {
	Execute(ctx context.Context, rc RunContext) (int64, error)
}

// templateData is what templated operator fields may reference, e.g.
// "log_data/{{.Year}}/{{.Month | printf \"%02d\"}}".
type templateData struct {
	RunID       string
	LogicalDate time.Time
	Ds          string
	Year        int
	Month       int
	Day         int
}

// render expands a templated field for rc. Fields without actions are
// returned unchanged.
func render(field, text string, rc RunContext) (string, error) {
	tmpl, err := template.New(field).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid %s template: %w", field, err)
	}
	d := rc.LogicalDate.UTC()
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{
		RunID:       rc.RunID,
		LogicalDate: d,
		Ds:          d.Format("2006-01-02"),
		Year:        d.Year(),
		Month:       int(d.Month()),
		Day:         d.Day(),
	}); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", field, err)
	}
	return buf.String(), nil
}

func orDefault(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.Default()
	}
	return l
}
