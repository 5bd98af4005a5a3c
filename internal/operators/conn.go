package operators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/BartekS5/sparkify/internal/config"
	"github.com/BartekS5/sparkify/internal/warehouse"
	"github.com/BartekS5/sparkify/pkg/database"
	"github.com/BartekS5/sparkify/pkg/logger"
)

// DefaultConnID is the connection operators use when none is set.
const DefaultConnID = "redshift"

// Conn is an open warehouse connection and the dialect to render for it.
type Conn struct {
	DB      *sql.DB
	Dialect warehouse.Dialect
}

// ConnRegistry resolves connection ids to pooled connections. Connections
// are opened on first use and shared afterwards; it is safe for concurrent
// use by activities running in one worker.
type ConnRegistry struct {
	mu     sync.Mutex
	lookup func(id string) (config.Connection, error)
	conns  map[string]*Conn
	logger *logger.Logger
}

func NewConnRegistry(cfg *config.Config, log *logger.Logger) *ConnRegistry {
	r := &ConnRegistry{conns: map[string]*Conn{}, logger: orDefault(log)}
	if cfg != nil {
		r.lookup = cfg.Connection
	}
	return r
}

// Get returns the connection for id, opening it if needed. An empty id
// means DefaultConnID.
func (r *ConnRegistry) Get(ctx context.Context, id string) (*Conn, error) {
	if id == "" {
		id = DefaultConnID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		return c, nil
	}
	if r.lookup == nil {
		return nil, fmt.Errorf("connection %q: no connections configured", id)
	}

	cc, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	d, err := warehouse.ParseDialect(cc.Dialect)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", id, err)
	}
	db, err := database.ConnectSQL(ctx, string(d), cc.DSN)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", id, err)
	}
	r.logger.Info("Opened warehouse connection", "conn_id", id, "dialect", d)

	c := &Conn{DB: db, Dialect: d}
	r.conns[id] = c
	return c, nil
}

// Close closes every connection the registry holds.
func (r *ConnRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, c := range r.conns {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(r.conns, id)
	}
	return errors.Join(errs...)
}
