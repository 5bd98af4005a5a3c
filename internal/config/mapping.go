package config

import (
	"fmt"
	"sort"
)

// Connection looks up a named connection, as referenced by the DAG
// operators through their conn_id.
func (c *Config) Connection(id string) (Connection, error) {
	conn, ok := c.Connections[id]
	if !ok {
		return Connection{}, fmt.Errorf("connection %q is not configured (known: %v)", id, c.ConnectionIDs())
	}
	return conn, nil
}

// ConnectionIDs lists the configured connection ids in sorted order.
func (c *Config) ConnectionIDs() []string {
	ids := make([]string, 0, len(c.Connections))
	for id := range c.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
