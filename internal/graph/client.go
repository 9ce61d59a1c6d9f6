package graph

import (
	"context"
	"errors"

	"peerlink/internal/config"
)

// Client is the subset of a graph database the follow store needs.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result holds the records a query returned.
type Result struct {
	Records []Record
}

// Record maps return aliases to values.
type Record map[string]any

// Options configures a Bolt connection.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// OptionsFrom maps the graph section of the config file.
func OptionsFrom(c config.GraphConfig) Options {
	return Options{
		URI:            c.URI,
		Database:       c.Database,
		Username:       c.Username,
		Password:       c.Password,
		MaxConnections: c.MaxConnections,
	}
}

var ErrMissingURI = errors.New("graph URI is required")
