// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore is the property-graph access layer for the matcher.
//
// Engineers are (e:Engineer) nodes; skills hang off them as
// [:HAS_SKILL {proficiencyRank}] relationships. Everything above this
// package talks to the graph through the narrow Session interface, which
// keeps the constraint tester trivially fakeable in tests.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/AleutianAI/talentgraph/pkg/logging"
)

// ErrEngineerNotFound is returned when an anchor lookup finds no node.
var ErrEngineerNotFound = errors.New("engineer not found")

// Record is one result row keyed by the query's return aliases.
type Record map[string]any

// Session executes read queries against the graph.
//
// # Thread Safety
//
// A Session is NOT safe for concurrent use. Callers that need sequential
// query batches (the constraint tester's diagnosis loop) open one session
// and run queries strictly one after another.
type Session interface {
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

// SessionFunc adapts a plain function to the Session interface. Close is
// a no-op. Intended for tests.
type SessionFunc func(ctx context.Context, query string, params map[string]any) ([]Record, error)

func (f SessionFunc) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return f(ctx, query, params)
}

func (f SessionFunc) Close(context.Context) error { return nil }

// Config holds graph connection settings.
type Config struct {
	// URI is the bolt endpoint, e.g. "bolt://localhost:7687".
	URI string `yaml:"uri"`

	// Username and Password authenticate against the server.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database selects the database within the server.
	Database string `yaml:"database"`

	// MaxConnectionPoolSize caps pooled connections.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`

	// ConnectionTimeout bounds dialing a new connection.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// DefaultConfig returns settings for a local development graph.
func DefaultConfig() Config {
	return Config{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Password:              "password",
		Database:              "neo4j",
		MaxConnectionPoolSize: 25,
		ConnectionTimeout:     5 * time.Second,
	}
}

// Store owns the driver connection pool.
//
// # Thread Safety
//
// A Store is safe for concurrent use; sessions obtained from it are not.
type Store struct {
	driver neo4j.DriverWithContext
	config Config
	log    *logging.Logger
}

// NewStore connects a driver to the configured graph. The connection is
// lazy; use Ping to verify reachability at startup.
func NewStore(config Config, log *logging.Logger) (*Store, error) {
	if config.URI == "" {
		return nil, errors.New("graphstore: uri is required")
	}
	if log == nil {
		log = logging.Default()
	}
	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
		func(c *neo4jconfig.Config) {
			if config.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = config.MaxConnectionPoolSize
			}
			if config.ConnectionTimeout > 0 {
				c.SocketConnectTimeout = config.ConnectionTimeout
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("graphstore: create driver: %w", err)
	}
	return &Store{driver: driver, config: config, log: log}, nil
}

// Ping verifies server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graphstore: connectivity check failed: %w", err)
	}
	return nil
}

// Close releases the driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// ReadSession opens a read-mode session. The caller owns Close.
func (s *Store) ReadSession(ctx context.Context) Session {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	return &driverSession{sess: sess}
}

// EngineerByID fetches one engineer node's properties. Returns
// ErrEngineerNotFound when no node matches; callers treat that as
// fail-fast rather than an empty result.
func (s *Store) EngineerByID(ctx context.Context, id string) (Record, error) {
	sess := s.ReadSession(ctx)
	defer sess.Close(ctx)

	records, err := sess.Run(ctx,
		"MATCH (e:Engineer {id: $id}) RETURN e { .* } AS engineer",
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("engineer %q: %w", id, ErrEngineerNotFound)
	}
	props, ok := records[0]["engineer"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("engineer %q: unexpected record shape", id)
	}
	return Record(props), nil
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (d *driverSession) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	result, err := d.sess.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("graphstore: run query: %w", err)
	}
	var out []Record
	for result.Next(ctx) {
		rec := result.Record()
		row := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = rec.Values[i]
		}
		out = append(out, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: consume result: %w", err)
	}
	return out, nil
}

func (d *driverSession) Close(ctx context.Context) error {
	return d.sess.Close(ctx)
}

// CountValue extracts the integer count aliased as matchCount from a
// count-query result. A missing row counts as zero.
func CountValue(records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	switch v := records[0]["matchCount"].(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("graphstore: matchCount has unexpected type %T", v)
	}
}
