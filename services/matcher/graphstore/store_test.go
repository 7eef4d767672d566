// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/talentgraph/pkg/logging"
)

func TestCountValue(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    int
		wantErr bool
	}{
		{"empty result is zero", nil, 0, false},
		{"int64 from driver", []Record{{"matchCount": int64(42)}}, 42, false},
		{"plain int from fakes", []Record{{"matchCount": 7}}, 7, false},
		{"float64 from json", []Record{{"matchCount": float64(3)}}, 3, false},
		{"missing alias", []Record{{"count": int64(1)}}, 0, true},
		{"string value", []Record{{"matchCount": "42"}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountValue(tt.records)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionFunc(t *testing.T) {
	var gotQuery string
	sess := SessionFunc(func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		gotQuery = query
		return []Record{{"matchCount": int64(1)}}, nil
	})

	records, err := sess.Run(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "RETURN 1", gotQuery)
	assert.Len(t, records, 1)
	assert.NoError(t, sess.Close(context.Background()))
}

func TestNewStore(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})

	_, err := NewStore(Config{}, log)
	assert.Error(t, err, "empty URI must be rejected")

	// Driver construction is lazy; no server is needed here.
	store, err := NewStore(DefaultConfig(), log)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "bolt://localhost:7687", cfg.URI)
	assert.Equal(t, "neo4j", cfg.Database)
	assert.Positive(t, cfg.MaxConnectionPoolSize)
	assert.Positive(t, cfg.ConnectionTimeout)
}
