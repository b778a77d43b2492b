// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rowscope/cli/internal/dsn"
)

// Opener opens a Port for a normalized DSN.
type Opener func(ctx context.Context, normalizedDSN string) (Port, error)

var (
	openersMu sync.RWMutex
	openers   = map[dsn.DBType]Opener{}
)

// Register makes an Opener available for a database type.
// It panics when called twice for the same type.
func Register(t dsn.DBType, o Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if o == nil {
		panic("backend: Register opener is nil")
	}
	if _, dup := openers[t]; dup {
		panic("backend: Register called twice for " + string(t))
	}
	openers[t] = o
}

// Registered lists the database types with an Opener.
func Registered() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]string, 0, len(openers))
	for t := range openers {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// Open parses raw, picks the Opener for its database type and opens a Port.
func Open(ctx context.Context, raw string) (Port, error) {
	normalized, err := dsn.Parse(raw)
	if err != nil {
		return nil, err
	}
	t := dsn.DetectDBType(normalized)
	openersMu.RLock()
	o, ok := openers[t]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no backend registered for %s", t)
	}
	return o(ctx, normalized)
}
