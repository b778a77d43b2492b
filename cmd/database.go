// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"rowscope/cli/internal/backend"
	"rowscope/cli/internal/keychain"
	"rowscope/cli/internal/logging"
	"rowscope/cli/internal/metrics"
	"rowscope/cli/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

// errNoDSN is returned when no connection string is configured anywhere.
var errNoDSN = errors.New("no database connection configured; run 'rowscope connect' or set ROWSCOPE_DSN")

// resolveDSN returns the connection string and where it came from. The
// --dsn flag wins over ROWSCOPE_DSN, then DATABASE_URL, then the keychain,
// then the config file.
func resolveDSN() (raw, source string, err error) {
	if v := strings.TrimSpace(dsnFlag); v != "" {
		return v, "--dsn flag", nil
	}
	for _, env := range []string{"ROWSCOPE_DSN", "DATABASE_URL"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, env + " environment variable", nil
		}
	}
	if km, kerr := keychain.GetManager(); kerr == nil {
		v, lerr := km.LoadDBDSN()
		if lerr == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), "OS keychain", nil
		}
		if lerr != nil && !errors.Is(lerr, keychain.ErrNotFound) {
			logger.Warn("keychain lookup failed", "error", lerr)
		}
	}
	if v := strings.TrimSpace(cfg.DB.DSN); v != "" {
		return v, "config file", nil
	}
	return "", "", errNoDSN
}

// openDatabase resolves the DSN and opens a backend port while a spinner
// runs on stderr.
func openDatabase(ctx context.Context) (backend.Port, error) {
	raw, source, err := resolveDSN()
	if err != nil {
		return nil, err
	}
	logger.Debug("opening database", "source", source, "dsn", raw)

	stop := startInlineSpinner(os.Stderr, "connecting", spinnerFrames, 100*time.Millisecond)
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	port, err := backend.Open(openCtx, raw)
	stop()
	if err != nil {
		pterm.Error.Println("Failed to connect to database")
		logging.PresentDBError(err)
		return nil, err
	}
	return port, nil
}

// newSession builds a session for port from the configured lazy settings.
// reg may be nil when metrics are not exported.
func newSession(port backend.Port, reg prometheus.Registerer) (*session.Session, error) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}
	return session.New(cfg.Lazy, port, session.Options{Logger: logger, Metrics: m})
}
