package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/institute-admission-api/pkg/config"
)

const applicationName = "admission-api"

// NewPostgres opens the admission database pool. Server-side timeouts travel in the
// startup packet so every pooled session, and every RunInTx transaction on it,
// inherits them.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}
	configurePool(db, cfg)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// DSN renders cfg as a lib/pq keyword/value connection string.
func DSN(cfg config.DatabaseConfig) string {
	params := map[string]string{
		"host":             cfg.Host,
		"port":             fmt.Sprintf("%d", cfg.Port),
		"user":             cfg.User,
		"password":         cfg.Password,
		"dbname":           cfg.Name,
		"sslmode":          cfg.SSLMode,
		"application_name": applicationName,
	}
	if cfg.ConnectTimeout > 0 {
		secs := int(cfg.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		params["connect_timeout"] = fmt.Sprintf("%d", secs)
	}
	// A blocked seat transaction must fail on lock_timeout rather than be cancelled
	// mid-statement, so the statement limit is kept above the admission lock timeout
	// by config.
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}
	if cfg.IdleInTxTimeout > 0 {
		params["idle_in_transaction_session_timeout"] = fmt.Sprintf("%d", cfg.IdleInTxTimeout.Milliseconds())
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteValue(params[k]))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// configurePool sizes the pool, capping idle connections at the open limit.
func configurePool(db *sqlx.DB, cfg config.DatabaseConfig) {
	open, idle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if open > 0 {
		db.SetMaxOpenConns(open)
		if idle > open {
			idle = open
		}
	}
	if idle > 0 {
		db.SetMaxIdleConns(idle)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}
