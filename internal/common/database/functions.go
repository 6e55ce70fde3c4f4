package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresConfig holds libpq connection key/values (host, port, user, password, dbname, sslmode, ...).
type PostgresConfig struct {
	Connection map[string]string
	// Upper bound on pool connections.  Zero leaves the pgxpool default.
	MaxConns int32 `validate:"gte=0"`
}

func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	for _, k := range keys {
		pairs = append(pairs, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(pairs, " ")
}

func OpenPgxPool(ctx context.Context, config PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return db, nil
}

// UniqueTableName returns a table name unique to this call, suitable for temporary staging tables.
func UniqueTableName(table string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s_tmp_%s", table, suffix)
}
