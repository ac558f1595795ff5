package storage

import (
	"context"
	"fmt"
	"io"
)

const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend     string
	Path        string
	Redis       RedisOptions
	PostgresDSN string
}

// Open builds the configured backend; an empty backend is the local
// SQLite file. The returned closer releases its connections.
func Open(ctx context.Context, opts Options) (KV, io.Closer, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		s, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		r, err := NewRedis(ctx, opts.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case BackendPostgres:
		s, err := OpenPostgres(opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
}
