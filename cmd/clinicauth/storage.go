package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	clinicAuth "github.com/MrEthical07/clinicAuth"
	"github.com/MrEthical07/clinicAuth/session"
)

type storageOptions struct {
	name       string
	stateDir   string
	sqlitePath string
	redisAddr  string
	sealSecret string
}

// openPersister picks Redis, then SQLite, then the state directory. The
// returned close func releases whatever connection was opened.
func openPersister(ctx context.Context, opts storageOptions) (clinicAuth.Persister, func() error, error) {
	noop := func() error { return nil }

	switch {
	case opts.redisAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis %s: %w", opts.redisAddr, err)
		}
		return session.NewRedisPersister(rdb, "clinicauth:"+opts.name), rdb.Close, nil

	case opts.sqlitePath != "":
		db, err := session.OpenSQLite(opts.sqlitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		p, err := session.NewSQLitePersister(ctx, db, opts.name)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return p, db.Close, nil
	}

	dir := opts.stateDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, noop, errors.New("no state directory; pass --state-dir")
		}
		dir = filepath.Join(base, "clinicauth")
	}

	var fileOpts []session.FileOption
	if opts.sealSecret != "" {
		sealer, err := session.NewSealer([]byte(opts.sealSecret), []byte(opts.name))
		if err != nil {
			return nil, noop, err
		}
		fileOpts = append(fileOpts, session.WithSealer(sealer))
	}
	p, err := session.NewFilePersister(dir, opts.name, fileOpts...)
	if err != nil {
		return nil, noop, err
	}
	return p, noop, nil
}
