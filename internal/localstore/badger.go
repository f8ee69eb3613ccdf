// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/marquee/internal/logging"
)

const keyPrefix = "marquee:"

// Badger is a KV backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at path. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithNumVersionsToKeep(1).
		WithValueLogFileSize(16 << 20).
		WithSyncWrites(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get implements KV.
func (b *Badger) Get(_ context.Context, key string) (string, error) {
	var out string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	return out, err
}

// SetMany implements KV.
func (b *Badger) SetMany(_ context.Context, values map[string]string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range values {
			if err := txn.Set([]byte(keyPrefix+k), []byte(v)); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		return nil
	})
}

// Delete implements KV.
func (b *Badger) Delete(_ context.Context, keys ...string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(keyPrefix + k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// gcDiscardRatio is the share of stale data a value log file needs before
// it is rewritten.
const gcDiscardRatio = 0.5

// RunGC reclaims value log space every interval until ctx is done. Each
// round rewrites files until badger reports nothing left to do.
func (b *Badger) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.collect(); err != nil {
				return err
			}
		}
	}
}

func (b *Badger) collect() error {
	rewrites := 0
	for {
		err := b.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			rewrites++
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected),
			errors.Is(err, badger.ErrGCInMemoryMode):
			if rewrites > 0 {
				logging.Debug().Int("rewrites", rewrites).Msg("Local store value log collected")
			}
			return nil
		default:
			return fmt.Errorf("local store gc: %w", err)
		}
	}
}

// Close implements KV.
func (b *Badger) Close() error {
	return b.db.Close()
}
