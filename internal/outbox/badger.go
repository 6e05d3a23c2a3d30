// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var badgerPrefix = []byte("beacon:")

// BadgerStore keeps entries as JSON values under "beacon:<id>".
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("outbox: badger backend requires a path")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("outbox: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(id string) []byte { return append(append([]byte(nil), badgerPrefix...), id...) }

func (s *BadgerStore) Put(_ context.Context, e Entry) error {
	if e.ID == "" {
		return ErrInvalidKey
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(e.ID), buf)
	})
}

func (s *BadgerStore) Due(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	var all []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			all = append(all, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortDue(all, now, limit), nil
}

func (s *BadgerStore) Ack(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(id)); err != nil {
			return mapBadger(err)
		}
		return txn.Delete(badgerKey(id))
	})
}

func (s *BadgerStore) Retry(_ context.Context, id string, next time.Time, lastErr string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return mapBadger(err)
		}
		var e Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return err
		}
		e.Attempts++
		e.NextAttempt = next
		e.LastError = lastErr
		buf, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return txn.Set(badgerKey(id), buf)
	})
}

func (s *BadgerStore) Len(context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func mapBadger(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
