// Package store keeps every piece of bot state as JSON documents in an embedded buntdb file.
//
// Keys follow "<kind>:<guildID>:<...>", so everything belonging to a guild can be found
// with a single pattern scan.
package store

import (
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotFound = errors.NewPlain("store: key not found")

	// ErrDelete can be returned from a Mutate callback to remove the key
	ErrDelete = errors.NewPlain("store: delete key")
	// ErrSkipWrite can be returned from a Mutate callback to leave the key untouched
	ErrSkipWrite = errors.NewPlain("store: skip write")
)

type DB struct {
	db *buntdb.DB
}

// Open opens or creates the database at path, ":memory:" gives a throwaway in memory db
func Open(path string) (*DB, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open "+path)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Shrink rewrites the append only file, called periodically from cron
func (d *DB) Shrink() error {
	err := d.db.Shrink()
	if err == buntdb.ErrShrinkInProcess {
		return nil
	}
	return err
}

// EnsureIndex creates or replaces a json field index over keys matching pattern
func (d *DB) EnsureIndex(name, pattern, field string) error {
	return d.db.ReplaceIndex(name, pattern, buntdb.IndexJSON(field))
}

func Decode(raw string, dst interface{}) error {
	return json.UnmarshalFromString(raw, dst)
}

func encode(v interface{}) (string, error) {
	return json.MarshalToString(v)
}

// Get decodes the document at key into dst
func (d *DB) Get(key string, dst interface{}) error {
	return d.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(key)
		if err != nil {
			if err == buntdb.ErrNotFound {
				return ErrNotFound
			}
			return err
		}

		return Decode(raw, dst)
	})
}

// Put stores v at key, a ttl above zero makes the key expire
func (d *DB) Put(key string, v interface{}, ttl time.Duration) error {
	encoded, err := encode(v)
	if err != nil {
		return errors.WithMessage(err, "encode "+key)
	}

	return d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, encoded, setOpts(ttl))
		return err
	})
}

func setOpts(ttl time.Duration) *buntdb.SetOptions {
	if ttl <= 0 {
		return nil
	}
	return &buntdb.SetOptions{Expires: true, TTL: ttl}
}

// Delete removes key, returning ErrNotFound if it didn't exist
func (d *DB) Delete(key string) error {
	return d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		return err
	})
}

// Mutate runs a read-modify-write on key inside one write transaction.
// v is filled from the stored document when it exists, fn then changes it in place.
// Whatever fn leaves in v is written back unless fn returns ErrDelete or ErrSkipWrite.
func (d *DB) Mutate(key string, v interface{}, fn func(found bool) error) error {
	return d.db.Update(func(tx *buntdb.Tx) error {
		found := true
		raw, err := tx.Get(key)
		if err == buntdb.ErrNotFound {
			found = false
		} else if err != nil {
			return err
		} else if err = Decode(raw, v); err != nil {
			return errors.WithMessage(err, "decode "+key)
		}

		switch err := fn(found); err {
		case nil:
		case ErrSkipWrite:
			return nil
		case ErrDelete:
			if !found {
				return nil
			}
			_, err := tx.Delete(key)
			return err
		default:
			return err
		}

		encoded, err := encode(v)
		if err != nil {
			return err
		}

		_, _, err = tx.Set(key, encoded, nil)
		return err
	})
}

// Ascend calls fn for every key matching the pattern ("actions:123:*") in key order,
// stopping early when fn returns false
func (d *DB) Ascend(pattern string, fn func(key, raw string) bool) error {
	return d.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(pattern, fn)
	})
}

// AscendIndexBelow walks an index in ascending order over items whose indexed
// field is lower than pivot, pivot is a json document such as {"when":1700000000}
func (d *DB) AscendIndexBelow(index, pivot string, fn func(key, raw string) bool) error {
	return d.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendLessThan(index, pivot, fn)
	})
}

// DeletePattern removes every key matching pattern and returns how many went away
func (d *DB) DeletePattern(pattern string) (int, error) {
	n := 0
	err := d.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.AscendKeys(pattern, func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
			n++
		}
		return nil
	})

	return n, err
}

// NextID returns the next value of a named sequence, starting at 1
func (d *DB) NextID(sequence string) (int64, error) {
	var next int64
	err := d.db.Update(func(tx *buntdb.Tx) error {
		key := "seq:" + sequence
		cur, err := tx.Get(key)
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}

		if cur != "" {
			next, err = strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return errors.WithMessage(err, "corrupt sequence "+sequence)
			}
		}

		next++
		_, _, err = tx.Set(key, strconv.FormatInt(next, 10), nil)
		return err
	})

	return next, err
}

// Key joins parts with ":"
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
