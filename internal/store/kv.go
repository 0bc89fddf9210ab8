package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lazypower/tether/internal/failure"
)

// Persisted keys. Values are JSON-encoded strings.
const (
	KeyTasks        = "tasks"
	KeyOfflineQueue = "offline_voice_queue"
	KeyTranscripts  = "transcription_cache"
	KeyUsage        = "voice_recording_usage"
)

// KV is durable key to string storage whose failures never reach the caller.
// A failed read looks like a missing key; a failed write is logged.
//
// Update is the only safe read-modify-write: fn sees the current value and
// its result is stored in the same write transaction, even across processes
// sharing the database file. fn must not touch the store itself.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	Update(key string, fn func(value string, ok bool) (next string, write bool))
}

const upsertValue = `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// GetValue returns the value stored under key. ok is false if the key is absent.
func (db *DB) GetValue(key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// SetValue stores value under key, replacing any previous value.
func (db *DB) SetValue(key, value string) error {
	if _, err := db.Exec(upsertValue, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// UpdateValue reads key, passes it to fn and stores fn's result, all in one
// IMMEDIATE transaction. Nothing is written when fn returns write=false.
func (db *DB) UpdateValue(key string, fn func(value string, ok bool) (string, bool)) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin update %s: %w", key, err)
	}
	defer tx.Rollback()

	var value string
	ok := true
	switch err := tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value); {
	case err == sql.ErrNoRows:
		ok = false
	case err != nil:
		return fmt.Errorf("get %s: %w", key, err)
	}

	next, write := fn(value, ok)
	if !write {
		return tx.Commit()
	}
	if _, err := tx.Exec(upsertValue, key, next, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Removing a missing key is not an error.
func (db *DB) DeleteValue(key string) error {
	if _, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keyspace adapts a DB to the KV interface, logging instead of returning errors.
type Keyspace struct {
	db  *DB
	log *slog.Logger
}

// KV returns the error-swallowing view of db. A nil logger uses slog.Default().
func (db *DB) KV(logger *slog.Logger) *Keyspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyspace{db: db, log: logger}
}

func (k *Keyspace) Get(key string) (string, bool) {
	v, ok, err := k.db.GetValue(key)
	if err != nil {
		k.log.Warn("persistent store read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (k *Keyspace) Set(key, value string) {
	if err := k.db.SetValue(key, value); err != nil {
		k.log.Error("persistent store write failed", "key", key, "error", err)
	}
}

func (k *Keyspace) Remove(key string) {
	if err := k.db.DeleteValue(key); err != nil {
		k.log.Error("persistent store remove failed", "key", key, "error", err)
	}
}

func (k *Keyspace) Update(key string, fn func(string, bool) (string, bool)) {
	if err := k.db.UpdateValue(key, fn); err != nil {
		k.log.Error("persistent store update failed", "key", key, "error", err)
	}
}

// LoadJSON decodes the value under key into v. It reports false when the key
// is absent or the stored JSON is malformed; the latter also returns a Parse failure.
func LoadJSON(kv KV, key string, v any) (bool, error) {
	raw, ok := kv.Get(key)
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, failure.New(failure.Parse, "load "+key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	kv.Set(key, string(data))
	return nil
}

// UpdateJSON decodes the value under key into a T, lets fn mutate it and
// stores the result in the same transaction when fn returns true. found is
// false for an absent key and for malformed JSON; the latter also returns a
// Parse failure, and whatever fn writes replaces the bad value.
func UpdateJSON[T any](kv KV, key string, fn func(v *T, found bool) bool) error {
	var failed error
	kv.Update(key, func(raw string, ok bool) (string, bool) {
		var v T
		found := ok && raw != ""
		if found {
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				failed = failure.New(failure.Parse, "load "+key, err)
				var zero T
				v, found = zero, false
			}
		}
		if !fn(&v, found) {
			return "", false
		}
		data, err := json.Marshal(v)
		if err != nil {
			failed = fmt.Errorf("encode %s: %w", key, err)
			return "", false
		}
		return string(data), true
	})
	return failed
}
