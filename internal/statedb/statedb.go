// Package statedb records which manifest version was last applied to each
// sync target. The record is bookkeeping for logs and the UI shell; the sync
// engine never trusts it for diff correctness, since local files can change
// behind our back between runs.
package statedb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const installsBucket = "installs"

// Applied is the stored record for one target.
type Applied struct {
	Version   string    `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
	FileCount int       `json:"file_count"`
}

// DB wraps the bolt database.
type DB struct {
	conn *bbolt.DB
}

// Open opens (creating if needed) the state database at path. The open
// timeout guards against a second launcher process holding the file lock.
func Open(path string) (*DB, error) {
	conn, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = conn.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(installsBucket))
		return err
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.conn.Close()
}

// PutApplied records a successfully applied manifest version for target.
func (d *DB) PutApplied(target string, rec Applied) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(installsBucket)).Put([]byte(target), data)
	})
}

// GetApplied returns the stored record for target, or (nil, nil) when the
// target has never completed a sync.
func (d *DB) GetApplied(target string) (*Applied, error) {
	var rec *Applied
	err := d.conn.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(installsBucket)).Get([]byte(target))
		if v == nil {
			return nil
		}
		rec = &Applied{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
