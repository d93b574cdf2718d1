// Package eventlog persists the per-session event history in Pebble.
// Each session gets an append-only event log plus a snapshot record
// holding its current configuration and status.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
)

var db *pebble.DB

// seq reduces key collisions when multiple events share the same
// nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_event_log", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("event_log_open_failed", "path", path, "error", err.Error())
		return err
	}
	return nil
}

// Close closes the opened database if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("event_log_closed")
	return nil
}

// Ready reports whether the log is opened and ready.
func Ready() bool {
	return db != nil
}

func eventPrefix(sessionID string) []byte {
	return []byte("session:" + sessionID + ":evt:")
}

func sessionMetaKey(sessionID string) []byte {
	return []byte("session:" + sessionID + ":meta")
}

// AppendEvent appends one event to a session's log. Keys carry a
// sortable timestamp prefix so iteration order is insertion order.
func AppendEvent(sessionID string, evt models.Event) error {
	if db == nil {
		return fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("session:%s:evt:%020d-%06d", sessionID, ts, s)
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("append_event_failed", "session", sessionID, "key", key, "error", err.Error())
		return err
	}
	logger.Debug("event_appended", "session", sessionID, "kind", evt.Kind, "key", key)
	return nil
}

// ListEvents returns a session's events in insertion order, or newest
// first when reverse is set. A positive limit caps the result.
func ListEvents(sessionID string, reverse bool, limit int) ([]models.Event, error) {
	if db == nil {
		return nil, fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	prefix := eventPrefix(sessionID)
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Event
	collect := func() error {
		var evt models.Event
		if err := json.Unmarshal(iter.Value(), &evt); err != nil {
			return fmt.Errorf("invalid event record %q: %w", iter.Key(), err)
		}
		out = append(out, evt)
		return nil
	}
	if reverse {
		for valid := iter.Last(); valid; valid = iter.Prev() {
			if err := collect(); err != nil {
				return nil, err
			}
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	} else {
		for valid := iter.First(); valid; valid = iter.Next() {
			if err := collect(); err != nil {
				return nil, err
			}
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, iter.Error()
}

// SaveSession stores a session snapshot under its reserved key.
func SaveSession(snap models.SessionSnapshot) error {
	if db == nil {
		return fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	if snap.SessionID == "" {
		return fmt.Errorf("session snapshot missing session_id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := db.Set(sessionMetaKey(snap.SessionID), data, pebble.Sync); err != nil {
		logger.Error("save_session_failed", "session", snap.SessionID, "error", err.Error())
		return err
	}
	return nil
}

// GetSession returns the stored snapshot for a session ID.
func GetSession(sessionID string) (models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	if db == nil {
		return snap, fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	v, closer, err := db.Get(sessionMetaKey(sessionID))
	if err != nil {
		return snap, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &snap); err != nil {
		return snap, fmt.Errorf("invalid session snapshot: %w", err)
	}
	return snap, nil
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return err == pebble.ErrNotFound
}

// ListSessions returns all saved session snapshots.
func ListSessions() ([]models.SessionSnapshot, error) {
	if db == nil {
		return nil, fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	prefix := []byte("session:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.SessionSnapshot
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !strings.HasSuffix(string(iter.Key()), ":meta") {
			continue
		}
		var snap models.SessionSnapshot
		if err := json.Unmarshal(iter.Value(), &snap); err != nil {
			return nil, fmt.Errorf("invalid session snapshot %q: %w", iter.Key(), err)
		}
		out = append(out, snap)
	}
	return out, iter.Error()
}

func systemKey(name string) []byte {
	return []byte("system:" + name)
}

// GetSystemKey returns a system record's value, or "" when absent.
func GetSystemKey(name string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	v, closer, err := db.Get(systemKey(name))
	if err == pebble.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	out := string(v)
	if closer != nil {
		closer.Close()
	}
	return out, nil
}

// SetSystemKey stores a system record.
func SetSystemKey(name string, value []byte) error {
	if db == nil {
		return fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	return db.Set(systemKey(name), value, pebble.Sync)
}

// DeleteSystemKey removes a system record.
func DeleteSystemKey(name string) error {
	if db == nil {
		return fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	return db.Delete(systemKey(name), pebble.Sync)
}

// PurgeSession removes a session's snapshot and its whole event log.
func PurgeSession(sessionID string) error {
	if db == nil {
		return fmt.Errorf("event log not opened; call eventlog.Open first")
	}
	prefix := eventPrefix(sessionID)
	upper := append(append([]byte(nil), prefix...), 0xff)
	if err := db.DeleteRange(prefix, upper, pebble.Sync); err != nil {
		logger.Error("purge_events_failed", "session", sessionID, "error", err.Error())
		return err
	}
	if err := db.Delete(sessionMetaKey(sessionID), pebble.Sync); err != nil {
		logger.Error("purge_session_failed", "session", sessionID, "error", err.Error())
		return err
	}
	logger.Info("session_purged", "session", sessionID)
	return nil
}
