// Package migrate performs upgrade work between server versions against
// the stored session records.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
)

const (
	systemVersionKey    = "version"
	systemInProgressKey = "migration_in_progress"
)

// Sync performs upgrade work between versions. Edit in-place for
// migration logic.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("migrate_sync_start", "from", from, "to", to)

	// Migration: sessions written before display settings were stored
	// lack content_order and channel. Fill the defaults. Idempotent and
	// safe to run multiple times.
	snaps, err := eventlog.ListSessions()
	if err != nil {
		logger.Error("migrate_list_sessions_failed", "error", err)
		return err
	}
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed := false
		if !snap.ContentOrder.Valid() {
			snap.ContentOrder = models.OrderChronological
			changed = true
		}
		if snap.Channel == "" {
			snap.Channel = "/v1/sessions/" + snap.SessionID + "/stream"
			changed = true
		}
		if !snap.Status.Valid() {
			snap.Status = models.StatusClosed
			changed = true
		}
		if !changed {
			continue
		}
		if err := eventlog.SaveSession(snap); err != nil {
			logger.Error("migrate_save_session_failed", "session", snap.SessionID, "error", err)
			continue
		}
		logger.Info("migrate_session_defaults_filled", "session", snap.SessionID)
	}

	logger.Info("migrate_sync_done", "from", from, "to", to)
	return nil
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored, err := eventlog.GetSystemKey(systemVersionKey)
	if err != nil {
		logger.Error("migrate_read_version_failed", "error", err)
	}
	logger.Info("migrate_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("migrate_noop", "version", newVersion)
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := eventlog.SetSystemKey(systemInProgressKey, mb); err != nil {
		logger.Error("migrate_write_inprogress_failed", "error", err)
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	logger.Info("migrate_start_sync", "from", stored, "to", newVersion)
	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("migrate_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}

	if err := eventlog.SetSystemKey(systemVersionKey, []byte(newVersion)); err != nil {
		logger.Error("migrate_persist_version_failed", "version", newVersion, "error", err)
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}
	if err := eventlog.DeleteSystemKey(systemInProgressKey); err != nil {
		logger.Error("migrate_delete_inprogress_failed", "error", err)
	}

	logger.Info("migrate_version_persisted", "version", newVersion)
	return true, nil
}
