package retention

import (
	"testing"
	"time"

	"github.com/adambraimbridge/webchat/pkg/config"
	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/models"
)

func effWithRetention(t *testing.T, ret config.RetentionConfig) config.EffectiveConfigResult {
	t.Helper()
	cfg := &config.Config{}
	cfg.Retention = ret
	return config.EffectiveConfigResult{Config: cfg}
}

func saveSession(t *testing.T, id string, status models.SessionStatus, endedAgo time.Duration) {
	t.Helper()
	snap := models.SessionSnapshot{SessionID: id, Status: status}
	if endedAgo > 0 {
		snap.Time = time.Now().Add(-endedAgo).UnixMilli()
	}
	if err := eventlog.SaveSession(snap); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := eventlog.AppendEvent(id, models.Event{Kind: models.EventStartSession}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
}

func TestRunImmediatePurgesAgedClosedSessions(t *testing.T) {
	if err := eventlog.Open(t.TempDir()); err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	t.Cleanup(func() { eventlog.Close() })

	saveSession(t, "aged-closed", models.StatusClosed, 48*time.Hour)
	saveSession(t, "fresh-closed", models.StatusClosed, time.Hour)
	saveSession(t, "active", models.StatusActive, 48*time.Hour)
	saveSession(t, "closed-no-time", models.StatusClosed, 0)

	SetEffectiveConfig(effWithRetention(t, config.RetentionConfig{
		Enabled: true,
		Period:  config.Duration(24 * time.Hour),
	}))
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}

	if _, err := eventlog.GetSession("aged-closed"); !eventlog.IsNotFound(err) {
		t.Fatalf("expected aged closed session purged, got %v", err)
	}
	for _, id := range []string{"fresh-closed", "active", "closed-no-time"} {
		if _, err := eventlog.GetSession(id); err != nil {
			t.Fatalf("expected %s kept: %v", id, err)
		}
	}
	evts, err := eventlog.ListEvents("aged-closed", false, 0)
	if err != nil || len(evts) != 0 {
		t.Fatalf("expected purged event log, got %d (%v)", len(evts), err)
	}
}

func TestRunOnceDryRunKeepsEverything(t *testing.T) {
	if err := eventlog.Open(t.TempDir()); err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	t.Cleanup(func() { eventlog.Close() })

	saveSession(t, "aged-closed", models.StatusClosed, 48*time.Hour)
	SetEffectiveConfig(effWithRetention(t, config.RetentionConfig{
		Enabled: true,
		Period:  config.Duration(24 * time.Hour),
		DryRun:  true,
	}))
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
	if _, err := eventlog.GetSession("aged-closed"); err != nil {
		t.Fatalf("dry run must not purge: %v", err)
	}
}

func TestRunOnceGuards(t *testing.T) {
	SetEffectiveConfig(effWithRetention(t, config.RetentionConfig{Enabled: true}))
	if err := RunImmediate(); err == nil {
		t.Fatalf("expected missing period rejected")
	}

	SetEffectiveConfig(effWithRetention(t, config.RetentionConfig{
		Enabled:   true,
		Period:    config.Duration(time.Hour),
		MinPeriod: config.Duration(24 * time.Hour),
	}))
	if err := RunImmediate(); err == nil {
		t.Fatalf("expected below-minimum period rejected")
	}
}
