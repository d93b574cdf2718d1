package eventlog

import (
	"encoding/json"
	"testing"

	"github.com/adambraimbridge/webchat/pkg/models"
)

func openTestLog(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
}

func mustEvent(t *testing.T, kind string, payload interface{}) models.Event {
	t.Helper()
	evt, err := models.NewEvent(kind, payload)
	if err != nil {
		t.Fatalf("NewEvent(%s): %v", kind, err)
	}
	return evt
}

func TestAppendAndListEvents(t *testing.T) {
	openTestLog(t)
	for i, html := range []string{"first", "second", "third"} {
		evt := mustEvent(t, models.EventMessage, models.MessagePayload{
			MessageID:    string(rune('a' + i)),
			HTML:         html,
			DateModified: int64(100 + i),
		})
		if err := AppendEvent("s1", evt); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	evts, err := ListEvents("s1", false, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	first, err := evts[0].MessageEvent()
	if err != nil || first.HTML != "first" {
		t.Fatalf("expected insertion order, got %+v (%v)", first, err)
	}

	rev, err := ListEvents("s1", true, 2)
	if err != nil {
		t.Fatalf("ListEvents reverse: %v", err)
	}
	if len(rev) != 2 {
		t.Fatalf("expected limit applied, got %d", len(rev))
	}
	newest, err := rev[0].MessageEvent()
	if err != nil || newest.HTML != "third" {
		t.Fatalf("expected newest first in reverse, got %+v (%v)", newest, err)
	}
}

func TestListEventsIsolatedPerSession(t *testing.T) {
	openTestLog(t)
	if err := AppendEvent("s1", mustEvent(t, models.EventMessage, models.MessagePayload{MessageID: "a", HTML: "x", DateModified: 1})); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := AppendEvent("s2", mustEvent(t, models.EventMessage, models.MessagePayload{MessageID: "b", HTML: "y", DateModified: 2})); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	evts, err := ListEvents("s1", false, 0)
	if err != nil || len(evts) != 1 {
		t.Fatalf("expected 1 event for s1, got %d (%v)", len(evts), err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	openTestLog(t)
	snap := models.SessionSnapshot{
		SessionID:    "s1",
		Status:       models.StatusPending,
		ContentOrder: models.OrderChronological,
		Channel:      "/v1/sessions/s1/stream",
	}
	if err := SaveSession(snap); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != models.StatusPending || got.Channel != snap.Channel {
		t.Fatalf("snapshot mismatch: %+v", got)
	}

	if _, err := GetSession("missing"); !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err := SaveSession(models.SessionSnapshot{}); err == nil {
		t.Fatalf("expected save without session_id to fail")
	}
}

func TestListSessionsSkipsEventKeys(t *testing.T) {
	openTestLog(t)
	if err := SaveSession(models.SessionSnapshot{SessionID: "s1", Status: models.StatusPending}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := SaveSession(models.SessionSnapshot{SessionID: "s2", Status: models.StatusClosed}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := AppendEvent("s1", mustEvent(t, models.EventStartSession, nil)); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	snaps, err := ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(snaps))
	}
}

func TestPurgeSession(t *testing.T) {
	openTestLog(t)
	if err := SaveSession(models.SessionSnapshot{SessionID: "s1", Status: models.StatusClosed}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := AppendEvent("s1", mustEvent(t, models.EventStartSession, nil)); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := PurgeSession("s1"); err != nil {
		t.Fatalf("PurgeSession: %v", err)
	}
	if _, err := GetSession("s1"); !IsNotFound(err) {
		t.Fatalf("expected session gone, got %v", err)
	}
	evts, err := ListEvents("s1", false, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts) != 0 {
		t.Fatalf("expected empty log after purge, got %d", len(evts))
	}
}

func TestSystemKeys(t *testing.T) {
	openTestLog(t)
	if v, err := GetSystemKey("version"); err != nil || v != "" {
		t.Fatalf("expected absent key to read empty, got %q (%v)", v, err)
	}
	if err := SetSystemKey("version", []byte("1.2.3")); err != nil {
		t.Fatalf("SetSystemKey: %v", err)
	}
	if v, _ := GetSystemKey("version"); v != "1.2.3" {
		t.Fatalf("expected 1.2.3, got %q", v)
	}
	if err := DeleteSystemKey("version"); err != nil {
		t.Fatalf("DeleteSystemKey: %v", err)
	}
	if v, _ := GetSystemKey("version"); v != "" {
		t.Fatalf("expected deleted key to read empty, got %q", v)
	}
}

func TestEventRecordShape(t *testing.T) {
	openTestLog(t)
	evt := mustEvent(t, models.EventDelete, models.DeletePayload{MessageID: "m1", DateModified: 5})
	if err := AppendEvent("s1", evt); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	evts, err := ListEvents("s1", false, 0)
	if err != nil || len(evts) != 1 {
		t.Fatalf("ListEvents: %v (%d)", err, len(evts))
	}
	var raw map[string]json.RawMessage
	b, _ := json.Marshal(evts[0])
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if _, ok := raw["event"]; !ok {
		t.Fatalf("expected event kind on the wire, got %s", b)
	}
}
