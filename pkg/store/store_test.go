package store

import (
	"testing"

	"github.com/adambraimbridge/webchat/pkg/models"
)

func TestUpsertOrdering(t *testing.T) {
	chrono := New(models.OrderChronological)
	chrono.Upsert(models.Message{ID: "a", HTML: "one", DateModified: 100})
	chrono.Upsert(models.Message{ID: "b", HTML: "two", DateModified: 200})
	ids := chrono.OrderedIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("chronological order wrong: %v", ids)
	}

	rev := New(models.OrderReverseChronological)
	rev.Upsert(models.Message{ID: "a", HTML: "one", DateModified: 100})
	rev.Upsert(models.Message{ID: "b", HTML: "two", DateModified: 200})
	ids = rev.OrderedIDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Fatalf("reverse-chronological order wrong: %v", ids)
	}
}

func TestUpsertLastWriterWins(t *testing.T) {
	s := New(models.OrderChronological)
	if got := s.Upsert(models.Message{ID: "a", HTML: "v1", DateModified: 100}); got != Inserted {
		t.Fatalf("expected Inserted, got %v", got)
	}
	if got := s.Upsert(models.Message{ID: "a", HTML: "v2", DateModified: 200}); got != Updated {
		t.Fatalf("expected Updated, got %v", got)
	}
	if got := s.Upsert(models.Message{ID: "a", HTML: "old", DateModified: 150}); got != Stale {
		t.Fatalf("expected Stale for older write, got %v", got)
	}
	m, ok := s.Find("a")
	if !ok || m.HTML != "v2" {
		t.Fatalf("expected v2 to survive, got %+v ok=%v", m, ok)
	}
}

func TestUpsertEqualTimestampReplaces(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", HTML: "v1", DateModified: 100})
	if got := s.Upsert(models.Message{ID: "a", HTML: "redelivered", DateModified: 100}); got != Updated {
		t.Fatalf("expected equal timestamp to replace, got %v", got)
	}
	if m, _ := s.Find("a"); m.HTML != "redelivered" {
		t.Fatalf("expected redelivered content, got %q", m.HTML)
	}
}

func TestEditKeepsPosition(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", DateModified: 100})
	s.Upsert(models.Message{ID: "b", DateModified: 200})
	s.Upsert(models.Message{ID: "a", HTML: "edited", DateModified: 300})
	ids := s.OrderedIDs()
	if ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("edit must not re-sort: %v", ids)
	}
}

func TestRemoveAndTombstone(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", DateModified: 100})
	s.Upsert(models.Message{ID: "b", DateModified: 200})
	if !s.Remove("a", 250) {
		t.Fatalf("expected remove to report success")
	}
	if s.Remove("a", 250) {
		t.Fatalf("expected second remove to no-op")
	}
	if ids := s.OrderedIDs(); len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("expected only b to remain: %v", ids)
	}

	// A content event older than the delete must not resurrect.
	if got := s.Upsert(models.Message{ID: "a", DateModified: 200}); got != Stale {
		t.Fatalf("expected old redelivery to be stale, got %v", got)
	}
	if got := s.Upsert(models.Message{ID: "a", DateModified: 250}); got != Stale {
		t.Fatalf("expected equal-to-delete redelivery to be stale, got %v", got)
	}

	// Strictly newer content brings it back.
	if got := s.Upsert(models.Message{ID: "a", HTML: "back", DateModified: 300}); got != Inserted {
		t.Fatalf("expected strictly newer content to reinsert, got %v", got)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 live records, got %d", s.Len())
	}
}

func TestRemoveDefaultsToRecordTime(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", DateModified: 500})
	s.Remove("a", 0)
	if got := s.Upsert(models.Message{ID: "a", DateModified: 500}); got != Stale {
		t.Fatalf("expected delete at record time to block same-time redelivery, got %v", got)
	}
	if got := s.Upsert(models.Message{ID: "a", DateModified: 501}); got != Inserted {
		t.Fatalf("expected newer content to reinsert, got %v", got)
	}
}

func TestRemoveUnknown(t *testing.T) {
	s := New(models.OrderChronological)
	if s.Remove("ghost", 100) {
		t.Fatalf("expected remove of unknown id to no-op")
	}
}

func TestMarkBlocked(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", DateModified: 100})
	if !s.MarkBlocked("a", "moderator") {
		t.Fatalf("expected first block to apply")
	}
	if s.MarkBlocked("a", "someone-else") {
		t.Fatalf("expected duplicate block to no-op")
	}
	m, _ := s.Find("a")
	if !m.Blocked || m.BlockedBy != "moderator" {
		t.Fatalf("expected original blocker to stick: %+v", m)
	}
	if s.MarkBlocked("ghost", "moderator") {
		t.Fatalf("expected block of unknown id to no-op")
	}
}

func TestFindReturnsCopy(t *testing.T) {
	s := New(models.OrderChronological)
	s.Upsert(models.Message{ID: "a", HTML: "orig", DateModified: 100})
	m, _ := s.Find("a")
	m.HTML = "mutated"
	if got, _ := s.Find("a"); got.HTML != "orig" {
		t.Fatalf("Find must return a copy, store saw %q", got.HTML)
	}
}
