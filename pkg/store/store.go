package store

import (
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
)

// Outcome describes what Upsert did with an incoming record.
type Outcome int

const (
	// Inserted means no record existed and a new one was added at the
	// position dictated by the display order.
	Inserted Outcome = iota
	// Updated means an existing record was replaced in place.
	Updated
	// Stale means the incoming record was older than the stored one (or
	// than a deletion tombstone) and was discarded.
	Stale
)

// MessageStore is an ordered, deduplicated collection of messages keyed
// by message ID with last-writer-wins conflict resolution on
// DateModified. It is owned by the synchronizer's dispatch loop and must
// only be mutated from that single goroutine; the LWW rule, not locking,
// is what makes out-of-order delivery safe.
type MessageStore struct {
	order   models.DisplayOrder
	records map[string]*models.Message
	ids     []string
	// tombstones records the logical time of each deletion so a late
	// content event older than the delete cannot resurrect the message.
	tombstones map[string]int64
}

// New creates an empty store rendering in the given display order.
func New(order models.DisplayOrder) *MessageStore {
	return &MessageStore{
		order:      order,
		records:    make(map[string]*models.Message),
		tombstones: make(map[string]int64),
	}
}

// Order returns the display order the store maintains.
func (s *MessageStore) Order() models.DisplayOrder { return s.order }

// Upsert inserts or replaces a record. A new ID is inserted at the live
// edge for the display order; an existing record is replaced in place
// when the incoming DateModified is greater or equal (edits never
// re-sort), and discarded silently otherwise. Never fails.
func (s *MessageStore) Upsert(m models.Message) Outcome {
	if deletedAt, ok := s.tombstones[m.ID]; ok {
		if m.DateModified <= deletedAt {
			return Stale
		}
		// Newer content than the deletion: the message comes back.
		delete(s.tombstones, m.ID)
	}

	if existing, ok := s.records[m.ID]; ok {
		if m.DateModified < existing.DateModified {
			return Stale
		}
		*existing = m
		return Updated
	}

	rec := m
	s.records[m.ID] = &rec
	if s.order == models.OrderReverseChronological {
		s.ids = append([]string{m.ID}, s.ids...)
	} else {
		s.ids = append(s.ids, m.ID)
	}
	return Inserted
}

// Remove deletes the record if present and records the deletion's
// logical time. When deletedAt is zero the removed record's own
// timestamp is used. No-op when the ID is unknown.
func (s *MessageStore) Remove(id string, deletedAt int64) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	if deletedAt == 0 {
		deletedAt = rec.DateModified
	}
	s.tombstones[id] = deletedAt
	delete(s.records, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

// MarkBlocked flags a record as blocked by the given actor. No-op when
// the record is absent or already blocked, so duplicate block events are
// harmless.
func (s *MessageStore) MarkBlocked(id, blockedBy string) bool {
	rec, ok := s.records[id]
	if !ok || rec.Blocked {
		return false
	}
	rec.Blocked = true
	rec.BlockedBy = blockedBy
	logger.Debug("message_blocked", "mid", id, "by", blockedBy)
	return true
}

// Find returns a copy of the record for id.
func (s *MessageStore) Find(id string) (models.Message, bool) {
	rec, ok := s.records[id]
	if !ok {
		return models.Message{}, false
	}
	return *rec, true
}

// OrderedIDs returns the current display sequence. The order is
// maintained on write, so this is a straight copy.
func (s *MessageStore) OrderedIDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of live records.
func (s *MessageStore) Len() int { return len(s.ids) }
