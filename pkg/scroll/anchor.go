// Package scroll decides whether the reader is following the live edge
// of the conversation. It is a pure function of the rendering surface's
// reported position and the display order; it never touches the surface
// itself.
package scroll

import "github.com/adambraimbridge/webchat/pkg/models"

// Position is the rendering surface's scroll position, as reported by
// the surface collaborator.
type Position int

const (
	// Top means the surface is scrolled to its beginning.
	Top Position = iota
	// Bottom means the surface is scrolled to its end.
	Bottom
	// Middle means the reader has scrolled away from both ends.
	Middle
	// NoScroll means the content is shorter than the viewport.
	NoScroll
)

// AtLiveEdge reports whether the given position counts as "following the
// conversation" for the display order: top for reverse-chronological,
// bottom for chronological, and always when no scrolling is possible.
func AtLiveEdge(pos Position, order models.DisplayOrder) bool {
	if pos == NoScroll {
		return true
	}
	if order == models.OrderReverseChronological {
		return pos == Top
	}
	return pos == Bottom
}

// Latch captures the at-live-edge decision before a mutation so it can
// be applied after the mutation settles. Inserting content shifts the
// scroll metrics, so "was the reader already following" has to be read
// before the surface changes.
type Latch struct {
	follow bool
}

// Capture latches the decision for the current position.
func Capture(pos Position, order models.DisplayOrder) Latch {
	return Latch{follow: AtLiveEdge(pos, order)}
}

// ShouldFollow reports whether the surface should scroll to the live
// edge now that the mutation is done. force bypasses the latch, used for
// the reader's own messages and for system notices.
func (l Latch) ShouldFollow(force bool) bool {
	return l.follow || force
}
