package models

// Message is a live conversation record. ID is stable across edits;
// DateModified decides conflicts (last writer wins).
type Message struct {
	ID           string `json:"mid"`
	HTML         string `json:"html"`
	DateModified int64  `json:"datemodified"`
	Author       string `json:"author,omitempty"`
	KeyText      string `json:"keytext,omitempty"`
	Blocked      bool   `json:"blocked,omitempty"`
	BlockedBy    string `json:"blockedby,omitempty"`
	// System marks synthetic notices (session started/ended, stream
	// connect) that never originate from a participant.
	System bool `json:"system,omitempty"`
}

// Participant is a roster entry. Duplicate adds for the same ID are no-ops.
type Participant struct {
	ID          string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Initials    string `json:"initials"`
	Color       string `json:"color,omitempty"`
	IsWpUser    bool   `json:"is_wp_user,omitempty"`
}
