package models

import (
	"encoding/json"
	"time"
)

// Equivalence is an append-only evidence record that two entities may
// represent the same real-world thing. It never causes automatic merging;
// rows are consulted only for manual review.
type Equivalence struct {
	ID        string          `json:"id" db:"id"`
	SourceID  string          `json:"source_id" db:"source_id"`
	TargetID  string          `json:"target_id" db:"target_id"`
	Type      EntityKind      `json:"type" db:"type"`
	MatchData json.RawMessage `json:"match_data" db:"match_data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// CreateEquivalenceRequest is the insert request for an equivalence row.
type CreateEquivalenceRequest struct {
	SourceID  string        `json:"source_id" validate:"required"`
	TargetID  string        `json:"target_id" validate:"required"`
	Type      EntityKind    `json:"type" validate:"required"`
	MatchData MatchEvidence `json:"match_data"`
}
