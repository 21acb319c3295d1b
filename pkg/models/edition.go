package models

import (
	"time"

	"github.com/lib/pq"
)

// Edition is a persisted cluster of instances believed to represent the same
// edition of a work. Editions are recomputed wholesale per work; rows are
// deleted and reinserted on every clustering run.
type Edition struct {
	ID               string         `json:"id" db:"id"`
	WorkID           string         `json:"work_id" db:"work_id"`
	Place            string         `json:"place,omitempty" db:"place"`
	Publisher        string         `json:"publisher,omitempty" db:"publisher"`
	EditionStatement string         `json:"edition_statement,omitempty" db:"edition_statement"`
	DateStart        *int           `json:"date_start,omitempty" db:"date_start"`
	DateEnd          *int           `json:"date_end,omitempty" db:"date_end"`
	InstanceIDs      pq.StringArray `json:"instance_ids" db:"instance_ids"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// EditionGroup is one cluster produced by the edition clusterer before
// persistence. Place/publisher/edition statement are representative values
// (first non-empty among members), not merges. Year 0 means unknown.
type EditionGroup struct {
	InstanceIDs      []string
	Place            string
	Publisher        string
	EditionStatement string
	Year             int
}
