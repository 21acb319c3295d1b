package models

import (
	"encoding/json"
	"time"
)

// EntityKind is the FRBR level of a bibliographic entity.
type EntityKind string

const (
	EntityKindWork     EntityKind = "work"
	EntityKindInstance EntityKind = "instance"
	EntityKindItem     EntityKind = "item"
)

// IsValid reports whether the kind is one of the persisted FRBR levels.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindWork, EntityKindInstance, EntityKindItem:
		return true
	}
	return false
}

// Entity represents a Work, Instance or Item in the canonical record store.
// Scalar bibliographic fields live in Data (jsonb); child collections
// (identifiers, agents, dates, links, measurements, rights) live in their own
// tables keyed by entity ID.
type Entity struct {
	ID           string          `json:"id" db:"id"`
	Kind         EntityKind      `json:"kind" db:"kind"`
	ParentID     *string         `json:"parent_id,omitempty" db:"parent_id"` // instance -> work, item -> instance
	Source       string          `json:"source,omitempty" db:"source"`
	Data         json.RawMessage `json:"data" db:"data"`
	DateCreated  time.Time       `json:"date_created" db:"date_created"`
	DateModified time.Time       `json:"date_modified" db:"date_modified"`
}

// ApplyResult describes the outcome of merging an inbound record into the store.
type ApplyResult struct {
	Entity    *Entity
	IsNew     bool
	IsChanged bool
}

// InstanceSummary carries the fields of an instance relevant to edition
// clustering. Built by the edition repository from the instance row plus its
// publisher agents and publication date range.
type InstanceSummary struct {
	ID               string
	Place            string
	Publishers       []string
	EditionStatement string
	DateStart        *int
	DateEnd          *int
}
