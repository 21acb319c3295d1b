package models

import "time"

// IdentifierType is the scheme of an external identifier.
type IdentifierType string

const (
	IdentifierTypeISBN    IdentifierType = "isbn"
	IdentifierTypeISSN    IdentifierType = "issn"
	IdentifierTypeOCLC    IdentifierType = "oclc"
	IdentifierTypeLCCN    IdentifierType = "lccn"
	IdentifierTypeOWI     IdentifierType = "owi"
	IdentifierTypeDOAB    IdentifierType = "doab"
	IdentifierTypeHathi   IdentifierType = "hathi"
	IdentifierTypeGeneric IdentifierType = "generic"
)

// Identifier is a typed external key attached to an entity. Values are
// immutable once created; a changed value is a new row.
type Identifier struct {
	ID        string         `json:"id" db:"id"`
	EntityID  string         `json:"entity_id" db:"entity_id"`
	Type      IdentifierType `json:"type" db:"type"`
	Value     string         `json:"value" db:"value"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Candidate is an inbound (type, value) pair before normalization.
type Candidate struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// MatchEvidence records which candidate identifiers matched which entities
// during an ambiguous resolution. Stored as the match_data of an Equivalence.
type MatchEvidence struct {
	Matched []Candidate    `json:"matched"`
	Votes   map[string]int `json:"votes"`
}
