package models

import (
	"encoding/json"
)

// Record envelope types beyond the persisted entity kinds.
const (
	RecordTypeCover     = "cover"
	RecordTypeRecluster = "recluster"
)

// RecordEnvelope is the bus payload wrapping one inbound record.
// Attempts is monotonically non-decreasing across requeues of the same
// logical message.
type RecordEnvelope struct {
	Type     string         `json:"type" validate:"required"`
	Data     map[string]any `json:"data" validate:"required"`
	Attempts int            `json:"attempts"`
	Source   string         `json:"source,omitempty"`
}

// EntityKind returns the FRBR kind the envelope targets, or "" when the type
// is a control or cover message.
func (e *RecordEnvelope) EntityKind() EntityKind {
	k := EntityKind(e.Type)
	if k.IsValid() {
		return k
	}
	return ""
}

// Identifiers extracts the candidate identifiers carried in the payload.
func (e *RecordEnvelope) Identifiers() []Candidate {
	raw, ok := e.Data["identifiers"]
	if !ok {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var candidates []Candidate
	if err := json.Unmarshal(b, &candidates); err != nil {
		return nil
	}
	return candidates
}

// Agents extracts the contributor references carried in the payload.
func (e *RecordEnvelope) Agents() []AgentReference {
	raw, ok := e.Data["agents"]
	if !ok {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var agents []AgentReference
	if err := json.Unmarshal(b, &agents); err != nil {
		return nil
	}
	return agents
}

// ParentID returns the explicit owning-entity ID carried in the payload, if
// any (instance -> work, item -> instance).
func (e *RecordEnvelope) ParentID() string {
	if v, ok := e.Data["parent_id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ParentIdentifiers extracts candidate identifiers for the record's owning
// entity, used when the payload references its parent by external key.
func (e *RecordEnvelope) ParentIdentifiers() []Candidate {
	raw, ok := e.Data["parent_identifiers"]
	if !ok {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var candidates []Candidate
	if err := json.Unmarshal(b, &candidates); err != nil {
		return nil
	}
	return candidates
}

// collectionKeys are payload keys holding child collections or parent
// references. They are merged through their own upsert routines, never
// treated as scalar fields.
var collectionKeys = map[string]struct{}{
	"identifiers":        {},
	"agents":             {},
	"dates":              {},
	"links":              {},
	"measurements":       {},
	"rights":             {},
	"cover":              {},
	"parent_id":          {},
	"parent_identifiers": {},
}

// ScalarFields returns the payload fields that merge by non-empty overwrite.
func (e *RecordEnvelope) ScalarFields() map[string]any {
	fields := make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		if _, ok := collectionKeys[k]; ok {
			continue
		}
		fields[k] = v
	}
	return fields
}

// CoverReference returns the deferred cover sub-payload, if any.
func (e *RecordEnvelope) CoverReference() (map[string]any, bool) {
	raw, ok := e.Data["cover"]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	return m, true
}

// ReclusterMessage is the control message that triggers edition clustering
// for a work.
type ReclusterMessage struct {
	Type       string `json:"type" validate:"required,eq=recluster"`
	Identifier string `json:"identifier" validate:"required"`
}
