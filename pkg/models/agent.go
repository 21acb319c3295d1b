package models

import (
	"time"

	"github.com/lib/pq"
)

// Agent is a canonical contributor identity (person or organization).
// Authority IDs (viaf/lcnaf), when present, uniquely determine the agent.
type Agent struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	SortName  string         `json:"sort_name,omitempty" db:"sort_name"`
	Viaf      string         `json:"viaf,omitempty" db:"viaf"`
	Lcnaf     string         `json:"lcnaf,omitempty" db:"lcnaf"`
	Aliases   pq.StringArray `json:"aliases,omitempty" db:"aliases"`
	BirthDate string         `json:"birth_date,omitempty" db:"birth_date"`
	DeathDate string         `json:"death_date,omitempty" db:"death_date"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// AgentRole links an agent to an owning entity with a role. Roles are unioned
// per (agent, entity) relationship, never globally deduplicated.
type AgentRole struct {
	AgentID   string    `json:"agent_id" db:"agent_id"`
	EntityID  string    `json:"entity_id" db:"entity_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AgentReference is an inbound contributor as it appears in a record payload:
// a free-text name plus optional authority hints and roles.
type AgentReference struct {
	Name  string   `json:"name"`
	Viaf  string   `json:"viaf,omitempty"`
	Lcnaf string   `json:"lcnaf,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// ResolvedAgent is the outcome of canonicalizing an AgentReference.
type ResolvedAgent struct {
	Agent *Agent
	Roles []string
	IsNew bool
}
