// Package agent persists canonical contributor identities and their roles.
package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/database"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// ErrDuplicateAuthority signals that an insert lost a race on the authority
// ID uniqueness constraint. The caller retries as a lookup.
var ErrDuplicateAuthority = errors.New("agent with this authority ID already exists")

// Repository handles agent persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new agent repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

var agentColumns = []string{"id", "name", "sort_name", "viaf", "lcnaf", "aliases", "birth_date", "death_date", "created_at", "updated_at"}

// GetByAuthority retrieves an agent by VIAF or LCNAF ID. Returns nil when
// neither ID is known.
func (r *Repository) GetByAuthority(ctx context.Context, viaf, lcnaf string) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.GetByAuthority")
	defer span.End()

	if viaf == "" && lcnaf == "" {
		return nil, nil
	}

	query := `
		SELECT id, name, sort_name, viaf, lcnaf, aliases, birth_date, death_date, created_at, updated_at
		FROM agents
		WHERE (viaf <> '' AND viaf = $1) OR (lcnaf <> '' AND lcnaf = $2)
		ORDER BY created_at ASC
		LIMIT 1
	`

	var agent models.Agent
	if err := r.db.GetContext(ctx, &agent, query, viaf, lcnaf); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"viaf": viaf, "lcnaf": lcnaf}).Error("Failed to get agent by authority ID")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get agent: %v", err)
	}
	return &agent, nil
}

// ListAll returns every agent, used as the candidate pool for fuzzy name
// matching.
func (r *Repository) ListAll(ctx context.Context) ([]models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.ListAll")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(agentColumns...)
	sb.From("agents")
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var agents []models.Agent
	if err := r.db.SelectContext(ctx, &agents, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list agents")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list agents: %v", err)
	}
	return agents, nil
}

// Create inserts a new agent. A unique violation on viaf or lcnaf returns
// ErrDuplicateAuthority so concurrent first-time creations converge on one
// row.
func (r *Repository) Create(ctx context.Context, agent models.Agent) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.Create")
	defer span.End()

	if agent.Aliases == nil {
		agent.Aliases = pq.StringArray{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("agents")
	ib.Cols("id", "name", "sort_name", "viaf", "lcnaf", "aliases", "birth_date", "death_date")
	ib.Values(uuid.New().String(), agent.Name, agent.SortName, agent.Viaf, agent.Lcnaf, agent.Aliases, agent.BirthDate, agent.DeathDate)
	ib.Returning(agentColumns...)

	query, args := ib.Build()
	var created models.Agent
	if err := r.db.GetContext(ctx, &created, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateAuthority
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": agent.Name}).Error("Failed to create agent")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create agent: %v", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"agent_id": created.ID,
		"name":     created.Name,
	}).Info("Created agent")

	return &created, nil
}

// Enrich backfills authority IDs and dates (only where currently empty) and
// unions new aliases into the agent's alias set. Authority IDs are never
// overwritten with empty values.
func (r *Repository) Enrich(ctx context.Context, id string, update models.Agent) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.Enrich")
	defer span.End()

	if update.Aliases == nil {
		update.Aliases = pq.StringArray{}
	}

	query := `
		UPDATE agents
		SET viaf = CASE WHEN viaf = '' THEN $2 ELSE viaf END,
			lcnaf = CASE WHEN lcnaf = '' THEN $3 ELSE lcnaf END,
			sort_name = CASE WHEN sort_name = '' THEN $4 ELSE sort_name END,
			birth_date = CASE WHEN birth_date = '' THEN $5 ELSE birth_date END,
			death_date = CASE WHEN death_date = '' THEN $6 ELSE death_date END,
			aliases = (
				SELECT ARRAY(SELECT DISTINCT unnest(aliases || $7::text[]))
			),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, sort_name, viaf, lcnaf, aliases, birth_date, death_date, created_at, updated_at
	`

	var agent models.Agent
	if err := r.db.GetContext(ctx, &agent, query, id, update.Viaf, update.Lcnaf, update.SortName, update.BirthDate, update.DeathDate, update.Aliases); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agent_id": id}).Error("Failed to enrich agent")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to enrich agent: %v", err)
	}
	return &agent, nil
}

// UpsertRoles unions roles into the (agent, entity) relationship.
func (r *Repository) UpsertRoles(ctx context.Context, agentID, entityID string, roles []string) error {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.UpsertRoles")
	defer span.End()

	if len(roles) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("agent_roles")
	ib.Cols("agent_id", "entity_id", "role")
	for _, role := range roles {
		ib.Values(agentID, entityID, role)
	}
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agent_id":  agentID,
			"entity_id": entityID,
		}).Error("Failed to upsert agent roles")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert agent roles: %v", err)
	}
	return nil
}

// ListRoles returns the roles recorded for an (agent, entity) relationship.
func (r *Repository) ListRoles(ctx context.Context, agentID, entityID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.Repository.ListRoles")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("role")
	sb.From("agent_roles")
	sb.Where(
		sb.Equal("agent_id", agentID),
		sb.Equal("entity_id", entityID),
	)
	sb.OrderBy("role ASC")

	query, args := sb.Build()
	var roles []string
	if err := r.db.SelectContext(ctx, &roles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agent_id":  agentID,
			"entity_id": entityID,
		}).Error("Failed to list agent roles")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list agent roles: %v", err)
	}
	return roles, nil
}
