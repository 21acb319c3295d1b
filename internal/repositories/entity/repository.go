// Package entity persists Work/Instance/Item rows in the canonical store.
package entity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/database"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Repository handles entity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

var entityColumns = []string{"id", "kind", "parent_id", "source", "data", "date_created", "date_modified"}

// GetByID retrieves an entity by ID. Returns nil when no row exists.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var ent models.Entity
	if err := r.db.GetContext(ctx, &ent, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to get entity")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get entity: %v", err)
	}
	return &ent, nil
}

// Create inserts a new entity row.
func (r *Repository) Create(ctx context.Context, kind models.EntityKind, parentID *string, source string, data json.RawMessage) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Create")
	defer span.End()

	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("entities")
	ib.Cols("id", "kind", "parent_id", "source", "data")
	ib.Values(uuid.New().String(), kind, parentID, source, string(data))
	ib.Returning(entityColumns...)

	query, args := ib.Build()
	var ent models.Entity
	if err := r.db.GetContext(ctx, &ent, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"kind": kind, "source": source}).Error("Failed to create entity")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create entity: %v", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": ent.ID,
		"kind":      ent.Kind,
		"source":    ent.Source,
	}).Info("Created entity")

	return &ent, nil
}

// UpdateData replaces the entity's scalar field document and bumps
// date_modified.
func (r *Repository) UpdateData(ctx context.Context, id string, data json.RawMessage) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.UpdateData")
	defer span.End()

	query := `
		UPDATE entities
		SET data = $2, date_modified = NOW()
		WHERE id = $1
		RETURNING id, kind, parent_id, source, data, date_created, date_modified
	`

	var ent models.Entity
	if err := r.db.GetContext(ctx, &ent, query, id, string(data)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to update entity data")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update entity: %v", err)
	}
	return &ent, nil
}

// Touch bumps date_modified so downstream consumers re-index the entity.
func (r *Repository) Touch(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Touch")
	defer span.End()

	if _, err := r.db.ExecContext(ctx, `UPDATE entities SET date_modified = NOW() WHERE id = $1`, id); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to touch entity")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to touch entity: %v", err)
	}
	return nil
}

// ResolveWorkID walks the parent chain (item -> instance -> work) until it
// reaches the owning work. Returns "" when the chain is broken.
func (r *Repository) ResolveWorkID(ctx context.Context, entityID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ResolveWorkID")
	defer span.End()

	id := entityID
	// The FRBR hierarchy is at most three levels deep.
	for range 3 {
		ent, err := r.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if ent == nil {
			return "", nil
		}
		if ent.Kind == models.EntityKindWork {
			return ent.ID, nil
		}
		if ent.ParentID == nil || *ent.ParentID == "" {
			return "", nil
		}
		id = *ent.ParentID
	}
	return "", nil
}

// instanceSummaryRow is the scan shape for ListInstanceSummaries.
type instanceSummaryRow struct {
	ID               string                   `db:"id"`
	Place            string                   `db:"place"`
	Publishers       database.JSONB[[]string] `db:"publishers"`
	EditionStatement string                   `db:"edition_statement"`
	DateStart        *int                     `db:"date_start"`
	DateEnd          *int                     `db:"date_end"`
}

// ListInstanceSummaries returns the clustering-relevant fields of every
// instance belonging to a work.
func (r *Repository) ListInstanceSummaries(ctx context.Context, workID string) ([]models.InstanceSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListInstanceSummaries")
	defer span.End()

	query := `
		SELECT id,
			COALESCE(data->>'place', '') AS place,
			COALESCE(data->'publishers', '[]'::jsonb) AS publishers,
			COALESCE(data->>'edition_statement', '') AS edition_statement,
			(data->>'date_start')::int AS date_start,
			(data->>'date_end')::int AS date_end
		FROM entities
		WHERE kind = 'instance' AND parent_id = $1
		ORDER BY date_created ASC
	`

	var rows []instanceSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, workID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"work_id": workID}).Error("Failed to list instance summaries")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list instances: %v", err)
	}

	summaries := make([]models.InstanceSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, models.InstanceSummary{
			ID:               row.ID,
			Place:            row.Place,
			Publishers:       row.Publishers.GetValue(),
			EditionStatement: row.EditionStatement,
			DateStart:        row.DateStart,
			DateEnd:          row.DateEnd,
		})
	}
	return summaries, nil
}
