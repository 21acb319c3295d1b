// Package identifier persists typed external keys attached to entities.
package identifier

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/database"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Repository handles identifier persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new identifier repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindEntityIDs returns the IDs of all entities of the given kind carrying
// the (type, value) pair. Multiple rows are legitimate; the resolver's voting
// surfaces them rather than this query preventing them.
func (r *Repository) FindEntityIDs(ctx context.Context, kind models.EntityKind, idType models.IdentifierType, value string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.FindEntityIDs")
	defer span.End()

	query := `
		SELECT i.entity_id
		FROM identifiers i
		JOIN entities e ON e.id = i.entity_id
		WHERE e.kind = $1 AND i.type = $2 AND i.value = $3
		ORDER BY i.created_at ASC
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, kind, idType, value); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"kind":  kind,
			"type":  idType,
			"value": value,
		}).Error("Failed to find entity IDs by identifier")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find identifiers: %v", err)
	}
	return ids, nil
}

// AttachAll unions the candidate identifiers into the entity's collection.
// Existing (entity, type, value) rows are left untouched, which makes
// reprocessing the same payload a no-op.
func (r *Repository) AttachAll(ctx context.Context, entityID string, candidates []models.Candidate) error {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.AttachAll")
	defer span.End()

	if len(candidates) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("identifiers")
	ib.Cols("id", "entity_id", "type", "value")
	for _, c := range candidates {
		ib.Values(uuid.New().String(), entityID, c.Type, c.Value)
	}
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entityID,
			"count":     len(candidates),
		}).Error("Failed to attach identifiers")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to attach identifiers: %v", err)
	}
	return nil
}

// ListByEntity returns all identifiers attached to an entity.
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.Identifier, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.ListByEntity")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "entity_id", "type", "value", "created_at")
	sb.From("identifiers")
	sb.Where(sb.Equal("entity_id", entityID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var identifiers []models.Identifier
	if err := r.db.SelectContext(ctx, &identifiers, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entityID}).Error("Failed to list identifiers")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list identifiers: %v", err)
	}
	return identifiers, nil
}
