// Package equivalence persists append-only match evidence. Rows are never
// updated or deleted; they exist for manual review of ambiguous matches.
package equivalence

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

// Repository handles equivalence persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new equivalence repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends an equivalence evidence row.
func (r *Repository) Create(ctx context.Context, req models.CreateEquivalenceRequest) (*models.Equivalence, error) {
	ctx, span := tracing.StartSpan(ctx, "equivalence.Repository.Create")
	defer span.End()

	matchData, err := json.Marshal(req.MatchData)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to marshal match data: %v", err)
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("equivalences")
	ib.Cols("id", "source_id", "target_id", "type", "match_data")
	ib.Values(uuid.New().String(), req.SourceID, req.TargetID, req.Type, string(matchData))
	ib.Returning("id", "source_id", "target_id", "type", "match_data", "created_at")

	query, args := ib.Build()
	var eq models.Equivalence
	if err := r.db.GetContext(ctx, &eq, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id": req.SourceID,
			"target_id": req.TargetID,
			"type":      req.Type,
		}).Error("Failed to create equivalence")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create equivalence: %v", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": eq.SourceID,
		"target_id": eq.TargetID,
		"type":      eq.Type,
	}).Info("Recorded equivalence evidence")

	return &eq, nil
}

// ListBySource returns the evidence rows where the entity was the winning
// side of an ambiguous match.
func (r *Repository) ListBySource(ctx context.Context, sourceID string) ([]models.Equivalence, error) {
	ctx, span := tracing.StartSpan(ctx, "equivalence.Repository.ListBySource")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "source_id", "target_id", "type", "match_data", "created_at")
	sb.From("equivalences")
	sb.Where(sb.Equal("source_id", sourceID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var equivalences []models.Equivalence
	if err := r.db.SelectContext(ctx, &equivalences, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"source_id": sourceID}).Error("Failed to list equivalences")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list equivalences: %v", err)
	}
	return equivalences, nil
}
