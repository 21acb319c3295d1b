// Package edition persists the clustered editions of a work. Editions are
// recomputed wholesale; every clustering run deletes and reinserts the
// work's rows in one transaction.
package edition

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/database"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Repository handles edition persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new edition repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ReplaceForWork atomically replaces a work's editions with the freshly
// computed groups.
func (r *Repository) ReplaceForWork(ctx context.Context, workID string, groups []models.EditionGroup) ([]models.Edition, error) {
	ctx, span := tracing.StartSpan(ctx, "edition.Repository.ReplaceForWork")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"work_id": workID,
		"groups":  len(groups),
	})

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin edition transaction")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM editions WHERE work_id = $1`, workID); err != nil {
		log.WithError(err).Error("Failed to delete existing editions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete editions: %v", err)
	}

	editions := make([]models.Edition, 0, len(groups))
	for _, group := range groups {
		var dateStart, dateEnd *int
		if group.Year != 0 {
			year := group.Year
			dateStart, dateEnd = &year, &year
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto("editions")
		ib.Cols("id", "work_id", "place", "publisher", "edition_statement", "date_start", "date_end", "instance_ids")
		ib.Values(uuid.New().String(), workID, group.Place, group.Publisher, group.EditionStatement, dateStart, dateEnd, pq.StringArray(group.InstanceIDs))
		ib.Returning("id", "work_id", "place", "publisher", "edition_statement", "date_start", "date_end", "instance_ids", "created_at")

		query, args := ib.Build()
		var ed models.Edition
		if err := tx.GetContext(ctx, &ed, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert edition")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert edition: %v", err)
		}
		editions = append(editions, ed)
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit edition transaction")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to commit editions: %v", err)
	}

	log.Info("Replaced work editions")
	return editions, nil
}

// ListByWork returns a work's current editions.
func (r *Repository) ListByWork(ctx context.Context, workID string) ([]models.Edition, error) {
	ctx, span := tracing.StartSpan(ctx, "edition.Repository.ListByWork")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "work_id", "place", "publisher", "edition_statement", "date_start", "date_end", "instance_ids", "created_at")
	sb.From("editions")
	sb.Where(sb.Equal("work_id", workID))
	sb.OrderBy("date_start ASC NULLS LAST", "created_at ASC")

	query, args := sb.Build()
	var editions []models.Edition
	if err := r.db.SelectContext(ctx, &editions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"work_id": workID}).Error("Failed to list editions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list editions: %v", err)
	}
	return editions, nil
}
