package editions

import (
	"context"

	"github.com/Gobusters/ectologger"

	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// InstanceStore lists a work's instances for clustering.
type InstanceStore interface {
	ListInstanceSummaries(ctx context.Context, workID string) ([]models.InstanceSummary, error)
}

// EditionStore replaces a work's persisted editions.
type EditionStore interface {
	ReplaceForWork(ctx context.Context, workID string, groups []models.EditionGroup) ([]models.Edition, error)
}

// Service recomputes a work's editions on demand. Each run is a full
// delete-and-recompute, not an incremental update.
type Service struct {
	instances InstanceStore
	editions  EditionStore
	clusterer *Clusterer
	logger    ectologger.Logger
}

// NewService creates a new edition service
func NewService(instances InstanceStore, editions EditionStore, clusterer *Clusterer, logger ectologger.Logger) *Service {
	return &Service{
		instances: instances,
		editions:  editions,
		clusterer: clusterer,
		logger:    logger,
	}
}

// Recluster recomputes and persists the editions of one work.
func (s *Service) Recluster(ctx context.Context, workID string) ([]models.Edition, error) {
	ctx, span := tracing.StartSpan(ctx, "editions.Service.Recluster")
	defer span.End()

	if workID == "" {
		return nil, procerrors.New(procerrors.KindInvalidIdentifier, "recluster requires a work identifier")
	}

	instances, err := s.instances.ListInstanceSummaries(ctx, workID)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{"work_id": workID}).Info("No instances to cluster")
		return s.editions.ReplaceForWork(ctx, workID, nil)
	}

	groups := s.clusterer.Cluster(ctx, instances)
	return s.editions.ReplaceForWork(ctx, workID, groups)
}
