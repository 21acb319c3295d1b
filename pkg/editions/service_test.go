package editions

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
)

type fakeInstanceStore struct {
	instances map[string][]models.InstanceSummary
}

func (f *fakeInstanceStore) ListInstanceSummaries(ctx context.Context, workID string) ([]models.InstanceSummary, error) {
	return f.instances[workID], nil
}

type fakeEditionStore struct {
	replaced map[string][]models.EditionGroup
}

func (f *fakeEditionStore) ReplaceForWork(ctx context.Context, workID string, groups []models.EditionGroup) ([]models.Edition, error) {
	if f.replaced == nil {
		f.replaced = make(map[string][]models.EditionGroup)
	}
	f.replaced[workID] = groups

	editions := make([]models.Edition, 0, len(groups))
	for _, g := range groups {
		editions = append(editions, models.Edition{WorkID: workID, InstanceIDs: g.InstanceIDs})
	}
	return editions, nil
}

func newTestService(instances *fakeInstanceStore, editions *fakeEditionStore) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(instances, editions, NewClusterer(1.5, logger), logger)
}

func TestReclusterRequiresWorkID(t *testing.T) {
	svc := newTestService(&fakeInstanceStore{}, &fakeEditionStore{})

	_, err := svc.Recluster(context.Background(), "")
	require.Error(t, err)
	assert.True(t, procerrors.IsInvalidIdentifier(err))
}

func TestReclusterEmptyWorkClearsEditions(t *testing.T) {
	editions := &fakeEditionStore{}
	svc := newTestService(&fakeInstanceStore{}, editions)

	result, err := svc.Recluster(context.Background(), "work-1")
	require.NoError(t, err)
	assert.Empty(t, result)

	groups, ok := editions.replaced["work-1"]
	require.True(t, ok, "stale editions are still cleared")
	assert.Empty(t, groups)
}

func TestReclusterPersistsGroups(t *testing.T) {
	instances := &fakeInstanceStore{instances: map[string][]models.InstanceSummary{
		"work-1": {
			instance("i1", "New York", "Penguin Books", intPtr(1998)),
			instance("i2", "New York", "Penguin Books", intPtr(1998)),
			instance("i3", "London", "Oxford University Press", intPtr(2005)),
		},
	}}
	editions := &fakeEditionStore{}
	svc := newTestService(instances, editions)

	result, err := svc.Recluster(context.Background(), "work-1")
	require.NoError(t, err)
	require.NotEmpty(t, result)

	var clustered []string
	for _, g := range editions.replaced["work-1"] {
		clustered = append(clustered, g.InstanceIDs...)
	}
	assert.ElementsMatch(t, []string{"i1", "i2", "i3"}, clustered)
}
