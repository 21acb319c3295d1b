package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/kafka"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
)

type fakeResolver struct {
	// results maps kind to the entity ID a lookup resolves to.
	results map[models.EntityKind]string
}

func (f *fakeResolver) Resolve(ctx context.Context, kind models.EntityKind, candidates []models.Candidate) (string, error) {
	return f.results[kind], nil
}

type fakeEntityStore struct {
	entities map[string]*models.Entity
	nextID   int
	workOf   map[string]string
	created  []*models.Entity
	updated  []string
	touched  []string
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{
		entities: make(map[string]*models.Entity),
		workOf:   make(map[string]string),
	}
}

func (f *fakeEntityStore) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	return f.entities[id], nil
}

func (f *fakeEntityStore) Create(ctx context.Context, kind models.EntityKind, parentID *string, source string, data json.RawMessage) (*models.Entity, error) {
	f.nextID++
	ent := &models.Entity{
		ID:       fmt.Sprintf("ent-%d", f.nextID),
		Kind:     kind,
		ParentID: parentID,
		Source:   source,
		Data:     data,
	}
	f.entities[ent.ID] = ent
	f.created = append(f.created, ent)
	return ent, nil
}

func (f *fakeEntityStore) UpdateData(ctx context.Context, id string, data json.RawMessage) (*models.Entity, error) {
	ent := f.entities[id]
	ent.Data = data
	f.updated = append(f.updated, id)
	return ent, nil
}

func (f *fakeEntityStore) Touch(ctx context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeEntityStore) ResolveWorkID(ctx context.Context, entityID string) (string, error) {
	if workID, ok := f.workOf[entityID]; ok {
		return workID, nil
	}
	if ent, ok := f.entities[entityID]; ok && ent.Kind == models.EntityKindWork {
		return entityID, nil
	}
	return "", nil
}

type fakeAttacher struct {
	attached map[string][]models.Candidate
}

func (f *fakeAttacher) AttachAll(ctx context.Context, entityID string, candidates []models.Candidate) error {
	if f.attached == nil {
		f.attached = make(map[string][]models.Candidate)
	}
	f.attached[entityID] = append(f.attached[entityID], candidates...)
	return nil
}

type fakeAgentResolver struct{}

func (f *fakeAgentResolver) Resolve(ctx context.Context, ref models.AgentReference) (*models.ResolvedAgent, error) {
	return &models.ResolvedAgent{Agent: &models.Agent{ID: "agent-1"}, Roles: []string{"author"}}, nil
}

func (f *fakeAgentResolver) AssignRoles(ctx context.Context, agentID, entityID string, roles []string) error {
	return nil
}

type emittedRequeue struct {
	topic    string
	envelope *models.RecordEnvelope
}

type fakeEmitter struct {
	requeues   []emittedRequeue
	updates    []string
	covers     []*models.RecordEnvelope
	reclusters []string
}

func (f *fakeEmitter) Requeue(ctx context.Context, topic string, envelope *models.RecordEnvelope) error {
	f.requeues = append(f.requeues, emittedRequeue{topic: topic, envelope: envelope})
	return nil
}

func (f *fakeEmitter) PublishUpdate(ctx context.Context, entityID string, envelope *models.RecordEnvelope) error {
	f.updates = append(f.updates, entityID)
	return nil
}

func (f *fakeEmitter) PublishCover(ctx context.Context, envelope *models.RecordEnvelope) error {
	f.covers = append(f.covers, envelope)
	return nil
}

func (f *fakeEmitter) PublishRecluster(ctx context.Context, workID string) error {
	f.reclusters = append(f.reclusters, workID)
	return nil
}

type fakeReclusterer struct {
	calls []string
}

func (f *fakeReclusterer) Recluster(ctx context.Context, workID string) ([]models.Edition, error) {
	f.calls = append(f.calls, workID)
	return []models.Edition{{WorkID: workID}}, nil
}

type processorFixture struct {
	processor   *Processor
	resolver    *fakeResolver
	entities    *fakeEntityStore
	attacher    *fakeAttacher
	emitter     *fakeEmitter
	reclusterer *fakeReclusterer
}

func newFixture() *processorFixture {
	f := &processorFixture{
		resolver:    &fakeResolver{results: make(map[models.EntityKind]string)},
		entities:    newFakeEntityStore(),
		attacher:    &fakeAttacher{},
		emitter:     &fakeEmitter{},
		reclusterer: &fakeReclusterer{},
	}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.processor = NewProcessor(
		Config{
			MaxAttempts: 3,
			Topics: map[string]string{
				"work":     "works-topic",
				"instance": "instances-topic",
				"item":     "items-topic",
			},
		},
		f.resolver,
		f.entities,
		f.attacher,
		&fakeAgentResolver{},
		f.emitter,
		f.reclusterer,
		logger,
	)
	return f
}

func envelopeMessage(env *models.RecordEnvelope) *kafka.IncomingMessage {
	return &kafka.IncomingMessage{Envelope: env}
}

func workEnvelope(title string) *models.RecordEnvelope {
	return &models.RecordEnvelope{
		Type: "work",
		Data: map[string]any{
			"title": title,
			"identifiers": []models.Candidate{
				{Type: models.IdentifierTypeISBN, Value: "9780140449136"},
			},
		},
	}
}

func TestProcessMessageInsertsOnMiss(t *testing.T) {
	f := newFixture()

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(workEnvelope("Moby Dick")))
	require.NoError(t, err)

	require.Len(t, f.entities.created, 1)
	ent := f.entities.created[0]
	assert.Equal(t, models.EntityKindWork, ent.Kind)
	assert.Nil(t, ent.ParentID)

	var data map[string]any
	require.NoError(t, json.Unmarshal(ent.Data, &data))
	assert.Equal(t, "Moby Dick", data["title"])
	assert.NotContains(t, data, "identifiers", "collections never land in the scalar document")

	assert.Equal(t, []string{ent.ID}, f.emitter.updates)
	require.Contains(t, f.attacher.attached, ent.ID)
	assert.Equal(t, "9780140449136", f.attacher.attached[ent.ID][0].Value)
}

func TestProcessMessageUpdatesOnMatch(t *testing.T) {
	f := newFixture()
	f.entities.entities["work-1"] = &models.Entity{
		ID:   "work-1",
		Kind: models.EntityKindWork,
		Data: json.RawMessage(`{"title":"Moby Dick"}`),
	}
	f.resolver.results[models.EntityKindWork] = "work-1"

	env := workEnvelope("Moby Dick; or, The Whale")
	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(env))
	require.NoError(t, err)

	assert.Empty(t, f.entities.created)
	assert.Equal(t, []string{"work-1"}, f.entities.updated)
	assert.Equal(t, []string{"work-1"}, f.emitter.updates)
}

func TestProcessMessageIdenticalPayloadIsIdempotent(t *testing.T) {
	f := newFixture()
	f.entities.entities["work-1"] = &models.Entity{
		ID:   "work-1",
		Kind: models.EntityKindWork,
		Data: json.RawMessage(`{"title":"Moby Dick"}`),
	}
	f.resolver.results[models.EntityKindWork] = "work-1"

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(workEnvelope("Moby Dick")))
	require.NoError(t, err)

	assert.Empty(t, f.entities.updated, "an unchanged document is never rewritten")
	assert.Empty(t, f.emitter.updates, "no update event for a no-op apply")
	assert.Empty(t, f.emitter.reclusters)
}

func TestProcessMessageDropsEnvelopeWithNoIdentifiers(t *testing.T) {
	f := newFixture()

	env := &models.RecordEnvelope{
		Type: "work",
		Data: map[string]any{"title": "Orphan"},
	}
	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(env))
	require.NoError(t, err, "a drop commits the offset")
	assert.Empty(t, f.entities.created)
	assert.Empty(t, f.emitter.requeues)
}

func TestProcessMessageDropsUnknownType(t *testing.T) {
	f := newFixture()

	env := &models.RecordEnvelope{
		Type: "serial",
		Data: map[string]any{"title": "Unknown"},
	}
	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(env))
	require.NoError(t, err)
	assert.Empty(t, f.entities.created)
}

func instanceEnvelope(attempts int) *models.RecordEnvelope {
	return &models.RecordEnvelope{
		Type:     "instance",
		Attempts: attempts,
		Data: map[string]any{
			"title": "Moby Dick (1998 printing)",
			"identifiers": []models.Candidate{
				{Type: models.IdentifierTypeOCLC, Value: "ocm111"},
			},
			"parent_identifiers": []models.Candidate{
				{Type: models.IdentifierTypeOWI, Value: "owi-4781"},
			},
		},
	}
}

func TestProcessMessageUnresolvedParentIsRequeued(t *testing.T) {
	f := newFixture()

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(instanceEnvelope(0)))
	require.NoError(t, err, "a requeued miss commits the inbound offset")

	assert.Empty(t, f.entities.created)
	require.Len(t, f.emitter.requeues, 1)
	requeue := f.emitter.requeues[0]
	assert.Equal(t, "instances-topic", requeue.topic)
	assert.Equal(t, 1, requeue.envelope.Attempts)
	assert.Equal(t, "instance", requeue.envelope.Type)
}

func TestProcessMessageRetrySaturation(t *testing.T) {
	f := newFixture()

	// One attempt below the cap still requeues.
	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(instanceEnvelope(2)))
	require.NoError(t, err)
	require.Len(t, f.emitter.requeues, 1)
	assert.Equal(t, 3, f.emitter.requeues[0].envelope.Attempts)

	// At the cap the record dead-letters instead.
	err = f.processor.ProcessMessage(context.Background(), envelopeMessage(instanceEnvelope(3)))
	require.NoError(t, err)
	assert.Len(t, f.emitter.requeues, 1, "no further requeue at the attempt cap")
	assert.Empty(t, f.entities.created)
}

func TestProcessMessageInstanceInsertWithResolvedParent(t *testing.T) {
	f := newFixture()
	f.entities.entities["work-1"] = &models.Entity{ID: "work-1", Kind: models.EntityKindWork}
	f.resolver.results[models.EntityKindWork] = "work-1"
	f.entities.workOf["ent-1"] = "work-1"

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(instanceEnvelope(0)))
	require.NoError(t, err)

	require.Len(t, f.entities.created, 1)
	ent := f.entities.created[0]
	assert.Equal(t, models.EntityKindInstance, ent.Kind)
	require.NotNil(t, ent.ParentID)
	assert.Equal(t, "work-1", *ent.ParentID)

	assert.Equal(t, []string{"work-1"}, f.entities.touched, "the owning work's timestamp moves")
	assert.Equal(t, []string{"work-1"}, f.emitter.reclusters, "a new instance shifts its work's editions")
}

func TestProcessMessageWorkInsertDoesNotRecluster(t *testing.T) {
	f := newFixture()

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(workEnvelope("Moby Dick")))
	require.NoError(t, err)
	assert.Empty(t, f.emitter.reclusters)
	assert.Empty(t, f.entities.touched, "a work is its own work, nothing to touch")
}

func TestProcessMessageDefersCover(t *testing.T) {
	f := newFixture()

	env := workEnvelope("Moby Dick")
	env.Data["cover"] = map[string]any{"url": "https://example.org/cover.jpg"}

	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(env))
	require.NoError(t, err)

	require.Len(t, f.entities.created, 1)
	require.Len(t, f.emitter.covers, 1)
	cover := f.emitter.covers[0]
	assert.Equal(t, models.RecordTypeCover, cover.Type)
	assert.Equal(t, "https://example.org/cover.jpg", cover.Data["url"])
	assert.Equal(t, f.entities.created[0].ID, cover.Data["entity_id"])

	var data map[string]any
	require.NoError(t, json.Unmarshal(f.entities.created[0].Data, &data))
	assert.NotContains(t, data, "cover", "the cover payload never lands inline")
}

func TestProcessMessageForwardsCoverEnvelope(t *testing.T) {
	f := newFixture()

	env := &models.RecordEnvelope{
		Type: models.RecordTypeCover,
		Data: map[string]any{"url": "https://example.org/cover.jpg", "entity_id": "ent-1"},
	}
	err := f.processor.ProcessMessage(context.Background(), envelopeMessage(env))
	require.NoError(t, err)
	require.Len(t, f.emitter.covers, 1)
	assert.Empty(t, f.entities.created)
}

func TestProcessMessageRecluster(t *testing.T) {
	f := newFixture()

	msg := &kafka.IncomingMessage{
		Recluster: &models.ReclusterMessage{Type: "recluster", Identifier: "work-1"},
	}
	err := f.processor.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"work-1"}, f.reclusterer.calls)
}

func TestProcessMessageReclusterFromWire(t *testing.T) {
	// End to end from the serialized control message: the payload parses as
	// a valid envelope too, so routing must still reach the reclusterer.
	f := newFixture()

	payload, err := json.Marshal(models.ReclusterMessage{Type: "recluster", Identifier: "work-1"})
	require.NoError(t, err)

	msg := &kafka.IncomingMessage{
		Headers: map[string]string{"type": "recluster"},
		Value:   payload,
	}
	require.NoError(t, msg.Parse())

	require.NoError(t, f.processor.ProcessMessage(context.Background(), msg))
	assert.Equal(t, []string{"work-1"}, f.reclusterer.calls)
}

func TestProcessMessageMalformedReclusterIsDropped(t *testing.T) {
	f := newFixture()

	msg := &kafka.IncomingMessage{
		Recluster: &models.ReclusterMessage{Type: "recluster"},
	}
	err := f.processor.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, f.reclusterer.calls)
}

func TestProcessMessageUnparseablePayloadIsDropped(t *testing.T) {
	f := newFixture()

	err := f.processor.ProcessMessage(context.Background(), &kafka.IncomingMessage{})
	require.NoError(t, err)
	assert.Empty(t, f.entities.created)
}
