package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Gobusters/ectologger"

	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/identifiers"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// EntityStore is the entity persistence surface handlers depend on.
type EntityStore interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	Create(ctx context.Context, kind models.EntityKind, parentID *string, source string, data json.RawMessage) (*models.Entity, error)
	UpdateData(ctx context.Context, id string, data json.RawMessage) (*models.Entity, error)
	Touch(ctx context.Context, id string) error
	ResolveWorkID(ctx context.Context, entityID string) (string, error)
}

// IdentifierAttacher unions candidate identifiers into an entity's collection.
type IdentifierAttacher interface {
	AttachAll(ctx context.Context, entityID string, candidates []models.Candidate) error
}

// IdentifierResolver matches candidate identifiers to one persisted entity.
type IdentifierResolver interface {
	Resolve(ctx context.Context, kind models.EntityKind, candidates []models.Candidate) (string, error)
}

// AgentResolver canonicalizes contributor references.
type AgentResolver interface {
	Resolve(ctx context.Context, ref models.AgentReference) (*models.ResolvedAgent, error)
	AssignRoles(ctx context.Context, agentID, entityID string, roles []string) error
}

// recordHandler is the per-record-kind lookup/apply lifecycle. One variant
// exists per FRBR level, selected from the processor's dispatch table.
type recordHandler interface {
	// Lookup resolves the envelope to an existing entity ID, or "" on a miss.
	Lookup(ctx context.Context, env *models.RecordEnvelope) (string, error)
	// Apply merges the envelope into the entity (entityID == "" inserts).
	Apply(ctx context.Context, entityID string, env *models.RecordEnvelope) (*models.ApplyResult, error)
	// Identifier returns a display identifier for diagnostics.
	Identifier(env *models.RecordEnvelope) string
}

// entityHandler implements the lookup/apply lifecycle for one entity kind.
// Instances and items require their parent to be resolvable before a first
// insert; a referenced-but-missing parent is a transient miss.
type entityHandler struct {
	kind        models.EntityKind
	parentKind  models.EntityKind // "" for works
	resolver    IdentifierResolver
	entities    EntityStore
	identifiers IdentifierAttacher
	agents      AgentResolver
	logger      ectologger.Logger
}

func (h *entityHandler) Lookup(ctx context.Context, env *models.RecordEnvelope) (string, error) {
	return h.resolver.Resolve(ctx, h.kind, env.Identifiers())
}

func (h *entityHandler) Identifier(env *models.RecordEnvelope) string {
	for _, raw := range env.Identifiers() {
		if c, ok := identifiers.Normalize(raw); ok {
			return fmt.Sprintf("%s:%s", c.Type, c.Value)
		}
	}
	return ""
}

func (h *entityHandler) Apply(ctx context.Context, entityID string, env *models.RecordEnvelope) (*models.ApplyResult, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.entityHandler.Apply")
	defer span.End()

	var result *models.ApplyResult
	var err error
	if entityID == "" {
		result, err = h.insert(ctx, env)
	} else {
		result, err = h.update(ctx, entityID, env)
	}
	if err != nil {
		return nil, err
	}

	if err := h.applyCollections(ctx, result.Entity.ID, env); err != nil {
		return nil, err
	}
	return result, nil
}

// insert creates a new entity from the envelope's scalar fields. For kinds
// with a parent level, a parent referenced by the payload must resolve first;
// a payload with no parent reference inserts unparented.
func (h *entityHandler) insert(ctx context.Context, env *models.RecordEnvelope) (*models.ApplyResult, error) {
	parentID, err := h.resolveParent(ctx, env)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(env.ScalarFields())
	if err != nil {
		return nil, err
	}

	ent, err := h.entities.Create(ctx, h.kind, parentID, env.Source, data)
	if err != nil {
		return nil, err
	}
	return &models.ApplyResult{Entity: ent, IsNew: true, IsChanged: true}, nil
}

// update merges the envelope's scalar fields into the existing entity.
// Non-empty incoming values overwrite; identical values are a no-op so
// reprocessing the same payload is idempotent.
func (h *entityHandler) update(ctx context.Context, entityID string, env *models.RecordEnvelope) (*models.ApplyResult, error) {
	ent, err := h.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		// A matched identifier pointing at a missing row; let the retry
		// envelope try again once the store settles.
		return nil, procerrors.Newf(procerrors.KindTransientNotFound, "matched entity %s no longer exists", entityID)
	}

	merged, changed, err := mergeScalars(ent.Data, env.ScalarFields())
	if err != nil {
		return nil, err
	}
	if changed {
		ent, err = h.entities.UpdateData(ctx, ent.ID, merged)
		if err != nil {
			return nil, err
		}
	}
	return &models.ApplyResult{Entity: ent, IsChanged: changed}, nil
}

func (h *entityHandler) resolveParent(ctx context.Context, env *models.RecordEnvelope) (*string, error) {
	if id := env.ParentID(); id != "" {
		return &id, nil
	}

	candidates := env.ParentIdentifiers()
	if len(candidates) == 0 || h.parentKind == "" {
		return nil, nil
	}

	parentID, err := h.resolver.Resolve(ctx, h.parentKind, candidates)
	if err != nil {
		return nil, err
	}
	if parentID == "" {
		return nil, procerrors.Newf(procerrors.KindTransientNotFound, "parent %s not found", h.parentKind)
	}
	return &parentID, nil
}

// applyCollections unions the envelope's child collections into the entity:
// identifiers by (type, value), contributor roles per (agent, entity).
func (h *entityHandler) applyCollections(ctx context.Context, entityID string, env *models.RecordEnvelope) error {
	var valid []models.Candidate
	for _, raw := range env.Identifiers() {
		if c, ok := identifiers.Normalize(raw); ok {
			valid = append(valid, c)
		}
	}
	if err := h.identifiers.AttachAll(ctx, entityID, valid); err != nil {
		return err
	}

	for _, ref := range env.Agents() {
		resolved, err := h.agents.Resolve(ctx, ref)
		if err != nil {
			// A malformed contributor never blocks the record.
			if procerrors.IsInvalidIdentifier(err) {
				h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"entity_id": entityID,
				}).Warn("Skipped unresolvable contributor")
				continue
			}
			return err
		}
		if err := h.agents.AssignRoles(ctx, resolved.Agent.ID, entityID, resolved.Roles); err != nil {
			return err
		}
	}

	return nil
}

// mergeScalars overlays non-empty incoming fields onto the existing document.
func mergeScalars(existing json.RawMessage, incoming map[string]any) (json.RawMessage, bool, error) {
	current := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &current); err != nil {
			return nil, false, err
		}
	}

	changed := false
	for k, v := range incoming {
		if isEmptyValue(v) {
			continue
		}
		if !reflect.DeepEqual(current[k], v) {
			current[k] = v
			changed = true
		}
	}

	if !changed {
		return existing, false, nil
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return nil, false, err
	}
	return merged, true, nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
