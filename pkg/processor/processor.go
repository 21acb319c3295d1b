// Package processor runs the per-record state machine: a message is looked
// up, matched and applied, requeued with an incremented attempt count, or
// dead-lettered. Failures are isolated per message; one bad record never
// aborts the surrounding batch.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/kafka"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Reclusterer recomputes a work's editions.
type Reclusterer interface {
	Recluster(ctx context.Context, workID string) ([]models.Edition, error)
}

// Config holds processor settings.
type Config struct {
	// MaxAttempts is the attempt count at which a missing record is
	// dead-lettered instead of requeued.
	MaxAttempts int
	// Topics maps a record type to its own channel, used for requeues.
	Topics map[string]string
}

// Processor is the top-level per-record state machine.
type Processor struct {
	logger      ectologger.Logger
	cfg         Config
	handlers    map[string]recordHandler
	entities    EntityStore
	emitter     kafka.Emitter
	reclusterer Reclusterer
	validate    *validator.Validate
}

// NewProcessor creates a record processor with one handler per entity kind.
func NewProcessor(
	cfg Config,
	resolver IdentifierResolver,
	entities EntityStore,
	identifiers IdentifierAttacher,
	agents AgentResolver,
	emitter kafka.Emitter,
	reclusterer Reclusterer,
	logger ectologger.Logger,
) *Processor {
	newHandler := func(kind, parentKind models.EntityKind) recordHandler {
		return &entityHandler{
			kind:        kind,
			parentKind:  parentKind,
			resolver:    resolver,
			entities:    entities,
			identifiers: identifiers,
			agents:      agents,
			logger:      logger,
		}
	}

	return &Processor{
		logger: logger,
		cfg:    cfg,
		handlers: map[string]recordHandler{
			string(models.EntityKindWork):     newHandler(models.EntityKindWork, ""),
			string(models.EntityKindInstance): newHandler(models.EntityKindInstance, models.EntityKindWork),
			string(models.EntityKindItem):     newHandler(models.EntityKindItem, models.EntityKindInstance),
		},
		entities:    entities,
		emitter:     emitter,
		reclusterer: reclusterer,
		validate:    validator.New(),
	}
}

// ProcessMessage is the kafka.MessageHandler entry point. A nil return
// commits the offset: validation failures and dead-letters are terminal, and
// a requeued miss already lives on the bus again. Only infrastructure errors
// propagate, leaving the offset uncommitted for redelivery.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessMessage")
	defer span.End()

	if msg.Recluster != nil {
		return p.handleRecluster(ctx, msg.Recluster)
	}
	if msg.Envelope == nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{"topic": msg.Topic}).Error("Dropped message with no parseable payload")
		return nil
	}
	return p.processEnvelope(ctx, msg.Envelope)
}

func (p *Processor) processEnvelope(ctx context.Context, env *models.RecordEnvelope) error {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_type": env.Type,
		"attempts":    env.Attempts,
		"source":      env.Source,
	})

	if err := p.validate.Struct(env); err != nil {
		log.WithError(err).Error("Dropped malformed envelope")
		return nil
	}

	// Covers are deferred to their own channel, never processed inline.
	if env.Type == models.RecordTypeCover {
		return p.emitter.PublishCover(ctx, env)
	}

	handler, ok := p.handlers[env.Type]
	if !ok {
		log.Error("Dropped envelope with unknown record type")
		return nil
	}

	if len(env.Identifiers()) == 0 {
		// A record with no identifiers can never be matched or retried.
		log.Error("Dropped envelope with no identifiers")
		return nil
	}

	entityID, err := handler.Lookup(ctx, env)
	if err != nil {
		return err
	}

	result, err := handler.Apply(ctx, entityID, env)
	if err != nil {
		return p.classifyFailure(ctx, env, handler, err)
	}

	return p.finishApply(ctx, env, result)
}

// classifyFailure routes a failed apply: permanent validation failures are
// dropped, transient misses are requeued until MaxAttempts then
// dead-lettered, anything else propagates for redelivery.
func (p *Processor) classifyFailure(ctx context.Context, env *models.RecordEnvelope, handler recordHandler, err error) error {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_type": env.Type,
		"identifier":  handler.Identifier(env),
		"attempts":    env.Attempts,
	})

	switch {
	case procerrors.IsInvalidIdentifier(err):
		log.WithError(err).Error("Dropped invalid record")
		return nil

	case procerrors.IsTransientNotFound(err):
		if env.Attempts < p.cfg.MaxAttempts {
			requeue := *env
			requeue.Attempts = env.Attempts + 1
			if emitErr := p.emitter.Requeue(ctx, p.topicFor(env.Type), &requeue); emitErr != nil {
				return emitErr
			}
			log.WithError(err).Info("Transient miss, requeued")
			return nil
		}
		log.WithError(err).Error("Retries exhausted, record dead-lettered")
		return nil

	default:
		return err
	}
}

// finishApply runs the post-merge side effects: deferred cover payloads, the
// owning work's timestamp touch, the update channel, and reclustering when an
// instance's membership changed.
func (p *Processor) finishApply(ctx context.Context, env *models.RecordEnvelope, result *models.ApplyResult) error {
	ent := result.Entity

	if cover, ok := env.CoverReference(); ok {
		cover["entity_id"] = ent.ID
		coverEnv := &models.RecordEnvelope{
			Type:   models.RecordTypeCover,
			Data:   cover,
			Source: env.Source,
		}
		if err := p.emitter.PublishCover(ctx, coverEnv); err != nil {
			return err
		}
	}

	workID, err := p.entities.ResolveWorkID(ctx, ent.ID)
	if err != nil {
		return err
	}
	if workID != "" && workID != ent.ID {
		if err := p.entities.Touch(ctx, workID); err != nil {
			return err
		}
	}

	if result.IsChanged {
		if err := p.emitter.PublishUpdate(ctx, ent.ID, env); err != nil {
			return err
		}
	}

	// A new or changed instance shifts its work's edition groups.
	if ent.Kind == models.EntityKindInstance && result.IsChanged && workID != "" {
		if err := p.emitter.PublishRecluster(ctx, workID); err != nil {
			return err
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_type": env.Type,
		"entity_id":   ent.ID,
		"is_new":      result.IsNew,
		"is_changed":  result.IsChanged,
	}).Info("Applied record")

	return nil
}

func (p *Processor) handleRecluster(ctx context.Context, msg *models.ReclusterMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.handleRecluster")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{"work_id": msg.Identifier})

	if err := p.validate.Struct(msg); err != nil {
		log.WithError(err).Error("Dropped malformed recluster message")
		return nil
	}

	editions, err := p.reclusterer.Recluster(ctx, msg.Identifier)
	if err != nil {
		if procerrors.IsInvalidIdentifier(err) {
			log.WithError(err).Error("Dropped recluster for invalid work")
			return nil
		}
		return err
	}

	log.WithFields(map[string]any{"editions": len(editions)}).Info("Reclustered work editions")
	return nil
}

func (p *Processor) topicFor(recordType string) string {
	return p.cfg.Topics[recordType]
}
