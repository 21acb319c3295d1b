// Package identifiers resolves a set of candidate identifiers to one
// persisted entity by voting across matches.
package identifiers

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/normalizers"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// IdentifierStore is the identifier lookup surface the resolver depends on.
type IdentifierStore interface {
	FindEntityIDs(ctx context.Context, kind models.EntityKind, idType models.IdentifierType, value string) ([]string, error)
}

// EquivalenceStore records ambiguous-match evidence.
type EquivalenceStore interface {
	Create(ctx context.Context, req models.CreateEquivalenceRequest) (*models.Equivalence, error)
}

// Resolver matches candidate identifiers against persisted entities.
type Resolver struct {
	identifiers  IdentifierStore
	equivalences EquivalenceStore
	logger       ectologger.Logger
}

// NewResolver creates a new identifier resolver
func NewResolver(identifiers IdentifierStore, equivalences EquivalenceStore, logger ectologger.Logger) *Resolver {
	return &Resolver{
		identifiers:  identifiers,
		equivalences: equivalences,
		logger:       logger,
	}
}

// Normalize cleans a candidate value for lookup. Returns false when the value
// is a placeholder (empty, all-zero) and should be dropped from voting.
func Normalize(c models.Candidate) (models.Candidate, bool) {
	value := normalizers.NormalizeIdentifier(c.Value)
	if value == "" {
		return models.Candidate{}, false
	}
	idType := c.Type
	if idType == "" {
		idType = models.IdentifierTypeGeneric
	}
	return models.Candidate{Type: idType, Value: value}, true
}

// Resolve matches the candidates against entities of the given kind. Returns
// "" when nothing matched. When multiple distinct entities match, the entity
// with the most candidate votes wins (ties break to the entity first
// encountered in candidate order) and an equivalence row is recorded for
// every losing entity. No identifier or entity rows are mutated.
func (r *Resolver) Resolve(ctx context.Context, kind models.EntityKind, candidates []models.Candidate) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "identifiers.Resolver.Resolve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":       kind,
		"candidates": len(candidates),
	})

	votes := make(map[string]int)
	matchedBy := make(map[string][]models.Candidate)
	var order []string

	for _, raw := range candidates {
		candidate, ok := Normalize(raw)
		if !ok {
			log.WithFields(map[string]any{
				"type":  raw.Type,
				"value": raw.Value,
			}).Debug("Dropped invalid identifier candidate")
			continue
		}

		entityIDs, err := r.identifiers.FindEntityIDs(ctx, kind, candidate.Type, candidate.Value)
		if err != nil {
			return "", err
		}

		for _, id := range entityIDs {
			if _, seen := votes[id]; !seen {
				order = append(order, id)
			}
			votes[id]++
			matchedBy[id] = append(matchedBy[id], candidate)
		}
	}

	if len(order) == 0 {
		return "", nil
	}
	if len(order) == 1 {
		return order[0], nil
	}

	// Highest vote count wins; first-encountered order breaks ties so the
	// result is deterministic for a fixed candidate order.
	winner := order[0]
	for _, id := range order[1:] {
		if votes[id] > votes[winner] {
			winner = id
		}
	}

	log.WithFields(map[string]any{
		"winner":   winner,
		"entities": len(order),
	}).Info("Ambiguous identifier match resolved by vote")

	for _, id := range order {
		if id == winner {
			continue
		}
		_, err := r.equivalences.Create(ctx, models.CreateEquivalenceRequest{
			SourceID: winner,
			TargetID: id,
			Type:     kind,
			MatchData: models.MatchEvidence{
				Matched: matchedBy[id],
				Votes:   votes,
			},
		})
		if err != nil {
			return "", err
		}
	}

	return winner, nil
}
