package agents

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"

	agentrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/agent"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/authority"
	procerrors "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/errors"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/matching"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/normalizers"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// AgentStore is the persistence surface the resolver depends on.
type AgentStore interface {
	GetByAuthority(ctx context.Context, viaf, lcnaf string) (*models.Agent, error)
	ListAll(ctx context.Context) ([]models.Agent, error)
	Create(ctx context.Context, agent models.Agent) (*models.Agent, error)
	Enrich(ctx context.Context, id string, update models.Agent) (*models.Agent, error)
	UpsertRoles(ctx context.Context, agentID, entityID string, roles []string) error
}

// Resolver canonicalizes contributor references against the agent store.
type Resolver struct {
	agents    AgentStore
	authority authority.Lookup
	scorer    *matching.Scorer
	threshold float64
	logger    ectologger.Logger
}

// NewResolver creates a new agent resolver. threshold is the minimum
// similarity a fuzzy name match must clear (high precision, around 0.95).
func NewResolver(agents AgentStore, lookup authority.Lookup, threshold float64, logger ectologger.Logger) *Resolver {
	return &Resolver{
		agents:    agents,
		authority: lookup,
		scorer:    matching.NewScorer(),
		threshold: threshold,
		logger:    logger,
	}
}

// Resolve canonicalizes one contributor reference. Lookup order: authority
// IDs, then the external authority service by cleaned name, then fuzzy text
// matching. A new agent is created only when every strategy misses.
func (r *Resolver) Resolve(ctx context.Context, ref models.AgentReference) (*models.ResolvedAgent, error) {
	ctx, span := tracing.StartSpan(ctx, "agents.Resolver.Resolve")
	defer span.End()

	cleaned := CleanName(ref.Name, ref.Roles)
	if cleaned.Name == "" {
		return nil, procerrors.New(procerrors.KindInvalidIdentifier, "contributor name is empty after cleaning")
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"name": cleaned.Name})

	name := cleaned.Name
	viaf := ref.Viaf
	lcnaf := ref.Lcnaf
	var aliases []string

	// Strategy 1: direct authority-ID lookup.
	if agent, err := r.agents.GetByAuthority(ctx, viaf, lcnaf); err != nil {
		return nil, err
	} else if agent != nil {
		return r.enrich(ctx, agent, name, viaf, lcnaf, cleaned)
	}

	// Strategy 2: external authority service by cleaned name. Service
	// failures demote to fuzzy matching rather than failing the record.
	if viaf == "" && lcnaf == "" && r.authority != nil {
		rec, err := r.authority.LookupName(ctx, name)
		if err != nil {
			log.WithError(err).Warn("Authority lookup failed, falling back to fuzzy matching")
		} else if rec != nil {
			if rec.Name != "" && rec.Name != name {
				aliases = append(aliases, name)
				name = rec.Name
			}
			viaf, lcnaf = rec.Viaf, rec.Lcnaf

			if agent, err := r.agents.GetByAuthority(ctx, viaf, lcnaf); err != nil {
				return nil, err
			} else if agent != nil {
				return r.enrich(ctx, agent, name, viaf, lcnaf, cleaned)
			}
		}
	}

	// Strategy 3: fuzzy text match, exactly-one-above-threshold or nothing.
	if agent, err := r.fuzzyMatch(ctx, name); err != nil {
		return nil, err
	} else if agent != nil {
		if agent.Name != name {
			aliases = append(aliases, name)
		}
		updated, err := r.agents.Enrich(ctx, agent.ID, models.Agent{
			Viaf:      viaf,
			Lcnaf:     lcnaf,
			BirthDate: cleaned.BirthDate,
			DeathDate: cleaned.DeathDate,
			Aliases:   pq.StringArray(aliases),
		})
		if err != nil {
			return nil, err
		}
		return &models.ResolvedAgent{Agent: updated, Roles: cleaned.Roles}, nil
	}

	// No strategy found a match: create a new agent.
	created, err := r.agents.Create(ctx, models.Agent{
		Name:      name,
		SortName:  normalizers.NormalizeName(name),
		Viaf:      viaf,
		Lcnaf:     lcnaf,
		Aliases:   pq.StringArray(aliases),
		BirthDate: cleaned.BirthDate,
		DeathDate: cleaned.DeathDate,
	})
	if err != nil {
		// A concurrent worker won the insert race on the authority ID
		// constraint; adopt its row.
		if errors.Is(err, agentrepo.ErrDuplicateAuthority) {
			agent, lookupErr := r.agents.GetByAuthority(ctx, viaf, lcnaf)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if agent != nil {
				return r.enrich(ctx, agent, name, viaf, lcnaf, cleaned)
			}
		}
		return nil, err
	}

	log.WithFields(map[string]any{"agent_id": created.ID}).Info("Created new agent")
	return &models.ResolvedAgent{Agent: created, Roles: cleaned.Roles, IsNew: true}, nil
}

// AssignRoles unions the resolved roles into the (agent, entity)
// relationship.
func (r *Resolver) AssignRoles(ctx context.Context, agentID, entityID string, roles []string) error {
	return r.agents.UpsertRoles(ctx, agentID, entityID, roles)
}

// enrich folds the inbound reference's facts into an existing agent: new
// textual variants become aliases, authority IDs and dates are backfilled.
func (r *Resolver) enrich(ctx context.Context, agent *models.Agent, name, viaf, lcnaf string, cleaned CleanedName) (*models.ResolvedAgent, error) {
	var aliases []string
	if name != agent.Name && !containsString(agent.Aliases, name) {
		aliases = append(aliases, name)
	}

	updated, err := r.agents.Enrich(ctx, agent.ID, models.Agent{
		Viaf:      viaf,
		Lcnaf:     lcnaf,
		BirthDate: cleaned.BirthDate,
		DeathDate: cleaned.DeathDate,
		Aliases:   pq.StringArray(aliases),
	})
	if err != nil {
		return nil, err
	}
	return &models.ResolvedAgent{Agent: updated, Roles: cleaned.Roles}, nil
}

// fuzzyMatch scores the cleaned name against every stored agent name. The
// score is the mean of normalized edit distance and Jaro-Winkler similarity
// over the sort-normalized forms; the Winkler prefix boost rides the shared
// "last first" prefix of sorted names and absorbs trailing transpositions.
// Exactly one candidate clearing the threshold is a match; zero or several
// is treated as no match so distinct identities are never silently merged.
func (r *Resolver) fuzzyMatch(ctx context.Context, name string) (*models.Agent, error) {
	ctx, span := tracing.StartSpan(ctx, "agents.Resolver.fuzzyMatch")
	defer span.End()

	agents, err := r.agents.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	target := normalizers.NormalizeName(name)
	var matched []*models.Agent
	for i := range agents {
		candidate := normalizers.NormalizeName(agents[i].Name)
		score := (r.scorer.Levenshtein(target, candidate) + r.scorer.JaroWinkler(target, candidate)) / 2
		if score >= r.threshold {
			matched = append(matched, &agents[i])
		}
	}

	switch len(matched) {
	case 0:
		return nil, nil
	case 1:
		return matched[0], nil
	default:
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"name":       name,
			"candidates": len(matched),
		}).Warn("Rejected ambiguous fuzzy name match")
		return nil, nil
	}
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
