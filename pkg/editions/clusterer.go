package editions

import (
	"context"
	"errors"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Clusterer partitions a work's instances into edition groups. Deterministic
// for identical input; best-effort heuristic, not exact linkage.
type Clusterer struct {
	yearWeight float64
	logger     ectologger.Logger
}

// NewClusterer creates a new edition clusterer. yearWeight scales the year
// dimension relative to the place/publisher text blocks (both weighted 1.0).
func NewClusterer(yearWeight float64, logger ectologger.Logger) *Clusterer {
	return &Clusterer{
		yearWeight: yearWeight,
		logger:     logger,
	}
}

// Cluster partitions the instances into edition groups. Every input instance
// appears in exactly one group: signal-free instances become their own
// singleton groups, the rest are clustered and then split by year.
func (c *Clusterer) Cluster(ctx context.Context, instances []models.InstanceSummary) []models.EditionGroup {
	_, span := tracing.StartSpan(ctx, "editions.Clusterer.Cluster")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{"instances": len(instances)})

	var clusterable []feature
	var singletons []models.EditionGroup
	for _, inst := range instances {
		f := extractFeature(inst)
		if f.isClusterable() {
			clusterable = append(clusterable, f)
		} else {
			singletons = append(singletons, groupFromMembers([]feature{f}, f.Year))
		}
	}

	if len(clusterable) == 0 {
		return singletons
	}
	if len(clusterable) == 1 {
		return append(splitByYear(clusterable, []int{0}), singletons...)
	}

	points := vectorize(clusterable, c.yearWeight)
	labels := c.clusterPoints(ctx, points)

	groups := splitByYear(clusterable, labels)
	groups = append(groups, singletons...)

	log.WithFields(map[string]any{"groups": len(groups)}).Info("Clustered instances into editions")
	return groups
}

// clusterPoints selects K via the inertia knee and returns the final labels.
// Any failure degrades to a single cluster of all points.
func (c *Clusterer) clusterPoints(ctx context.Context, points [][]float64) []int {
	maxK := max(2, countDistinct(points))
	if maxK > len(points) {
		maxK = len(points)
	}

	var ks []int
	var inertias []float64
	for k := 1; k <= maxK; k++ {
		result, err := kmeans(points, k)
		if err != nil {
			// An unrealizable K is skipped, not fatal.
			if !errors.Is(err, errTooFewPoints) {
				c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"k": k}).Warn("Clustering run failed, skipping K")
			}
			continue
		}
		ks = append(ks, k)
		inertias = append(inertias, result.inertia)
	}

	if len(ks) == 0 {
		c.logger.WithContext(ctx).Warn("No usable cluster count, falling back to a single cluster")
		return make([]int, len(points))
	}

	chosen := kneeK(ks, inertias)
	result, err := kmeans(points, chosen)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"k": chosen}).Warn("Final clustering failed, falling back to a single cluster")
		return make([]int, len(points))
	}
	return result.labels
}

// splitByYear turns (cluster, year) pairs into edition groups. Textual
// similarity alone under-distinguishes reprints, so a cluster spanning years
// is split into one group per distinct year.
func splitByYear(features []feature, labels []int) []models.EditionGroup {
	type key struct {
		label int
		year  int
	}

	members := make(map[key][]feature)
	var order []key
	for i, f := range features {
		k := key{label: labels[i], year: f.Year}
		if _, ok := members[k]; !ok {
			order = append(order, k)
		}
		members[k] = append(members[k], f)
	}

	// Input order already drives first-seen key order; sort only to present
	// groups by year for stable downstream output.
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].label < order[j].label
	})

	groups := make([]models.EditionGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, groupFromMembers(members[k], k.year))
	}
	return groups
}

// groupFromMembers builds a group whose representative fields are the first
// non-empty values seen among members, not a merge.
func groupFromMembers(members []feature, year int) models.EditionGroup {
	group := models.EditionGroup{Year: year}
	for _, m := range members {
		group.InstanceIDs = append(group.InstanceIDs, m.ID)
		if group.Place == "" {
			group.Place = m.RawPlace
		}
		if group.Publisher == "" {
			group.Publisher = m.RawPublisher
		}
		if group.EditionStatement == "" {
			group.EditionStatement = m.EditionStatement
		}
	}
	return group
}

func countDistinct(points [][]float64) int {
	distinct := 0
	for i, p := range points {
		dup := false
		for j := 0; j < i; j++ {
			if equalPoints(p, points[j]) {
				dup = true
				break
			}
		}
		if !dup {
			distinct++
		}
	}
	return distinct
}
