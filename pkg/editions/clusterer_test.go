package editions

import (
	"context"
	"sort"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
)

func testClusterer() *Clusterer {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewClusterer(1.5, logger)
}

func intPtr(v int) *int { return &v }

func instance(id, place, publisher string, year *int) models.InstanceSummary {
	inst := models.InstanceSummary{
		ID:        id,
		Place:     place,
		DateStart: year,
		DateEnd:   year,
	}
	if publisher != "" {
		inst.Publishers = []string{publisher}
	}
	return inst
}

// assertPartition checks that every input instance landed in exactly one group.
func assertPartition(t *testing.T, instances []models.InstanceSummary, groups []models.EditionGroup) {
	t.Helper()

	var clustered []string
	for _, g := range groups {
		clustered = append(clustered, g.InstanceIDs...)
	}

	var input []string
	for _, inst := range instances {
		input = append(input, inst.ID)
	}

	sort.Strings(clustered)
	sort.Strings(input)
	assert.Equal(t, input, clustered)
}

func TestClusterEmptyInput(t *testing.T) {
	groups := testClusterer().Cluster(context.Background(), nil)
	assert.Empty(t, groups)
}

func TestClusterSingleInstance(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin", intPtr(1998)),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"i1"}, groups[0].InstanceIDs)
	assert.Equal(t, 1998, groups[0].Year)
	assert.Equal(t, "New York", groups[0].Place)
	assert.Equal(t, "Penguin", groups[0].Publisher)
}

func TestClusterSignalFreeInstancesAreSingletons(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "", "", nil),
		instance("i2", "", "", nil),
		instance("i3", "[S.l.]", "", nil), // normalizes to no signal
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.Len(t, g.InstanceIDs, 1)
		assert.Equal(t, 0, g.Year)
	}
	assertPartition(t, instances, groups)
}

func TestClusterGroupsSimilarInstances(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin Books", intPtr(1998)),
		instance("i2", "New York :", "Penguin Books,", intPtr(1998)),
		instance("i3", "London", "Oxford University Press", intPtr(2005)),
		instance("i4", "London ;", "Oxford University Press", intPtr(2005)),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	assertPartition(t, instances, groups)

	byInstance := make(map[string]int)
	for gi, g := range groups {
		for _, id := range g.InstanceIDs {
			byInstance[id] = gi
		}
	}
	assert.Equal(t, byInstance["i1"], byInstance["i2"], "punctuation variants of the same edition cluster together")
	assert.Equal(t, byInstance["i3"], byInstance["i4"])
	assert.NotEqual(t, byInstance["i1"], byInstance["i3"])
}

func TestClusterPublisherNameVariants(t *testing.T) {
	// Short and long forms of the same imprint share enough character
	// n-grams to cluster; a different publisher decades later stays apart.
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Scribner", intPtr(1925)),
		instance("i2", "New York", "Charles Scribner's Sons", intPtr(1925)),
		instance("i3", "London", "Penguin", intPtr(2000)),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	assertPartition(t, instances, groups)
	require.Len(t, groups, 2)

	byInstance := make(map[string]int)
	for gi, g := range groups {
		for _, id := range g.InstanceIDs {
			byInstance[id] = gi
		}
	}
	assert.Equal(t, byInstance["i1"], byInstance["i2"])
	assert.NotEqual(t, byInstance["i1"], byInstance["i3"])

	for _, g := range groups {
		switch len(g.InstanceIDs) {
		case 2:
			assert.Equal(t, 1925, g.Year)
		case 1:
			assert.Equal(t, 2000, g.Year)
		}
	}
}

func TestClusterSplitsByYear(t *testing.T) {
	// Same place and publisher, three distinct years: textual similarity
	// alone would merge these reprints, the year split keeps them apart.
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin Books", intPtr(1998)),
		instance("i2", "New York", "Penguin Books", intPtr(2003)),
		instance("i3", "New York", "Penguin Books", intPtr(2010)),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	assertPartition(t, instances, groups)

	years := make(map[int][]string)
	for _, g := range groups {
		years[g.Year] = append(years[g.Year], g.InstanceIDs...)
	}
	assert.Equal(t, []string{"i1"}, years[1998])
	assert.Equal(t, []string{"i2"}, years[2003])
	assert.Equal(t, []string{"i3"}, years[2010])
}

func TestClusterGroupsOrderedByYear(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin Books", intPtr(2010)),
		instance("i2", "New York", "Penguin Books", intPtr(1998)),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	require.Len(t, groups, 2)
	assert.Equal(t, 1998, groups[0].Year)
	assert.Equal(t, 2010, groups[1].Year)
}

func TestClusterYearRangeUsesMidpoint(t *testing.T) {
	instances := []models.InstanceSummary{
		{
			ID:        "i1",
			Place:     "Boston",
			DateStart: intPtr(1990),
			DateEnd:   intPtr(2000),
		},
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	require.Len(t, groups, 1)
	assert.Equal(t, 1995, groups[0].Year)
}

func TestClusterMixedSignalAndSignalFree(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin Books", intPtr(1998)),
		instance("i2", "New York", "Penguin Books", intPtr(1998)),
		instance("i3", "", "", nil),
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	assertPartition(t, instances, groups)

	var together, alone bool
	for _, g := range groups {
		if len(g.InstanceIDs) == 2 {
			together = true
		}
		if len(g.InstanceIDs) == 1 && g.InstanceIDs[0] == "i3" {
			alone = true
		}
	}
	assert.True(t, together, "the two identical instances share a group")
	assert.True(t, alone, "the signal-free instance stays a singleton")
}

func TestClusterIsDeterministic(t *testing.T) {
	instances := []models.InstanceSummary{
		instance("i1", "New York", "Penguin Books", intPtr(1998)),
		instance("i2", "New York :", "Penguin", intPtr(1998)),
		instance("i3", "London", "Oxford University Press", intPtr(2005)),
		instance("i4", "Boston", "Little, Brown", intPtr(1998)),
		instance("i5", "", "", nil),
	}

	first := testClusterer().Cluster(context.Background(), instances)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, testClusterer().Cluster(context.Background(), instances))
	}
}

func TestClusterRepresentativeFieldsAreFirstNonEmpty(t *testing.T) {
	instances := []models.InstanceSummary{
		{ID: "i1", Place: "", Publishers: []string{"Penguin Books"}, DateStart: intPtr(1998), DateEnd: intPtr(1998)},
		{ID: "i2", Place: "New York", Publishers: []string{"Penguin Books"}, DateStart: intPtr(1998), DateEnd: intPtr(1998), EditionStatement: "2nd ed."},
	}

	groups := testClusterer().Cluster(context.Background(), instances)
	assertPartition(t, instances, groups)

	for _, g := range groups {
		if len(g.InstanceIDs) == 2 {
			assert.Equal(t, "New York", g.Place, "first non-empty value among members")
			assert.Equal(t, "Penguin Books", g.Publisher)
			assert.Equal(t, "2nd ed.", g.EditionStatement)
		}
	}
}

func TestKneeK(t *testing.T) {
	// A sharp elbow at k=2.
	assert.Equal(t, 2, kneeK([]int{1, 2, 3, 4}, []float64{100, 10, 8, 7}))
	// Too few points falls back to the smallest K.
	assert.Equal(t, 1, kneeK([]int{1, 2}, []float64{10, 5}))
	assert.Equal(t, 1, kneeK(nil, nil))
}

func TestKmeansDeterministicInit(t *testing.T) {
	points := [][]float64{
		{0, 0}, {0.1, 0}, {5, 5}, {5.1, 5},
	}

	first, err := kmeans(points, 2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		result, err := kmeans(points, 2)
		require.NoError(t, err)
		assert.Equal(t, first.labels, result.labels)
	}
	assert.Equal(t, first.labels[0], first.labels[1])
	assert.Equal(t, first.labels[2], first.labels[3])
	assert.NotEqual(t, first.labels[0], first.labels[2])
}

func TestKmeansTooFewDistinctPoints(t *testing.T) {
	points := [][]float64{{1, 1}, {1, 1}}
	_, err := kmeans(points, 2)
	assert.ErrorIs(t, err, errTooFewPoints)
}
