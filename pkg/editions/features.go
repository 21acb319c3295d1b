// Package editions groups a work's instances into likely distinct editions
// using text and publication-year similarity.
package editions

import (
	"math"
	"strings"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/normalizers"
)

// feature is one instance's clustering-relevant signal after normalization.
// Raw values are kept for representative output fields.
type feature struct {
	ID               string
	Place            string
	Publisher        string
	Year             int
	RawPlace         string
	RawPublisher     string
	EditionStatement string
}

// extractFeature normalizes one instance. Year is the midpoint of the
// publication range when both bounds are known, else the known bound, else 0.
func extractFeature(inst models.InstanceSummary) feature {
	f := feature{
		ID:               inst.ID,
		Place:            normalizers.NormalizePlace(inst.Place),
		Publisher:        normalizers.NormalizePublisher(strings.Join(inst.Publishers, " ")),
		RawPlace:         strings.TrimSpace(inst.Place),
		RawPublisher:     strings.TrimSpace(strings.Join(inst.Publishers, "; ")),
		EditionStatement: strings.TrimSpace(inst.EditionStatement),
	}

	switch {
	case inst.DateStart != nil && inst.DateEnd != nil:
		f.Year = (*inst.DateStart + *inst.DateEnd) / 2
	case inst.DateStart != nil:
		f.Year = *inst.DateStart
	case inst.DateEnd != nil:
		f.Year = *inst.DateEnd
	}

	return f
}

// isClusterable reports whether the instance carries any signal at all. An
// instance with no place, no publisher and no year becomes an unclustered
// singleton instead.
func (f feature) isClusterable() bool {
	return f.Place != "" || f.Publisher != "" || f.Year != 0
}

// ngrams returns the character n-grams (n = 2..4) of s.
func ngrams(s string) []string {
	var grams []string
	runes := []rune(s)
	for n := 2; n <= 4; n++ {
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}

// vectorize builds one numeric point per feature: two L2-normalized n-gram
// count blocks (place, publisher) and a min-max scaled year dimension
// weighted by yearWeight so the date dominates similarity.
func vectorize(features []feature, yearWeight float64) [][]float64 {
	placeVocab := buildVocabulary(features, func(f feature) string { return f.Place })
	pubVocab := buildVocabulary(features, func(f feature) string { return f.Publisher })

	minYear, maxYear := math.MaxInt, math.MinInt
	for _, f := range features {
		if f.Year == 0 {
			continue
		}
		minYear = min(minYear, f.Year)
		maxYear = max(maxYear, f.Year)
	}

	dims := len(placeVocab) + len(pubVocab) + 1
	points := make([][]float64, len(features))
	for i, f := range features {
		point := make([]float64, dims)
		fillBlock(point, 0, placeVocab, f.Place)
		fillBlock(point, len(placeVocab), pubVocab, f.Publisher)

		if f.Year != 0 && maxYear > minYear {
			point[dims-1] = yearWeight * float64(f.Year-minYear) / float64(maxYear-minYear)
		} else if f.Year != 0 {
			point[dims-1] = yearWeight
		}

		points[i] = point
	}
	return points
}

func buildVocabulary(features []feature, field func(feature) string) map[string]int {
	vocab := make(map[string]int)
	for _, f := range features {
		for _, gram := range ngrams(field(f)) {
			if _, ok := vocab[gram]; !ok {
				vocab[gram] = len(vocab)
			}
		}
	}
	return vocab
}

// fillBlock writes the L2-normalized n-gram counts of value into
// point[offset:offset+len(vocab)].
func fillBlock(point []float64, offset int, vocab map[string]int, value string) {
	grams := ngrams(value)
	if len(grams) == 0 {
		return
	}
	for _, gram := range grams {
		point[offset+vocab[gram]]++
	}

	var norm float64
	for i := offset; i < offset+len(vocab); i++ {
		norm += point[i] * point[i]
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := offset; i < offset+len(vocab); i++ {
		point[i] /= norm
	}
}
