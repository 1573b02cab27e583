package recommend

import (
	"math"
	"sort"
	"strings"
)

// rankTop keeps recommendations with confidence > threshold, sorts them by descending confidence
// (ties keep input order) and truncates to n.
func rankTop(recs []Recommendation, threshold float64, n int) []Recommendation {
	kept := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Confidence > threshold {
			kept = append(kept, rec)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
	if n >= 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

// enrich attaches catalog display data. Unknown ids get a placeholder.
func enrich(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, len(recs))
	for i, rec := range recs {
		if item, ok := FindItem(rec.ItemID); ok {
			rec.Title = item.Name
			rec.Description = item.Description
			rec.Category = item.Category
			rec.Difficulty = item.Difficulty
		} else {
			rec.Title = unknownItemTitle
			rec.Description = unknownItemDescription
			rec.Category = unknownItemCategory
		}
		rec.Confidence = round3(rec.Confidence)
		rec.Score = round3(rec.Score)
		out[i] = rec
	}
	return out
}

// inCategory keeps the recommendations whose catalog item belongs to category.
func inCategory(recs []Recommendation, category string) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		cat := rec.Category
		if cat == "" {
			if item, ok := FindItem(rec.ItemID); ok {
				cat = item.Category
			}
		}
		if cat != "" && strings.EqualFold(cat, category) {
			out = append(out, rec)
		}
	}
	return out
}

func analyze(recs []Recommendation) Analytics {
	a := Analytics{
		Categories:         make(map[string]int),
		AlgorithmBreakdown: make(map[string]int),
	}
	if len(recs) == 0 {
		return a
	}
	var sum float64
	for _, rec := range recs {
		sum += rec.Confidence
		a.Categories[rec.Category]++
		a.AlgorithmBreakdown[rec.Algorithm]++
	}
	a.AverageConfidence = round3(sum / float64(len(recs)))
	return a
}

func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
