package recommend

const hybridReason = "Recomendado por estudiantes similares y por tus materias fuertes"

// combine weights collaborative and content candidates and merges duplicate items by summing
// their weighted confidences. Weighted confidences are not renormalized, so the two sources
// no longer share a scale afterwards.
func combine(collaborative, content []Recommendation, conf *Config) []Recommendation {
	merged := make([]Recommendation, 0, len(collaborative)+len(content))
	idx := make(map[string]int, cap(merged))

	add := func(rec Recommendation, weight float64) {
		rec.Confidence *= weight
		rec.Score *= weight
		if i, ok := idx[rec.ItemID]; ok {
			cur := &merged[i]
			cur.Confidence += rec.Confidence
			cur.Score += rec.Score
			cur.Reason = hybridReason
			cur.Algorithm = AlgorithmHybrid
			return
		}
		idx[rec.ItemID] = len(merged)
		merged = append(merged, rec)
	}

	for _, rec := range collaborative {
		add(rec, conf.CollaborativeWeight)
	}
	for _, rec := range content {
		add(rec, conf.ContentWeight)
	}
	return merged
}
