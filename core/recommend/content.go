package recommend

import "math"

const (
	contentBaseSimilarity  = 0.5
	contentSubjectBonus    = 0.3
	contentDifficultyBonus = 0.1
	contentReason          = "Coincide con tus materias más fuertes"
	contentGenericReason   = "Recurso adecuado para tu nivel"
)

type contentScorer struct {
	conf    *Config
	catalog []Item
}

var _ Scorer = (*contentScorer)(nil)

func (s *contentScorer) Name() string { return AlgorithmContent }

func (s *contentScorer) Score(profile UserProfile, interacted map[string]bool) ([]Recommendation, error) {
	strong := strongSubjects(profile.Grades)

	recs := make([]Recommendation, 0, len(s.catalog))
	for _, item := range s.catalog {
		if interacted[item.ID] {
			continue
		}

		sim := contentBaseSimilarity
		reason := contentGenericReason
		for _, subj := range strong {
			if item.hasSubject(subj) {
				sim += contentSubjectBonus
				reason = contentReason
				break
			}
		}
		if item.Difficulty == DifficultyMedium {
			sim += contentDifficultyBonus
		}
		sim = math.Min(sim, 1)

		recs = append(recs, Recommendation{
			ItemID:     item.ID,
			Confidence: sim,
			Score:      sim * maxRating,
			Reason:     reason,
			Algorithm:  AlgorithmContent,
		})
	}

	return rankTop(recs, s.conf.ConfidenceThreshold, s.conf.MaxCandidates), nil
}
