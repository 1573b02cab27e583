package recommend

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"
)

const (
	minNeighbourRating     = 3
	maxRating              = 5
	collaborativeDampening = 0.8
	collaborativeReason    = "Estudiantes con un perfil similar valoraron este recurso"
	randomSimilarityFloor  = 0.7
	randomSimilaritySpread = 0.3
)

// SimilarityFunc scores how alike two profiles are, in [0,1].
type SimilarityFunc func(target, other UserProfile) float64

// RandomSimilarity is a stub standing in for a real similarity metric:
// it ignores both profiles and draws uniformly from [0.7, 1.0].
func RandomSimilarity(rng *rand.Rand) SimilarityFunc {
	var mu sync.Mutex
	return func(_, _ UserProfile) float64 {
		mu.Lock()
		defer mu.Unlock()
		return randomSimilarityFloor + rng.Float64()*randomSimilaritySpread
	}
}

// MockRating is a fixed neighbour rating used by the collaborative scorer.
type MockRating struct {
	ItemID string
	Rating int
}

var mockRatings = []MockRating{
	{ItemID: "curso_algebra", Rating: 5},
	{ItemID: "actividad_laboratorio_virtual", Rating: 4},
	{ItemID: "metodo_pomodoro", Rating: 2},
}

// MockInteractions returns the interactions a neighbour is assumed to have.
// Every neighbour shares the same three ratings.
func MockInteractions(_ string) []MockRating {
	return mockRatings
}

type collaborativeScorer struct {
	repo       Repository
	conf       *Config
	similarity SimilarityFunc
}

var _ Scorer = (*collaborativeScorer)(nil)

func (s *collaborativeScorer) Name() string { return AlgorithmCollaborative }

func (s *collaborativeScorer) Score(profile UserProfile, interacted map[string]bool) ([]Recommendation, error) {
	neighbours, err := s.repo.QueryProfiles(profile.UserID, s.conf.MaxNeighbors)
	if err != nil {
		return nil, errors.Wrap(err, "querying neighbour profiles")
	}

	var grouped candidateGroup
	for _, nb := range neighbours {
		sim := s.similarity(profile, nb)
		for _, mr := range MockInteractions(nb.UserID) {
			if mr.Rating < minNeighbourRating || interacted[mr.ItemID] {
				continue
			}
			rating := float64(mr.Rating)
			grouped.add(Recommendation{
				ItemID:     mr.ItemID,
				Confidence: rating / maxRating * sim * collaborativeDampening,
				Score:      rating * sim,
				Reason:     collaborativeReason,
				Algorithm:  AlgorithmCollaborative,
			})
		}
	}

	return rankTop(grouped.averages(), s.conf.ConfidenceThreshold, s.conf.MaxCandidates), nil
}

// candidateGroup groups recommendations by item id in first-seen order.
type candidateGroup struct {
	order  []string
	recs   map[string]*Recommendation
	counts map[string]int
}

func (g *candidateGroup) add(rec Recommendation) {
	if g.recs == nil {
		g.recs = make(map[string]*Recommendation)
		g.counts = make(map[string]int)
	}
	if cur, ok := g.recs[rec.ItemID]; ok {
		cur.Confidence += rec.Confidence
		cur.Score += rec.Score
		g.counts[rec.ItemID]++
		return
	}
	g.order = append(g.order, rec.ItemID)
	g.recs[rec.ItemID] = &rec
	g.counts[rec.ItemID] = 1
}

// averages returns one recommendation per item with confidence and score averaged over its duplicates.
func (g *candidateGroup) averages() []Recommendation {
	out := make([]Recommendation, 0, len(g.order))
	for _, id := range g.order {
		rec := *g.recs[id]
		n := float64(g.counts[id])
		rec.Confidence /= n
		rec.Score /= n
		out = append(out, rec)
	}
	return out
}
