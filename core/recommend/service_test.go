package recommend_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
	inmemdb "github.com/heroesdelapatria/portal/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newRepo(t *testing.T) recommend.Repository {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return inmemdb.NewRecommendRepository(db)
}

func setup(t *testing.T, repo recommend.Repository) (*recommend.Service, *testClock) {
	if repo == nil {
		repo = newRepo(t)
	}
	conf := recommend.DefaultConfig()
	conf.Seed = 1
	svc, err := recommend.NewService(conf, repo, nopLogger{}, nil)
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)
	svc.SetSimilarity(func(_, _ recommend.UserProfile) float64 { return 1 })
	return svc, clock
}

// seedNeighbours synthesizes a few profiles for the collaborative scorer.
func seedNeighbours(t *testing.T, svc *recommend.Service) {
	for _, id := range []string{"student_1", "student_2", "student_3"} {
		_, err := svc.UpdateProfile(id, recommend.ProfileUpdate{})
		require.NoError(t, err)
	}
}

func mathStudent() *recommend.ProfileUpdate {
	return &recommend.ProfileUpdate{Grades: map[string]float64{"matematicas": 9}}
}

func recIDs(recs []recommend.Recommendation) []string {
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ItemID)
	}
	return ids
}

func TestService_NewService(t *testing.T) {
	conf := recommend.DefaultConfig()
	conf.DefaultLimit = 0
	_, err := recommend.NewService(conf, newRepo(t), nopLogger{}, nil)
	assert.Error(t, err)

	_, err = recommend.NewService(nil, newRepo(t), nopLogger{}, nil)
	assert.NoError(t, err)
}

func TestService_Recommend_hybrid(t *testing.T) {
	svc, _ := setup(t, nil)
	seedNeighbours(t, svc)

	res, err := svc.Recommend(recommend.RecommendRequest{UserID: "ana", UserProfile: mathStudent()})
	require.NoError(t, err)

	assert.Equal(t, "ana", res.UserID)
	assert.Equal(t, recommend.AlgorithmHybrid, res.Metadata.Algorithm)
	assert.NotEmpty(t, res.Metadata.RequestID)
	assert.Equal(t, 1, res.Metadata.ModelVersion)
	assert.False(t, res.Metadata.FromCache)
	assert.Nil(t, res.Metadata.CacheTimestamp)

	// weighted scores only clear the threshold when both scorers agree
	if assert.Equal(t, []string{"curso_algebra"}, recIDs(res.Recommendations)) {
		rec := res.Recommendations[0]
		assert.Equal(t, 0.84, rec.Confidence)
		assert.Equal(t, recommend.AlgorithmHybrid, rec.Algorithm)
		assert.Equal(t, "Álgebra Interactiva", rec.Title)
		assert.Equal(t, recommend.CategoryCourses, rec.Category)
	}
	assert.Equal(t, 0.84, res.Analytics.AverageConfidence)
	assert.Equal(t, map[string]int{recommend.CategoryCourses: 1}, res.Analytics.Categories)

	// the supplied profile is stored
	p, err := svc.GetProfile("ana")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"matematicas": 9}, p.Grades)
}

func TestService_Recommend_options(t *testing.T) {
	svc, _ := setup(t, nil)
	seedNeighbours(t, svc)
	_, err := svc.UpdateProfile("ana", *mathStudent())
	require.NoError(t, err)

	tests := []struct {
		name          string
		opts          recommend.Options
		wantAlgorithm string
		wantIDs       []string
		wantTotal     int
	}{
		{
			name:          "content only",
			opts:          recommend.Options{Algorithm: recommend.AlgorithmContent},
			wantAlgorithm: recommend.AlgorithmContent,
			wantIDs:       []string{"curso_algebra", "curso_calculo", "actividad_olimpiada_matematicas", "recurso_videos_matematicas"},
			wantTotal:     4,
		},
		{
			name:          "content only, limited",
			opts:          recommend.Options{Algorithm: recommend.AlgorithmContent, Limit: 2},
			wantAlgorithm: recommend.AlgorithmContent,
			wantIDs:       []string{"curso_algebra", "curso_calculo"},
			wantTotal:     4,
		},
		{
			name:          "content only, category",
			opts:          recommend.Options{Algorithm: recommend.AlgorithmContent, Category: recommend.CategoryResources},
			wantAlgorithm: recommend.AlgorithmContent,
			wantIDs:       []string{"recurso_videos_matematicas"},
			wantTotal:     1,
		},
		{
			name:          "collaborative only",
			opts:          recommend.Options{Algorithm: recommend.AlgorithmCollaborative},
			wantAlgorithm: recommend.AlgorithmCollaborative,
			wantIDs:       []string{"curso_algebra"},
			wantTotal:     1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Recommend(recommend.RecommendRequest{UserID: "ana", Options: tt.opts})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlgorithm, res.Metadata.Algorithm)
			assert.Equal(t, tt.wantIDs, recIDs(res.Recommendations))
			assert.Equal(t, tt.wantTotal, res.Metadata.TotalCandidates)
			if tt.opts.Limit > 0 {
				assert.LessOrEqual(t, len(res.Recommendations), tt.opts.Limit)
			}
		})
	}
}

func TestService_Recommend_profileNotFound(t *testing.T) {
	svc, _ := setup(t, nil)

	_, err := svc.Recommend(recommend.RecommendRequest{UserID: "ana"})
	nfErr, ok := errors.Cause(err).(*core.NotFoundError)
	if assert.True(t, ok, "error = %v", err) {
		assert.Equal(t, "USER_PROFILE_NOT_FOUND", nfErr.Code)
	}

	// synthesized from the numeric suffix
	res, err := svc.Recommend(recommend.RecommendRequest{UserID: "student_42"})
	require.NoError(t, err)
	assert.Equal(t, "student_42", res.UserID)
	_, err = svc.GetProfile("student_42")
	assert.NoError(t, err)
}

func TestService_Recommend_cache(t *testing.T) {
	svc, clock := setup(t, nil)
	seedNeighbours(t, svc)
	req := recommend.RecommendRequest{UserID: "student_7", Options: recommend.Options{Limit: 5}}

	first, err := svc.Recommend(req)
	require.NoError(t, err)
	stored := clock.Now()

	clock.Advance(10 * time.Minute)
	second, err := svc.Recommend(req)
	require.NoError(t, err)
	assert.True(t, second.Metadata.FromCache)
	if assert.NotNil(t, second.Metadata.CacheTimestamp) {
		assert.Equal(t, stored, *second.Metadata.CacheTimestamp)
	}

	// identical except for the cache markers
	second.Metadata.FromCache = false
	second.Metadata.CacheTimestamp = nil
	assert.Equal(t, first, second)

	// other options are cached apart
	third, err := svc.Recommend(recommend.RecommendRequest{UserID: "student_7", Options: recommend.Options{Limit: 4}})
	require.NoError(t, err)
	assert.False(t, third.Metadata.FromCache)

	clock.Advance(6 * time.Minute)
	fourth, err := svc.Recommend(req)
	require.NoError(t, err)
	assert.False(t, fourth.Metadata.FromCache)
	assert.NotEqual(t, first.Metadata.RequestID, fourth.Metadata.RequestID)

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.TotalRequests)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(3), st.CacheMisses)
	assert.Equal(t, 0.25, st.CacheHitRate)
}

type brokenRepo struct {
	recommend.Repository
}

func (brokenRepo) QueryUserInteractions(string) ([]recommend.Interaction, error) {
	return nil, errors.New("boom")
}

func TestService_Recommend_fallback(t *testing.T) {
	svc, _ := setup(t, brokenRepo{Repository: newRepo(t)})

	for i := 0; i < 2; i++ {
		res, err := svc.Recommend(recommend.RecommendRequest{UserID: "student_1"})
		require.NoError(t, err)
		assert.Equal(t, recommend.AlgorithmFallback, res.Metadata.Algorithm)
		assert.False(t, res.Metadata.FromCache, "fallback replies are not cached")
		if assert.Len(t, res.Recommendations, 1) {
			rec := res.Recommendations[0]
			assert.Equal(t, "metodo_pomodoro", rec.ItemID)
			assert.Equal(t, 0.5, rec.Confidence)
			assert.Equal(t, recommend.AlgorithmFallback, rec.Algorithm)
			assert.Equal(t, "Técnica Pomodoro", rec.Title)
		}
	}

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.FallbackResponses)
	assert.Equal(t, int64(2), st.AlgorithmUsage[recommend.AlgorithmFallback])
}

type stubScorer struct {
	name string
	recs []recommend.Recommendation
	err  error
	pnc  bool
}

func (s stubScorer) Name() string { return s.name }

func (s stubScorer) Score(recommend.UserProfile, map[string]bool) ([]recommend.Recommendation, error) {
	if s.pnc {
		panic("scorer exploded")
	}
	return s.recs, s.err
}

func TestService_Recommend_scorerFailure(t *testing.T) {
	good := []recommend.Recommendation{{ItemID: "metodo_mapas_mentales", Confidence: 0.95, Score: 4.75, Algorithm: recommend.AlgorithmContent}}

	tests := []struct {
		name          string
		collaborative stubScorer
		content       stubScorer
		wantAlgorithm string
		wantIDs       []string
	}{
		{
			name:          "collaborative panics",
			collaborative: stubScorer{name: "collaborative", pnc: true},
			content:       stubScorer{name: "content-based", recs: good},
			wantAlgorithm: recommend.AlgorithmContent,
			wantIDs:       []string{"metodo_mapas_mentales"},
		},
		{
			name:          "content fails",
			collaborative: stubScorer{name: "collaborative", recs: good},
			content:       stubScorer{name: "content-based", err: errors.New("boom")},
			wantAlgorithm: recommend.AlgorithmCollaborative,
			wantIDs:       []string{"metodo_mapas_mentales"},
		},
		{
			name:          "both fail",
			collaborative: stubScorer{name: "collaborative", err: errors.New("boom")},
			content:       stubScorer{name: "content-based", pnc: true},
			wantAlgorithm: recommend.AlgorithmHybrid,
			wantIDs:       []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup(t, nil)
			svc.SetScorers(tt.collaborative, tt.content)

			res, err := svc.Recommend(recommend.RecommendRequest{UserID: "student_1"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlgorithm, res.Metadata.Algorithm)
			assert.Equal(t, tt.wantIDs, recIDs(res.Recommendations))
		})
	}
}

func TestService_CategoryRecommendations(t *testing.T) {
	svc, _ := setup(t, nil)
	seedNeighbours(t, svc)
	svc.SetScorers(stubScorer{name: "collaborative"}, stubScorer{name: "content-based", recs: []recommend.Recommendation{
		{ItemID: "curso_algebra", Confidence: 0.9},
		{ItemID: "metodo_pomodoro", Confidence: 0.85},
		{ItemID: "curso_calculo", Confidence: 0.8},
		{ItemID: "curso_redaccion", Confidence: 0.75},
	}})

	res, err := svc.CategoryRecommendations("student_5", " CURSOS ", 2)
	require.NoError(t, err)
	assert.Equal(t, "cursos", res.Category)
	assert.Equal(t, 2, res.Total)
	for _, rec := range res.Recommendations {
		assert.Equal(t, recommend.CategoryCourses, rec.Category)
	}

	res, err = svc.CategoryRecommendations("student_5", "recursos", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, 0, res.Total)

	_, err = svc.CategoryRecommendations("ana", "cursos", 0)
	_, ok := errors.Cause(err).(*core.NotFoundError)
	assert.True(t, ok, "error = %v", err)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _ := setup(t, nil)

	p, err := svc.UpdateProfile("ana", recommend.ProfileUpdate{
		Grades:      map[string]float64{"matematicas": 8, "historia": 6},
		Preferences: &recommend.Preferences{StudyMethod: "grupal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ana", p.UserID)
	assert.Equal(t, 7.0, p.History.AverageGrade)
	assert.Equal(t, "grupal", p.Preferences.StudyMethod)

	synth, err := recommend.SynthesizeProfile("student_9", time.Now())
	require.NoError(t, err)
	p, err = svc.UpdateProfile("student_9", recommend.ProfileUpdate{StudyTime: map[string]float64{"ingles": 4.5}})
	require.NoError(t, err)
	assert.Equal(t, synth.Grades, p.Grades)
	assert.Equal(t, 4.5, p.StudyTime["ingles"])
}

func TestService_RecordInteraction(t *testing.T) {
	repo := newRepo(t)
	svc, clock := setup(t, repo)
	rating := 5

	first, err := svc.RecordInteraction(recommend.NewInteraction{UserID: "student_1", ItemID: "curso_algebra", Type: "view"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, clock.Now(), first.Timestamp)

	clock.Advance(time.Minute)
	second, err := svc.RecordInteraction(recommend.NewInteraction{UserID: "student_1", ItemID: "curso_algebra", Type: "rate", Rating: &rating})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := repo.GetInteraction("student_1", "curso_algebra")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalInteractions)

	// interacted items are not recommended again
	res, err := svc.Recommend(recommend.RecommendRequest{
		UserID:      "student_1",
		UserProfile: mathStudent(),
		Options:     recommend.Options{Algorithm: recommend.AlgorithmContent},
	})
	require.NoError(t, err)
	assert.NotContains(t, recIDs(res.Recommendations), "curso_algebra")
}

type blockingRepo struct {
	recommend.Repository
	entered chan struct{}
	release chan struct{}
}

func (r blockingRepo) CountProfiles() (int, error) {
	r.entered <- struct{}{}
	<-r.release
	return r.Repository.CountProfiles()
}

func TestService_Train(t *testing.T) {
	svc, _ := setup(t, nil)

	res, err := svc.Train(true)
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 2, res.ModelVersion)
	assert.True(t, res.ForceRetrain)

	h, err := svc.Health()
	require.NoError(t, err)
	assert.Equal(t, 2, h.Models[recommend.AlgorithmHybrid].Version)
	assert.NotNil(t, h.Models[recommend.AlgorithmHybrid].LastTrained)

	// concurrent training is refused
	repo := blockingRepo{Repository: newRepo(t), entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ = setup(t, repo)

	done := make(chan error)
	go func() {
		_, err := svc.Train(false)
		done <- err
	}()
	<-repo.entered

	_, err = svc.Train(false)
	cErr, ok := errors.Cause(err).(*core.ConflictError)
	if assert.True(t, ok, "error = %v", err) {
		assert.Equal(t, "TRAINING_IN_PROGRESS", cErr.Code)
	}

	close(repo.release)
	assert.NoError(t, <-done)
}

func TestService_Health(t *testing.T) {
	svc, _ := setup(t, nil)
	seedNeighbours(t, svc)

	h, err := svc.Health()
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 3, h.Profiles)
	assert.Len(t, h.Models, 3)
	assert.Equal(t, "ready", h.Models[recommend.AlgorithmCollaborative].Status)
	assert.Equal(t, 1000, h.Cache.Capacity)
}

func TestService_PurgeExpiredCache(t *testing.T) {
	svc, clock := setup(t, nil)

	_, err := svc.Recommend(recommend.RecommendRequest{UserID: "student_1"})
	require.NoError(t, err)
	assert.Equal(t, 0, svc.PurgeExpiredCache())

	clock.Advance(16 * time.Minute)
	assert.Equal(t, 1, svc.PurgeExpiredCache())

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.CacheSize)
}
