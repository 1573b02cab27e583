package recommend

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/heroesdelapatria/portal/core"
)

var (
	// errors
	ErrProfileNotFound     = errors.New("user profile not found")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrTrainingInProgress  = errors.New("training already in progress")
)

const (
	fallbackItemID = "metodo_pomodoro"
	fallbackReason = "Recomendación general mientras se procesa tu perfil"
)

type (
	Repository interface {
		GetProfile(userID string) (UserProfile, error)
		SaveProfile(profile UserProfile) (UserProfile, error)
		// QueryProfiles returns up to limit profiles other than exclude, in insertion order.
		QueryProfiles(exclude string, limit int) ([]UserProfile, error)
		CountProfiles() (int, error)
		// SaveInteraction overwrites any previous interaction between the same user and item.
		SaveInteraction(interaction Interaction) (Interaction, error)
		GetInteraction(userID, itemID string) (Interaction, error)
		QueryUserInteractions(userID string) ([]Interaction, error)
		CountInteractions() (int, error)
	}

	// Scorer produces candidate recommendations for a profile.
	// interacted holds the ids of the items the user already interacted with.
	Scorer interface {
		Name() string
		Score(profile UserProfile, interacted map[string]bool) ([]Recommendation, error)
	}

	// Recorder receives pipeline events, eg. to export them as metrics.
	Recorder interface {
		RecommendationServed(algorithm string, fromCache bool, elapsed time.Duration)
		InteractionRecorded(interactionType string)
		ModelTrained(version int)
		CacheSize(n int)
	}

	// ServiceInterface is the set of operations exposed to the outer layers.
	ServiceInterface interface {
		Recommend(req RecommendRequest) (Result, error)
		CategoryRecommendations(userID, category string, limit int) (CategoryResult, error)
		GetProfile(userID string) (UserProfile, error)
		UpdateProfile(userID string, pu ProfileUpdate) (UserProfile, error)
		RecordInteraction(ni NewInteraction) (Interaction, error)
		Train(force bool) (TrainingResult, error)
		Stats() (Stats, error)
		Health() (Health, error)
	}

	// Service is the recommendation engine. It is constructed once per process and is safe for concurrent use.
	Service struct {
		conf     *Config
		repo     Repository
		logger   core.Logger
		recorder Recorder
		now      func() time.Time

		collaborative Scorer
		content       Scorer
		cache         *resultCache

		training      atomic.Bool
		modelVersion  atomic.Int64
		startedAt     time.Time
		requestCount  atomic.Int64
		cacheHits     atomic.Int64
		cacheMisses   atomic.Int64
		fallbackCount atomic.Int64

		statsMu        sync.Mutex
		algorithmUsage map[string]int64
		totalProcTime  int64 // ms, computed requests only
		computedCount  int64
		lastTrainedAt  time.Time
	}

	TrainingResult struct {
		Status           string    `json:"status"`
		ModelVersion     int       `json:"modelVersion"`
		ForceRetrain     bool      `json:"forceRetrain"`
		Models           []string  `json:"models"`
		ProfilesUsed     int       `json:"profilesUsed"`
		InteractionsUsed int       `json:"interactionsUsed"`
		Duration         int64     `json:"duration"` // ms
		TrainedAt        time.Time `json:"trainedAt"`
	}

	Stats struct {
		TotalRequests         int64            `json:"totalRequests"`
		CacheHits             int64            `json:"cacheHits"`
		CacheMisses           int64            `json:"cacheMisses"`
		CacheHitRate          float64          `json:"cacheHitRate"`
		CacheSize             int              `json:"cacheSize"`
		FallbackResponses     int64            `json:"fallbackResponses"`
		ActiveProfiles        int              `json:"activeProfiles"`
		TotalInteractions     int              `json:"totalInteractions"`
		AverageProcessingTime float64          `json:"averageProcessingTime"` // ms
		AlgorithmUsage        map[string]int64 `json:"algorithmUsage"`
		ModelVersion          int              `json:"modelVersion"`
		LastTraining          *time.Time       `json:"lastTraining,omitempty"`
		Uptime                float64          `json:"uptime"` // seconds
		Timestamp             time.Time        `json:"timestamp"`
	}

	ModelStatus struct {
		Status      string     `json:"status"`
		Version     int        `json:"version"`
		LastTrained *time.Time `json:"lastTrained,omitempty"`
	}

	SystemStatus struct {
		GoVersion   string  `json:"goVersion"`
		Goroutines  int     `json:"goroutines"`
		MemoryAlloc float64 `json:"memoryAllocMB"`
		Uptime      float64 `json:"uptime"` // seconds
	}

	Health struct {
		Status    string                 `json:"status"`
		Timestamp time.Time              `json:"timestamp"`
		System    SystemStatus           `json:"system"`
		Models    map[string]ModelStatus `json:"models"`
		Cache     CacheStats             `json:"cache"`
		Profiles  int                    `json:"profiles"`
	}
)

var _ ServiceInterface = (*Service)(nil)

type nopRecorder struct{}

func (nopRecorder) RecommendationServed(string, bool, time.Duration) {}
func (nopRecorder) InteractionRecorded(string)                       {}
func (nopRecorder) ModelTrained(int)                                 {}
func (nopRecorder) CacheSize(int)                                    {}

// NewService creates the recommendation Service. recorder may be nil.
func NewService(conf *Config, repo Repository, logger core.Logger, recorder Recorder) (*Service, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating recommend config")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	svc := &Service{
		conf:           conf,
		repo:           repo,
		logger:         logger,
		recorder:       recorder,
		now:            time.Now,
		algorithmUsage: make(map[string]int64),
	}
	svc.collaborative = &collaborativeScorer{
		repo:       repo,
		conf:       conf,
		similarity: RandomSimilarity(rand.New(rand.NewSource(seed))), //nolint:gosec // mock similarity
	}
	svc.content = &contentScorer{conf: conf, catalog: Catalog}
	svc.cache = newResultCache(conf.CacheCapacity, conf.CacheTTL, svc.clock)
	svc.modelVersion.Store(1)
	svc.startedAt = svc.now()
	return svc, nil
}

// SetClock replaces the time source (mockable).
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// SetSimilarity replaces the collaborative similarity function.
func (svc *Service) SetSimilarity(fn SimilarityFunc) {
	if cs, ok := svc.collaborative.(*collaborativeScorer); ok {
		cs.similarity = fn
	}
}

// SetScorers replaces the scorers. nil keeps the current one.
func (svc *Service) SetScorers(collaborative, content Scorer) {
	if collaborative != nil {
		svc.collaborative = collaborative
	}
	if content != nil {
		svc.content = content
	}
}

func (svc *Service) clock() time.Time { return svc.now() }

// Recommend runs the recommendation pipeline for a user:
// cache -> profile -> scorers -> combine -> filter/rank/truncate -> enrich -> cache.
func (svc *Service) Recommend(req RecommendRequest) (Result, error) {
	start := svc.now()
	svc.requestCount.Add(1)
	req.UserID = core.CleanString(req.UserID)

	key := cacheKey(req.UserID, req.Options)
	if entry, ok := svc.cache.Get(key); ok {
		svc.cacheHits.Add(1)
		res := entry.Data
		ts := entry.Timestamp
		res.Metadata.FromCache = true
		res.Metadata.CacheTimestamp = &ts
		svc.recorder.RecommendationServed(res.Metadata.Algorithm, true, svc.now().Sub(start))
		return res, nil
	}
	svc.cacheMisses.Add(1)

	profile, err := svc.loadProfile(req.UserID, req.UserProfile)
	if err != nil {
		if errors.Cause(err) == ErrProfileNotFound {
			return Result{}, core.NewNotFoundError("USER_PROFILE_NOT_FOUND", err)
		}
		return Result{}, errors.Wrap(err, "loading profile")
	}

	opts := req.Options.withDefaults(svc.conf)
	res, err := svc.compute(profile, opts, start)
	if err != nil {
		svc.logger.Error("recommendation pipeline failed, serving fallback", err, core.Requester{UserID: req.UserID})
		svc.fallbackCount.Add(1)
		res = svc.fallbackResult(req.UserID, start)
	} else {
		svc.cache.Set(key, res)
		svc.recorder.CacheSize(svc.cache.Len())
	}
	svc.track(res.Metadata.Algorithm, res.Metadata.ProcessingTime)
	svc.recorder.RecommendationServed(res.Metadata.Algorithm, false, svc.now().Sub(start))
	return res, nil
}

// CategoryRecommendations returns up to limit recommendations of a single catalog category.
func (svc *Service) CategoryRecommendations(userID, category string, limit int) (CategoryResult, error) {
	category = core.CleanString(category, true /* lower */)
	if limit <= 0 {
		limit = svc.conf.DefaultLimit
	}

	res, err := svc.Recommend(RecommendRequest{
		UserID:  userID,
		Options: Options{Limit: svc.conf.MaxLimit, Category: category},
	})
	if err != nil {
		return CategoryResult{}, err
	}

	recs := inCategory(res.Recommendations, category)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return CategoryResult{
		UserID:          res.UserID,
		Category:        category,
		Recommendations: recs,
		Total:           len(recs),
		Timestamp:       svc.now().UTC(),
	}, nil
}

func (svc *Service) loadProfile(userID string, supplied *ProfileUpdate) (UserProfile, error) {
	now := svc.now().UTC()
	var dirty bool

	profile, err := svc.repo.GetProfile(userID)
	if err != nil {
		if errors.Cause(err) != ErrProfileNotFound {
			return UserProfile{}, errors.Wrap(err, "getting profile")
		}
		profile, err = SynthesizeProfile(userID, now)
		if err != nil {
			if supplied == nil {
				return UserProfile{}, err
			}
			profile = newProfile(userID, now)
		}
		dirty = true
	}
	if supplied != nil {
		profile.apply(*supplied, now)
		dirty = true
	}

	if dirty {
		if profile, err = svc.repo.SaveProfile(profile); err != nil {
			return UserProfile{}, errors.Wrap(err, "saving profile")
		}
	}
	return profile, nil
}

func (svc *Service) compute(profile UserProfile, opts Options, start time.Time) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("recommendation pipeline panic: %v", r)
		}
	}()

	interactions, err := svc.repo.QueryUserInteractions(profile.UserID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying user interactions")
	}
	interacted := make(map[string]bool, len(interactions))
	for _, in := range interactions {
		interacted[in.ItemID] = true
	}

	var collab, content []Recommendation
	if opts.collaborativeEnabled() {
		collab = svc.runScorer(svc.collaborative, profile, interacted)
	}
	if opts.contentEnabled() {
		content = svc.runScorer(svc.content, profile, interacted)
	}

	var (
		candidates []Recommendation
		algorithm  string
	)
	switch {
	case opts.collaborativeEnabled() && opts.contentEnabled() && len(collab) > 0 && len(content) > 0:
		candidates = combine(collab, content, svc.conf)
		algorithm = AlgorithmHybrid
	case len(collab) > 0:
		candidates = collab
		algorithm = AlgorithmCollaborative
	case len(content) > 0:
		candidates = content
		algorithm = AlgorithmContent
	default:
		candidates = []Recommendation{}
		algorithm = opts.Algorithm
	}

	if opts.Category != "" {
		candidates = inCategory(candidates, opts.Category)
	}
	total := len(candidates)
	recs := enrich(rankTop(candidates, svc.conf.ConfidenceThreshold, opts.Limit))

	return Result{
		UserID:          profile.UserID,
		Recommendations: recs,
		Metadata: Metadata{
			Algorithm:       algorithm,
			RequestID:       uuid.New().String(),
			TotalCandidates: total,
			ProcessingTime:  svc.now().Sub(start).Milliseconds(),
			ModelVersion:    int(svc.modelVersion.Load()),
			GeneratedAt:     svc.now().UTC(),
		},
		Analytics: analyze(recs),
	}, nil
}

// runScorer runs a scorer; failures are logged and degrade to no candidates.
func (svc *Service) runScorer(s Scorer, profile UserProfile, interacted map[string]bool) (recs []Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Warn(fmt.Sprintf("%s scorer panicked", s.Name()), errors.Errorf("%v", r), core.Requester{UserID: profile.UserID})
			recs = nil
		}
	}()

	recs, err := s.Score(profile, interacted)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("%s scorer failed", s.Name()), err, core.Requester{UserID: profile.UserID})
		return nil
	}
	return recs
}

func (svc *Service) fallbackResult(userID string, start time.Time) Result {
	recs := enrich([]Recommendation{{
		ItemID:     fallbackItemID,
		Confidence: 0.5,
		Score:      2.5,
		Reason:     fallbackReason,
		Algorithm:  AlgorithmFallback,
	}})
	return Result{
		UserID:          userID,
		Recommendations: recs,
		Metadata: Metadata{
			Algorithm:       AlgorithmFallback,
			RequestID:       uuid.New().String(),
			TotalCandidates: len(recs),
			ProcessingTime:  svc.now().Sub(start).Milliseconds(),
			ModelVersion:    int(svc.modelVersion.Load()),
			GeneratedAt:     svc.now().UTC(),
		},
		Analytics: analyze(recs),
	}
}

func (svc *Service) track(algorithm string, procTime int64) {
	svc.statsMu.Lock()
	defer svc.statsMu.Unlock()
	svc.algorithmUsage[algorithm]++
	svc.totalProcTime += procTime
	svc.computedCount++
}

// UpdateProfile merges pu into the user's profile, synthesizing it first if unknown.
func (svc *Service) UpdateProfile(userID string, pu ProfileUpdate) (UserProfile, error) {
	userID = core.CleanString(userID)
	now := svc.now().UTC()

	profile, err := svc.repo.GetProfile(userID)
	if err != nil {
		if errors.Cause(err) != ErrProfileNotFound {
			return UserProfile{}, errors.Wrap(err, "getting profile")
		}
		if profile, err = SynthesizeProfile(userID, now); err != nil {
			profile = newProfile(userID, now)
		}
	}
	profile.apply(pu, now)

	profile, err = svc.repo.SaveProfile(profile)
	if err != nil {
		return UserProfile{}, errors.Wrap(err, "saving profile")
	}
	return profile, nil
}

// GetProfile returns the stored profile of a user.
func (svc *Service) GetProfile(userID string) (UserProfile, error) {
	return svc.repo.GetProfile(core.CleanString(userID))
}

// RecordInteraction stores ni as the latest interaction between its user and item.
// ni is expected to be validated.
func (svc *Service) RecordInteraction(ni NewInteraction) (Interaction, error) {
	in := Interaction{
		ID:        uuid.New().String(),
		UserID:    ni.UserID,
		ItemID:    ni.ItemID,
		Type:      ni.Type,
		Rating:    ni.Rating,
		Metadata:  ni.Metadata,
		Timestamp: svc.now().UTC(),
	}
	in, err := svc.repo.SaveInteraction(in)
	if err != nil {
		return Interaction{}, errors.Wrap(err, "saving interaction")
	}
	svc.recorder.InteractionRecorded(in.Type)
	return in, nil
}

// Train stands in for model training: it completes immediately and bumps the model version.
func (svc *Service) Train(force bool) (TrainingResult, error) {
	if !svc.training.CompareAndSwap(false, true) {
		return TrainingResult{}, core.NewConflictError("TRAINING_IN_PROGRESS", ErrTrainingInProgress)
	}
	defer svc.training.Store(false)

	start := svc.now()
	profiles, err := svc.repo.CountProfiles()
	if err != nil {
		return TrainingResult{}, errors.Wrap(err, "counting profiles")
	}
	interactions, err := svc.repo.CountInteractions()
	if err != nil {
		return TrainingResult{}, errors.Wrap(err, "counting interactions")
	}

	version := int(svc.modelVersion.Add(1))
	trainedAt := svc.now().UTC()
	svc.statsMu.Lock()
	svc.lastTrainedAt = trainedAt
	svc.statsMu.Unlock()
	svc.recorder.ModelTrained(version)

	return TrainingResult{
		Status:           "completed",
		ModelVersion:     version,
		ForceRetrain:     force,
		Models:           []string{AlgorithmCollaborative, AlgorithmContent, AlgorithmHybrid},
		ProfilesUsed:     profiles,
		InteractionsUsed: interactions,
		Duration:         svc.now().Sub(start).Milliseconds(),
		TrainedAt:        trainedAt,
	}, nil
}

// Stats returns aggregate counters.
func (svc *Service) Stats() (Stats, error) {
	profiles, err := svc.repo.CountProfiles()
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting profiles")
	}
	interactions, err := svc.repo.CountInteractions()
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting interactions")
	}

	st := Stats{
		TotalRequests:     svc.requestCount.Load(),
		CacheHits:         svc.cacheHits.Load(),
		CacheMisses:       svc.cacheMisses.Load(),
		CacheSize:         svc.cache.Len(),
		FallbackResponses: svc.fallbackCount.Load(),
		ActiveProfiles:    profiles,
		TotalInteractions: interactions,
		ModelVersion:      int(svc.modelVersion.Load()),
		Uptime:            svc.now().Sub(svc.startedAt).Seconds(),
		Timestamp:         svc.now().UTC(),
	}
	if total := st.CacheHits + st.CacheMisses; total > 0 {
		st.CacheHitRate = round3(float64(st.CacheHits) / float64(total))
	}

	svc.statsMu.Lock()
	defer svc.statsMu.Unlock()
	st.AlgorithmUsage = make(map[string]int64, len(svc.algorithmUsage))
	for alg, n := range svc.algorithmUsage {
		st.AlgorithmUsage[alg] = n
	}
	if svc.computedCount > 0 {
		st.AverageProcessingTime = round3(float64(svc.totalProcTime) / float64(svc.computedCount))
	}
	if !svc.lastTrainedAt.IsZero() {
		t := svc.lastTrainedAt
		st.LastTraining = &t
	}
	return st, nil
}

// Health reports system, model and cache status.
func (svc *Service) Health() (Health, error) {
	profiles, err := svc.repo.CountProfiles()
	if err != nil {
		return Health{}, errors.Wrap(err, "counting profiles")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	uptime := svc.now().Sub(svc.startedAt).Seconds()

	svc.statsMu.Lock()
	var lastTrained *time.Time
	if !svc.lastTrainedAt.IsZero() {
		t := svc.lastTrainedAt
		lastTrained = &t
	}
	svc.statsMu.Unlock()

	status := "ready"
	if svc.training.Load() {
		status = "training"
	}
	version := int(svc.modelVersion.Load())
	models := make(map[string]ModelStatus, 3)
	for _, name := range []string{AlgorithmCollaborative, AlgorithmContent, AlgorithmHybrid} {
		models[name] = ModelStatus{Status: status, Version: version, LastTrained: lastTrained}
	}

	return Health{
		Status:    "healthy",
		Timestamp: svc.now().UTC(),
		System: SystemStatus{
			GoVersion:   runtime.Version(),
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: round3(float64(mem.Alloc) / (1 << 20)),
			Uptime:      uptime,
		},
		Models:   models,
		Cache:    svc.cache.Stats(),
		Profiles: profiles,
	}, nil
}

// PurgeExpiredCache drops stale cached results and returns how many were dropped.
func (svc *Service) PurgeExpiredCache() int {
	n := svc.cache.PurgeExpired()
	svc.recorder.CacheSize(svc.cache.Len())
	return n
}

// ClearCache drops every cached result.
func (svc *Service) ClearCache() {
	svc.cache.Clear()
	svc.recorder.CacheSize(0)
}
