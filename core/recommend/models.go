package recommend

import "time"

// Algorithms
const (
	AlgorithmCollaborative = "collaborative"
	AlgorithmContent       = "content-based"
	AlgorithmHybrid        = "hybrid"
	AlgorithmFallback      = "fallback"
)

// Interaction types known to the portal. Others are accepted and stored as-is.
const (
	InteractionView     = "view"
	InteractionLike     = "like"
	InteractionComplete = "complete"
	InteractionRate     = "rate"
)

type (
	Preferences struct {
		LearningStyle    string   `json:"learningStyle"`
		FavoriteSubjects []string `json:"favoriteSubjects"`
		StudyMethod      string   `json:"studyMethod"`
	}

	History struct {
		AverageGrade float64 `json:"averageGrade"`
		Trend        string  `json:"trend"`
	}

	// UserProfile holds the academic attributes the scorers work on.
	UserProfile struct {
		UserID        string             `json:"userId"`
		Grades        map[string]float64 `json:"grades"`
		StudyTime     map[string]float64 `json:"studyTime"`
		Participation map[string]float64 `json:"participation"`
		Preferences   Preferences        `json:"preferences"`
		History       History            `json:"history"`
		CreatedAt     time.Time          `json:"createdAt"`
		UpdatedAt     time.Time          `json:"updatedAt"`
	}

	// ProfileUpdate defines what information may be provided to modify a UserProfile.
	// Only set fields are merged.
	ProfileUpdate struct {
		Grades        map[string]float64 `json:"grades" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=10"`
		StudyTime     map[string]float64 `json:"studyTime" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
		Participation map[string]float64 `json:"participation" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=10"`
		Preferences   *Preferences       `json:"preferences"`
		History       *History           `json:"history"`
	}

	// Item is a learning resource of the static catalog.
	Item struct {
		ID            string   `json:"id"`
		Category      string   `json:"category"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Difficulty    string   `json:"difficulty"`
		Subjects      []string `json:"subjects,omitempty"`
		Effectiveness float64  `json:"effectiveness,omitempty"`
	}

	// Interaction is the latest event recorded between a user and an item.
	Interaction struct {
		ID        string                 `json:"id"`
		UserID    string                 `json:"userId"`
		ItemID    string                 `json:"itemId"`
		Type      string                 `json:"interactionType"`
		Rating    *int                   `json:"rating,omitempty"`
		Metadata  map[string]interface{} `json:"metadata,omitempty"`
		Timestamp time.Time              `json:"timestamp"`
	}

	// NewInteraction contains information needed to record an Interaction.
	NewInteraction struct {
		UserID   string                 `json:"userId" validate:"required"`
		ItemID   string                 `json:"itemId" validate:"required"`
		Type     string                 `json:"interactionType" validate:"required"`
		Rating   *int                   `json:"rating" validate:"omitempty,min=1,max=5"`
		Metadata map[string]interface{} `json:"metadata"`
	}

	// Recommendation is a scored item. Confidence is an ad-hoc score in [0,1], not a probability.
	Recommendation struct {
		ItemID      string  `json:"itemId"`
		Confidence  float64 `json:"confidence"`
		Score       float64 `json:"score"`
		Reason      string  `json:"reason"`
		Algorithm   string  `json:"algorithm"`
		Title       string  `json:"title,omitempty"`
		Description string  `json:"description,omitempty"`
		Category    string  `json:"category,omitempty"`
		Difficulty  string  `json:"difficulty,omitempty"`
	}

	// Options tune a recommendation request. Zero values mean defaults.
	Options struct {
		Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1"`
		Algorithm string `json:"algorithm,omitempty" validate:"omitempty,oneof=hybrid collaborative content-based"`
		Category  string `json:"category,omitempty"`
	}

	// RecommendRequest is the input of Service.Recommend.
	RecommendRequest struct {
		UserID      string         `json:"userId" validate:"required,alphanum_"`
		UserProfile *ProfileUpdate `json:"userProfile"`
		Options     Options        `json:"options"`
	}

	Metadata struct {
		Algorithm       string     `json:"algorithm"`
		RequestID       string     `json:"requestId"`
		TotalCandidates int        `json:"totalCandidates"`
		ProcessingTime  int64      `json:"processingTime"` // ms
		ModelVersion    int        `json:"modelVersion"`
		GeneratedAt     time.Time  `json:"generatedAt"`
		FromCache       bool       `json:"fromCache"`
		CacheTimestamp  *time.Time `json:"cacheTimestamp,omitempty"`
	}

	Analytics struct {
		AverageConfidence  float64        `json:"averageConfidence"`
		Categories         map[string]int `json:"categories"`
		AlgorithmBreakdown map[string]int `json:"algorithmBreakdown"`
	}

	// Result is the reply to a recommendation request.
	Result struct {
		UserID          string           `json:"userId"`
		Recommendations []Recommendation `json:"recommendations"`
		Metadata        Metadata         `json:"metadata"`
		Analytics       Analytics        `json:"analytics"`
	}

	// CategoryResult is the reply to a category-filtered recommendation request.
	CategoryResult struct {
		UserID          string           `json:"userId"`
		Category        string           `json:"category"`
		Recommendations []Recommendation `json:"recommendations"`
		Total           int              `json:"total"`
		Timestamp       time.Time        `json:"timestamp"`
	}
)

func (o Options) withDefaults(conf *Config) Options {
	if o.Limit <= 0 {
		o.Limit = conf.DefaultLimit
	}
	if o.Limit > conf.MaxLimit {
		o.Limit = conf.MaxLimit
	}
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmHybrid
	}
	return o
}

func (o Options) collaborativeEnabled() bool {
	return o.Algorithm == AlgorithmHybrid || o.Algorithm == AlgorithmCollaborative
}

func (o Options) contentEnabled() bool {
	return o.Algorithm == AlgorithmHybrid || o.Algorithm == AlgorithmContent
}

// InteractionKey is the storage key of the latest interaction between a user and an item.
func InteractionKey(userID, itemID string) string {
	return userID + "_" + itemID
}
