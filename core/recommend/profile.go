package recommend

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/heroesdelapatria/portal/core"
)

// strongGrade is the minimum grade of a subject the student is strong at.
const strongGrade = 8.0

var (
	// Subjects every synthesized profile is graded on.
	Subjects = []string{"matematicas", "espanol", "ciencias", "historia", "ingles"}

	learningStyles = []string{"visual", "auditivo", "kinestesico"}
	studyMethods   = []string{"individual", "grupal", "mixto"}
	trends         = []string{"ascendente", "estable", "descendente"}
)

// numericSuffix extracts the trailing number of a user id ("student_7" -> 7).
func numericSuffix(userID string) (int64, bool) {
	i := len(userID)
	for i > 0 && userID[i-1] >= '0' && userID[i-1] <= '9' {
		i--
	}
	if i == len(userID) {
		return 0, false
	}
	n, err := strconv.ParseInt(userID[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func newProfile(userID string, now time.Time) UserProfile {
	return UserProfile{
		UserID:        userID,
		Grades:        make(map[string]float64),
		StudyTime:     make(map[string]float64),
		Participation: make(map[string]float64),
		Preferences:   Preferences{FavoriteSubjects: []string{}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SynthesizeProfile derives a profile from the numeric suffix of userID.
// The same id always yields the same academic attributes.
func SynthesizeProfile(userID string, now time.Time) (UserProfile, error) {
	n, ok := numericSuffix(userID)
	if !ok {
		return UserProfile{}, ErrProfileNotFound
	}

	rng := rand.New(rand.NewSource(n)) //nolint:gosec // deterministic mock data
	p := newProfile(userID, now)
	for _, subj := range Subjects {
		p.Grades[subj] = round1(6 + rng.Float64()*4)
		p.StudyTime[subj] = round1(1 + rng.Float64()*4)
		p.Participation[subj] = round1(5 + rng.Float64()*5)
	}
	p.Preferences = Preferences{
		LearningStyle:    learningStyles[n%3],
		FavoriteSubjects: strongSubjects(p.Grades),
		StudyMethod:      studyMethods[(n/3)%3],
	}
	p.History = History{
		AverageGrade: averageGrade(p.Grades),
		Trend:        trends[n%3],
	}
	return p, nil
}

// Clone returns a deep copy of the profile.
func (p UserProfile) Clone() UserProfile {
	cp := p
	cp.Grades = cloneScores(p.Grades)
	cp.StudyTime = cloneScores(p.StudyTime)
	cp.Participation = cloneScores(p.Participation)
	cp.Preferences.FavoriteSubjects = append([]string{}, p.Preferences.FavoriteSubjects...)
	return cp
}

// apply merges the set fields of pu into the profile.
func (p *UserProfile) apply(pu ProfileUpdate, now time.Time) {
	if p.Grades == nil {
		p.Grades = make(map[string]float64)
	}
	if p.StudyTime == nil {
		p.StudyTime = make(map[string]float64)
	}
	if p.Participation == nil {
		p.Participation = make(map[string]float64)
	}

	for subj, v := range pu.Grades {
		p.Grades[core.CleanString(subj, true /* lower */)] = v
	}
	for subj, v := range pu.StudyTime {
		p.StudyTime[core.CleanString(subj, true /* lower */)] = v
	}
	for subj, v := range pu.Participation {
		p.Participation[core.CleanString(subj, true /* lower */)] = v
	}

	if prefs := pu.Preferences; prefs != nil {
		if prefs.LearningStyle != "" {
			p.Preferences.LearningStyle = core.CleanString(prefs.LearningStyle)
		}
		if prefs.StudyMethod != "" {
			p.Preferences.StudyMethod = core.CleanString(prefs.StudyMethod)
		}
		if prefs.FavoriteSubjects != nil {
			p.Preferences.FavoriteSubjects = append([]string{}, prefs.FavoriteSubjects...)
		}
	}
	if hist := pu.History; hist != nil {
		if hist.Trend != "" {
			p.History.Trend = core.CleanString(hist.Trend)
		}
		if hist.AverageGrade > 0 {
			p.History.AverageGrade = hist.AverageGrade
		}
	}
	if len(pu.Grades) > 0 {
		p.History.AverageGrade = averageGrade(p.Grades)
	}
	p.UpdatedAt = now
}

// strongSubjects returns the subjects graded >= strongGrade, sorted.
func strongSubjects(grades map[string]float64) []string {
	subjects := make([]string, 0, len(grades))
	for subj, grade := range grades {
		if grade >= strongGrade {
			subjects = append(subjects, subj)
		}
	}
	sort.Strings(subjects)
	return subjects
}

func averageGrade(grades map[string]float64) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += g
	}
	return round2(sum / float64(len(grades)))
}

func cloneScores(m map[string]float64) map[string]float64 {
	cp := make(map[string]float64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
