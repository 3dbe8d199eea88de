// Package matching computes deterministic student/tutor compatibility
// scores. Scoring is pure: no I/O, no clock, no randomness.
package matching

import (
	"fmt"
	"math"
	"strings"

	"tutorhub/internal/profile"
)

// Component caps. The six components sum to at most 100.
const (
	maxExpertise  = 35.0
	maxRating     = 20.0
	maxExperience = 15.0
	maxDepartment = 10.0
	maxStyle      = 10.0
	maxSchedule   = 10.0

	// Flat expertise fallback when neither side has subject data.
	expertiseDefaultRatio = 0.3

	// Neutral scores when profile data is missing.
	styleNeutral    = 5.0
	styleMismatch   = 3.0
	scheduleNeutral = 5.0
	pointsPerSlot   = 2.0
)

// Result is the outcome of one score computation.
type Result struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
	Reasons   []string       `json:"reasons"`
}

// styleCompatibility maps a student's declared learning style to teaching
// style keywords considered a good fit.
var styleCompatibility = map[string][]string{
	"visual":      {"visual", "demonstration", "diagram", "interactive"},
	"auditory":    {"discussion", "lecture", "verbal", "interactive"},
	"kinesthetic": {"hands-on", "practical", "project", "interactive"},
	"reading":     {"reading", "writing", "structured", "lecture"},
}

// Score computes a 0–100 compatibility score with a per-component breakdown
// and human-readable reasons. Calling it twice with identical inputs yields
// identical results.
func Score(student *profile.StudentProfile, tutor *profile.TutorProfile, requestedSubjects []string) Result {
	var reasons []string

	expertise, ratio := expertiseScore(tutor, requestedSubjects)
	if ratio > 0.7 {
		reasons = append(reasons, fmt.Sprintf("Strong expertise match for %s", strings.Join(requestedSubjects, ", ")))
	}

	rating := 0.0
	if tutor.AverageRating > 0 {
		rating = tutor.AverageRating / 5 * maxRating
		if rating > maxRating {
			rating = maxRating
		}
		if tutor.AverageRating >= 4.5 {
			reasons = append(reasons, fmt.Sprintf("Highly rated (%.1f/5)", tutor.AverageRating))
		}
	}

	experience := experienceScore(tutor.CompletedSessions)
	if tutor.CompletedSessions >= 50 {
		reasons = append(reasons, fmt.Sprintf("Experienced tutor (%d sessions completed)", tutor.CompletedSessions))
	}

	department := departmentScore(student, tutor)
	if department == maxDepartment {
		reasons = append(reasons, "Same department as you")
	}

	style := styleScore(student, tutor)
	if style == maxStyle {
		reasons = append(reasons, "Teaching style fits your learning style")
	}

	schedule, slots := scheduleScore(student, tutor)
	if slots >= 3 {
		reasons = append(reasons, "Good availability overlap with your schedule")
	}

	breakdown := map[string]int{
		"expertise":  round(expertise),
		"rating":     round(rating),
		"experience": round(experience),
		"department": round(department),
		"style":      round(style),
		"schedule":   round(schedule),
	}

	total := round(expertise + rating + experience + department + style + schedule)
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	if total > 30 && len(reasons) == 0 {
		reasons = append(reasons, "Tutor is available for your request")
	}

	return Result{Total: total, Breakdown: breakdown, Reasons: reasons}
}

// expertiseScore returns the component score and the raw match ratio.
func expertiseScore(tutor *profile.TutorProfile, requested []string) (float64, float64) {
	offered := append(append([]string{}, tutor.Expertise...), tutor.Subjects...)
	if len(requested) == 0 || len(offered) == 0 {
		return expertiseDefaultRatio * maxExpertise, 0
	}
	matched := 0
	for _, want := range requested {
		for _, have := range offered {
			if subjectMatch(want, have) {
				matched++
				break
			}
		}
	}
	ratio := float64(matched) / float64(len(requested))
	return ratio * maxExpertise, ratio
}

// subjectMatch accepts exact or substring matches, case-insensitively.
func subjectMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// experienceScore tiers the completed-session count.
func experienceScore(completed int) float64 {
	switch {
	case completed >= 100:
		return maxExperience
	case completed >= 50:
		return 12
	case completed >= 20:
		return 8
	default:
		return math.Min(float64(completed), 5)
	}
}

func departmentScore(student *profile.StudentProfile, tutor *profile.TutorProfile) float64 {
	if student.Department != "" && strings.EqualFold(student.Department, tutor.Department) {
		return maxDepartment
	}
	if student.Faculty != "" && strings.EqualFold(student.Faculty, tutor.Faculty) {
		return 5
	}
	return 0
}

func styleScore(student *profile.StudentProfile, tutor *profile.TutorProfile) float64 {
	learning := strings.ToLower(strings.TrimSpace(student.LearningStyle))
	teaching := strings.ToLower(strings.TrimSpace(tutor.TeachingStyle))
	if learning == "" || teaching == "" {
		return styleNeutral
	}
	keywords, ok := styleCompatibility[learning]
	if !ok {
		return styleNeutral
	}
	for _, kw := range keywords {
		if strings.Contains(teaching, kw) {
			return maxStyle
		}
	}
	return styleMismatch
}

// scheduleScore counts overlapping availability slots at two points each,
// capped, neutral when either side has no schedule data.
func scheduleScore(student *profile.StudentProfile, tutor *profile.TutorProfile) (float64, int) {
	if len(student.SchedulePreference) == 0 || len(tutor.Availability) == 0 {
		return scheduleNeutral, 0
	}
	available := make(map[string]bool, len(tutor.Availability))
	for _, slot := range tutor.Availability {
		available[strings.ToLower(strings.TrimSpace(slot))] = true
	}
	slots := 0
	for _, slot := range student.SchedulePreference {
		if available[strings.ToLower(strings.TrimSpace(slot))] {
			slots++
		}
	}
	score := math.Min(float64(slots)*pointsPerSlot, maxSchedule)
	return score, slots
}

func round(f float64) int {
	return int(math.Round(f))
}
