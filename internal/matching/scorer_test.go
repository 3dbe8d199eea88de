package matching

import (
	"reflect"
	"testing"

	"tutorhub/internal/profile"
)

func sampleStudent() *profile.StudentProfile {
	return &profile.StudentProfile{
		UserID:             "student-1",
		Department:         "Mathematics",
		Faculty:            "Science",
		LearningStyle:      "visual",
		SchedulePreference: []string{"mon_morning", "wed_afternoon", "fri_morning"},
	}
}

func sampleTutor() *profile.TutorProfile {
	return &profile.TutorProfile{
		UserID:            "tutor-1",
		Subjects:          []string{"Calculus", "Linear Algebra"},
		Expertise:         []string{"calculus"},
		AverageRating:     4.8,
		CompletedSessions: 120,
		Department:        "Mathematics",
		Faculty:           "Science",
		TeachingStyle:     "interactive demonstrations",
		Availability:      []string{"mon_morning", "wed_afternoon", "fri_morning"},
	}
}

func TestScoreDeterministic(t *testing.T) {
	student, tutor := sampleStudent(), sampleTutor()
	subjects := []string{"calculus", "linear algebra"}
	first := Score(student, tutor, subjects)
	second := Score(student, tutor, subjects)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("score not deterministic: %+v vs %+v", first, second)
	}
}

func TestScoreBounds(t *testing.T) {
	cases := []struct {
		name     string
		student  *profile.StudentProfile
		tutor    *profile.TutorProfile
		subjects []string
	}{
		{"perfect match", sampleStudent(), sampleTutor(), []string{"calculus"}},
		{"empty profiles", &profile.StudentProfile{}, &profile.TutorProfile{}, nil},
		{"rating above five", sampleStudent(), &profile.TutorProfile{AverageRating: 7}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(tc.student, tc.tutor, tc.subjects)
			if res.Total < 0 || res.Total > 100 {
				t.Errorf("total = %d, out of [0,100]", res.Total)
			}
		})
	}
}

func TestScorePerfectMatch(t *testing.T) {
	res := Score(sampleStudent(), sampleTutor(), []string{"calculus", "linear algebra"})
	if res.Breakdown["expertise"] != 35 {
		t.Errorf("expertise = %d, want 35", res.Breakdown["expertise"])
	}
	if res.Breakdown["rating"] != 19 { // 4.8/5*20 = 19.2
		t.Errorf("rating = %d, want 19", res.Breakdown["rating"])
	}
	if res.Breakdown["experience"] != 15 {
		t.Errorf("experience = %d, want 15", res.Breakdown["experience"])
	}
	if res.Breakdown["department"] != 10 {
		t.Errorf("department = %d, want 10", res.Breakdown["department"])
	}
	if res.Breakdown["style"] != 10 {
		t.Errorf("style = %d, want 10", res.Breakdown["style"])
	}
	if res.Breakdown["schedule"] != 6 { // 3 slots * 2
		t.Errorf("schedule = %d, want 6", res.Breakdown["schedule"])
	}
	if res.Total != 95 {
		t.Errorf("total = %d, want 95", res.Total)
	}
	if len(res.Reasons) == 0 {
		t.Error("high score must carry reasons")
	}
}

func TestExperienceTiers(t *testing.T) {
	cases := []struct {
		completed int
		want      int
	}{
		{0, 0}, {3, 3}, {5, 5}, {10, 5}, {20, 8}, {49, 8}, {50, 12}, {99, 12}, {100, 15}, {500, 15},
	}
	for _, tc := range cases {
		tutor := &profile.TutorProfile{CompletedSessions: tc.completed}
		res := Score(&profile.StudentProfile{}, tutor, nil)
		if res.Breakdown["experience"] != tc.want {
			t.Errorf("experience(%d) = %d, want %d", tc.completed, res.Breakdown["experience"], tc.want)
		}
	}
}

func TestExpertiseFallback(t *testing.T) {
	// No subject data on either side: flat default 0.3 * 35.
	res := Score(&profile.StudentProfile{}, &profile.TutorProfile{}, nil)
	if res.Breakdown["expertise"] != 11 { // round(10.5)
		t.Errorf("expertise fallback = %d, want 11", res.Breakdown["expertise"])
	}
}

func TestDepartmentAffinity(t *testing.T) {
	student := &profile.StudentProfile{Department: "Physics", Faculty: "Science"}
	sameDept := &profile.TutorProfile{Department: "Physics", Faculty: "Science"}
	sameFaculty := &profile.TutorProfile{Department: "Chemistry", Faculty: "Science"}
	unrelated := &profile.TutorProfile{Department: "History", Faculty: "Arts"}

	if got := Score(student, sameDept, nil).Breakdown["department"]; got != 10 {
		t.Errorf("same department = %d, want 10", got)
	}
	if got := Score(student, sameFaculty, nil).Breakdown["department"]; got != 5 {
		t.Errorf("same faculty = %d, want 5", got)
	}
	if got := Score(student, unrelated, nil).Breakdown["department"]; got != 0 {
		t.Errorf("unrelated = %d, want 0", got)
	}
}

func TestStyleCompatibility(t *testing.T) {
	visual := &profile.StudentProfile{LearningStyle: "visual"}
	if got := Score(visual, &profile.TutorProfile{TeachingStyle: "visual diagrams"}, nil).Breakdown["style"]; got != 10 {
		t.Errorf("match = %d, want 10", got)
	}
	if got := Score(visual, &profile.TutorProfile{TeachingStyle: "pure lecture"}, nil).Breakdown["style"]; got != 3 {
		t.Errorf("mismatch = %d, want 3", got)
	}
	if got := Score(visual, &profile.TutorProfile{}, nil).Breakdown["style"]; got != 5 {
		t.Errorf("no data = %d, want 5", got)
	}
	if got := Score(&profile.StudentProfile{}, &profile.TutorProfile{TeachingStyle: "lecture"}, nil).Breakdown["style"]; got != 5 {
		t.Errorf("no learning style = %d, want 5", got)
	}
}

func TestScheduleOverlap(t *testing.T) {
	student := &profile.StudentProfile{SchedulePreference: []string{"a", "b", "c", "d", "e", "f"}}
	tutor := &profile.TutorProfile{Availability: []string{"a", "b", "c", "d", "e", "f"}}
	if got := Score(student, tutor, nil).Breakdown["schedule"]; got != 10 {
		t.Errorf("six shared slots = %d, want capped 10", got)
	}
	none := &profile.TutorProfile{Availability: []string{"z"}}
	if got := Score(student, none, nil).Breakdown["schedule"]; got != 0 {
		t.Errorf("no shared slots = %d, want 0", got)
	}
	if got := Score(student, &profile.TutorProfile{}, nil).Breakdown["schedule"]; got != 5 {
		t.Errorf("missing data = %d, want neutral 5", got)
	}
}

// TestGenericReasonFallback checks a non-trivial score never comes back with
// an empty explanation list.
func TestGenericReasonFallback(t *testing.T) {
	student := &profile.StudentProfile{}
	tutor := &profile.TutorProfile{AverageRating: 4.0, CompletedSessions: 30}
	res := Score(student, tutor, nil)
	// expertise 11 + rating 16 + experience 8 + style 5 + schedule 5 = 45
	if res.Total <= 30 {
		t.Fatalf("setup error: total = %d, want > 30", res.Total)
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != "Tutor is available for your request" {
		t.Errorf("reasons = %v, want the generic fallback", res.Reasons)
	}
}
