package questions

import (
	"math"
	"testing"
	"time"
)

func TestInitialProficiency(t *testing.T) {
	if got := InitialProficiency(); got != 0.20 {
		t.Errorf("InitialProficiency() = %f, want 0.20", got)
	}
}

func TestUpdateProficiency(t *testing.T) {
	tests := []struct {
		current float64
		correct bool
		want    float64
	}{
		{0.20, true, 0.35},
		{0.20, false, 0.0},
		{0.50, false, 0.30},
		{0.90, true, 1.0},
		{1.0, true, 1.0},
		{0.0, false, 0.0},
		{0.10, false, 0.0},
	}

	for _, tt := range tests {
		got := UpdateProficiency(tt.current, tt.correct)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("UpdateProficiency(%f, %v) = %f, want %f", tt.current, tt.correct, got, tt.want)
		}
	}
}

func TestUpdateProficiency_Bounds(t *testing.T) {
	for i := 0; i <= 100; i++ {
		current := float64(i) / 100
		for _, outcome := range []bool{true, false} {
			got := UpdateProficiency(current, outcome)
			if got < 0 || got > 1 {
				t.Fatalf("UpdateProficiency(%f, %v) = %f, out of [0,1]", current, outcome, got)
			}
		}
	}

	// Repeated hits from 0 climb monotonically and stop at 1.
	score := 0.0
	for i := 0; i < 20; i++ {
		next := UpdateProficiency(score, true)
		if next < score {
			t.Fatalf("step %d: score decreased from %f to %f", i, score, next)
		}
		if next > 1 {
			t.Fatalf("step %d: score %f exceeds 1", i, next)
		}
		score = next
	}
	if score != 1 {
		t.Errorf("after 20 correct answers score = %f, want 1", score)
	}

	// Repeated misses from 1 fall monotonically and stop at 0.
	score = 1.0
	for i := 0; i < 20; i++ {
		next := UpdateProficiency(score, false)
		if next > score {
			t.Fatalf("step %d: score increased from %f to %f", i, score, next)
		}
		if next < 0 {
			t.Fatalf("step %d: score %f below 0", i, next)
		}
		score = next
	}
	if score != 0 {
		t.Errorf("after 20 incorrect answers score = %f, want 0", score)
	}
}

func TestIsMastered(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{0.0, false},
		{0.84, false},
		{0.8499, false},
		{0.85, true},
		{0.9, true},
		{1.0, true},
	}

	for _, tt := range tests {
		if got := IsMastered(tt.score); got != tt.want {
			t.Errorf("IsMastered(%f) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestNextDueOffset(t *testing.T) {
	tests := []struct {
		score float64
		want  time.Duration
	}{
		{0.0, 10 * time.Minute},
		{0.20, 10 * time.Minute},
		{0.2499, 10 * time.Minute},
		{0.25, time.Hour},
		{0.39, time.Hour},
		{0.40, 4 * time.Hour},
		{0.54, 4 * time.Hour},
		{0.55, 24 * time.Hour},
		{0.69, 24 * time.Hour},
		{0.70, 72 * time.Hour},
		{0.84, 72 * time.Hour},
		{0.85, 168 * time.Hour},
		{1.0, 168 * time.Hour},
	}

	for _, tt := range tests {
		if got := NextDueOffset(tt.score); got != tt.want {
			t.Errorf("NextDueOffset(%f) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestNextDueOffset_Monotone(t *testing.T) {
	prev := NextDueOffset(0)
	for i := 1; i <= 1000; i++ {
		score := float64(i) / 1000
		got := NextDueOffset(score)
		if got < prev {
			t.Fatalf("NextDueOffset(%f) = %v, less than previous %v", score, got, prev)
		}
		prev = got
	}
}

func TestProficiencyScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	score := InitialProficiency()

	score = UpdateProficiency(score, true)
	if math.Abs(score-0.35) > 1e-9 {
		t.Fatalf("after first correct score = %f, want 0.35", score)
	}
	if got := NextDueAt(score, now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("next due = %v, want %v", got, now.Add(time.Hour))
	}

	score = UpdateProficiency(score, true)
	if math.Abs(score-0.50) > 1e-9 {
		t.Fatalf("after second correct score = %f, want 0.50", score)
	}
	if got := NextDueAt(score, now); !got.Equal(now.Add(4 * time.Hour)) {
		t.Errorf("next due = %v, want %v", got, now.Add(4*time.Hour))
	}

	score = UpdateProficiency(score, false)
	if math.Abs(score-0.30) > 1e-9 {
		t.Fatalf("after incorrect score = %f, want 0.30", score)
	}
	if got := NextDueAt(score, now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("next due = %v, want %v", got, now.Add(time.Hour))
	}
}
