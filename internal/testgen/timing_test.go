package testgen

import (
	"testing"

	"github.com/abhisek/adaptest/internal/question"
)

func TestTimeLimitMinutes(t *testing.T) {
	qs := []question.Question{
		{ID: "a", Type: question.TypeMultipleChoice, Difficulty: question.Easy},
		{ID: "b", Type: question.TypeMultipleChoice, Difficulty: question.Easy},
		{ID: "c", Type: question.TypeScenarioBased, Difficulty: question.Hard},
	}

	tests := []struct {
		name   string
		qs     []question.Question
		buffer float64
		want   int
	}{
		{"with buffer", qs, 0.1, 11},
		{"without buffer", qs, 0, 10},
		{"empty test is base time", nil, 0, 5},
		{"true-false medium", []question.Question{{Type: question.TypeTrueFalse, Difficulty: question.Medium}}, 0, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeLimitMinutes(tt.qs, tt.buffer); got != tt.want {
				t.Errorf("TimeLimitMinutes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPassingPoints(t *testing.T) {
	tests := []struct {
		total int
		ratio float64
		want  int
	}{
		{15, 0.7, 11},
		{10, 0.7, 7},
		{20, 0.7, 14},
		{0, 0.7, 0},
		{3, 1, 3},
	}
	for _, tt := range tests {
		if got := PassingPoints(tt.total, tt.ratio); got != tt.want {
			t.Errorf("PassingPoints(%d, %v) = %d, want %d", tt.total, tt.ratio, got, tt.want)
		}
	}
}

func TestTypeTimeSecs(t *testing.T) {
	want := map[question.Type]float64{
		question.TypeMultipleChoice: 45,
		question.TypeTrueFalse:      30,
		question.TypeOrdering:       60,
		question.TypeImageBased:     60,
		question.TypeScenarioBased:  105,
	}
	for typ, secs := range want {
		if got := TypeTimeSecs(typ); got != secs {
			t.Errorf("TypeTimeSecs(%s) = %v, want %v", typ, got, secs)
		}
	}
}
