package request

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestNew_Defaults(t *testing.T) {
	r, err := New("  Calle Mayor 5 ", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "Calle Mayor 5" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.MaxResults() != DefaultMaxResults {
		t.Errorf("MaxResults() = %d, want %d", r.MaxResults(), DefaultMaxResults)
	}
	if r.MinScore() != DefaultMinScore {
		t.Errorf("MinScore() = %f, want %f", r.MinScore(), DefaultMinScore)
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	r, err := New("Velazquez", 7, f64(0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MaxResults() != 7 {
		t.Errorf("MaxResults() = %d", r.MaxResults())
	}
	if r.MinScore() != 0.5 {
		t.Errorf("MinScore() = %f", r.MinScore())
	}
}

func TestNew_ZeroFloorIsKept(t *testing.T) {
	r, err := New("Velazquez", 0, f64(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.MinScore() != 0 {
		t.Errorf("MinScore() = %f, want 0", r.MinScore())
	}
}

func TestNew_Clamping(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		score     *float64
		wantMax   int
		wantScore float64
	}{
		{"max above cap", 500, nil, MaxResults, DefaultMinScore},
		{"negative max", -3, nil, DefaultMaxResults, DefaultMinScore},
		{"score above one", 1, f64(7), 1, 1},
		{"negative score", 1, f64(-0.2), 1, 0},
		{"nan score", 1, f64(math.NaN()), 1, DefaultMinScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("q", tt.max, tt.score)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.MaxResults() != tt.wantMax {
				t.Errorf("MaxResults() = %d, want %d", r.MaxResults(), tt.wantMax)
			}
			if r.MinScore() != tt.wantScore {
				t.Errorf("MinScore() = %f, want %f", r.MinScore(), tt.wantScore)
			}
		})
	}
}

func TestNew_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := New(q, 0, nil)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("New(%q): expected validation error, got %v", q, err)
		}
	}
}

func TestNew_QueryTooLong(t *testing.T) {
	_, err := New(strings.Repeat("a", MaxQueryLength+1), 0, nil)
	if err == nil {
		t.Fatal("expected error for long query")
	}
	if !strings.Contains(err.Error(), "too long (max 256 bytes)") {
		t.Errorf("unexpected message: %v", err)
	}

	// 128 two-byte runes fill the limit exactly; one more rune exceeds it.
	if _, err := New(strings.Repeat("ñ", MaxQueryLength/2), 0, nil); err != nil {
		t.Errorf("query at the byte limit rejected: %v", err)
	}
	if _, err := New(strings.Repeat("ñ", MaxQueryLength/2+1), 0, nil); err == nil {
		t.Error("expected error for query over the byte limit")
	}
}
