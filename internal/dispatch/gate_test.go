package dispatch

import (
	"testing"
	"time"
)

func TestGateFresh(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	g := Gate{MaxAge: 24 * time.Hour, Now: func() time.Time { return now }}

	tests := []struct {
		name     string
		occurred time.Time
		want     bool
	}{
		{name: "ten minutes ago", occurred: now.Add(-10 * time.Minute), want: true},
		{name: "exactly at the limit", occurred: now.Add(-24 * time.Hour), want: true},
		{name: "just over the limit", occurred: now.Add(-24*time.Hour - time.Second), want: false},
		{name: "two days old", occurred: now.Add(-48 * time.Hour), want: false},
		{name: "future origin time", occurred: now.Add(time.Hour), want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Fresh(tt.occurred); got != tt.want {
				t.Fatalf("Fresh(%v) = %v, want %v", tt.occurred, got, tt.want)
			}
		})
	}
}

func TestGateZeroMaxAgeDisables(t *testing.T) {
	t.Parallel()
	g := Gate{}
	if !g.Fresh(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("zero MaxAge must accept everything")
	}
}
