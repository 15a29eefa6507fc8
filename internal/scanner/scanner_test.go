package scanner

import (
	"context"
	"reflect"
	"testing"
	"time"

	"ContentFactory/internal/ports"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]ports.TrendSignal, error) { return nil, nil }

func TestRequestAccepts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)
	req := Request{
		Platforms: []string{"youtube"},
		MinViews:  1000,
		MaxAge:    48 * time.Hour,
		Now:       now,
	}

	cases := []struct {
		name      string
		views     int
		platform  string
		published time.Time
		want      bool
	}{
		{"fresh match", 5000, "youtube", now.Add(-time.Hour), true},
		{"below floor", 999, "youtube", now.Add(-time.Hour), false},
		{"too old", 5000, "youtube", now.Add(-72 * time.Hour), false},
		{"unknown age", 5000, "youtube", time.Time{}, true},
		{"other platform", 5000, "tiktok", now, false},
		{"unknown platform", 5000, "", now, true},
	}
	for _, tc := range cases {
		if got := req.Accepts(tc.views, tc.platform, tc.published); got != tc.want {
			t.Fatalf("%s: Accepts = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("json"))
	reg.Register(namedScanner("html"))

	if got := reg.Names(); !reflect.DeepEqual(got, []string{"html", "json"}) {
		t.Fatalf("Names = %v", got)
	}
	if s, err := reg.Resolve("html"); err != nil || s.Name() != "html" {
		t.Fatalf("Resolve html = %v, %v", s, err)
	}
	if _, err := reg.Resolve("rss"); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}
}
