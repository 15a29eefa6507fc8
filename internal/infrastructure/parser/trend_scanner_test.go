package parser

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"ContentFactory/internal/config"
	"ContentFactory/internal/ports"
	"ContentFactory/internal/scanner"
)

const trendPage = `
<ul>
  <li class="trend" data-platform="youtube">
    <a class="trend-title" href="/v/a">Morning routine of millionaires</a>
    <span class="trend-views">150K views</span>
    <span class="trend-likes">12K</span>
    <span class="trend-comments">1,000</span>
    <time class="trend-published" datetime="2026-10-13T12:00:00Z"></time>
  </li>
  <li class="trend" data-platform="tiktok">
    <a class="trend-title" href="/v/b">Other platform</a>
    <span class="trend-views">20000</span>
    <time class="trend-published" datetime="2026-10-14T08:00:00Z"></time>
  </li>
  <li class="trend" data-platform="youtube">
    <a class="trend-title" href="/v/c">Too small</a>
    <span class="trend-views">5000</span>
  </li>
  <li class="trend" data-platform="youtube">
    <a class="trend-title" href="/v/d">Too old</a>
    <span class="trend-views">900K</span>
    <time class="trend-published" datetime="2026-09-01"></time>
  </li>
  <li class="trend" data-platform="YouTube">
    <a class="trend-title" href="https://cdn.example.org/v/e">Five facts</a>
    <span class="trend-views">50000</span>
    <span class="trend-likes">1000</span>
    <time class="trend-published" datetime="2026-10-14T00:00:00Z"></time>
  </li>
</ul>`

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://trends.example.org/list?category=facts", 100, 50)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	q := parsed.Query()
	if q.Get("category") != "facts" {
		t.Fatalf("existing query lost: %s", parsed.RawQuery)
	}
	if q.Get("skip") != "100" || q.Get("show") != "50" {
		t.Fatalf("unexpected paging: %s", parsed.RawQuery)
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"150K views": 150000,
		"1.2M":       1200000,
		"12,345":     12345,
		"":           0,
		"n/a":        0,
	}
	for in, want := range cases {
		if got := parseCount(in); got != want {
			t.Fatalf("parseCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestViralScore(t *testing.T) {
	t.Parallel()

	if got := viralScore(150000, 12000, 1000, 24*time.Hour); got != 10 {
		t.Fatalf("capped score = %v, want 10", got)
	}
	if got := viralScore(50000, 1000, 0, 12*time.Hour); math.Abs(got-8.83) > 1e-9 {
		t.Fatalf("score = %v, want 8.83", got)
	}
}

func TestHTMLTrendScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(trendPage))
	}))
	defer server.Close()

	sc := NewHTMLTrendScanner(server.Client())
	sc.pageSize = 10

	req := scanner.Request{
		SiteName:   "trends",
		Categories: []scanner.Category{{Name: "motivation", URL: server.URL + "/list"}},
		Platforms:  []string{"youtube"},
		MinViews:   10000,
		MaxAge:     7 * 24 * time.Hour,
		Now:        time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC),
	}

	signals, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d: %+v", len(signals), signals)
	}
	if signals[0].URL != server.URL+"/v/a" || signals[0].Score != 1 {
		t.Fatalf("unexpected top signal: %+v", signals[0])
	}
	if signals[1].URL != "https://cdn.example.org/v/e" || math.Abs(signals[1].Score-0.883) > 1e-9 {
		t.Fatalf("unexpected second signal: %+v", signals[1])
	}
	if signals[0].Category != "motivation" || signals[1].Platform != "youtube" {
		t.Fatalf("metadata not propagated: %+v", signals)
	}
}

func TestHTMLTrendScannerHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sc := NewHTMLTrendScanner(server.Client())
	_, err := sc.Scan(context.Background(), scanner.Request{
		SiteName:   "trends",
		Categories: []scanner.Category{{Name: "facts", URL: server.URL}},
	})
	if err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestStrategySourceFiltersCategories(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		hits []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(trendPage))
	}))
	defer server.Close()

	sc := NewHTMLTrendScanner(server.Client())
	sc.pageSize = 10
	reg := scanner.NewRegistry()
	reg.Register(sc)

	src := NewStrategySource(reg, []config.TrendSiteConfig{{
		Name:    "trends",
		Scanner: "html",
		Categories: []config.CategoryConfig{
			{Name: "motivation", URL: server.URL + "/motivation"},
			{Name: "money", URL: server.URL + "/money"},
		},
	}}, nil)
	src.now = func() time.Time { return time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC) }

	signals, err := src.FindTrends(context.Background(), ports.TrendQuery{
		Categories: []string{"money"},
		Platforms:  []string{"youtube"},
		MinViews:   10000,
		MaxAgeDays: 7,
	})
	if err != nil {
		t.Fatalf("FindTrends error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 1 || hits[0] != "/money" {
		t.Fatalf("unexpected requests: %v", hits)
	}
	if len(signals) != 2 || signals[0].Category != "money" {
		t.Fatalf("unexpected signals: %+v", signals)
	}
}

func TestStrategySourceUnknownScanner(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), []config.TrendSiteConfig{{
		Name:       "x",
		Scanner:    "json",
		Categories: []config.CategoryConfig{{Name: "facts", URL: "http://localhost"}},
	}}, nil)
	if _, err := src.FindTrends(context.Background(), ports.TrendQuery{}); err == nil {
		t.Fatalf("expected error for unregistered scanner")
	}
}

func TestStrategySourceSkipsFailedSiteAndDedupes(t *testing.T) {
	t.Parallel()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(trendPage))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	sc := NewHTMLTrendScanner(http.DefaultClient)
	sc.pageSize = 10
	reg := scanner.NewRegistry()
	reg.Register(sc)

	site := func(name, base string) config.TrendSiteConfig {
		return config.TrendSiteConfig{
			Name:       name,
			Scanner:    "html",
			Categories: []config.CategoryConfig{{Name: "facts", URL: base + "/facts"}},
		}
	}
	src := NewStrategySource(reg, []config.TrendSiteConfig{
		site("primary", good.URL),
		site("mirror", good.URL),
		site("broken", bad.URL),
	}, nil)
	src.now = func() time.Time { return time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC) }

	signals, err := src.FindTrends(context.Background(), ports.TrendQuery{
		Platforms:  []string{"youtube"},
		MinViews:   10000,
		MaxAgeDays: 7,
	})
	if err != nil {
		t.Fatalf("FindTrends error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 deduplicated signals, got %d: %+v", len(signals), signals)
	}
	if signals[0].Score < signals[1].Score {
		t.Fatalf("signals not ordered by score: %+v", signals)
	}
}

func TestStrategySourceAllSitesFailed(t *testing.T) {
	t.Parallel()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewHTMLTrendScanner(bad.Client()))
	src := NewStrategySource(reg, []config.TrendSiteConfig{{
		Name:       "broken",
		Scanner:    "html",
		Categories: []config.CategoryConfig{{Name: "facts", URL: bad.URL}},
	}}, nil)

	if _, err := src.FindTrends(context.Background(), ports.TrendQuery{}); err == nil {
		t.Fatalf("expected error when every site fails")
	}
}
