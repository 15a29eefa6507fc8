package parser

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentFactory/internal/ports"
	"ContentFactory/internal/scanner"
)

// HTMLTrendScanner crawls trend listing pages and ranks the entries by a viral score.
//
// Expected markup: every entry is an element with class "trend" carrying an
// optional data-platform attribute, a ".trend-title" link, ".trend-views",
// ".trend-likes", ".trend-comments" counters and a ".trend-published" element
// with a datetime attribute.
type HTMLTrendScanner struct {
	client   *http.Client
	pageSize int
}

var _ scanner.Scanner = (*HTMLTrendScanner)(nil)

// NewHTMLTrendScanner wires an HTTP client; pageSize defaults to 50.
func NewHTMLTrendScanner(client *http.Client) *HTMLTrendScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLTrendScanner{client: client, pageSize: 50}
}

// Name identifies the strategy inside the registry.
func (s *HTMLTrendScanner) Name() string {
	return "html"
}

// Scan walks through each category listing and returns signals ordered by score.
func (s *HTMLTrendScanner) Scan(ctx context.Context, req scanner.Request) ([]ports.TrendSignal, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	now := req.Now

	results := make([]ports.TrendSignal, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, s.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := s.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			entries, processed := s.extractEntries(doc, pageURL, cat.Name)
			for _, e := range entries {
				if !req.Accepts(e.signal.Views, e.signal.Platform, e.published) {
					continue
				}
				if _, ok := seen[e.signal.URL]; ok {
					continue
				}
				seen[e.signal.URL] = struct{}{}
				e.signal.Score = viralScore(e.signal.Views, e.likes, e.comments, now.Sub(e.published)) / 10
				results = append(results, e.signal)
			}

			if processed < s.pageSize {
				break
			}
			skip += s.pageSize
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (s *HTMLTrendScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ContentFactory/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trend page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

type trendEntry struct {
	signal    ports.TrendSignal
	likes     int
	comments  int
	published time.Time
}

func (s *HTMLTrendScanner) extractEntries(doc *goquery.Document, pageURL, category string) ([]trendEntry, int) {
	var (
		entries   []trendEntry
		processed int
	)
	base, _ := url.Parse(pageURL)

	doc.Find(".trend").Each(func(_ int, sel *goquery.Selection) {
		processed++
		entry, ok := parseEntry(sel, base, category)
		if ok {
			entries = append(entries, entry)
		}
	})

	return entries, processed
}

func parseEntry(sel *goquery.Selection, base *url.URL, category string) (trendEntry, bool) {
	link := sel.Find(".trend-title").First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return trendEntry{}, false
	}
	if ref, err := url.Parse(href); err == nil && base != nil {
		href = base.ResolveReference(ref).String()
	}

	platform, _ := sel.Attr("data-platform")

	var published time.Time
	if stamp, ok := sel.Find(".trend-published").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, stamp); err == nil {
			published = parsed
		} else if parsed, err := time.Parse("2006-01-02", stamp); err == nil {
			published = parsed
		}
	}

	return trendEntry{
		signal: ports.TrendSignal{
			Title:    title,
			URL:      href,
			Platform: strings.ToLower(strings.TrimSpace(platform)),
			Category: category,
			Views:    parseCount(sel.Find(".trend-views").First().Text()),
		},
		likes:     parseCount(sel.Find(".trend-likes").First().Text()),
		comments:  parseCount(sel.Find(".trend-comments").First().Text()),
		published: published,
	}, true
}

// parseCount understands "12,345", "45K", "1.2M" and trailing words like "views".
func parseCount(text string) int {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return 0
	}
	raw := strings.ReplaceAll(fields[0], ",", "")
	mult := 1.0
	switch {
	case strings.HasSuffix(raw, "K"):
		mult, raw = 1e3, strings.TrimSuffix(raw, "K")
	case strings.HasSuffix(raw, "M"):
		mult, raw = 1e6, strings.TrimSuffix(raw, "M")
	case strings.HasSuffix(raw, "B"):
		mult, raw = 1e9, strings.TrimSuffix(raw, "B")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v * mult))
}

// viralScore rates an entry on a 0..10 scale from engagement, freshness and reach.
func viralScore(views, likes, comments int, age time.Duration) float64 {
	engagement := float64(likes+comments*2) / math.Max(float64(views), 1)
	days := math.Max(0, age.Hours()/24)
	freshness := math.Max(0.1, 1-days/7)
	reach := math.Min(1, float64(views)/100000)

	score := (engagement*3 + freshness*2 + reach*5) * 2
	return math.Round(math.Min(10, score)*100) / 100
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
