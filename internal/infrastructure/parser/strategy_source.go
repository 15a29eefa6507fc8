package parser

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentFactory/internal/config"
	"ContentFactory/internal/ports"
	"ContentFactory/internal/scanner"
)

const maxConcurrentSites = 4

// StrategySource implements TrendSignalProvider via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.TrendSiteConfig
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.TrendSignalProvider = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined trend sites.
func NewStrategySource(reg *scanner.Registry, sites []config.TrendSiteConfig, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.Default()
	}
	return &StrategySource{
		registry: reg,
		sites:    sites,
		now:      time.Now,
		logger:   log,
	}
}

// FindTrends scans the configured sites concurrently and merges the signals
// by score, keeping the best-scored copy of a URL seen on several sites.
// Categories in the query restrict which site categories are scanned. A site
// that fails is logged and skipped; the call fails only when every scanned
// site failed.
func (s *StrategySource) FindTrends(ctx context.Context, q ports.TrendQuery) ([]ports.TrendSignal, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.logger.Debug("find trends", "sites", len(s.sites), "categories", q.Categories)

	var (
		mu       sync.Mutex
		byURL    = map[string]ports.TrendSignal{}
		scanned  int
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSites)
	now := s.now()

	for _, site := range s.sites {
		categories := toScannerCategories(site.Categories, q.Categories)
		if len(categories) == 0 {
			continue
		}
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		scanned++

		req := scanner.Request{
			SiteName:   site.Name,
			Categories: categories,
			Platforms:  q.Platforms,
			MinViews:   q.MinViews,
			MaxAge:     time.Duration(q.MaxAgeDays) * 24 * time.Hour,
			Now:        now,
			Options:    site.Options,
		}

		g.Go(func() error {
			results, err := strategy.Scan(gctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("trend site failed", "site", req.SiteName, "scanner", strategy.Name(), "error", err)
				failures = append(failures, fmt.Errorf("scan site %s: %w", req.SiteName, err))
				return nil
			}
			s.logger.Debug("site produced signals", "site", req.SiteName, "count", len(results))
			for _, sig := range results {
				if prev, ok := byURL[sig.URL]; ok && prev.Score >= sig.Score {
					continue
				}
				byURL[sig.URL] = sig
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanned > 0 && len(failures) == scanned {
		return nil, failures[0]
	}

	aggregated := make([]ports.TrendSignal, 0, len(byURL))
	for _, sig := range byURL {
		aggregated = append(aggregated, sig)
	}
	sort.SliceStable(aggregated, func(i, j int) bool {
		if aggregated[i].Score != aggregated[j].Score {
			return aggregated[i].Score > aggregated[j].Score
		}
		return aggregated[i].URL < aggregated[j].URL
	})
	s.logger.Debug("strategy source done", "total_signals", len(aggregated), "failed_sites", len(failures))
	return aggregated, nil
}

func toScannerCategories(cfg []config.CategoryConfig, only []string) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		if len(only) > 0 && !slices.Contains(only, cat.Name) {
			continue
		}
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}
