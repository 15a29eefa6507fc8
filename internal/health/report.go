package health

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

var _ ports.ReportWriter = (*FileReportWriter)(nil)

// BuildReport assembles a daily report from the current counters and health.
func BuildReport(stats domain.ProductionStats, sys domain.SystemHealth, reason string, at time.Time) domain.DailyReport {
	date := at.Format("2006-01-02")
	if day, err := time.Parse("20060102", stats.Day); err == nil {
		date = day.Format("2006-01-02")
	}
	return domain.DailyReport{
		Date:        date,
		GeneratedAt: at,
		Reason:      reason,
		Production:  stats,
		Health:      sys,
		SuccessRate: successRate(stats),
	}
}

// FileReportWriter stores reports as daily_report_YYYYMMDD_<reason>.json
// under Dir. Only a second report with the same day and reason overwrites.
type FileReportWriter struct {
	Dir string
}

func (w *FileReportWriter) Write(ctx context.Context, report domain.DailyReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	name := reportFileName(report)
	path := filepath.Join(w.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return path, nil
}

func reportFileName(report domain.DailyReport) string {
	name := "daily_report_" + strings.ReplaceAll(report.Date, "-", "")
	reason := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, report.Reason)
	if reason != "" {
		name += "_" + reason
	}
	return name + ".json"
}

// Digest renders a short text summary for chat notifications.
func Digest(report domain.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Content factory report %s (%s)\n", report.Date, report.Reason)
	fmt.Fprintf(&b, "Created: %d, render failures: %d\n", report.Production.VideosCreatedToday, report.Production.RenderFailures)
	fmt.Fprintf(&b, "Published: %d, failed: %d, success rate: %.1f%%\n",
		report.Production.SuccessfulPublications, report.Production.FailedPublications, report.SuccessRate)
	fmt.Fprintf(&b, "Status: %s, cpu %.1f%%, mem %.1f%%", report.Health.Status, report.Health.CPUPercent, report.Health.MemoryPercent)
	if report.Health.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", report.Health.LastError)
	}
	return b.String()
}
