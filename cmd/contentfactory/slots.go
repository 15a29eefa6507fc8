package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ContentFactory/internal/app"
	"ContentFactory/internal/domain"
	"ContentFactory/internal/infrastructure/storage"
	"ContentFactory/internal/logging"
	"ContentFactory/internal/optimizer"
)

var (
	slotsPlatform    string
	slotsContentType string
	slotsTimezone    string
	slotsPriority    float64
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show the ranked time slots and the plan for one platform",
	RunE:  runSlots,
}

func init() {
	slotsCmd.Flags().StringVar(&slotsPlatform, "platform", "youtube", "Platform name")
	slotsCmd.Flags().StringVar(&slotsContentType, "content-type", "ai_video", "Content type: ai_video, trend_short, movie_clip")
	slotsCmd.Flags().StringVar(&slotsTimezone, "timezone", "", "Account timezone (default: scheduler timezone)")
	slotsCmd.Flags().Float64Var(&slotsPriority, "priority", 1.0, "Content priority in (0, 1]")
}

func runSlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ct, err := domain.ParseContentType(slotsContentType)
	if err != nil {
		return err
	}
	if slotsTimezone == "" {
		slotsTimezone = cfg.Scheduler.Timezone
	}

	logger := logging.New(cfg.Logging.Level)
	store := storage.NewYAMLScheduleStore(cfg.Storage.SchedulePath, logger)
	opt, err := app.NewOptimizer(context.Background(), cfg, store, logger)
	if err != nil {
		return err
	}

	req := optimizer.Request{
		ContentID:       "preview",
		ContentType:     ct,
		Platform:        slotsPlatform,
		AccountTimezone: slotsTimezone,
		Priority:        slotsPriority,
	}
	ranked, err := opt.RankSlots(req)
	if err != nil {
		return err
	}
	plan, err := opt.Schedule(req)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		return printJSON(map[string]any{"slots": ranked, "plan": plan})
	}

	rows := make([][]string, 0, len(ranked))
	for _, s := range ranked {
		day := "-"
		if s.Slot.Weekday != nil {
			day = s.Slot.Weekday.String()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%02d:%02d", s.Slot.Hour, s.Slot.Minute),
			day,
			strconv.FormatFloat(s.Slot.Priority, 'f', 2, 64),
			strconv.FormatFloat(s.Score, 'f', 3, 64),
			strconv.FormatFloat(s.FinalScore, 'f', 3, 64),
		})
	}
	printTable([]string{"time", "weekday", "priority", "score", "final"}, rows)

	fmt.Printf("\nscheduled %s (confidence %.2f, predicted reach %d)\n",
		plan.ScheduledTime.Format(time.RFC3339), plan.ConfidenceScore, plan.ExpectedPerformance.PredictedReach)
	for i, b := range plan.BackupTimes {
		fmt.Printf("backup %d  %s\n", i+1, b.Format(time.RFC3339))
	}
	return nil
}
