package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ContentFactory/internal/planner"
)

var planDate string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the production tasks planned for a day",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "Day to plan, YYYY-MM-DD (default: today)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	loc := cfg.Scheduler.Location()
	day := time.Now().In(loc)
	if planDate != "" {
		day, err = time.ParseInLocation(time.DateOnly, planDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", planDate, err)
		}
	}

	accounts := make([]planner.Account, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		accounts = append(accounts, planner.Account{ID: acc.ID, ContentType: acc.ContentType, DailyQuota: cfg.Quota(acc)})
	}
	tasks, err := planner.Plan(day, accounts)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		ids := make([]string, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
		}
		return printJSON(map[string]any{"date": day.Format(time.DateOnly), "tasks": ids})
	}

	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		hints := task.Spec.RenderHints()
		rows = append(rows, []string{task.ID, task.AccountID, string(task.ContentType), hints.TemplateID})
	}
	printTable([]string{"id", "account", "type", "template"}, rows)
	return nil
}
