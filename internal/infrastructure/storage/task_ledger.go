package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

// TaskState is the ledger state of a planned production task.
type TaskState string

const (
	TaskStatePlanned  TaskState = "planned"
	TaskStateRunning  TaskState = "running"
	TaskStateProduced TaskState = "produced"
	TaskStateFailed   TaskState = "failed"
)

// TaskRecord is the GORM model for a planned task.
type TaskRecord struct {
	ID          string     `gorm:"primaryKey;column:id;type:varchar(128)"`
	AccountID   string     `gorm:"column:account_id;index:idx_task_account_day,priority:1;not null"`
	ContentType string     `gorm:"column:content_type;not null"`
	Day         string     `gorm:"column:day;index:idx_task_account_day,priority:2;not null"`
	Priority    float64    `gorm:"column:priority"`
	State       TaskState  `gorm:"column:state;index:idx_task_state;not null;default:planned"`
	LastError   string     `gorm:"column:last_error"`
	PlannedAt   time.Time  `gorm:"column:planned_at;not null"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

// TableName returns the GORM table name.
func (TaskRecord) TableName() string { return "production_tasks" }

// TaskLedger records planned tasks so repeated planning of the same day only
// yields tasks not seen before.
type TaskLedger struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ ports.TaskLedger  = (*TaskLedger)(nil)
	_ ports.TaskCounter = (*TaskLedger)(nil)
)

// NewTaskLedger creates a TaskLedger.
func NewTaskLedger(db *gorm.DB) *TaskLedger {
	return &TaskLedger{db: db, now: time.Now}
}

// AutoMigrate creates or updates the production_tasks table.
func (l *TaskLedger) AutoMigrate() error {
	return l.db.AutoMigrate(&TaskRecord{})
}

// Register inserts tasks, ignoring ids already present, and returns the new ones.
func (l *TaskLedger) Register(ctx context.Context, tasks []domain.ProductionTask) ([]domain.ProductionTask, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}

	var fresh []domain.ProductionTask
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&TaskRecord{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("lookup planned tasks: %w", err)
		}
		seen := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			seen[id] = struct{}{}
		}

		now := l.now()
		var records []TaskRecord
		for _, task := range tasks {
			if _, ok := seen[task.ID]; ok {
				continue
			}
			seen[task.ID] = struct{}{}
			fresh = append(fresh, task)
			records = append(records, TaskRecord{
				ID:          task.ID,
				AccountID:   task.AccountID,
				ContentType: string(task.ContentType),
				Day:         task.CreatedAt.Format("20060102"),
				Priority:    task.Priority,
				State:       TaskStatePlanned,
				PlannedAt:   now,
			})
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
			return fmt.Errorf("insert planned tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// MarkRunning moves a planned task to running.
func (l *TaskLedger) MarkRunning(ctx context.Context, taskID string) error {
	now := l.now()
	res := l.db.WithContext(ctx).Model(&TaskRecord{}).
		Where("id = ? AND state = ?", taskID, TaskStatePlanned).
		Updates(map[string]any{"state": TaskStateRunning, "started_at": now})
	if res.Error != nil {
		return fmt.Errorf("mark running: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark running %s: %w", taskID, domain.ErrInvalidTransition)
	}
	return nil
}

// MarkFinished records the outcome of a running task.
func (l *TaskLedger) MarkFinished(ctx context.Context, taskID string, taskErr error) error {
	updates := map[string]any{"state": TaskStateProduced, "finished_at": l.now()}
	if taskErr != nil {
		updates["state"] = TaskStateFailed
		updates["last_error"] = taskErr.Error()
	}
	res := l.db.WithContext(ctx).Model(&TaskRecord{}).
		Where("id = ? AND state = ?", taskID, TaskStateRunning).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark finished: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark finished %s: %w", taskID, domain.ErrInvalidTransition)
	}
	return nil
}

// Get loads a task record.
func (l *TaskLedger) Get(ctx context.Context, taskID string) (*TaskRecord, error) {
	var rec TaskRecord
	err := l.db.WithContext(ctx).First(&rec, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &rec, nil
}

// CountByState summarises a day's tasks keyed by state name.
func (l *TaskLedger) CountByState(ctx context.Context, day string) (map[string]int64, error) {
	type row struct {
		State TaskState
		N     int64
	}
	var rows []row
	err := l.db.WithContext(ctx).Model(&TaskRecord{}).
		Select("state, COUNT(*) AS n").
		Where("day = ?", day).
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[string(r.State)] = r.N
	}
	return out, nil
}
