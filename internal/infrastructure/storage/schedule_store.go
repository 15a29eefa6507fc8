package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

type scheduleFile struct {
	Platforms map[string]domain.PlatformSchedule `yaml:"platforms"`
}

// YAMLScheduleStore keeps platform slot tables in a YAML file.
type YAMLScheduleStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.ScheduleStore = (*YAMLScheduleStore)(nil)

// NewYAMLScheduleStore binds the store to path.
func NewYAMLScheduleStore(path string, logger *slog.Logger) *YAMLScheduleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &YAMLScheduleStore{path: path, logger: logger}
}

// Path returns the backing file.
func (s *YAMLScheduleStore) Path() string { return s.path }

// Load reads the schedules. A missing file yields an empty map and no error.
func (s *YAMLScheduleStore) Load(_ context.Context) (map[string]domain.PlatformSchedule, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]domain.PlatformSchedule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}
	if file.Platforms == nil {
		file.Platforms = map[string]domain.PlatformSchedule{}
	}
	for name, sched := range file.Platforms {
		if sched.Platform == "" {
			sched.Platform = name
			file.Platforms[name] = sched
		}
	}
	return file.Platforms, nil
}

// Save rewrites the file atomically.
func (s *YAMLScheduleStore) Save(_ context.Context, schedules map[string]domain.PlatformSchedule) error {
	data, err := yaml.Marshal(scheduleFile{Platforms: schedules})
	if err != nil {
		return fmt.Errorf("encode schedules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create schedule dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write schedules: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace schedules: %w", err)
	}
	return nil
}

// Watch calls onChange with freshly loaded schedules whenever the file is
// written or replaced. It blocks until ctx is done.
func (s *YAMLScheduleStore) Watch(ctx context.Context, onChange func(map[string]domain.PlatformSchedule)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schedule dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			schedules, err := s.Load(ctx)
			if err != nil {
				s.logger.Warn("schedule reload failed", "path", s.path, "error", err)
				continue
			}
			if len(schedules) == 0 {
				continue
			}
			s.logger.Info("schedules reloaded", "path", s.path, "platforms", len(schedules))
			onChange(schedules)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("schedule watcher error", "error", werr)
		}
	}
}
