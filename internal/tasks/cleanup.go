// Package tasks — фоновые задачи процесса по расписанию.
package tasks

import (
	"context"

	"github.com/robfig/cron/v3"

	"teleicu/internal/logs"
)

// Очистка осиротевших пресетов — каждую полночь.
const presetCleanupSpec = "0 0 * * *"

// PresetJanitor удаляет пресеты, чья камера или локация уже удалена.
type PresetJanitor interface {
	CleanupOrphaned(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// SchedulePresetCleanup регистрирует суточную очистку пресетов.
func (s *Scheduler) SchedulePresetCleanup(janitor PresetJanitor) error {
	_, err := s.cron.AddFunc(presetCleanupSpec, func() {
		RunPresetCleanup(context.Background(), janitor)
	})
	return err
}

// RunPresetCleanup — один прогон очистки; вызывается и планировщиком,
// и вручную на старте после миграций.
func RunPresetCleanup(ctx context.Context, janitor PresetJanitor) {
	n, err := janitor.CleanupOrphaned(ctx)
	if err != nil {
		logs.Logger.Errorf("tasks: preset cleanup failed: %v", err)
		return
	}
	if n > 0 {
		logs.Logger.Infof("tasks: removed %d orphaned camera presets", n)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop останавливает планировщик и дожидается активных задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
