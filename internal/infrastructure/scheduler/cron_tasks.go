package scheduler

import (
	"context"
	"fmt"

	"github.com/storelink/backend/internal/domain/integration"
)

// Default cron schedules
const (
	DefaultFullSyncSchedule       = "0 3 * * *"
	DefaultOrderIngestionSchedule = "*/30 * * * *"
	DefaultExchangeRateSchedule   = "0 6 * * *"
	DefaultLogRetentionSchedule   = "0 4 * * 0"
)

// RateRefresher refreshes stored exchange rates
type RateRefresher interface {
	Refresh(ctx context.Context) ([]integration.ExchangeRate, error)
}

// CronSchedules holds the expressions of the built-in tasks. An empty
// expression disables the task.
type CronSchedules struct {
	FullSync       string
	OrderIngestion string
	ExchangeRate   string
	LogRetention   string
}

// DefaultCronSchedules returns the default schedules
func DefaultCronSchedules() CronSchedules {
	return CronSchedules{
		FullSync:       DefaultFullSyncSchedule,
		OrderIngestion: DefaultOrderIngestionSchedule,
		ExchangeRate:   DefaultExchangeRateSchedule,
		LogRetention:   DefaultLogRetentionSchedule,
	}
}

// RegisterSyncTasks registers the built-in tasks on runner.
// rates and retention may be nil; order ingestion is skipped when the
// scheduler has no order source.
func RegisterSyncTasks(runner *CronRunner, schedules CronSchedules, s *SyncScheduler, rates RateRefresher, retention *LogRetention) error {
	var tasks []CronTask
	if schedules.FullSync != "" {
		tasks = append(tasks, CronTask{
			Name:     "full_sync",
			Schedule: schedules.FullSync,
			Run: func(ctx context.Context) error {
				_, err := s.TriggerFullSync(ctx, integration.TriggerCron)
				return err
			},
		})
	}
	if schedules.OrderIngestion != "" && s.deps.Orders != nil {
		tasks = append(tasks, CronTask{
			Name:     "order_ingestion",
			Schedule: schedules.OrderIngestion,
			Run: func(ctx context.Context) error {
				_, err := s.TriggerOrderIngestion(ctx, integration.TriggerCron)
				return err
			},
		})
	}
	if schedules.ExchangeRate != "" && rates != nil {
		tasks = append(tasks, CronTask{
			Name:     "exchange_rate",
			Schedule: schedules.ExchangeRate,
			Run: func(ctx context.Context) error {
				_, err := rates.Refresh(ctx)
				return err
			},
		})
	}
	if schedules.LogRetention != "" && retention != nil {
		tasks = append(tasks, CronTask{
			Name:     "log_retention",
			Schedule: schedules.LogRetention,
			Run: func(ctx context.Context) error {
				_, err := retention.Run(ctx)
				return err
			},
		})
	}

	for _, task := range tasks {
		if err := runner.Register(task); err != nil {
			return fmt.Errorf("register %s: %w", task.Name, err)
		}
	}
	return nil
}
