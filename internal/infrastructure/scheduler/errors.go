package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to trigger a job on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidSchedule is returned for a cron expression that cannot be parsed
	ErrInvalidSchedule = errors.New("invalid cron schedule")

	// ErrTaskAlreadyRegistered is returned when two cron tasks share a name
	ErrTaskAlreadyRegistered = errors.New("cron task already registered")

	// ErrCronAlreadyStarted is returned when registering after Start
	ErrCronAlreadyStarted = errors.New("cron runner already started")
)
