package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// PeriodicJobs schedules both sweepers every interval, first run at client start.
func PeriodicJobs(interval time.Duration) []*river.PeriodicJob {
	opts := &river.PeriodicJobOpts{RunOnStart: true}
	insertOpts := &river.InsertOpts{Queue: MaintenanceQueueName}

	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) { return StaleJobSweepArgs{}, insertOpts },
			opts,
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) { return OrphanVectorSweepArgs{}, insertOpts },
			opts,
		),
	}
}
