// Package jobs defines the River job kinds and the shared River wiring for background work.
package jobs

// StaleJobSweepArgs triggers one pass of the stale job sweeper. It carries no payload;
// the cutoff is computed when the job runs.
type StaleJobSweepArgs struct{}

// Kind returns the job type identifier for River
func (StaleJobSweepArgs) Kind() string { return "stale_job_sweep" }

// OrphanVectorSweepArgs triggers one pass of the orphan vector sweeper.
type OrphanVectorSweepArgs struct{}

// Kind returns the job type identifier for River
func (OrphanVectorSweepArgs) Kind() string { return "orphan_vector_sweep" }

// MaintenanceQueueName is the River queue both sweepers run on.
const MaintenanceQueueName = "maintenance"
