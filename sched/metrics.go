package sched

// Metrics is the per-partition-pipeline summary collected once a task's
// Chain reaches ExecuteDone (spec.md §4.5: "Ready(None) ... collect+send
// metrics"). Grounded on the teacher's own query profiling shape
// (tenant/tnproto's exec-stats payload), trimmed to the counters
// poll_execute can actually observe from inside the scheduler.
type Metrics struct {
	RowsProduced  int64
	BatchesPulled int64
	Suspensions   int // number of times poll_execute returned Pending
	Errors        int
}

// Merge folds other into m, for a QueryHandle summing metrics across all
// of a query's partitions.
func (m *Metrics) Merge(other Metrics) {
	m.RowsProduced += other.RowsProduced
	m.BatchesPulled += other.BatchesPulled
	m.Suspensions += other.Suspensions
	m.Errors += other.Errors
}
