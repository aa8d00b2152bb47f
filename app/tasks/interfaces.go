package tasks

// TaskSchedulerInterface defines the interface for task scheduling
// operations: queue management and worker pool lifecycle. The API layer
// uses it to enqueue forced syncs without seeing the scheduler internals.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
