package contextkey

import "context"

// key is a private type to avoid context key collisions across packages.
type key string

const (
	Batch     key = "batch"
	TaskIndex key = "task_index"
	Program   key = "program"
)

// WithBatch tags ctx with the name of the batch being executed.
func WithBatch(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, Batch, name)
}

// WithTaskIndex tags ctx with the index of the batch task.
func WithTaskIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, TaskIndex, index)
}

// WithProgram tags ctx with a short program description.
func WithProgram(ctx context.Context, program string) context.Context {
	return context.WithValue(ctx, Program, program)
}
