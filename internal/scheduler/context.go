package scheduler

import "context"

type workloadKey struct{}

// NewContext returns a context carrying w, typically the workload returned by
// Acquire so a backend can reach its loaded model.
func NewContext(ctx context.Context, w Workload) context.Context {
	return context.WithValue(ctx, workloadKey{}, w)
}

// FromContext returns the workload stored by NewContext, if any.
func FromContext(ctx context.Context) (Workload, bool) {
	w, ok := ctx.Value(workloadKey{}).(Workload)
	return w, ok
}
