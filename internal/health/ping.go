package health

import "context"

// HealthPinger is implemented by components that can answer a fast
// liveness probe.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
