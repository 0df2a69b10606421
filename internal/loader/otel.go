package loader

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aguther/aircraft/internal/loader"

// counter wraps an OTel counter for call sites inside the tick path, which
// have no context of their own.
type counter struct {
	inner metric.Int64Counter
}

func (c counter) Add(n int64) {
	if c.inner != nil {
		c.inner.Add(context.Background(), n)
	}
}

type metrics struct {
	stepsExecuted counter
	stepsSkipped  counter
	runsStarted   counter
	runsCompleted counter
	runsCancelled counter
	runsAborted   counter
}

// newMetrics creates the loader's instruments on the global OTel meter
// (no-op if no SDK is configured).
func newMetrics() (metrics, error) {
	m := otel.Meter(instrumentationName)
	var out metrics
	var err error

	instruments := []struct {
		dst  *counter
		name string
		desc string
	}{
		{&out.stepsExecuted, "presets.steps.executed", "Procedure steps whose action code was executed"},
		{&out.stepsSkipped, "presets.steps.skipped", "Procedure steps skipped because their expected state already held"},
		{&out.runsStarted, "presets.runs.started", "Preset load runs started"},
		{&out.runsCompleted, "presets.runs.completed", "Preset load runs completed"},
		{&out.runsCancelled, "presets.runs.cancelled", "Preset load runs cancelled by external request"},
		{&out.runsAborted, "presets.runs.aborted", "Preset load runs aborted by precondition violation"},
	}
	for _, inst := range instruments {
		inst.dst.inner, err = m.Int64Counter(inst.name, metric.WithDescription(inst.desc))
		if err != nil {
			return metrics{}, fmt.Errorf("creating counter %s: %w", inst.name, err)
		}
	}
	return out, nil
}
