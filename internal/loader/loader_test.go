package loader

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/aguther/aircraft/internal/procedure"
	"github.com/aguther/aircraft/internal/script"
	"github.com/aguther/aircraft/internal/simvar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScript records every evaluated code string and replays configured
// results. A code mapped to multiple values yields them in order, sticking
// on the last one.
type stubScript struct {
	executed []string
	results  map[string][]float64
	errs     map[string]error
}

func (s *stubScript) Execute(code string) (script.Result, error) {
	s.executed = append(s.executed, code)
	if err := s.errs[code]; err != nil {
		return script.Result{}, err
	}
	if rs, ok := s.results[code]; ok && len(rs) > 0 {
		v := rs[0]
		if len(rs) > 1 {
			s.results[code] = rs[1:]
		}
		return script.Result{Float: v}, nil
	}
	return script.Result{}, nil
}

func (s *stubScript) countOf(code string) int {
	n := 0
	for _, c := range s.executed {
		if c == code {
			n++
		}
	}
	return n
}

func newTestLoader(t *testing.T, procs ...*procedure.Procedure) (*Loader, *simvar.MemoryStore, *stubScript) {
	t.Helper()

	repo := procedure.NewRepository()
	for _, p := range procs {
		require.NoError(t, repo.Register(p))
	}

	vars := simvar.NewMemoryStore()
	vars.SetBool(OnGroundVar, true)

	stub := &stubScript{
		results: map[string][]float64{},
		errs:    map[string]error{},
	}

	l, err := New(Dependencies{
		Vars:       vars,
		Script:     stub,
		Procedures: repo,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, l.Initialize())

	return l, vars, stub
}

func threeStepProcedure() *procedure.Procedure {
	return &procedure.Procedure{
		ID:   1,
		Name: "Cold and Dark",
		Steps: []procedure.Step{
			{ID: 10, Description: "battery on", ActionCode: "act1", DelayAfter: 100},
			{ID: 20, Description: "ext power on", ActionCode: "act2", DelayAfter: 200},
			{ID: 30, Description: "beacon on", ActionCode: "act3", DelayAfter: 0},
		},
	}
}

// tick advances the loader by 50ms of simulated frame time.
func tick(l *Loader) {
	l.Update(0.05)
}

func TestFullRunExecutesStepsInOrder(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 1)

	// first tick only binds the procedure
	tick(l)
	assert.True(t, l.Active())
	assert.Empty(t, stub.executed)

	// delays 100/200/0ms at 50ms ticks: steps fire on ticks 2, 5 and 10,
	// completion lands on tick 11
	for i := 0; i < 10; i++ {
		tick(l)
	}

	assert.Equal(t, []string{"act1", "act2", "act3"}, stub.executed)
	assert.False(t, l.Active())
	assert.Equal(t, int64(0), vars.Int(RequestVar))
	assert.Equal(t, float64(0), vars.Float(ProgressVar))
	assert.Equal(t, int64(0), vars.Int(ProgressIDVar))
}

func TestStepTimingHonorsDelayWindows(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 1)

	executionTicks := []int{}
	for i := 1; i <= 11; i++ {
		before := len(stub.executed)
		tick(l)
		if len(stub.executed) > before {
			executionTicks = append(executionTicks, i)
		}
	}

	assert.Equal(t, []int{2, 5, 10}, executionTicks)
	assert.False(t, l.Active())
}

func TestRequestReassertedDuringRun(t *testing.T) {
	l, vars, _ := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 1)
	tick(l)
	tick(l)
	require.True(t, l.Active())

	// a different positive id mid-run is not a new request
	vars.SetInt(RequestVar, 7)
	tick(l)

	assert.Equal(t, int64(1), vars.Int(RequestVar))
	assert.Equal(t, int64(1), l.CurrentPresetID())
}

func TestCancelStopsRunAndZeroesProgress(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 1)
	tick(l)
	tick(l)
	require.True(t, l.Active())
	require.Equal(t, 1, len(stub.executed))

	vars.SetInt(RequestVar, 0)
	tick(l)

	assert.False(t, l.Active())
	assert.Equal(t, float64(0), vars.Float(ProgressVar))
	assert.Equal(t, int64(0), vars.Int(ProgressIDVar))

	// no further work after cancellation
	tick(l)
	assert.Equal(t, 1, len(stub.executed))
}

func TestUnknownPresetClearsRequest(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 99)
	tick(l)

	assert.False(t, l.Active())
	assert.Equal(t, int64(0), vars.Int(RequestVar))
	assert.Empty(t, stub.executed)
}

func TestAirborneRejectsRequest(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	vars.SetBool(OnGroundVar, false)
	vars.SetInt(RequestVar, 1)
	tick(l)
	tick(l)

	assert.False(t, l.Active())
	assert.Equal(t, int64(0), vars.Int(RequestVar))
	assert.Empty(t, stub.executed)
}

func TestBecomingAirborneAbortsRun(t *testing.T) {
	l, vars, _ := newTestLoader(t, threeStepProcedure())

	vars.SetInt(RequestVar, 1)
	tick(l)
	tick(l)
	require.True(t, l.Active())

	vars.SetBool(OnGroundVar, false)
	tick(l)

	assert.False(t, l.Active())
	assert.Equal(t, int64(0), vars.Int(RequestVar))
	assert.Equal(t, float64(0), vars.Float(ProgressVar))
	assert.Equal(t, int64(0), vars.Int(ProgressIDVar))
}

func TestExpectedStateSkipsActionAndDelay(t *testing.T) {
	p := &procedure.Procedure{
		ID:   2,
		Name: "Partial",
		Steps: []procedure.Step{
			{ID: 10, ActionCode: "act1", ExpectedStateCheckCode: "check1", DelayAfter: 5000},
			{ID: 20, ActionCode: "act2", DelayAfter: 0},
		},
	}
	l, vars, stub := newTestLoader(t, p)
	stub.results["check1"] = []float64{1}

	vars.SetInt(RequestVar, 2)
	tick(l) // bind
	tick(l) // step 0 skipped, no 5s wait inherited
	tick(l) // step 1 executes immediately

	assert.NotContains(t, stub.executed, "act1")
	assert.Contains(t, stub.executed, "act2")
}

func TestExpectedStateFalseExecutesAction(t *testing.T) {
	p := &procedure.Procedure{
		ID:   2,
		Name: "Partial",
		Steps: []procedure.Step{
			{ID: 10, ActionCode: "act1", ExpectedStateCheckCode: "check1", DelayAfter: 0},
		},
	}
	l, vars, stub := newTestLoader(t, p)
	stub.results["check1"] = []float64{0}

	vars.SetInt(RequestVar, 2)
	tick(l)
	tick(l)

	assert.Contains(t, stub.executed, "act1")
}

func TestConditionalStepPollsAtInterval(t *testing.T) {
	p := &procedure.Procedure{
		ID:   3,
		Name: "Wait for APU",
		Steps: []procedure.Step{
			{ID: 10, ActionCode: "cond1", IsConditional: true, DelayAfter: 100},
			{ID: 20, ActionCode: "act1", DelayAfter: 0},
		},
	}
	l, vars, stub := newTestLoader(t, p)
	stub.results["cond1"] = []float64{0, 0, 1}

	vars.SetInt(RequestVar, 3)

	// tick 1 binds; tick 2 first poll (false); ticks 3-4 inside the 100ms
	// poll window; tick 5 second poll (false); ticks 6-7 wait; tick 8 third
	// poll succeeds
	for i := 0; i < 8; i++ {
		tick(l)
	}
	assert.Equal(t, 3, stub.countOf("cond1"))

	// condition satisfied, the follow-up action fires on the next tick
	tick(l)
	assert.Contains(t, stub.executed, "act1")
}

func TestConditionalStepPublishesProgressWhilePolling(t *testing.T) {
	p := &procedure.Procedure{
		ID:   3,
		Name: "Wait",
		Steps: []procedure.Step{
			{ID: 42, ActionCode: "cond1", IsConditional: true, DelayAfter: 100},
			{ID: 43, ActionCode: "act1", DelayAfter: 0},
		},
	}
	l, vars, stub := newTestLoader(t, p)
	stub.results["cond1"] = []float64{0}

	vars.SetInt(RequestVar, 3)
	tick(l)
	tick(l)

	assert.Equal(t, int64(42), vars.Int(ProgressIDVar))
	assert.Equal(t, float64(0), vars.Float(ProgressVar))
	assert.True(t, l.Active())
}

func TestScriptErrorTreatedAsConditionNotMet(t *testing.T) {
	p := &procedure.Procedure{
		ID:   4,
		Name: "Broken condition",
		Steps: []procedure.Step{
			{ID: 10, ActionCode: "cond1", IsConditional: true, DelayAfter: 50},
		},
	}
	l, vars, stub := newTestLoader(t, p)
	stub.errs["cond1"] = fmt.Errorf("boom")

	vars.SetInt(RequestVar, 4)
	for i := 0; i < 6; i++ {
		tick(l)
	}

	// evaluation failures keep the run polling rather than completing it
	assert.True(t, l.Active())
	assert.Greater(t, stub.countOf("cond1"), 1)
}

func TestEmptyProcedureCompletesImmediately(t *testing.T) {
	p := &procedure.Procedure{ID: 5, Name: "Empty", Steps: []procedure.Step{}}
	l, vars, _ := newTestLoader(t, p)

	vars.SetInt(RequestVar, 5)
	tick(l) // bind
	require.True(t, l.Active())
	tick(l) // completes, nothing to do

	assert.False(t, l.Active())
	assert.Equal(t, int64(0), vars.Int(RequestVar))
}

func TestUpdateIsNoOpWhenIdle(t *testing.T) {
	l, vars, stub := newTestLoader(t, threeStepProcedure())

	for i := 0; i < 5; i++ {
		tick(l)
	}

	assert.False(t, l.Active())
	assert.Empty(t, stub.executed)
	assert.Equal(t, int64(0), vars.Int(RequestVar))
}

func TestUpdateBeforeInitializeDoesNothing(t *testing.T) {
	repo := procedure.NewRepository()
	require.NoError(t, repo.Register(threeStepProcedure()))
	vars := simvar.NewMemoryStore()
	vars.SetBool(OnGroundVar, true)
	vars.SetInt(RequestVar, 1)

	l, err := New(Dependencies{
		Vars:       vars,
		Script:     &stubScript{},
		Procedures: repo,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	require.NoError(t, l.Update(0.05))
	assert.False(t, l.Active())
	assert.Equal(t, int64(1), vars.Int(RequestVar))
}

func TestNotReadyBlocksUpdate(t *testing.T) {
	repo := procedure.NewRepository()
	require.NoError(t, repo.Register(threeStepProcedure()))
	vars := simvar.NewMemoryStore()
	vars.SetBool(OnGroundVar, true)

	ready := false
	l, err := New(Dependencies{
		Vars:          vars,
		Script:        &stubScript{},
		Procedures:    repo,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		AircraftReady: func() bool { return ready },
	})
	require.NoError(t, err)
	require.NoError(t, l.Initialize())

	vars.SetInt(RequestVar, 1)
	tick(l)
	assert.False(t, l.Active())

	ready = true
	tick(l)
	assert.True(t, l.Active())
}

func TestInitializeResetsStaleRequest(t *testing.T) {
	repo := procedure.NewRepository()
	vars := simvar.NewMemoryStore()
	vars.SetInt(RequestVar, 3)

	l, err := New(Dependencies{
		Vars:       vars,
		Script:     &stubScript{},
		Procedures: repo,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, l.Initialize())

	assert.Equal(t, int64(0), vars.Int(RequestVar))
}

func TestAlmostZero(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{"zero", 0, true},
		{"below tolerance", 1e-9, true},
		{"negative below tolerance", -1e-9, true},
		{"one", 1, false},
		{"small but real", 0.001, false},
		{"negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, almostZero(tt.value))
		})
	}
}
