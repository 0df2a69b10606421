// Package loader implements the aircraft preset loading state machine.
//
// A preset is loaded incrementally: each simulation tick advances at most one
// user-visible step so that scripted side effects are spaced out safely
// instead of fired in a burst. All waiting is expressed as state kept between
// ticks and compared against accumulated elapsed time; Update never blocks.
package loader

import (
	"log/slog"
	"math"

	"github.com/aguther/aircraft/internal/procedure"
	"github.com/aguther/aircraft/internal/script"
	"github.com/aguther/aircraft/internal/simvar"
)

// Named host signals owned by this module.
const (
	// RequestVar is the load request signal: 0 means idle/cancel, a positive
	// value names the preset to load.
	RequestVar = "AIRCRAFT_PRESET_LOAD"

	// ProgressVar receives the fractional load progress (0.0-1.0).
	ProgressVar = "AIRCRAFT_PRESET_LOAD_PROGRESS"

	// ProgressIDVar receives the id of the step currently in focus.
	ProgressIDVar = "AIRCRAFT_PRESET_LOAD_CURRENT_ID"

	// VerboseVar toggles extra diagnostic output for step tests and skips.
	VerboseVar = "AIRCRAFT_PRESET_VERBOSE"

	// OnGroundVar is the host's on-ground flag. Presets may only load while
	// the aircraft is on the ground.
	OnGroundVar = "SIM ON GROUND"
)

// zeroTolerance bounds the "approximately zero" comparison applied to script
// results, which are floating-point values coming back from the host.
const zeroTolerance = 1e-8

// Dependencies holds everything the loader needs from its collaborators.
type Dependencies struct {
	Vars       simvar.Store
	Script     script.Executor
	Procedures *procedure.Repository
	Logger     *slog.Logger

	// AircraftReady gates the whole update; while it reports false the
	// loader does nothing.
	AircraftReady func() bool
}

// Loader drives one preset procedure at a time across simulation ticks.
//
// Run state is owned exclusively by the tick goroutine; observers follow
// progress through the ProgressVar/ProgressIDVar signals instead of reading
// loader internals.
type Loader struct {
	deps    Dependencies
	metrics metrics

	initialized bool

	// run state, meaningful only while loadingIsActive
	loadingIsActive    bool
	currentProcedureID int64
	currentProcedure   *procedure.Procedure
	currentStep        int
	currentLoadingTime float64 // ms since run start
	currentDelay       float64 // elapsed-time threshold for the next step
}

// New creates a preset loader. Returns an error only if metric instruments
// cannot be created.
func New(deps Dependencies) (*Loader, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AircraftReady == nil {
		deps.AircraftReady = func() bool { return true }
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Loader{deps: deps, metrics: m}, nil
}

// Name identifies this module to the extension handler.
func (l *Loader) Name() string {
	return "AircraftPresets"
}

// Initialize prepares the loader and clears any stale request signal.
func (l *Loader) Initialize() error {
	l.deps.Vars.SetInt(RequestVar, 0)
	l.initialized = true
	l.deps.Logger.Info("AircraftPresets initialized")
	return nil
}

// Shutdown clears the initialized state. No persisted state is written.
func (l *Loader) Shutdown() error {
	l.initialized = false
	l.deps.Logger.Info("AircraftPresets shutdown")
	return nil
}

// Update performs one tick of progress. dt is the elapsed time since the
// previous tick in seconds.
func (l *Loader) Update(dt float64) error {
	if !l.initialized {
		l.deps.Logger.Error("AircraftPresets update called before initialization")
		return nil
	}
	if !l.deps.AircraftReady() {
		return nil
	}

	request := l.deps.Vars.Int(RequestVar)
	if request <= 0 {
		if l.loadingIsActive {
			// request was reset externally mid-run
			l.deps.Logger.Info("Aircraft preset loading cancelled",
				"preset", l.currentProcedureID)
			l.metrics.runsCancelled.Add(1)
			l.resetRun()
		}
		return nil
	}

	// loading in the air would let users change the aircraft configuration
	// accidentally, so reject any request while airborne
	if !l.deps.Vars.Bool(OnGroundVar) {
		l.deps.Logger.Warn("Aircraft must be on the ground to load a preset",
			"preset", request)
		l.deps.Vars.SetInt(RequestVar, 0)
		if l.loadingIsActive {
			l.metrics.runsAborted.Add(1)
		}
		l.resetRun()
		return nil
	}

	if !l.loadingIsActive {
		return l.startRun(request)
	}

	// only 0 is accepted as an interrupt while a run is active; write the
	// active procedure id back in case the signal was changed mid-run
	l.deps.Vars.SetInt(RequestVar, l.currentProcedureID)

	size := l.currentProcedure.Size()
	if l.currentStep >= size {
		l.deps.Logger.Info("Aircraft preset done", "preset", l.currentProcedureID)
		l.deps.Vars.SetInt(RequestVar, 0)
		l.metrics.runsCompleted.Add(1)
		l.resetRun()
		return nil
	}

	l.currentLoadingTime += dt * 1000

	// still inside the previous step's delay window
	if l.currentLoadingTime <= l.currentDelay {
		return nil
	}

	step := &l.currentProcedure.Steps[l.currentStep]
	l.currentDelay = l.currentLoadingTime + step.DelayAfter

	if step.IsConditional {
		l.checkCondition(step, size)
		return nil
	}
	l.executeAction(step, size)
	return nil
}

// startRun binds the requested procedure and initializes run state. The
// initialization consumes the tick; no step executes until the next one.
func (l *Loader) startRun(request int64) error {
	proc, ok := l.deps.Procedures.Get(request)
	if !ok {
		l.deps.Logger.Warn("Aircraft preset not found", "preset", request)
		l.deps.Vars.SetInt(RequestVar, 0)
		return nil
	}

	l.currentProcedureID = request
	l.currentProcedure = proc
	l.currentStep = 0
	l.currentLoadingTime = 0
	l.currentDelay = 0
	l.loadingIsActive = true
	l.writeProgress(0, 0)
	l.metrics.runsStarted.Add(1)
	l.deps.Logger.Info("Aircraft preset starting procedure",
		"preset", l.currentProcedureID, "name", proc.Name, "steps", proc.Size())
	return nil
}

// checkCondition polls a wait-until-condition step. The step's delay sets the
// polling interval between re-checks; once the predicate holds the next step
// is considered immediately.
func (l *Loader) checkCondition(step *procedure.Step, size int) {
	l.writeProgress(float64(l.currentStep)/float64(size), step.ID)
	result := l.evaluate(step.ActionCode)
	l.deps.Logger.Info("Aircraft preset step condition",
		"step", l.currentStep, "description", step.Description,
		"pollIntervalMs", step.DelayAfter)
	if !almostZero(result.Float) {
		l.currentDelay = 0
		l.currentStep++
	}
}

// executeAction fires an action step, skipping it entirely when its expected
// state already holds: an already-correct state is not punished with a wait.
func (l *Loader) executeAction(step *procedure.Step, size int) {
	verbose := l.deps.Vars.Bool(VerboseVar)

	if step.ExpectedStateCheckCode != "" {
		if verbose {
			l.deps.Logger.Info("Aircraft preset step test",
				"step", l.currentStep, "description", step.Description,
				"test", step.ExpectedStateCheckCode)
		}
		result := l.evaluate(step.ExpectedStateCheckCode)
		if !almostZero(result.Float) {
			if verbose {
				l.deps.Logger.Info("Aircraft preset step skipped",
					"step", l.currentStep, "description", step.Description)
			}
			l.currentDelay = 0
			l.currentStep++
			l.metrics.stepsSkipped.Add(1)
			return
		}
	}

	l.writeProgress(float64(l.currentStep)/float64(size), step.ID)
	l.deps.Logger.Info("Aircraft preset step execute",
		"step", l.currentStep, "description", step.Description,
		"delayAfterMs", step.DelayAfter)
	l.evaluate(step.ActionCode)
	l.currentStep++
	l.metrics.stepsExecuted.Add(1)
}

// evaluate runs a script through the collaborator. Evaluation failures are
// indistinguishable from "condition not yet met": the host offers no error
// channel for calculator code, so a failure surfaces as a zero result.
func (l *Loader) evaluate(code string) script.Result {
	result, err := l.deps.Script.Execute(code)
	if err != nil {
		l.deps.Logger.Debug("Script evaluation failed", "code", code, "error", err)
		return script.Result{}
	}
	return result
}

// resetRun clears run state and zeroes the progress outputs so observers see
// that no run is in flight.
func (l *Loader) resetRun() {
	l.loadingIsActive = false
	l.currentProcedureID = 0
	l.currentProcedure = nil
	l.currentStep = 0
	l.currentLoadingTime = 0
	l.currentDelay = 0
	l.writeProgress(0, 0)
}

func (l *Loader) writeProgress(fraction float64, stepID int64) {
	l.deps.Vars.SetFloat(ProgressVar, fraction)
	l.deps.Vars.SetInt(ProgressIDVar, stepID)
}

// Active reports whether a run is in progress. Tick-context only.
func (l *Loader) Active() bool {
	return l.loadingIsActive
}

// CurrentStep returns the index of the step in focus. Tick-context only.
func (l *Loader) CurrentStep() int {
	return l.currentStep
}

// CurrentPresetID returns the preset being loaded, 0 when idle.
// Tick-context only.
func (l *Loader) CurrentPresetID() int64 {
	return l.currentProcedureID
}

func almostZero(v float64) bool {
	return math.Abs(v) < zeroTolerance
}
