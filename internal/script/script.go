// Package script executes the opaque "calculator code" attached to preset
// procedure steps and returns its numeric result.
package script

// Result holds the outcome of a script evaluation. Float carries the value
// the preset loader dispatches on; Int and Str are provided for completeness
// and are unused by the loader.
type Result struct {
	Float float64
	Int   int32
	Str   string
}

// Executor evaluates a script synchronously. Implementations must be cheap
// enough to call within a single simulation tick.
type Executor interface {
	Execute(code string) (Result, error)
}
