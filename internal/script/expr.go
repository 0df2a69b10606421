package script

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aguther/aircraft/internal/simvar"
)

// ExprExecutor evaluates calculator code as expr-lang expressions against the
// named-variable store. Scripts read and mutate host state through the env
// functions:
//
//	lvar("A32NX_OVHD_ELEC_BAT_1_PB_IS_AUTO")       read named variable
//	setLvar("A32NX_OVHD_ELEC_BAT_1_PB_IS_AUTO", 1) write named variable
//	simvar("LIGHT BEACON")                          read sim variable
//	setSimvar("LIGHT BEACON", 0)                    write sim variable
//
// A step that needs several writes uses an array literal; the last element
// becomes the result:
//
//	[setLvar("A", 1), setLvar("B", 1)]
//
// Compiled programs are cached since procedures re-evaluate the same
// condition code every polling tick.
type ExprExecutor struct {
	vars simvar.Store

	m        sync.Mutex
	programs map[string]*vm.Program
}

// NewExprExecutor creates an executor bound to the given variable store.
func NewExprExecutor(vars simvar.Store) *ExprExecutor {
	return &ExprExecutor{
		vars:     vars,
		programs: make(map[string]*vm.Program),
	}
}

// Execute compiles (or reuses) and runs the given code.
func (e *ExprExecutor) Execute(code string) (Result, error) {
	program, err := e.compile(code)
	if err != nil {
		return Result{}, err
	}
	output, err := expr.Run(program, e.env())
	if err != nil {
		return Result{}, fmt.Errorf("running script %q: %w", code, err)
	}
	return coerce(output), nil
}

func (e *ExprExecutor) compile(code string) (*vm.Program, error) {
	e.m.Lock()
	defer e.m.Unlock()
	if p, ok := e.programs[code]; ok {
		return p, nil
	}
	p, err := expr.Compile(code, expr.Env(e.env()))
	if err != nil {
		return nil, fmt.Errorf("compiling script %q: %w", code, err)
	}
	e.programs[code] = p
	return p, nil
}

func (e *ExprExecutor) env() map[string]any {
	return map[string]any{
		"lvar": func(name string) float64 {
			return e.vars.Float(name)
		},
		"setLvar": func(name string, value float64) float64 {
			e.vars.SetFloat(name, value)
			return value
		},
		"simvar": func(name string) float64 {
			return e.vars.Float(name)
		},
		"setSimvar": func(name string, value float64) float64 {
			e.vars.SetFloat(name, value)
			return value
		},
	}
}

// coerce maps an expr result onto the numeric Result the loader dispatches on.
func coerce(v any) Result {
	switch val := v.(type) {
	case bool:
		if val {
			return Result{Float: 1, Int: 1}
		}
		return Result{}
	case int:
		return Result{Float: float64(val), Int: int32(val)}
	case int64:
		return Result{Float: float64(val), Int: int32(val)}
	case float64:
		return Result{Float: val, Int: int32(val)}
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return Result{Float: f, Int: int32(f), Str: val}
	case []any:
		if len(val) == 0 {
			return Result{}
		}
		return coerce(val[len(val)-1])
	case nil:
		return Result{}
	default:
		return Result{Str: fmt.Sprint(val)}
	}
}
