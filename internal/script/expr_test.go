package script

import (
	"testing"

	"github.com/aguther/aircraft/internal/simvar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() (*ExprExecutor, *simvar.MemoryStore) {
	vars := simvar.NewMemoryStore()
	return NewExprExecutor(vars), vars
}

func TestExecuteReadsVariables(t *testing.T) {
	e, vars := newTestExecutor()
	vars.SetFloat("ELEC_BAT_1", 1)

	result, err := e.Execute(`lvar("ELEC_BAT_1")`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Float)
}

func TestExecuteWritesVariables(t *testing.T) {
	e, vars := newTestExecutor()

	result, err := e.Execute(`setLvar("ELEC_BAT_1", 1)`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Float)
	assert.Equal(t, float64(1), vars.Float("ELEC_BAT_1"))
}

func TestExecuteSimvarAliases(t *testing.T) {
	e, vars := newTestExecutor()

	_, err := e.Execute(`setSimvar("LIGHT BEACON", 1)`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), vars.Float("LIGHT BEACON"))

	result, err := e.Execute(`simvar("LIGHT BEACON")`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Float)
}

func TestExecuteArrayYieldsLastElement(t *testing.T) {
	e, vars := newTestExecutor()

	result, err := e.Execute(`[setLvar("A", 1), setLvar("B", 2)]`)
	require.NoError(t, err)

	assert.Equal(t, float64(1), vars.Float("A"))
	assert.Equal(t, float64(2), vars.Float("B"))
	assert.Equal(t, float64(2), result.Float)
}

func TestExecuteBooleanExpression(t *testing.T) {
	e, vars := newTestExecutor()
	vars.SetFloat("APU_MASTER", 1)
	vars.SetFloat("APU_AVAIL", 0)

	result, err := e.Execute(`lvar("APU_MASTER") == 1 && lvar("APU_AVAIL") == 1`)
	require.NoError(t, err)
	assert.Equal(t, float64(0), result.Float)

	vars.SetFloat("APU_AVAIL", 1)
	result, err = e.Execute(`lvar("APU_MASTER") == 1 && lvar("APU_AVAIL") == 1`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Float)
}

func TestExecuteArithmetic(t *testing.T) {
	e, vars := newTestExecutor()
	vars.SetFloat("FUEL_LEFT", 500)
	vars.SetFloat("FUEL_RIGHT", 700)

	result, err := e.Execute(`lvar("FUEL_LEFT") + lvar("FUEL_RIGHT")`)
	require.NoError(t, err)
	assert.Equal(t, float64(1200), result.Float)
}

func TestExecuteInvalidCode(t *testing.T) {
	e, _ := newTestExecutor()

	_, err := e.Execute(`lvar(`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling script")
}

func TestProgramCacheReuse(t *testing.T) {
	e, vars := newTestExecutor()
	vars.SetFloat("N", 1)

	_, err := e.Execute(`lvar("N") + 1`)
	require.NoError(t, err)
	assert.Len(t, e.programs, 1)

	// same code compiles once, still sees fresh variable values
	vars.SetFloat("N", 10)
	result, err := e.Execute(`lvar("N") + 1`)
	require.NoError(t, err)
	assert.Len(t, e.programs, 1)
	assert.Equal(t, float64(11), result.Float)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Result
	}{
		{"true", true, Result{Float: 1, Int: 1}},
		{"false", false, Result{}},
		{"int", 7, Result{Float: 7, Int: 7}},
		{"int64", int64(9), Result{Float: 9, Int: 9}},
		{"float64", 2.5, Result{Float: 2.5, Int: 2}},
		{"numeric string", "3.5", Result{Float: 3.5, Int: 3, Str: "3.5"}},
		{"plain string", "on", Result{Str: "on"}},
		{"nil", nil, Result{}},
		{"empty array", []any{}, Result{}},
		{"array last element", []any{1.0, 2.0, 3.0}, Result{Float: 3, Int: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerce(tt.input))
		})
	}
}
