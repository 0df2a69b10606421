package extension

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aguther/aircraft/internal/dispatcher"
)

type fakeModule struct {
	name    string
	events  *[]string
	initErr error
	updErr  error
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Initialize() error {
	*m.events = append(*m.events, m.name+":init")
	return m.initErr
}

func (m *fakeModule) Update(dt float64) error {
	*m.events = append(*m.events, m.name+":update")
	return m.updErr
}

func (m *fakeModule) Shutdown() error {
	*m.events = append(*m.events, m.name+":shutdown")
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestModuleLifecycleOrder(t *testing.T) {
	var events []string
	h := NewHandler("1.0.0", nil, discardLogger())
	h.RegisterModule(&fakeModule{name: "a", events: &events})
	h.RegisterModule(&fakeModule{name: "b", events: &events})

	require.NoError(t, h.Initialize())
	h.Update(0.016)
	h.Shutdown()

	assert.Equal(t, []string{
		"a:init", "b:init",
		"a:update", "b:update",
		"b:shutdown", "a:shutdown",
	}, events)
}

func TestInitializeStopsOnFirstError(t *testing.T) {
	var events []string
	h := NewHandler("1.0.0", nil, discardLogger())
	h.RegisterModule(&fakeModule{name: "a", events: &events, initErr: errors.New("boom")})
	h.RegisterModule(&fakeModule{name: "b", events: &events})

	err := h.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Equal(t, []string{"a:init"}, events)
}

func TestUpdateBeforeInitializeIsNoOp(t *testing.T) {
	var events []string
	h := NewHandler("1.0.0", nil, discardLogger())
	h.RegisterModule(&fakeModule{name: "a", events: &events})

	h.Update(0.016)

	assert.Empty(t, events)
	assert.Equal(t, uint64(0), h.Ticks())
}

func TestUpdateContinuesPastModuleError(t *testing.T) {
	var events []string
	h := NewHandler("1.0.0", nil, discardLogger())
	h.RegisterModule(&fakeModule{name: "a", events: &events, updErr: errors.New("boom")})
	h.RegisterModule(&fakeModule{name: "b", events: &events})

	require.NoError(t, h.Initialize())
	h.Update(0.016)

	assert.Contains(t, events, "b:update")
	assert.Equal(t, uint64(1), h.Ticks())
}

func TestTicksCountUpdates(t *testing.T) {
	h := NewHandler("1.0.0", nil, discardLogger())
	require.NoError(t, h.Initialize())

	for i := 0; i < 5; i++ {
		h.Update(0.016)
	}
	assert.Equal(t, uint64(5), h.Ticks())
}

func TestVersion(t *testing.T) {
	h := NewHandler("1.2.3", nil, discardLogger())
	assert.Equal(t, "1.2.3", h.Version())
}

func TestCall_Timestamp(t *testing.T) {
	h := NewHandler("1.0.0", nil, discardLogger())

	got := h.Call(":TIMESTAMP:")
	_, err := strconv.ParseInt(got, 10, 64)
	assert.NoError(t, err, "timestamp should be a unix nano integer")
}

func TestCall_NoDispatcher(t *testing.T) {
	h := NewHandler("1.0.0", nil, discardLogger())

	got := h.Call(":UNKNOWN:")
	assert.Equal(t, `["error", ":UNKNOWN:", "no handler registered"]`, got)
}

func newDispatcherWithEcho(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		return strings.Join(e.Args, ","), nil
	})
	d.Register(":FAIL:", func(e dispatcher.Event) (any, error) {
		return nil, errors.New("handler failed")
	})
	return d
}

func TestCall_DispatchesWithArgs(t *testing.T) {
	h := NewHandler("1.0.0", newDispatcherWithEcho(t), discardLogger())

	got := h.Call(":ECHO:", "1", "2")
	assert.Equal(t, `["ok", ":ECHO:", "1,2"]`, got)
}

func TestCall_SplitsInlineArgs(t *testing.T) {
	h := NewHandler("1.0.0", newDispatcherWithEcho(t), discardLogger())

	got := h.Call(":ECHO:|a|b")
	assert.Equal(t, `["ok", ":ECHO:", "a,b"]`, got)
}

func TestCall_HandlerError(t *testing.T) {
	h := NewHandler("1.0.0", newDispatcherWithEcho(t), discardLogger())

	got := h.Call(":FAIL:")
	assert.Equal(t, `["error", ":FAIL:", "handler failed"]`, got)
}

func TestCall_UnknownCommand(t *testing.T) {
	h := NewHandler("1.0.0", newDispatcherWithEcho(t), discardLogger())

	got := h.Call(":NOPE:")
	assert.Equal(t, `["error", ":NOPE:", "no handler registered"]`, got)
}

func TestFormatDispatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		result   any
		err      error
		expected string
	}{
		{
			name:     "success with string",
			command:  ":STATUS:",
			result:   "requested",
			err:      nil,
			expected: `["ok", ":STATUS:", "requested"]`,
		},
		{
			name:     "success with int",
			command:  ":VARS:SAVE:",
			result:   3,
			err:      nil,
			expected: `["ok", ":VARS:SAVE:", "3"]`,
		},
		{
			name:     "success with nil result",
			command:  ":PRESET:CANCEL:",
			result:   nil,
			err:      nil,
			expected: `["ok", ":PRESET:CANCEL:"]`,
		},
		{
			name:     "error response",
			command:  ":PRESET:LOAD:",
			result:   nil,
			err:      errors.New("missing preset id argument"),
			expected: `["error", ":PRESET:LOAD:", "missing preset id argument"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatDispatchResponse(tt.command, tt.result, tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
