package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden(t *testing.T) {
	for _, name := range []string{"resolve_paths", "get_set", "follow_pointer"} {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass)
		})
	}
}

func TestSnapshot_OmitsZeroFields(t *testing.T) {
	s := &Scenario{Name: "snap", SessionID: "sess-1"}
	result := NewResult()
	result.Trace = append(result.Trace,
		TraceEvent{Step: 0, Op: OpResolve, Path: "someA", Address: addr(0), Size: 2, Type: "SomeA"},
		TraceEvent{Step: 1, Op: OpReplay},
	)

	data, err := Snapshot(s, result)
	require.NoError(t, err)

	assert.Equal(t,
		`{"scenario_name":"snap","session_id":"sess-1","trace":[`+
			`{"address":"0x00000000","op":"resolve","path":"someA","size":2,"step":0,"type":"SomeA"},`+
			`{"applied":0,"op":"replay","relocated":0,"step":1}]}`,
		string(data))
}

func TestSnapshot_ErrorsAreEscapedCanonically(t *testing.T) {
	s := loadTestScenario(t, "resolve_paths")
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	data, err := Snapshot(s, result)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `has no field \"z\"`))
	assert.NotContains(t, string(data), "\n")
}
