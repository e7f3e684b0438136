package nodes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowmesh/workflow"
)

func newFunction(t *testing.T, params string) workflow.Instance {
	t.Helper()
	inst, err := FunctionDefinition{}.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(params)))
	return inst
}

func TestFunction_ConfigureValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		params string
	}{
		{"empty", ``},
		{"not json", `{{`},
		{"unknown op", `{"operation":"eval","field":"x"}`},
		{"uppercase missing field", `{"operation":"uppercase"}`},
		{"set missing value", `{"operation":"set","field":"x"}`},
		{"rename missing to", `{"operation":"rename","field":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := FunctionDefinition{}.CreateInstance()
			require.NoError(t, err)
			err = inst.Configure(json.RawMessage(tt.params))
			require.Error(t, err)
			var cfgErr *workflow.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestFunction_Uppercase(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"uppercase","field":"name"}`)

	out, err := inst.Execute(context.Background(), testContext(`{"name":"alice","age":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ALICE","age":3}`, string(out.Data))
}

func TestFunction_Lowercase(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"lowercase","field":"name"}`)

	out, err := inst.Execute(context.Background(), testContext(`{"name":"ALICE"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alice"}`, string(out.Data))
}

func TestFunction_Set(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"set","field":"tag","value":{"env":"prod"}}`)

	out, err := inst.Execute(context.Background(), testContext(`{"name":"alice"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alice","tag":{"env":"prod"}}`, string(out.Data))
}

func TestFunction_Rename(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"rename","field":"old","to":"new"}`)

	out, err := inst.Execute(context.Background(), testContext(`{"old":42}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"new":42}`, string(out.Data))
}

func TestFunction_MissingFieldFailsExecution(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"uppercase","field":"ghost"}`)

	_, err := inst.Execute(context.Background(), testContext(`{"name":"alice"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost" not present`)
}

func TestFunction_NonStringFieldFails(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"uppercase","field":"age"}`)

	_, err := inst.Execute(context.Background(), testContext(`{"age":7}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a string")
}

func TestFunction_NonObjectTriggerFails(t *testing.T) {
	t.Parallel()
	inst := newFunction(t, `{"operation":"uppercase","field":"x"}`)

	_, err := inst.Execute(context.Background(), testContext(`[1,2,3]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JSON object")
}
