package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/flowmesh/workflow"
)

// FunctionDefinition 函数节点
// 对触发数据执行一个声明式字段操作。不执行任意代码：操作集是封闭的，
// 参数在 Configure 阶段即校验。
type FunctionDefinition struct{}

func (FunctionDefinition) Type() string        { return "function" }
func (FunctionDefinition) DisplayName() string { return "Function" }
func (FunctionDefinition) Description() string {
	return "Applies a declarative field operation to the trigger payload"
}

func (FunctionDefinition) CreateInstance() (workflow.Instance, error) {
	return &functionInstance{}, nil
}

type functionParams struct {
	Operation string          `json:"operation"`
	Field     string          `json:"field"`
	To        string          `json:"to,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

type functionInstance struct {
	params functionParams
}

func (f *functionInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "function", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &f.params); err != nil {
		return &workflow.ConfigError{Field: "function", Reason: err.Error()}
	}
	switch f.params.Operation {
	case "uppercase", "lowercase":
		if f.params.Field == "" {
			return &workflow.ConfigError{Field: "function.field", Reason: "field required"}
		}
	case "set":
		if f.params.Field == "" || len(f.params.Value) == 0 {
			return &workflow.ConfigError{Field: "function.set", Reason: "field and value required"}
		}
	case "rename":
		if f.params.Field == "" || f.params.To == "" {
			return &workflow.ConfigError{Field: "function.rename", Reason: "field and to required"}
		}
	default:
		return &workflow.ConfigError{Field: "function.operation", Reason: "unknown operation: " + f.params.Operation}
	}
	return nil
}

func (f *functionInstance) Execute(_ context.Context, ec *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	payload := map[string]json.RawMessage{}
	if len(ec.TriggerData) > 0 {
		if err := json.Unmarshal(ec.TriggerData, &payload); err != nil {
			return nil, fmt.Errorf("trigger data is not a JSON object: %w", err)
		}
	}

	switch f.params.Operation {
	case "uppercase", "lowercase":
		raw, ok := payload[f.params.Field]
		if !ok {
			return nil, fmt.Errorf("field %q not present in trigger data", f.params.Field)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("field %q is not a string: %w", f.params.Field, err)
		}
		if f.params.Operation == "uppercase" {
			s = strings.ToUpper(s)
		} else {
			s = strings.ToLower(s)
		}
		encoded, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		payload[f.params.Field] = encoded
	case "set":
		payload[f.params.Field] = f.params.Value
	case "rename":
		raw, ok := payload[f.params.Field]
		if !ok {
			return nil, fmt.Errorf("field %q not present in trigger data", f.params.Field)
		}
		delete(payload, f.params.Field)
		payload[f.params.To] = raw
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: out}, nil
}
