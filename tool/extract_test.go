package tool

import (
	"encoding/json"
	"testing"

	"github.com/datalyst/datalyst/model"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		msg  *model.Message
		call *model.ToolCallBlock
		want Invocation
	}{
		{
			name: "structured argument object",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`{"code":"print(df.columns)","thoughts":"inspect first"}`),
			},
			want: Invocation{Code: "print(df.columns)", Thoughts: "inspect first"},
		},
		{
			name: "object with code only",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`{"code":"result = 1"}`),
			},
			want: Invocation{Code: "result = 1"},
		},
		{
			name: "doubly encoded argument object",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`"{\"code\":\"print(1)\",\"thoughts\":\"t\"}"`),
			},
			want: Invocation{Code: "print(1)", Thoughts: "t"},
		},
		{
			name: "string that is not json becomes raw code",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`"not-json"`),
			},
			want: Invocation{Code: "not-json"},
		},
		{
			name: "single quoted object is repaired",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`{'code': 'x = 1'}`),
			},
			want: Invocation{Code: "x = 1"},
		},
		{
			name: "truncated object is repaired",
			call: &model.ToolCallBlock{
				Tool: PythonReplName,
				Args: json.RawMessage(`{"code": "print(1)"`),
			},
			want: Invocation{Code: "print(1)"},
		},
		{
			name: "empty args falls back to legacy envelope",
			msg: &model.Message{
				Source: model.MessageSourceModel,
				FunctionCall: &model.FunctionCall{
					Name:      PythonReplName,
					Arguments: `{"code":"print('legacy')"}`,
				},
			},
			call: &model.ToolCallBlock{Tool: PythonReplName},
			want: Invocation{Code: "print('legacy')"},
		},
		{
			name: "legacy envelope with malformed arguments",
			msg: &model.Message{
				Source: model.MessageSourceModel,
				FunctionCall: &model.FunctionCall{
					Name:      PythonReplName,
					Arguments: "garbage",
				},
			},
			want: Invocation{},
		},
		{
			name: "nothing usable",
			msg:  &model.Message{Source: model.MessageSourceModel},
			call: &model.ToolCallBlock{Tool: PythonReplName, Args: json.RawMessage(`null`)},
			want: Invocation{},
		},
		{
			name: "nil call and nil message",
			want: Invocation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.msg, tt.call)
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
