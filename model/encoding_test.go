package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		message *Message
	}{
		{
			name:    "user text",
			message: NewUserMessage("plot the age distribution"),
		},
		{
			name: "assistant with tool call",
			message: NewModelMessage([]ContentBlock{
				&TextBlock{Text: "Inspecting the columns first."},
				&ToolCallBlock{
					ID:   "call-1",
					Tool: "python_repl",
					Args: json.RawMessage(`{"code":"print(df.columns)"}`),
				},
			}, Usage{InputTokens: 12, OutputTokens: 34}),
		},
		{
			name:    "tool response",
			message: NewToolResponseMessage("call-1", "python_repl", "STDOUT:\nIndex(['age'], dtype='object')\n"),
		},
		{
			name: "legacy function call envelope",
			message: &Message{
				Source:  MessageSourceModel,
				Content: []ContentBlock{&TextBlock{Text: ""}},
				FunctionCall: &FunctionCall{
					Name:      "python_repl",
					Arguments: `{"code":"print(1)"}`,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.message)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.message, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessageUnmarshalUnknownBlock(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"source":"model","content":[{"type":"video"}]}`), &msg)
	if err == nil {
		t.Error("expected error for unknown block type")
	}
}
