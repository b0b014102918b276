package tool

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/datalyst/datalyst/model"
)

// Invocation is the normalized form of a tool-call request.
type Invocation struct {
	Code     string
	Thoughts string
}

type argsPayload struct {
	Code     string `json:"code"`
	Thoughts string `json:"thoughts"`
}

// Extract recovers (code, thoughts) from a tool call, whatever encoding it
// arrived in: a structured argument object, a JSON-encoded string, or the
// legacy single function-call envelope on the owning message. Malformed
// input degrades to empty fields; Extract never fails.
func Extract(msg *model.Message, call *model.ToolCallBlock) Invocation {
	if call != nil {
		if inv, ok := extractArgs(call.Args); ok {
			return inv
		}
	}

	if msg != nil && msg.FunctionCall != nil {
		if inv, ok := decodeObject(msg.FunctionCall.Arguments); ok {
			return inv
		}
	}

	return Invocation{}
}

func extractArgs(args json.RawMessage) (Invocation, bool) {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return Invocation{}, false
	}

	// Structured argument object.
	if strings.HasPrefix(trimmed, "{") {
		return decodeObject(trimmed)
	}

	// JSON-encoded string: either a doubly encoded argument object or the
	// raw code itself.
	var text string
	if err := json.Unmarshal(args, &text); err == nil {
		if text == "" {
			return Invocation{}, false
		}
		if inv, ok := decodeObject(text); ok {
			return inv, true
		}
		return Invocation{Code: text}, true
	}

	// Not valid JSON at all; the transport handed us bare code.
	return Invocation{Code: trimmed}, true
}

// decodeObject decodes {code, thoughts} from s, repairing near-JSON first
// when the strict parse fails.
func decodeObject(s string) (Invocation, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return Invocation{}, false
	}

	var payload argsPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return Invocation{Code: payload.Code, Thoughts: payload.Thoughts}, true
	}

	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return Invocation{}, false
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return Invocation{}, false
	}
	return Invocation{Code: payload.Code, Thoughts: payload.Thoughts}, true
}
