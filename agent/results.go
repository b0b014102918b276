package agent

import (
	"encoding/json"
	"time"

	"github.com/datalyst/datalyst/artifact"
)

// ResultKind discriminates the two kinds of entries a turn can append to a
// thread's result log.
type ResultKind string

const (
	// ResultKindToolResult records the outcome of one tool invocation.
	ResultKindToolResult ResultKind = "tool_result"
	// ResultKindAIMessage records the model's final answer for a turn.
	ResultKindAIMessage ResultKind = "ai_message"
)

// Result is one immutable entry in a thread's result log.
type Result struct {
	Kind      ResultKind     `json:"type"`
	Tool      string         `json:"tool,omitempty"`
	Thoughts  string         `json:"thoughts,omitempty"`
	Stdout    string         `json:"stdout,omitempty"`
	Value     string         `json:"result,omitempty"`
	HasValue  bool           `json:"has_result,omitempty"`
	Figures   []artifact.Ref `json:"figures,omitempty"`
	Error     string         `json:"error,omitempty"`
	Content   string         `json:"content,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ResultLog is an append-only record of everything a thread produced. Entries
// are never rewritten or removed once added.
type ResultLog struct {
	entries []Result
}

func (l *ResultLog) Append(r Result) {
	l.entries = append(l.entries, r)
}

// Entries returns a copy of the log in append order.
func (l *ResultLog) Entries() []Result {
	out := make([]Result, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ResultLog) Len() int {
	return len(l.entries)
}

// AwaitingAnswer reports whether the log holds tool results that have not yet
// been followed by a final answer.
func (l *ResultLog) AwaitingAnswer() bool {
	if len(l.entries) == 0 {
		return false
	}
	return l.entries[len(l.entries)-1].Kind != ResultKindAIMessage
}

func (l ResultLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *ResultLog) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.entries)
}
