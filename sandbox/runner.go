package sandbox

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

//go:embed harness.py
var harnessSource string

// Request crosses the process boundary to the execution harness.
type Request struct {
	Code       string `json:"code"`
	DatasetCSV string `json:"dataset_csv"`
}

// Response is the envelope the harness writes to its real stdout. Figures
// are pickled chart objects, base64-encoded, in append order.
type Response struct {
	Stdout    string   `json:"stdout"`
	Result    string   `json:"result,omitempty"`
	HasResult bool     `json:"has_result"`
	Figures   []string `json:"figures"`
	Error     string   `json:"error,omitempty"`
}

// Runner executes one request run-to-completion. Implementations own process
// lifecycle and must honor context cancellation.
type Runner interface {
	Run(ctx context.Context, req *Request) (*Response, error)
}

// PythonRunner runs the embedded harness in a fresh python3 process per
// request. Each run gets its own interpreter, so no state can leak between
// executions.
type PythonRunner struct {
	Python string
}

func NewPythonRunner() *PythonRunner {
	return &PythonRunner{Python: "python3"}
}

func (r *PythonRunner) Run(ctx context.Context, req *Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sandbox request: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Python, "-c", harnessSource)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("python process: %w", ctx.Err())
	}
	if runErr != nil {
		return nil, fmt.Errorf("python process failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sandbox response: %w", err)
	}
	return &resp, nil
}
