package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/datalyst/datalyst/artifact"
)

// These tests exercise the real harness and need python3 with the analysis
// stack installed. They skip everywhere else.
func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	probe := exec.Command("python3", "-c", "import pandas, plotly, sklearn")
	if err := probe.Run(); err != nil {
		t.Skip("python analysis stack not available")
	}
}

func pythonExecutor(t *testing.T) *Executor {
	t.Helper()
	store, err := artifact.NewStore(afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewExecutor(store)
}

func TestPythonPrint(t *testing.T) {
	requirePython(t)

	execution, err := pythonExecutor(t).Execute(context.Background(), "print(1+1)", testDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execution.Stdout != "2\n" {
		t.Errorf("stdout = %q, want %q", execution.Stdout, "2\n")
	}
	if execution.HasResult || execution.Error != "" || len(execution.Figures) != 0 {
		t.Errorf("unexpected side effects: %+v", execution)
	}
}

func TestPythonResultVariable(t *testing.T) {
	requirePython(t)

	execution, err := pythonExecutor(t).Execute(context.Background(), "result = int(df['x'].astype(int).sum())", testDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !execution.HasResult {
		t.Fatal("expected a result")
	}
	if execution.Result != "3" {
		t.Errorf("result = %q, want %q", execution.Result, "3")
	}
}

func TestPythonErrorKeepsPartialOutput(t *testing.T) {
	requirePython(t)

	code := "print('before')\nraise ValueError('boom')"
	execution, err := pythonExecutor(t).Execute(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execution.Stdout != "before\n" {
		t.Errorf("stdout = %q, want %q", execution.Stdout, "before\n")
	}
	if !strings.Contains(execution.Error, "ValueError: boom") {
		t.Errorf("error trace missing exception: %q", execution.Error)
	}
	if !strings.Contains(execution.Error, "Traceback") {
		t.Errorf("error is not a full trace: %q", execution.Error)
	}
}

func TestPythonFiguresReboundToNonList(t *testing.T) {
	requirePython(t)

	code := "print('before')\nplotly_figures = 5"
	execution, err := pythonExecutor(t).Execute(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execution.Stdout != "before\n" {
		t.Errorf("stdout = %q, want %q", execution.Stdout, "before\n")
	}
	if !strings.Contains(execution.Error, "TypeError") {
		t.Errorf("error trace missing exception: %q", execution.Error)
	}
	if len(execution.Figures) != 0 {
		t.Errorf("got %d figures, want 0", len(execution.Figures))
	}
}

func TestPythonFigureCapture(t *testing.T) {
	requirePython(t)

	store, err := artifact.NewStore(afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	executor := NewExecutor(store)

	code := "fig = px.bar(x=['a'], y=[1])\nplotly_figures.append(fig)"
	execution, err := executor.Execute(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execution.Error != "" {
		t.Fatalf("unexpected execution error: %s", execution.Error)
	}
	if len(execution.Figures) != 1 {
		t.Fatalf("got %d figures, want 1", len(execution.Figures))
	}

	data, err := store.Get(execution.Figures[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Error("stored figure is empty")
	}
}
