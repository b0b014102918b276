package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/datalyst/datalyst/model"
)

func sampleThread(id string) *Thread {
	thread := NewThread(id)
	thread.Messages = []*model.Message{
		model.NewSystemMessage("be helpful"),
		model.NewUserMessage("plot sales by city"),
		model.NewModelMessage([]model.ContentBlock{&model.TextBlock{Text: "Here is the chart."}}, model.Usage{InputTokens: 12, OutputTokens: 5}),
	}
	thread.Results.Append(Result{
		Kind:      ResultKindToolResult,
		Tool:      "python_repl",
		Stdout:    "done\n",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	thread.Usage = model.Usage{InputTokens: 12, OutputTokens: 5}
	return thread
}

func TestMemoryCheckpointerRoundTrip(t *testing.T) {
	cp := NewMemoryCheckpointer()
	ctx := context.Background()
	original := sampleThread("thread-1")

	if err := cp.Save(ctx, original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := cp.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts := cmp.Options{
		cmp.AllowUnexported(ResultLog{}),
		cmpopts.IgnoreTypes(original.Cost),
	}
	if diff := cmp.Diff(original, loaded, opts); diff != "" {
		t.Errorf("thread mismatch after round trip (-want +got):\n%s", diff)
	}
	if !original.Cost.Equal(loaded.Cost) {
		t.Errorf("Cost = %s, want %s", loaded.Cost, original.Cost)
	}
}

func TestMemoryCheckpointerLoadIsolated(t *testing.T) {
	cp := NewMemoryCheckpointer()
	ctx := context.Background()

	if err := cp.Save(ctx, sampleThread("thread-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	first, err := cp.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first.Results.Append(Result{Kind: ResultKindAIMessage, Content: "mutated"})

	second, err := cp.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if second.Results.Len() != 1 {
		t.Errorf("mutation of a loaded thread leaked into the store: %d entries", second.Results.Len())
	}
}

func TestMemoryCheckpointerUnknownThread(t *testing.T) {
	cp := NewMemoryCheckpointer()

	thread, err := cp.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if thread != nil {
		t.Errorf("Load() = %+v, want nil for an unknown thread", thread)
	}
}

func TestSQLiteCheckpointerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.db")
	cp, err := NewSQLiteCheckpointer(path)
	if err != nil {
		t.Fatalf("NewSQLiteCheckpointer() error = %v", err)
	}
	defer cp.Close()

	ctx := context.Background()
	original := sampleThread("thread-1")

	if err := cp.Save(ctx, original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Saving again overwrites rather than duplicating.
	original.Results.Append(Result{Kind: ResultKindAIMessage, Content: "final", Timestamp: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)})
	if err := cp.Save(ctx, original); err != nil {
		t.Fatalf("Save() second error = %v", err)
	}

	loaded, err := cp.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Results.Len() != 2 {
		t.Errorf("Results.Len() = %d, want 2", loaded.Results.Len())
	}
	if loaded.Usage.InputTokens != 12 {
		t.Errorf("Usage.InputTokens = %d, want 12", loaded.Usage.InputTokens)
	}

	missing, err := cp.Load(ctx, "never-saved")
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("Load(missing) = %+v, want nil", missing)
	}
}
