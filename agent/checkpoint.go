package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Checkpointer persists thread state between turns. Load returns (nil, nil)
// for a thread that has never been saved.
type Checkpointer interface {
	Load(ctx context.Context, threadID string) (*Thread, error)
	Save(ctx context.Context, thread *Thread) error
}

// MemoryCheckpointer keeps serialized threads in process memory. Threads are
// stored as JSON so that loads hand back an isolated copy rather than shared
// pointers.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: make(map[string][]byte)}
}

func (c *MemoryCheckpointer) Load(_ context.Context, threadID string) (*Thread, error) {
	c.mu.RLock()
	data, ok := c.threads[threadID]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var thread Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return &thread, nil
}

func (c *MemoryCheckpointer) Save(_ context.Context, thread *Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", thread.ID, err)
	}

	c.mu.Lock()
	c.threads[thread.ID] = data
	c.mu.Unlock()
	return nil
}
