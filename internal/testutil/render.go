package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/emoons/transitscan/internal/render"
)

// FakeRenderer records render requests instead of drawing. It still writes a
// marker file at each request's output path so artifact-existence checks see
// the plot as generated. Safe for concurrent use.
type FakeRenderer struct {
	// Err, when set, is returned from every Render call.
	Err error

	mu       sync.Mutex
	requests []render.Request
}

// Render implements the pipeline's renderer contract.
func (f *FakeRenderer) Render(req render.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(req.OutputPath, []byte("fake png"), 0o644); err != nil {
		return err
	}
	f.requests = append(f.requests, req)
	return nil
}

// Requests returns a copy of every recorded request.
func (f *FakeRenderer) Requests() []render.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// Count returns how many renders succeeded.
func (f *FakeRenderer) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
