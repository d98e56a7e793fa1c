// Package service wraps the knowledge engine behind a lifecycle-managed
// adapter. The adapter degrades instead of propagating query failures so
// the chat surface never turns an engine error into a 5xx.
package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/knograph/knograph/internal/engine"
	"github.com/knograph/knograph/internal/logging"
)

const unavailableResponse = "I apologize, but the knowledge system is not available right now."

// Engine is the part of the knowledge engine the adapter drives.
type Engine interface {
	Insert(ctx context.Context, text, source string) error
	Query(ctx context.Context, mode engine.Mode, query string) (string, error)
	Close() error
}

// Factory constructs the engine on first use. Construction can fail on
// transient causes, so the adapter retries it on the next call.
type Factory func() (Engine, error)

// Options configures the knowledge adapter.
type Options struct {
	WorkingDir    string
	InsertTimeout time.Duration
	QueryTimeout  time.Duration
}

// InsertResult reports the outcome of an ingestion request.
type InsertResult struct {
	OK  bool
	Err error
}

// QueryResult carries a response for the chat surface. Response is
// always non-empty; when OK is false it holds a human-readable message
// embedding the failure detail.
type QueryResult struct {
	Response string
	OK       bool
	Err      error
}

// Stats is adapter-level introspection. It deliberately does not reach
// into the engine's entity or relationship counts.
type Stats struct {
	Initialized       bool     `json:"initialized"`
	WorkingDir        string   `json:"working_dir"`
	WorkingDirExists  bool     `json:"working_dir_exists"`
	FilesInWorkingDir []string `json:"files_in_working_dir"`
}

// Knowledge is the lifecycle object in front of the engine. The engine
// is constructed lazily on first use; a failed construction is retried
// on the next call.
type Knowledge struct {
	opts    Options
	factory Factory
	log     logging.Logger

	mu     sync.Mutex
	engine Engine
}

// NewKnowledge creates an uninitialized adapter.
func NewKnowledge(opts Options, factory Factory, log logging.Logger) *Knowledge {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Knowledge{opts: opts, factory: factory, log: log}
}

// Initialize constructs the engine if it has not been constructed yet.
// It is idempotent; on failure the adapter stays uninitialized so a
// later call can retry.
func (k *Knowledge) Initialize() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ensureLocked()
}

func (k *Knowledge) ensureLocked() error {
	if k.engine != nil {
		return nil
	}
	eng, err := k.factory()
	if err != nil {
		k.log.Error("knowledge engine initialization failed: %v", err)
		return fmt.Errorf("failed to initialize knowledge engine: %w", err)
	}
	k.engine = eng
	k.log.Info("knowledge engine initialized, working dir %s", k.opts.WorkingDir)
	return nil
}

func (k *Knowledge) ensure() (Engine, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.ensureLocked(); err != nil {
		return nil, err
	}
	return k.engine, nil
}

// Initialized reports whether the engine has been constructed.
func (k *Knowledge) Initialized() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engine != nil
}

// Insert ingests extracted document text. Failures are reported in the
// result, not raised.
func (k *Knowledge) Insert(ctx context.Context, text, source string) InsertResult {
	eng, err := k.ensure()
	if err != nil {
		return InsertResult{Err: err}
	}

	if k.opts.InsertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.opts.InsertTimeout)
		defer cancel()
	}

	if err := eng.Insert(ctx, text, source); err != nil {
		k.log.Error("failed to insert document %s: %v", source, err)
		return InsertResult{Err: err}
	}
	k.log.Info("document %s inserted successfully", source)
	return InsertResult{OK: true}
}

// Query answers a question. On failure the result carries a
// human-readable message embedding the error instead of an empty
// response, and OK is false.
func (k *Knowledge) Query(ctx context.Context, mode engine.Mode, query string) QueryResult {
	eng, err := k.ensure()
	if err != nil {
		return QueryResult{Response: unavailableResponse, Err: err}
	}

	if k.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.opts.QueryTimeout)
		defer cancel()
	}

	k.log.Info("querying knowledge engine with mode %s", mode)
	response, err := eng.Query(ctx, mode, query)
	if err != nil {
		k.log.Error("query failed: %v", err)
		return QueryResult{
			Response: fmt.Sprintf("I encountered an error while processing your query: %v", err),
			Err:      err,
		}
	}
	return QueryResult{Response: response, OK: true}
}

// Stats reports adapter-level introspection only.
func (k *Knowledge) Stats() Stats {
	stats := Stats{
		Initialized:       k.Initialized(),
		WorkingDir:        k.opts.WorkingDir,
		FilesInWorkingDir: []string{},
	}

	entries, err := os.ReadDir(k.opts.WorkingDir)
	if err != nil {
		return stats
	}
	stats.WorkingDirExists = true
	for _, entry := range entries {
		stats.FilesInWorkingDir = append(stats.FilesInWorkingDir, entry.Name())
	}
	sort.Strings(stats.FilesInWorkingDir)
	return stats
}

// Finalize releases the engine's resources. Safe to call when the
// adapter was never initialized.
func (k *Knowledge) Finalize() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.engine == nil {
		return
	}
	if err := k.engine.Close(); err != nil {
		k.log.Error("error during knowledge engine finalization: %v", err)
	} else {
		k.log.Info("knowledge engine finalized")
	}
	k.engine = nil
}
