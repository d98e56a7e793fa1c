package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knograph/knograph/internal/engine"
)

type stubEngine struct {
	insertErr error
	queryErr  error
	response  string
	inserted  []string
	closed    bool
	lastCtx   context.Context
}

func (s *stubEngine) Insert(ctx context.Context, text, source string) error {
	s.lastCtx = ctx
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, source)
	return nil
}

func (s *stubEngine) Query(ctx context.Context, mode engine.Mode, query string) (string, error) {
	s.lastCtx = ctx
	if s.queryErr != nil {
		return "", s.queryErr
	}
	return s.response, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestInitializeIsRetryable(t *testing.T) {
	attempts := 0
	stub := &stubEngine{}
	k := NewKnowledge(Options{}, func() (Engine, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("missing credential")
		}
		return stub, nil
	}, nil)

	require.Error(t, k.Initialize())
	assert.False(t, k.Initialized())

	require.NoError(t, k.Initialize())
	assert.True(t, k.Initialized())

	// Further calls are idempotent.
	require.NoError(t, k.Initialize())
	assert.Equal(t, 2, attempts)
}

func TestInsertLazilyInitializes(t *testing.T) {
	stub := &stubEngine{}
	k := NewKnowledge(Options{}, func() (Engine, error) { return stub, nil }, nil)

	res := k.Insert(context.Background(), "some text", "doc-1")
	assert.True(t, res.OK)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"doc-1"}, stub.inserted)
	assert.True(t, k.Initialized())
}

func TestInsertReportsFailure(t *testing.T) {
	stub := &stubEngine{insertErr: errors.New("embedding backend down")}
	k := NewKnowledge(Options{}, func() (Engine, error) { return stub, nil }, nil)

	res := k.Insert(context.Background(), "some text", "doc-1")
	assert.False(t, res.OK)
	assert.ErrorContains(t, res.Err, "embedding backend down")
}

func TestQuerySuccess(t *testing.T) {
	stub := &stubEngine{response: "the answer"}
	k := NewKnowledge(Options{}, func() (Engine, error) { return stub, nil }, nil)

	res := k.Query(context.Background(), engine.ModeHybrid, "question")
	assert.True(t, res.OK)
	assert.Equal(t, "the answer", res.Response)
}

func TestQueryDegradesOnEngineFailure(t *testing.T) {
	stub := &stubEngine{queryErr: errors.New("model timeout")}
	k := NewKnowledge(Options{}, func() (Engine, error) { return stub, nil }, nil)

	res := k.Query(context.Background(), engine.ModeLocal, "question")
	assert.False(t, res.OK)
	assert.Contains(t, res.Response, "I encountered an error while processing your query")
	assert.Contains(t, res.Response, "model timeout")
}

func TestQueryDegradesWhenUninitializable(t *testing.T) {
	k := NewKnowledge(Options{}, func() (Engine, error) {
		return nil, errors.New("no api key")
	}, nil)

	res := k.Query(context.Background(), engine.ModeHybrid, "question")
	assert.False(t, res.OK)
	assert.Equal(t, unavailableResponse, res.Response)
	assert.Error(t, res.Err)
}

func TestQueryTimeoutApplied(t *testing.T) {
	stub := &stubEngine{response: "ok"}
	k := NewKnowledge(Options{QueryTimeout: time.Minute}, func() (Engine, error) { return stub, nil }, nil)

	k.Query(context.Background(), engine.ModeNaive, "question")
	require.NotNil(t, stub.lastCtx)
	_, hasDeadline := stub.lastCtx.Deadline()
	assert.True(t, hasDeadline)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.json"), []byte("{}"), 0o644))

	k := NewKnowledge(Options{WorkingDir: dir}, func() (Engine, error) { return &stubEngine{}, nil }, nil)

	stats := k.Stats()
	assert.False(t, stats.Initialized)
	assert.Equal(t, dir, stats.WorkingDir)
	assert.True(t, stats.WorkingDirExists)
	assert.Equal(t, []string{"graph.json"}, stats.FilesInWorkingDir)

	require.NoError(t, k.Initialize())
	assert.True(t, k.Stats().Initialized)
}

func TestStatsMissingWorkingDir(t *testing.T) {
	k := NewKnowledge(Options{WorkingDir: "/nonexistent/knograph"}, func() (Engine, error) { return &stubEngine{}, nil }, nil)

	stats := k.Stats()
	assert.False(t, stats.WorkingDirExists)
	assert.Empty(t, stats.FilesInWorkingDir)
}

func TestFinalize(t *testing.T) {
	stub := &stubEngine{}
	k := NewKnowledge(Options{}, func() (Engine, error) { return stub, nil }, nil)

	// Safe before initialization.
	k.Finalize()

	require.NoError(t, k.Initialize())
	k.Finalize()
	assert.True(t, stub.closed)
	assert.False(t, k.Initialized())
}
