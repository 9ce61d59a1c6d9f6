package graph

import (
	"context"
	"sync"
)

// Query is a statement recorded by MemoryClient.
type Query struct {
	Cypher string
	Params map[string]any
}

// MemoryClient replays queued results and records every statement. Tests use
// it in place of a live Neo4j server.
type MemoryClient struct {
	mu     sync.Mutex
	reads  []Result
	writes []Query
	seen   []Query
	err    error
}

func NewMemoryClient() *MemoryClient { return &MemoryClient{} }

// WithError makes every subsequent call fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// PushReadResult queues res for the next ExecuteRead.
func (m *MemoryClient) PushReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, res)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	m.seen = append(m.seen, Query{Cypher: cypher, Params: clone(params)})
	if len(m.reads) == 0 {
		return Result{}, nil
	}
	res := m.reads[0]
	m.reads = m.reads[1:]
	return res, nil
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	m.writes = append(m.writes, Query{Cypher: cypher, Params: clone(params)})
	return Result{}, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MemoryClient) Close(context.Context) error { return nil }

// ReadCalls returns the read statements executed so far.
func (m *MemoryClient) ReadCalls() []Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Query(nil), m.seen...)
}

// WriteCalls returns the write statements executed so far.
func (m *MemoryClient) WriteCalls() []Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Query(nil), m.writes...)
}

func clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
