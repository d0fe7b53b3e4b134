// Package coretest holds an in-memory core.Store for handler and workflow tests.
package coretest

import (
	"context"
	"sync"
	"time"

	"autolog.dev/autolog/core"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]core.Timesheet

	// Err, when set, is returned from every call.
	Err error

	Inserts       int
	Approvals     int
	Confirmations int
	Finds         int
	IndexCalls    int
	IndexExpiry   time.Duration
}

func NewMemoryStore(records ...core.Timesheet) *MemoryStore {
	s := &MemoryStore{records: make(map[string]core.Timesheet)}
	for _, r := range records {
		s.records[r.RandomPath] = r
	}
	return s
}

func (s *MemoryStore) FindByPath(_ context.Context, path string) (*core.Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finds++
	if s.Err != nil {
		return nil, s.Err
	}
	r, ok := s.records[path]
	if !ok {
		return nil, core.NotFound("timesheet", path)
	}
	return &r, nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.records[path]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, record *core.Timesheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inserts++
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.records[record.RandomPath]; ok {
		return core.Conflict("Path already exists")
	}
	s.records[record.RandomPath] = *record
	return nil
}

func (s *MemoryStore) SetApproved(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Approvals++
	if s.Err != nil {
		return s.Err
	}
	r, ok := s.records[path]
	if !ok {
		return core.NotFound("timesheet", path)
	}
	r.Approved = true
	s.records[path] = r
	return nil
}

func (s *MemoryStore) MarkConfirmationSent(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Confirmations++
	if s.Err != nil {
		return s.Err
	}
	r, ok := s.records[path]
	if !ok {
		return core.NotFound("timesheet", path)
	}
	r.ConfirmationSent = true
	s.records[path] = r
	return nil
}

func (s *MemoryStore) EnsureTTLIndex(_ context.Context, expireAfter time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IndexCalls++
	if s.Err != nil {
		return s.Err
	}
	s.IndexExpiry = expireAfter
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(path string) (core.Timesheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[path]
	return r, ok
}

var _ core.Store = (*MemoryStore)(nil)
