// Package memory implements store.SummaryStore with a process-local map.
// It backs deployments that run without a database and doubles as the test
// store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/intervox/pkg/store"
)

// Compile-time interface assertion.
var _ store.SummaryStore = (*Store)(nil)

// Store is an in-memory summary store. The zero value is not usable; create
// one with [New]. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	summaries map[string]store.Summary
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		summaries: make(map[string]store.Summary),
	}
}

// Save implements [store.SummaryStore]. Last write wins.
func (s *Store) Save(_ context.Context, summary store.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.SessionID] = summary
	return nil
}

// Get implements [store.SummaryStore].
func (s *Store) Get(_ context.Context, sessionID string) (*store.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[sessionID]
	if !ok {
		return nil, fmt.Errorf("summary store: get %q: %w", sessionID, store.ErrNotFound)
	}
	return &summary, nil
}

// List implements [store.SummaryStore]. Results are ordered newest first.
func (s *Store) List(_ context.Context, filter store.ListFilter) ([]store.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]store.Summary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		if filter.JobTitle != "" && summary.JobTitle != filter.JobTitle {
			continue
		}
		if !filter.After.IsZero() && !summary.CompletedAt.After(filter.After) {
			continue
		}
		if !filter.Before.IsZero() && !summary.CompletedAt.Before(filter.Before) {
			continue
		}
		results = append(results, summary)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Delete implements [store.SummaryStore].
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[sessionID]; !ok {
		return fmt.Errorf("summary store: delete %q: %w", sessionID, store.ErrNotFound)
	}
	delete(s.summaries, sessionID)
	return nil
}

// Len returns the number of stored summaries. Used in tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}
