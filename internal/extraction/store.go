// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Centralised store of per-video extraction results. Safe for concurrent
// use, which matters in worker-pool mode where several videos finish at
// once.

package extraction

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrResultNotFound = errors.New("result not found")

type ID int64

type Store struct {
	mu      sync.RWMutex
	results map[ID]Result
	next    ID
}

func NewStore() *Store {
	return &Store{
		results: make(map[ID]Result),
	}
}

func (s *Store) Insert(r Result) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[s.next] = r
	id := s.next
	s.next++

	return id
}

func (s *Store) Get(id ID) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return r, fmt.Errorf("getting result: %w", ErrResultNotFound)
	}

	return r, nil
}

func (s *Store) Exists(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.results[id]

	return exists
}

func (s *Store) Update(id ID, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[id]; !exists {
		return fmt.Errorf("updating result: %w", ErrResultNotFound)
	}

	s.results[id] = r
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// All returns results ordered by insertion, which in sequential mode equals
// input order.
func (s *Store) All() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ID, 0, len(s.results))
	for id := range s.results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.results[id])
	}
	return out
}
