// Package memory is an in-process feedback store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/spigell/interview-feedback/internal/feedback"
)

type ownerKey struct {
	interviewID string
	userID      string
}

type Store struct {
	mu      sync.RWMutex
	byID    map[string]*feedback.Record
	byOwner map[ownerKey]string
}

func New() *Store {
	return &Store{
		byID:    make(map[string]*feedback.Record),
		byOwner: make(map[ownerKey]string),
	}
}

func (s *Store) Get(_ context.Context, id string) (*feedback.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, feedback.ErrNotFound
	}
	return clone(rec), nil
}

func (s *Store) FindByOwner(_ context.Context, interviewID, userID string) (*feedback.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerKey{interviewID, userID}]
	if !ok {
		return nil, feedback.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) Create(_ context.Context, rec *feedback.Record) (*feedback.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{rec.InterviewID, rec.UserID}
	if id, ok := s.byOwner[key]; ok {
		existing := s.byID[id]
		replaceMutable(existing, rec)
		return clone(existing), nil
	}

	if _, ok := s.byID[rec.ID]; ok {
		return nil, fmt.Errorf("feedback %s already exists", rec.ID)
	}

	stored := clone(rec)
	s.byID[stored.ID] = stored
	s.byOwner[key] = stored.ID
	return clone(stored), nil
}

func (s *Store) Replace(_ context.Context, rec *feedback.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[rec.ID]
	if !ok {
		return feedback.ErrNotFound
	}
	replaceMutable(existing, rec)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func replaceMutable(dst, src *feedback.Record) {
	dst.TotalScore = src.TotalScore
	dst.CategoryScores = append([]feedback.CategoryScore(nil), src.CategoryScores...)
	dst.Strengths = append([]string(nil), src.Strengths...)
	dst.AreasForImprovement = append([]string(nil), src.AreasForImprovement...)
	dst.FinalAssessment = src.FinalAssessment
	dst.UpdatedAt = src.UpdatedAt
}

func clone(rec *feedback.Record) *feedback.Record {
	out := *rec
	out.CategoryScores = append([]feedback.CategoryScore(nil), rec.CategoryScores...)
	out.Strengths = append([]string(nil), rec.Strengths...)
	out.AreasForImprovement = append([]string(nil), rec.AreasForImprovement...)
	return &out
}
