// Package store provides storage backends for the registration engine.
//
// It includes an in-memory store for tests and development, an SQLite-backed
// store, and a PostgreSQL-backed store. All write operations are idempotent
// upserts keyed by stable identifiers so partial failures are re-appliable.
package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
)

// Store is the durable persistence contract consumed by the session manager,
// the conversation engine, and the trigger and rating engines.
type Store interface {
	// Session drafts (crash recovery shadow writes).
	SaveDraft(session models.SessionState) error
	GetDraft(sessionID string) (*models.SessionState, error) // nil when absent
	DeleteDraft(sessionID string) error

	// Confirmed registrations, keyed by registration number.
	SaveRegistration(reg models.Registration) error
	GetRegistration(number string) (*models.Registration, error) // nil when absent

	// Document metadata, keyed by (session, field, batch, order).
	SaveDocument(doc models.DocumentRecord) error
	ListDocuments(sessionID string) ([]models.DocumentRecord, error)

	// Trigger firings.
	AddTriggerLog(log models.TriggerLog) error
	ListTriggerLogs(sessionID string) ([]models.TriggerLog, error)

	// Completed ratings.
	SaveRating(rating models.Rating) error
	ListRatings(sessionID string) ([]models.Rating, error)

	Close() error
}

// InMemoryStore is a Store backed by maps, used in tests and development.
type InMemoryStore struct {
	mu            sync.RWMutex
	drafts        map[string]models.SessionState
	registrations map[string]models.Registration
	documents     map[string]models.DocumentRecord // keyed by composite key
	triggerLogs   []models.TriggerLog
	ratings       []models.Rating
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		drafts:        make(map[string]models.SessionState),
		registrations: make(map[string]models.Registration),
		documents:     make(map[string]models.DocumentRecord),
	}
}

func (s *InMemoryStore) SaveDraft(session models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Clone both ways so stored drafts never alias caller maps, matching
	// the serialize-through-SQL behavior of the database stores.
	s.drafts[session.SessionID] = *session.Clone()
	return nil
}

func (s *InMemoryStore) GetDraft(sessionID string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.drafts[sessionID]; ok {
		return d.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) DeleteDraft(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, sessionID)
	return nil
}

func (s *InMemoryStore) SaveRegistration(reg models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.registrations[reg.Number]; ok {
		reg.CreatedAt = existing.CreatedAt
	}
	reg.UpdatedAt = time.Now()
	s.registrations[reg.Number] = reg
	return nil
}

func (s *InMemoryStore) GetRegistration(number string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.registrations[number]; ok {
		dup := r
		return &dup, nil
	}
	return nil, nil
}

func documentKey(d models.DocumentRecord) string {
	return d.SessionID + "|" + d.FieldID + "|" + d.BatchID + "|" + strconv.Itoa(d.Order)
}

func (s *InMemoryStore) SaveDocument(doc models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[documentKey(doc)] = doc
	return nil
}

func (s *InMemoryStore) ListDocuments(sessionID string) ([]models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentRecord
	for _, d := range s.documents {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FieldID != out[j].FieldID {
			return out[i].FieldID < out[j].FieldID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (s *InMemoryStore) AddTriggerLog(log models.TriggerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggerLogs = append(s.triggerLogs, log)
	return nil
}

func (s *InMemoryStore) ListTriggerLogs(sessionID string) ([]models.TriggerLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TriggerLog
	for _, l := range s.triggerLogs {
		if l.SessionID == sessionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveRating(rating models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = append(s.ratings, rating)
	return nil
}

func (s *InMemoryStore) ListRatings(sessionID string) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Rating
	for _, r := range s.ratings {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
