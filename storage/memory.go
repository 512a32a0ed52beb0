package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"wa_ingest/models"
)

// MemoryStore keeps everything in maps. It backs dry runs and tests and
// enforces the same natural keys as the SQL stores.
type MemoryStore struct {
	mu sync.Mutex

	users        map[string]*models.User       // by mobile number
	agents       map[uuid.UUID]*models.Agent   // by user id
	messages     map[string]*models.RawMessage // by fingerprint
	messagesByID map[uuid.UUID]*models.RawMessage
	properties   map[uuid.UUID]*models.Property // by source message id
	areas        map[int]models.Area
	features     map[[2]string]models.Feature
	runs         map[uuid.UUID]*models.IngestRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*models.User),
		agents:       make(map[uuid.UUID]*models.Agent),
		messages:     make(map[string]*models.RawMessage),
		messagesByID: make(map[uuid.UUID]*models.RawMessage),
		properties:   make(map[uuid.UUID]*models.Property),
		areas:        make(map[int]models.Area),
		features:     make(map[[2]string]models.Feature),
		runs:         make(map[uuid.UUID]*models.IngestRun),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) FindUserByPhone(_ context.Context, mobile string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[mobile]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.MobileNumber]; ok {
		*u = *existing
		return false, nil
	}
	cp := *u
	s.users[u.MobileNumber] = &cp
	return true, nil
}

func (s *MemoryStore) FindAgentByUserID(_ context.Context, userID uuid.UUID) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) CreateAgent(_ context.Context, a *models.Agent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.agents[a.UserID]; ok {
		*a = *existing
		return false, nil
	}
	cp := *a
	s.agents[a.UserID] = &cp
	return true, nil
}

func (s *MemoryStore) CreateProperty(_ context.Context, p *models.Property) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.properties[p.SourceMessageID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		return false, nil
	}
	cp := *p
	s.properties[p.SourceMessageID] = &cp
	return true, nil
}

func (s *MemoryStore) CreateOrUpdateMessage(_ context.Context, m *models.RawMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.messages[m.Fingerprint]; ok {
		existing.Processed = existing.Processed || m.Processed
		if m.ExtractedData != nil {
			existing.ExtractedData = m.ExtractedData
		}
		m.ID = existing.ID
		m.PropertyID = existing.PropertyID
		m.UserID = existing.UserID
		m.CreatedAt = existing.CreatedAt
		return false, nil
	}
	cp := *m
	s.messages[m.Fingerprint] = &cp
	s.messagesByID[m.ID] = &cp
	return true, nil
}

func (s *MemoryStore) LinkMessage(_ context.Context, messageID uuid.UUID, propertyID, userID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messagesByID[messageID]
	if !ok {
		return fmt.Errorf("link message %s: %w", messageID, ErrNotFound)
	}
	if propertyID != nil {
		id := *propertyID
		m.PropertyID = &id
	}
	if userID != nil {
		id := *userID
		m.UserID = &id
	}
	return nil
}

func (s *MemoryStore) UpsertArea(_ context.Context, a *models.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.areas[a.Number]; !ok {
		s.areas[a.Number] = *a
	}
	return nil
}

func (s *MemoryStore) UpsertFeature(_ context.Context, f *models.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{f.NameAr, f.NameEn}
	if _, ok := s.features[key]; !ok {
		s.features[key] = *f
	}
	return nil
}

func (s *MemoryStore) CreateRun(_ context.Context, run *models.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) FinishRun(_ context.Context, run *models.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// =============================================================================
// Inspection (dry runs and tests)
// =============================================================================

func (s *MemoryStore) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MobileNumber < out[j].MobileNumber })
	return out
}

func (s *MemoryStore) Agents() []models.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Messages returns stored messages in message date order.
func (s *MemoryStore) Messages() []models.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RawMessage, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MessageDate.Before(out[j].MessageDate) })
	return out
}

// Properties returns stored properties in posting date order.
func (s *MemoryStore) Properties() []models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DatePosted.Before(out[j].DatePosted) })
	return out
}

func (s *MemoryStore) Areas() []models.Area {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Area, 0, len(s.areas))
	for _, a := range s.areas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *MemoryStore) Features() []models.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Feature, 0, len(s.features))
	for _, f := range s.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameEn < out[j].NameEn })
	return out
}

func (s *MemoryStore) Run(id uuid.UUID) (*models.IngestRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}
