package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benvon/scam-hunter/internal/models"
	"github.com/google/uuid"
)

// MemoryProvider keeps records in process-local maps
type MemoryProvider struct {
	mu       sync.RWMutex
	analyses map[string]*models.StoredAnalysis
	byUser   map[string][]string // newest first
	sessions map[string]*models.UserSession
	now      func() time.Time
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		analyses: make(map[string]*models.StoredAnalysis),
		byUser:   make(map[string][]string),
		sessions: make(map[string]*models.UserSession),
		now:      time.Now,
	}
}

// SaveAnalysis stores a copy of analysis, assigning an id when it has none
func (m *MemoryProvider) SaveAnalysis(_ context.Context, analysis *models.StoredAnalysis) (string, error) {
	if err := validateRecord(analysis); err != nil {
		return "", err
	}
	rec := analysis.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.analyses[rec.ID]; ok {
		m.byUser[prev.UserID] = slices.DeleteFunc(m.byUser[prev.UserID], func(id string) bool { return id == rec.ID })
	}
	m.analyses[rec.ID] = rec
	m.byUser[rec.UserID] = append([]string{rec.ID}, m.byUser[rec.UserID]...)
	return rec.ID, nil
}

// GetAnalysis returns a copy of the record, or nil if unknown
func (m *MemoryProvider) GetAnalysis(_ context.Context, id string) (*models.StoredAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analyses[id].Clone(), nil
}

// GetUserHistory returns the user's records sorted by timestamp, newest first
func (m *MemoryProvider) GetUserHistory(_ context.Context, userID string, limit int) ([]*models.StoredAnalysis, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	ids := m.byUser[userID]
	out := make([]*models.StoredAnalysis, 0, len(ids))
	for _, id := range ids {
		if rec, ok := m.analyses[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	m.mu.RUnlock()

	// the index is insertion ordered; records saved with older timestamps still sort correctly
	slices.SortStableFunc(out, func(a, b *models.StoredAnalysis) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateAnalysisFeedback sets the feedback of an existing record
func (m *MemoryProvider) UpdateAnalysisFeedback(_ context.Context, id string, feedback models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.analyses[id]; ok {
		fb := feedback
		rec.Feedback = &fb
	}
	return nil
}

// CreateSession starts a fresh session for userID, replacing any existing one
func (m *MemoryProvider) CreateSession(_ context.Context, userID string) (*models.UserSession, error) {
	now := m.now()
	s := &models.UserSession{ID: userID, CreatedAt: now, LastActive: now}

	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()

	cp := *s
	return &cp, nil
}

// UpdateSession merges update into an existing session
func (m *MemoryProvider) UpdateSession(_ context.Context, userID string, update models.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		update.Apply(s, m.now())
	}
	return nil
}

// GetSession returns a copy of the session, or nil if unknown
func (m *MemoryProvider) GetSession(_ context.Context, userID string) (*models.UserSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Reset drops every record
func (m *MemoryProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = make(map[string]*models.StoredAnalysis)
	m.byUser = make(map[string][]string)
	m.sessions = make(map[string]*models.UserSession)
}
