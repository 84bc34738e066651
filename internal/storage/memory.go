package storage

import (
	"sort"
	"sync"
	"time"

	"findingchart/internal/model"
)

type MemoryStorage struct {
	sessions map[string]*model.Session
	images   map[string][]model.ChartImages
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*model.Session),
		images:   make(map[string][]model.ChartImages),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) CreateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = cloneSession(session)
	m.images[session.ID] = make([]model.ChartImages, len(session.Charts))
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return cloneSession(session), nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}

	delete(m.sessions, sessionID)
	delete(m.images, sessionID)
	return nil
}

func (m *MemoryStorage) ListSessions() ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, cloneSession(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (m *MemoryStorage) SaveChart(sessionID string, record model.ChartRecord, images model.ChartImages) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if err := putRecord(session, record); err != nil {
		return err
	}

	imgs := m.images[sessionID]
	for len(imgs) < len(session.Charts) {
		imgs = append(imgs, model.ChartImages{})
	}
	imgs[record.Index] = images
	m.images[sessionID] = imgs

	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) GetChartImage(sessionID string, index int, kind model.ImageKind) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	imgs, exists := m.images[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if index < 0 || index >= len(imgs) {
		return nil, ErrChartNotFound
	}

	data := imgs[index].Chart
	if kind == model.ImageThumb {
		data = imgs[index].Thumb
	}
	if data == nil {
		return nil, ErrChartNotFound
	}
	return data, nil
}
