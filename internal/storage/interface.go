package storage

import (
	"findingchart/internal/model"
)

type Storage interface {
	// sessions
	CreateSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.Session, error)

	// chart snapshots
	SaveChart(sessionID string, record model.ChartRecord, images model.ChartImages) error
	GetChartImage(sessionID string, index int, kind model.ImageKind) ([]byte, error)

	// lifecycle
	Init() error
	Close() error
	Backup() error
}

// cloneSession copies s deeply enough that callers may not race with the store.
func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.Charts = append([]model.ChartRecord(nil), s.Charts...)
	return &c
}

// putRecord replaces the record at its index or appends it as the next one.
func putRecord(s *model.Session, record model.ChartRecord) error {
	switch {
	case record.Index >= 0 && record.Index < len(s.Charts):
		s.Charts[record.Index] = record
	case record.Index == len(s.Charts):
		s.Charts = append(s.Charts, record)
	default:
		return ErrInvalidData
	}
	return nil
}
