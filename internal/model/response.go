package model

import "time"

type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Options   FormOptions   `json:"options"`
	Charts    []ChartRecord `json:"charts"`
	Pending   int           `json:"pending"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSessionResponse summarises a session for the API.
func NewSessionResponse(s *Session) SessionResponse {
	pending := 0
	for _, c := range s.Charts {
		if !c.Status.Settled() {
			pending++
		}
	}
	return SessionResponse{
		SessionID: s.ID,
		Options:   s.Options,
		Charts:    s.Charts,
		Pending:   pending,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type ChartEvent struct {
	SessionID string      `json:"session_id"`
	Index     int         `json:"index"`
	Name      string      `json:"name"`
	Status    ChartStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type OptionsResponse struct {
	Surveys       []string `json:"surveys"`
	Formats       []string `json:"formats"`
	Units         []string `json:"propermotion_units"`
	OutputEpoch   string   `json:"outepoch"`
	MinFieldSize  float64  `json:"min_size"`
	MaxFieldSize  float64  `json:"max_size"`
	DefaultSurvey string   `json:"default_survey"`
}

type ImportResponse struct {
	Coords string `json:"coords"`
	Lines  int    `json:"lines"`
}
