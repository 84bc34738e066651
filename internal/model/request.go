package model

type GenerateRequest struct {
	FormOptions
	Coords string `json:"coords" binding:"required"`
	// SessionID names the previous submission, which is discarded.
	SessionID string `json:"session_id"`
}
