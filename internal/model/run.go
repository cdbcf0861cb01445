package model

import "time"

type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

func (s RunStatus) Done() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is the operator-visible state of one manifest relay.
type Run struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	NextDay      bool      `json:"next_day"`
	Status       RunStatus `json:"status"`
	Sent         int       `json:"sent"`
	Total        int       `json:"total"`
	Percent      int       `json:"percent"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
