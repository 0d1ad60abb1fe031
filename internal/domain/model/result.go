package model

import "time"

type Mode string

const (
	ModeResume    Mode = "resume"
	ModeOverwrite Mode = "overwrite"
)

func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeResume, "":
		return ModeResume, true
	case ModeOverwrite:
		return ModeOverwrite, true
	}
	return "", false
}

// ItemResult is the terminal outcome of one batch index.
type ItemResult struct {
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	Success   bool      `json:"success"`
	Skipped   bool      `json:"skipped,omitempty"`
	RemoteID  *string   `json:"remote_id"`
	Error     *string   `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func SucceededItem(index int, title, remoteID string, at time.Time) ItemResult {
	return ItemResult{Index: index, Title: title, Success: true, RemoteID: &remoteID, Timestamp: at}
}

func FailedItem(index int, title, message string, at time.Time) ItemResult {
	return ItemResult{Index: index, Title: title, Error: &message, Timestamp: at}
}

type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (s *Summary) Add(r ItemResult) {
	switch {
	case r.Skipped:
		s.Skipped++
	case r.Success:
		s.Successful++
	default:
		s.Failed++
	}
}
