package models

import "time"

type VideoStatus string

const (
	VideoStatusProcessed VideoStatus = "processed"
	VideoStatusFailed    VideoStatus = "failed"
)

type VideoOutcome struct {
	Video      string
	RemotePath string
	Status     VideoStatus
	Result     *DetectionResult
	Err        error
}

type BatchReport struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Outcomes    []VideoOutcome
}

func (b *BatchReport) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Status == VideoStatusProcessed {
			n++
		}
	}
	return n
}

func (b *BatchReport) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}
