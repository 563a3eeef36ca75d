package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DetectionResult is computed once per video and persisted to the local results table
// and to the remote JSON result file.
type DetectionResult struct {
	Video     string    `json:"video"`
	Timestamp time.Time `json:"-"`
	BeeCount  int       `json:"bee_count"`
	BeeIDs    []int     `json:"bee_ids"`
}

// resultDocument is the exact JSON shape uploaded to the remote host.
type resultDocument struct {
	Video     string `json:"video"`
	Timestamp string `json:"timestamp"`
	BeeCount  int    `json:"bee_count"`
	BeeIDs    []int  `json:"bee_ids"`
}

func NewDetectionResult(video string, ids map[int]struct{}, at time.Time) *DetectionResult {
	beeIDs := make([]int, 0, len(ids))
	for id := range ids {
		beeIDs = append(beeIDs, id)
	}
	sort.Ints(beeIDs)
	return &DetectionResult{
		Video:     video,
		Timestamp: at,
		BeeCount:  len(beeIDs),
		BeeIDs:    beeIDs,
	}
}

func (r *DetectionResult) FormattedTimestamp() string {
	return r.Timestamp.Format(time.RFC3339Nano)
}

// JoinedIDs renders ids as "3,7,9" for the results table.
func (r *DetectionResult) JoinedIDs() string {
	parts := make([]string, len(r.BeeIDs))
	for i, id := range r.BeeIDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Row is the results table record: video, timestamp, count, comma-joined ids.
func (r *DetectionResult) Row() []string {
	return []string{r.Video, r.FormattedTimestamp(), strconv.Itoa(r.BeeCount), r.JoinedIDs()}
}

func (r *DetectionResult) Document() interface{} {
	ids := r.BeeIDs
	if ids == nil {
		ids = []int{}
	}
	return resultDocument{
		Video:     r.Video,
		Timestamp: r.FormattedTimestamp(),
		BeeCount:  r.BeeCount,
		BeeIDs:    ids,
	}
}
