package batch

import (
	"time"

	"github.com/fpang/photo-rater/internal/rating"
)

// Status is the processing state of one item.
type Status string

const (
	// StatusIdle items wait for Start before they are queued.
	StatusIdle       Status = "Idle"
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// Terminal reports whether s is Completed or Error.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Item is one photo and its processing record. Values returned by the
// Controller are copies.
type Item struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Preview  string       `json:"preview"`
	Rating   rating.Grade `json:"rating"`
	Critique string       `json:"critique"`
	Status   Status       `json:"status"`
	Attempts int          `json:"attempts"`
	Camera   string       `json:"camera,omitempty"`
	TakenAt  *time.Time   `json:"takenAt,omitempty"`
	AddedAt  time.Time    `json:"addedAt"`

	payload []byte
}

// Stats is derived from the item list on every read.
type Stats struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Idle       int `json:"idle"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	S          int `json:"s"`
	A          int `json:"a"`
	B          int `json:"b"`
}

// Counts converts the statistics for the group report.
func (s Stats) Counts() rating.Counts {
	return rating.Counts{Total: s.Total, Failed: s.Failed, S: s.S, A: s.A, B: s.B}
}

func computeStats(items []*Item) Stats {
	var s Stats
	s.Total = len(items)
	for _, it := range items {
		switch it.Status {
		case StatusIdle:
			s.Idle++
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
			switch it.Rating {
			case rating.GradeS:
				s.S++
			case rating.GradeA:
				s.A++
			case rating.GradeB:
				s.B++
			}
		case StatusError:
			s.Failed++
		}
	}
	s.Processed = s.Completed + s.Failed
	return s
}
