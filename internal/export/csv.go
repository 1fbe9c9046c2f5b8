// Package export writes batch results as a CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/rating"
)

// Header is the first CSV row.
var Header = []string{"File Name", "Rating", "Critique"}

// Rating column values for items without a tier.
const (
	UnratedPlaceholder = "-"
	RejectedLabel      = "REJECTED"
)

// WriteCSV writes one row per item, in the order given.
func WriteCSV(w io.Writer, items []batch.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, it := range items {
		if err := cw.Write([]string{it.Name, ratingCell(it.Rating), it.Critique}); err != nil {
			return fmt.Errorf("write row %s: %w", it.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ratingCell(g rating.Grade) string {
	switch {
	case g.IsTier():
		return string(g)
	case g == rating.GradeRejected:
		return RejectedLabel
	default:
		return UnratedPlaceholder
	}
}

// FileName returns the suggested download name for an export made at t.
func FileName(t time.Time) string {
	return "photo-ratings-" + t.Format("2006-01-02-150405") + ".csv"
}
