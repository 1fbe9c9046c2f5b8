package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_UnratedAndS(t *testing.T) {
	items := []batch.Item{
		{Name: "waiting.jpg", Rating: rating.GradeUnrated, Status: batch.StatusPending},
		{Name: "best.jpg", Rating: rating.GradeS, Status: batch.StatusCompleted, Critique: "Perfect timing."},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two rows")
	assert.Equal(t, []string{"File Name", "Rating", "Critique"}, rows[0])
	assert.Equal(t, []string{"waiting.jpg", "-", ""}, rows[1])
	assert.Equal(t, []string{"best.jpg", "S", "Perfect timing."}, rows[2])
}

func TestWriteCSV_QuotesAndRejected(t *testing.T) {
	items := []batch.Item{
		{Name: "a, b.jpg", Rating: rating.GradeRejected, Status: batch.StatusError, Critique: "Rating failed: \"429\"\nretry later"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a, b.jpg", "REJECTED", "Rating failed: \"429\"\nretry later"}, rows[1])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "File Name,Rating,Critique\n", buf.String())
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "photo-ratings-2026-10-17-090503.csv", FileName(ts))
}
