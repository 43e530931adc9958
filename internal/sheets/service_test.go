package sheets

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idscan/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_EF2/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_EF2", id)

	_, err = extractSpreadsheetID("https://example.com/sheet")
	assert.Error(t, err)
}

func TestToRows(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC)
	results := []Result{
		{
			Filename: "card.jpg",
			Rotation: 90,
			Status:   "ok",
			Record: &models.IdentityRecord{
				Serie:         "RK",
				Number:        "028132",
				LastName:      "CACIULATU",
				CNP:           "1890506430036",
				ValidityStart: "2017-01-17",
			},
		},
		{Filename: "broken.png", Status: "error", Error: errors.New("unsupported image format")},
	}

	rows := toRows(results, now)
	require.Len(t, rows, 2)

	assert.Equal(t, "RK", rows[0].Serie)
	assert.Equal(t, 90, rows[0].Rotation)
	assert.Equal(t, "19.10.2026 14:05:00", rows[0].ProcessedAt)
	assert.Equal(t, "error: unsupported image format", rows[1].Status)
	assert.Empty(t, rows[1].CNP)
}

func TestRowToValuesMatchesHeaders(t *testing.T) {
	values := rowToValues(Row{Filename: "a.png", CNP: "1890506430036", ProcessedAt: "p"})
	require.Len(t, values, len(Headers))
	assert.Equal(t, "a.png", values[0])
	assert.Equal(t, "1890506430036", values[8])
	assert.Equal(t, "CNP", Headers[8])
	assert.Equal(t, "p", values[len(values)-1])
	assert.Equal(t, "R", lastColumn())
}
