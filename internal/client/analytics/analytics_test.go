package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

func rec(teaType, date string, rating int) models.TastingRecord {
	return models.TastingRecord{ID: date + teaType, OwnerID: "u1", TeaType: teaType, Date: date, Rating: rating}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.Total)
	assert.Empty(t, s.FavoriteType)
	require.NotNil(t, s.Types)
	require.NotNil(t, s.Monthly)
}

func TestSummarize(t *testing.T) {
	records := []models.TastingRecord{
		rec("green", "2024-03-02", 5),
		rec("green", "2024-03-15", 4),
		rec("oolong", "2024-01-20", 3),
		rec("", "2024-02-01T08:30:00Z", 4),
		rec("puer", "not a date", 5),
	}

	s := Summarize(records)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4.2, s.AverageRating)
	assert.Equal(t, "green", s.FavoriteType)
	assert.Equal(t, [5]int{0, 0, 1, 2, 2}, s.Ratings)

	require.Len(t, s.Types, 4)
	assert.Equal(t, TypeShare{TeaType: "green", Count: 2, Percentage: 40}, s.Types[0])
	assert.Equal(t, TypeShare{TeaType: "oolong", Count: 1, Percentage: 20}, s.Types[1])
	assert.Equal(t, TypeShare{TeaType: unknownType, Count: 1, Percentage: 20}, s.Types[2])
	assert.Equal(t, TypeShare{TeaType: "puer", Count: 1, Percentage: 20}, s.Types[3])

	assert.Equal(t, []MonthCount{
		{Month: "2024-01", Count: 1},
		{Month: "2024-02", Count: 1},
		{Month: "2024-03", Count: 2},
	}, s.Monthly)
}

func TestSummarize_RoundsPercentages(t *testing.T) {
	s := Summarize([]models.TastingRecord{
		rec("green", "2024-03-02", 1),
		rec("black", "2024-03-02", 2),
		rec("white", "2024-03-02", 2),
	})

	for _, ts := range s.Types {
		assert.Equal(t, 33.3, ts.Percentage)
	}
	assert.Equal(t, 1.7, s.AverageRating)
	assert.Equal(t, "black", s.FavoriteType, "ties resolve alphabetically")
}
