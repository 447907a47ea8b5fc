// Package analytics computes the tasting statistics shown by the stats
// command: type distribution, rating histogram and a monthly trend.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

// TypeShare is the number of records of one tea type and its share of all
// records, in percent rounded to one decimal.
type TypeShare struct {
	TeaType    string  `json:"teaType"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthCount is the number of tastings in a calendar month ("2006-01").
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Summary struct {
	Total         int          `json:"total"`
	AverageRating float64      `json:"averageRating"`
	FavoriteType  string       `json:"favoriteType"`
	Types         []TypeShare  `json:"types"`
	Ratings       [5]int       `json:"ratings"`
	Monthly       []MonthCount `json:"monthly"`
}

const unknownType = "other"

// Summarize builds a Summary over records. An empty input yields a zero
// Summary with non-nil slices.
func Summarize(records []models.TastingRecord) Summary {
	s := Summary{Types: []TypeShare{}, Monthly: []MonthCount{}}
	if len(records) == 0 {
		return s
	}
	s.Total = len(records)

	types := map[string]int{}
	months := map[string]int{}
	sum := 0
	for _, r := range records {
		t := r.TeaType
		if t == "" {
			t = unknownType
		}
		types[t]++

		if r.Rating >= 1 && r.Rating <= 5 {
			s.Ratings[r.Rating-1]++
		}
		sum += r.Rating

		if m, ok := monthOf(r.Date); ok {
			months[m]++
		}
	}

	s.AverageRating = round1(float64(sum) / float64(s.Total))

	for t, n := range types {
		s.Types = append(s.Types, TypeShare{
			TeaType:    t,
			Count:      n,
			Percentage: round1(float64(n) * 100 / float64(s.Total)),
		})
	}
	sort.Slice(s.Types, func(i, j int) bool {
		if s.Types[i].Count != s.Types[j].Count {
			return s.Types[i].Count > s.Types[j].Count
		}
		return s.Types[i].TeaType < s.Types[j].TeaType
	})
	s.FavoriteType = s.Types[0].TeaType

	for m, n := range months {
		s.Monthly = append(s.Monthly, MonthCount{Month: m, Count: n})
	}
	sort.Slice(s.Monthly, func(i, j int) bool { return s.Monthly[i].Month < s.Monthly[j].Month })

	return s
}

// monthOf extracts the calendar month of a tasting date. Both plain dates
// and RFC 3339 timestamps are accepted.
func monthOf(date string) (string, bool) {
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006-01"), true
		}
	}
	return "", false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
