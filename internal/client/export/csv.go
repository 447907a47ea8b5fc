package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

var csvHeader = []string{
	"date", "tea_name", "tea_type", "origin", "brewing_method", "temperature",
	"brewing_time", "rating", "appearance", "aroma", "taste", "aftertaste", "notes",
}

// WriteCSV writes one row per record, in the order given.
func WriteCSV(w io.Writer, records []models.TastingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date,
			r.TeaName,
			r.TeaType,
			r.Origin,
			r.BrewingMethod,
			strconv.Itoa(r.Temperature),
			r.BrewingTime,
			strconv.Itoa(r.Rating),
			r.Appearance,
			r.Aroma,
			r.Taste,
			r.Aftertaste,
			flatten(r.Notes),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
