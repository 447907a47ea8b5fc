package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/teadiary/internal/client/services"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

const shortIDLen = 8

// Add collects a tasting note and saves it for the signed-in account.
func (a *App) Add(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}

	var r models.TastingRecord
	if err := a.promptRecord(ctx, acc, &r); err != nil {
		return a.fail(ctx, "Add", err)
	}

	saved, err := a.records.Add(ctx, acc, r)
	if err != nil {
		return a.fail(ctx, "Add", err)
	}
	a.println(okStyle.Render("Saved"), shortID(saved.ID))
	return nil
}

// Edit re-prompts every field of a record, keeping the current value when
// the answer is empty.
func (a *App) Edit(ctx context.Context, args []string) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	r, err := a.resolveRecord(ctx, acc, args)
	if err != nil {
		return a.fail(ctx, "Edit", err)
	}

	if err := a.promptRecord(ctx, acc, &r); err != nil {
		return a.fail(ctx, "Edit", err)
	}
	if _, err := a.records.Update(ctx, acc, r); err != nil {
		return a.fail(ctx, "Edit", err)
	}
	a.println(okStyle.Render("Updated"), shortID(r.ID))
	return nil
}

// Delete removes a record after confirmation.
func (a *App) Delete(ctx context.Context, args []string) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	r, err := a.resolveRecord(ctx, acc, args)
	if err != nil {
		return a.fail(ctx, "Delete", err)
	}

	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete %q? (y/N)", r.TeaName), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		a.println("Kept")
		return nil
	}

	if err := a.records.Delete(ctx, acc, r.ID); err != nil {
		return a.fail(ctx, "Delete", err)
	}
	a.println(okStyle.Render("Deleted"), shortID(r.ID))
	return nil
}

// List prints the account's records, newest tasting first. Arguments of
// the form type=<tea type> filter by type; the rest is a search text.
func (a *App) List(ctx context.Context, args []string) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}

	var (
		f     services.Filter
		words []string
	)
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, "type="); ok {
			f.TeaType = v
			continue
		}
		words = append(words, arg)
	}
	f.Search = strings.Join(words, " ")

	records, err := a.records.List(ctx, acc, f)
	if err != nil {
		return a.fail(ctx, "List", err)
	}
	if len(records) == 0 {
		a.println(mutedStyle.Render("No tasting records yet"))
		return nil
	}

	for _, r := range records {
		a.printf("%-8s  %-10s  %-24s  %-10s  %s\n",
			shortID(r.ID), r.Date, truncate(r.TeaName, 24), truncate(r.TeaType, 10), stars(r.Rating))
	}
	a.println(mutedStyle.Render(fmt.Sprintf("%d record(s)", len(records))))
	return nil
}

// Show prints one record in full.
func (a *App) Show(ctx context.Context, args []string) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	r, err := a.resolveRecord(ctx, acc, args)
	if err != nil {
		return a.fail(ctx, "Show", err)
	}
	a.println(renderRecord(r))
	return nil
}

// resolveRecord finds the record named by args[0], or by a prompted id. A
// unique id prefix is enough.
func (a *App) resolveRecord(ctx context.Context, acc models.Account, args []string) (models.TastingRecord, error) {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		v, err := getSimpleText(a.reader, "Enter record id", a.out)
		if err != nil {
			return models.TastingRecord{}, err
		}
		id = v
	}
	if id == "" {
		return models.TastingRecord{}, services.ErrRecordNotFound
	}

	if r, err := a.records.Get(ctx, acc, id); err == nil {
		return r, nil
	}

	all, err := a.records.List(ctx, acc, services.Filter{})
	if err != nil {
		return models.TastingRecord{}, err
	}
	var match []models.TastingRecord
	for _, r := range all {
		if strings.HasPrefix(r.ID, id) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return models.TastingRecord{}, services.ErrRecordNotFound
	case 1:
		return match[0], nil
	default:
		return models.TastingRecord{}, fmt.Errorf("id prefix %q is ambiguous", id)
	}
}

// promptRecord asks for every editable field, using r's values as defaults.
func (a *App) promptRecord(ctx context.Context, acc models.Account, r *models.TastingRecord) error {
	var err error
	text := func(prompt string, dst *string) {
		if err != nil {
			return
		}
		*dst, err = GetTextWithDefault(a.reader, prompt, *dst, a.out)
	}

	text("Tea name", &r.TeaName)

	if types, terr := a.records.TeaTypes(ctx, acc); terr == nil && len(types) > 0 && err == nil {
		a.println(mutedStyle.Render("Known types: " + strings.Join(types, ", ")))
	}
	text("Tea type (green, black, oolong, white, pu-erh, herbal...)", &r.TeaType)
	text("Origin", &r.Origin)

	if err == nil {
		var when string
		when, err = GetTextWithDefault(a.reader, "Tasting date (YYYY-MM-DD, today, yesterday...)", r.Date, a.out)
		if err == nil {
			r.Date, err = parseDate(when, a.now())
		}
	}

	text("Brewing method", &r.BrewingMethod)
	if err == nil {
		r.Temperature, err = GetInt(a.reader, "Water temperature, °C", r.Temperature, a.out)
	}
	text("Brewing time", &r.BrewingTime)
	if err == nil {
		r.Rating, err = GetInt(a.reader, "Rating (1-5)", r.Rating, a.out)
	}
	text("Appearance", &r.Appearance)
	text("Aroma", &r.Aroma)
	text("Taste", &r.Taste)
	text("Aftertaste", &r.Aftertaste)
	if err != nil {
		return err
	}

	notes, err := GetMultiline(a.reader, "Notes (markdown allowed)", a.out)
	if err != nil {
		return err
	}
	if notes != "" {
		r.Notes = notes
	}
	return nil
}

func renderRecord(r models.TastingRecord) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.TeaName))
	b.WriteString("  " + stars(r.Rating) + "\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label+":") + " " + value + "\n")
	}
	field("ID", r.ID)
	field("Date", r.Date)
	field("Type", r.TeaType)
	field("Origin", r.Origin)
	field("Method", r.BrewingMethod)
	if r.Temperature != 0 {
		field("Temperature", fmt.Sprintf("%d°C", r.Temperature))
	}
	field("Brewing time", r.BrewingTime)
	field("Appearance", r.Appearance)
	field("Aroma", r.Aroma)
	field("Taste", r.Taste)
	field("Aftertaste", r.Aftertaste)
	field("Notes", r.Notes)
	if !r.UpdatedAt.IsZero() {
		field("Updated", r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}

	return cardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
