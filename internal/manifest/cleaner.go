// Package manifest holds the row rules for rental pickup and dropoff
// manifests: cleaning, run-scoped keying and ordering.
package manifest

import (
	"regexp"
	"strings"

	"manifest-relay/internal/model"
	"manifest-relay/pkg/errors"
)

const (
	FieldTomorrow = "Tomorrow"
	FieldVehicle  = "Vehicle"
	FieldItems    = "Items"
	FieldNotes    = "Items / Notes"
	FieldArrival  = "Arrival"
	FieldTime     = "Time"
	FieldRes      = "Res."
	FieldRank     = "#"
)

var DefaultLocationCodes = []string{"MEL", "ADL", "SYD", "MSR", "BNE", "CNS"}

var dropColumns = map[model.Category][]string{
	model.CategoryPickup: {
		"#", "# Days", "Balance", "Booked", "Daily Rate", "Day",
		"Dropoff Date", "Insurance", "Rental Value", "Checkin Completed",
		"Pickup", "Ref", "Agent", FieldVehicle, FieldItems,
	},
	model.CategoryDropoff: {
		"#", "# Days", "Update", "Notes", "Daily Rate", "Day",
		"Pickup Date", "Insurance", "Rental Value", "Dropoff", "Departure",
		"Next Rental", "Ref", FieldVehicle, "Balance", "color", FieldItems,
	},
}

var universalMarker = regexp.MustCompile(`(?i)- Universal `)

const travellingPrefix = "No. Travelling"

// travellingCut is the length of "No. Travelling: " in characters.
const travellingCut = 16

type Cleaner struct {
	validationColumn string
	locationCodes    []string
}

func NewCleaner(validationColumn string, locationCodes []string) *Cleaner {
	if validationColumn == "" {
		validationColumn = FieldRes
	}
	if len(locationCodes) == 0 {
		locationCodes = DefaultLocationCodes
	}
	return &Cleaner{
		validationColumn: validationColumn,
		locationCodes:    locationCodes,
	}
}

// ValidateSheet checks the first row of a sheet for the validation column.
// Only the first row is inspected; an empty sheet passes.
func (c *Cleaner) ValidateSheet(sheet string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if !rows[0].Has(c.validationColumn) {
		return errors.FormatError{
			Sheet:   sheet,
			Message: "missing column " + c.validationColumn,
		}
	}
	return nil
}

// Clean returns a normalized copy of row. The input is left untouched.
func (c *Cleaner) Clean(row model.Row, category model.Category, nextDay bool) model.Row {
	out := row.Clone()

	if nextDay {
		out[FieldTomorrow] = model.Text("true")
	} else {
		out[FieldTomorrow] = model.Text("false")
	}

	if vehicle, ok := out[FieldVehicle]; ok {
		out[category.RegoField()] = model.Text(c.cutLocation(vehicle.String()))
	} else {
		out[category.RegoField()] = model.Text(category.UnallocatedRego())
	}

	if items, ok := out[FieldItems]; ok {
		out[FieldNotes] = model.Text(cleanItems(items.String()))
	} else {
		out[FieldNotes] = model.Text("")
	}

	if category == model.CategoryPickup {
		out[FieldArrival] = cleanArrival(out[FieldArrival])
	}

	for _, col := range dropColumns[category] {
		delete(out, col)
	}

	return out
}

// CleanAll cleans every row of one sheet.
func (c *Cleaner) CleanAll(rows []model.Row, category model.Category, nextDay bool) []model.Row {
	out := make([]model.Row, len(rows))
	for i, row := range rows {
		out[i] = c.Clean(row, category, nextDay)
	}
	return out
}

// cutLocation truncates the vehicle text at the earliest location code in
// the string, whichever code that is.
func (c *Cleaner) cutLocation(vehicle string) string {
	cut := -1
	for _, code := range c.locationCodes {
		if i := strings.Index(vehicle, code); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return vehicle
	}
	return vehicle[:cut]
}

func cleanItems(items string) string {
	items = universalMarker.ReplaceAllString(items, "")
	items = strings.ReplaceAll(items, ")", ") ")
	return strings.TrimSpace(items)
}

// cleanArrival keeps only the passenger count from "No. Travelling: N"
// and blanks placeholder values. Non-text values pass through.
func cleanArrival(v model.Value) model.Value {
	switch v.Kind() {
	case model.KindEmpty:
		return model.Text("")
	case model.KindNumber:
		return v
	}
	arrival := v.String()
	switch {
	case strings.Contains(arrival, travellingPrefix):
		chars := []rune(arrival)
		if len(chars) <= travellingCut {
			return model.Text("")
		}
		return model.Text(strings.TrimSpace(string(chars[travellingCut:])))
	case strings.Contains(arrival, "N/A"), strings.Contains(arrival, "TBA"):
		return model.Text("")
	}
	return v
}
