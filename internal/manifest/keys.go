package manifest

import "manifest-relay/internal/model"

// Run is the per-file accumulation state. Each category keeps its own
// counter so rows merged from several sheets get disjoint, increasing keys.
// A fresh Run must be used for every file.
type Run struct {
	counters map[model.Category]int
	rows     map[model.Category]model.KeyedRows
}

func NewRun() *Run {
	return &Run{
		counters: make(map[model.Category]int),
		rows:     make(map[model.Category]model.KeyedRows),
	}
}

// Assign keys rows from the category counter and merges them into the run.
// The returned mapping holds only the rows of this call.
func (r *Run) Assign(category model.Category, rows []model.Row) model.KeyedRows {
	keyed := make(model.KeyedRows, len(rows))
	all := r.rows[category]
	if all == nil {
		all = make(model.KeyedRows)
		r.rows[category] = all
	}

	for _, row := range rows {
		key := r.counters[category]
		keyed[key] = row
		all[key] = row
		r.counters[category]++
	}
	return keyed
}

// Rows returns everything accumulated for the category so far.
func (r *Run) Rows(category model.Category) model.KeyedRows {
	if rows, ok := r.rows[category]; ok {
		return rows
	}
	return model.KeyedRows{}
}

func (r *Run) Count(category model.Category) int {
	return r.counters[category]
}
