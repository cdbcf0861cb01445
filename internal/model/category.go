package model

type Category string

const (
	CategoryPickup  Category = "pickup"
	CategoryDropoff Category = "dropoff"
)

// Categories lists the relay order: every pickup goes out before any dropoff.
var Categories = []Category{CategoryPickup, CategoryDropoff}

// RegoField is the column the cleaned vehicle registration is written to.
func (c Category) RegoField() string {
	if c == CategoryDropoff {
		return "Rego"
	}
	return "Rego (ready)"
}

// UnallocatedRego is used when a row has no Vehicle column at all.
func (c Category) UnallocatedRego() string {
	if c == CategoryDropoff {
		return "UNALLOCATED"
	}
	return ""
}

// Batch is one category's ordered rows plus the trailing marker row that
// tells the sink the batch arrived pre-sorted.
type Batch struct {
	Category    Category `json:"category"`
	Destination string   `json:"destination"`
	Rows        []Row    `json:"rows"`
	Marker      Row      `json:"marker,omitempty"`
}

// Len counts every request the batch will produce, marker included.
func (b Batch) Len() int {
	if b.Marker == nil {
		return len(b.Rows)
	}
	return len(b.Rows) + 1
}

func SortMarker() Row {
	return Row{"Sort": Text("true")}
}

// Destinations pairs the sink URLs for one target day.
type Destinations struct {
	Pickup  string `yaml:"pickup" json:"pickup"`
	Dropoff string `yaml:"dropoff" json:"dropoff"`
}

func (d Destinations) For(c Category) string {
	if c == CategoryDropoff {
		return d.Dropoff
	}
	return d.Pickup
}
