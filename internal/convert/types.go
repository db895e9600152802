package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an API identifier. The API writes ids as JSON numbers, cookies and
// some payloads as strings; both decode to the same decimal text.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Variation is one arm of an experience.
type Variation struct {
	ID                  ID      `json:"id"`
	Key                 string  `json:"key"`
	Name                string  `json:"name"`
	TrafficDistribution float64 `json:"traffic_distribution"`
}

// Experience is the subset of an experience document the tools read.
type Experience struct {
	ID         ID          `json:"id"`
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	Status     string      `json:"status,omitempty"`
	Variations []Variation `json:"variations,omitempty"`
}

// Pagination is the paging block list endpoints return under
// extra.pagination.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	ItemsCount   int `json:"items_count"`
	ItemsPerPage int `json:"items_per_page"`
	PagesCount   int `json:"pages_count"`
}

// ExperienceList is the first page of an experience listing.
type ExperienceList struct {
	Experiences []Experience
	Pagination  Pagination

	// Raw is the "data" member as sent by the API.
	Raw json.RawMessage
}

// ListOptions selects related objects to include in a listing or lookup.
type ListOptions struct {
	Include []string `json:"include,omitempty"`
	Expand  []string `json:"expand,omitempty"`
}

func (o ListOptions) empty() bool {
	return len(o.Include) == 0 && len(o.Expand) == 0
}

// body renders the options as the request body; empty options send none.
func (o ListOptions) body() (string, error) {
	if o.empty() {
		return "", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}
	return string(b), nil
}

var (
	// WithVariations is the expansion used to build variant maps and to
	// read a single experience.
	WithVariations = ListOptions{Include: []string{"variations"}, Expand: []string{"variations"}}

	// WithStats additionally asks for the experience's statistics.
	WithStats = ListOptions{Include: []string{"variations", "stats"}, Expand: []string{"variations"}}
)
