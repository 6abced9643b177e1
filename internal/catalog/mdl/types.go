package mdl

import "encoding/json"

// Candidate is one search hit.
type Candidate struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Year  int    `json:"year"`
}

// Details carries the scalar metadata of a title as the proxy reports it.
// Rating, Ranked, and Popularity are kept verbatim; numeric interpretation
// belongs to the enrichment layer.
type Details struct {
	Title      string
	Rating     string
	Ranked     string
	Popularity string
	Genres     []string
	Tags       []string
}

// CastMember is one credited person.
type CastMember struct {
	Name      string
	Image     string
	PersonKey string
	Character string
	RoleType  string
}

// CastGroup is one role bucket in proxy order ("Main Role", "Support Role", ...).
type CastGroup struct {
	Name    string
	Members []CastMember
}

// Cast is the grouped cast list of a title.
type Cast struct {
	Groups []CastGroup
}

// Person is an opaque person profile document.
type Person struct {
	Key     string
	Payload json.RawMessage
}
