package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Record source tags.
const (
	SourceSearch = "search"
	SourceScrape = "scrape"
)

// CompanyData is a validated lead: one prospective company as researched
// from a search hit and its scraped page.
type CompanyData struct {
	CompanyName   string  `json:"company_name"`
	Industry      string  `json:"industry"`
	Province      string  `json:"province"`
	Website       *string `json:"website"`
	Email         *string `json:"email"`
	Instagram     *string `json:"instagram"`
	Facebook      *string `json:"facebook"`
	About         *string `json:"about"`
	Employees     *int    `json:"employees"`
	Source        string  `json:"source"`
	FechaConsulta string  `json:"fecha_consulta"`
}

// Key returns the (company_name, province) pair that identifies a lead in
// the store.
func (c CompanyData) Key() LeadKey {
	return LeadKey{CompanyName: c.CompanyName, Province: c.Province}
}

// Map returns the record as an untyped JSON object, the form validators and
// other process boundaries work with.
func (c CompanyData) Map() (map[string]any, error) {
	return toMap(c)
}

// LeadKey identifies a stored lead.
type LeadKey struct {
	CompanyName string `json:"company_name"`
	Province    string `json:"province"`
}

func (k LeadKey) String() string {
	return k.CompanyName + " (" + k.Province + ")"
}

// StringOr dereferences s, returning def when s is nil or blank.
func StringOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal record")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, eris.Wrap(err, "model: unmarshal record")
	}
	return m, nil
}
