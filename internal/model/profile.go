package model

import "strings"

// UserProfile describes the salesperson the emails are written for. It is
// loaded once per session and read-only for the duration of a run.
type UserProfile struct {
	Name           string   `json:"name" yaml:"name"`
	Role           string   `json:"role" yaml:"role"`
	CompanyName    *string  `json:"company_name" yaml:"company_name"`
	Website        *string  `json:"website" yaml:"website"`
	Phone          *string  `json:"phone" yaml:"phone"`
	Email          string   `json:"email" yaml:"email"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	Summary        *string  `json:"summary" yaml:"summary"`
	Interests      []string `json:"interests" yaml:"interests"`
	ParsingSuccess bool     `json:"parsing_success" yaml:"parsing_success"`
}

// Map returns the profile as an untyped JSON object.
func (p UserProfile) Map() (map[string]any, error) {
	return toMap(p)
}

// SplitList splits a comma separated form value into trimmed, non-empty
// items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
