package model

// EmailData is a generated sales email for one company. It is embedded in
// the report and never stored on its own.
type EmailData struct {
	EmailSubject string   `json:"email_subject"`
	EmailBody    string   `json:"email_body"`
	Keywords     []string `json:"keywords"`
	GeneratedAt  string   `json:"generated_at"`
}

// Map returns the record as an untyped JSON object.
func (e EmailData) Map() (map[string]any, error) {
	return toMap(e)
}
