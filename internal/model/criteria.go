package model

// MaxCompanyURLs bounds the number of URLs accepted in direct URL mode.
const MaxCompanyURLs = 3

// SearchCriteria describes which companies to look for. Industry and
// Province drive the query; every other field is an optional filter.
type SearchCriteria struct {
	Industry     string   `json:"industry" yaml:"industry"`
	Province     string   `json:"province" yaml:"province"`
	Keywords     []string `json:"keywords,omitempty" yaml:"keywords"`
	CompanyName  string   `json:"company_name,omitempty" yaml:"company_name"`
	CompanySize  string   `json:"company_size,omitempty" yaml:"company_size"`
	Revenue      string   `json:"revenue,omitempty" yaml:"revenue"`
	Location     string   `json:"location,omitempty" yaml:"location"`
	Technologies []string `json:"technologies,omitempty" yaml:"technologies"`
	Needs        string   `json:"needs,omitempty" yaml:"needs"`

	// CompanyURLs switches research to direct URL mode: the listed pages
	// are scraped as candidates and no search is issued.
	CompanyURLs []string `json:"company_urls,omitempty" yaml:"company_urls"`
}

// Candidate is an unvalidated search hit awaiting scrape and extraction.
type Candidate struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}
