package schema

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

// nullTokens are the spellings models use for "not found".
var nullTokens = map[string]struct{}{
	"":              {},
	"null":          {},
	"none":          {},
	"nil":           {},
	"n/a":           {},
	"na":            {},
	"no disponible": {},
	"not found":     {},
}

func isNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// normalize copies the known fields of data into a fresh object, applying
// format normalization. Unknown keys are dropped. It never fails: anything
// it cannot normalize is passed through for the schema to reject.
func (v *Validator) normalize(fields []field, data map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		raw, present := data[f.name]
		switch f.typ {
		case typeStringList:
			out[f.name] = normalizeList(raw)
			continue
		case typeBool:
			if b, ok := raw.(bool); ok {
				out[f.name] = b
			} else if f.name == "parsing_success" {
				out[f.name] = true
			} else {
				out[f.name] = false
			}
			continue
		case typeInt:
			out[f.name] = coerceInt(raw)
			continue
		}

		if !present || raw == nil {
			if !f.required {
				out[f.name] = nil
			}
			continue
		}

		s, ok := raw.(string)
		if !ok {
			out[f.name] = raw
			continue
		}
		s = strings.TrimSpace(s)
		if isNullToken(s) {
			if f.required {
				// A placeholder in a required field counts as empty.
				out[f.name] = ""
			} else {
				out[f.name] = nil
			}
			continue
		}

		switch f.typ {
		case typeURL:
			s = normalizeURL(s)
		case typeEmail:
			s = normalizeEmail(s)
		case typePhone:
			s = v.normalizePhone(s)
		}
		out[f.name] = s
	}
	return out
}

// normalizeURL adds a missing scheme, lower-cases scheme and host, and gives
// a bare host the root path, so "Example.com" and "https://example.com/"
// normalize to the same value.
func normalizeURL(s string) string {
	if !strings.Contains(s, "://") && strings.Contains(s, ".") && !strings.ContainsAny(s, " @") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = "/"
	}
	return u.String()
}

func normalizeEmail(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return s
	}
	local, domain := s[:at], s[at+1:]
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(domain))
	if err != nil || ascii == "" {
		return s
	}
	return local + "@" + ascii
}

func (v *Validator) normalizePhone(s string) string {
	num, err := phonenumbers.Parse(s, v.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// coerceInt converts a value to an integer when it is an integral number or
// a string made only of decimal digits. Anything else becomes nil.
func coerceInt(raw any) any {
	switch t := raw.(type) {
	case float64:
		if t == float64(int64(t)) && t >= 0 {
			return int64(t)
		}
	case int:
		if t >= 0 {
			return int64(t)
		}
	case int64:
		if t >= 0 {
			return t
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.TrimLeft(s, "0123456789") != "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return n
	}
	return nil
}

func normalizeList(raw any) []any {
	out := []any{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := raw.(type) {
	case []any:
		for _, item := range t {
			switch s := item.(type) {
			case string:
				add(s)
			case nil:
			default:
				add(fmt.Sprint(s))
			}
		}
	case []string:
		for _, s := range t {
			add(s)
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			add(s)
		}
	}
	return out
}
