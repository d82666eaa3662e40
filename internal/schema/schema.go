// Package schema validates untyped records (model replies, stored documents)
// against the lead pipeline's record schemas.
package schema

// Kind names a record schema.
type Kind string

const (
	KindCompany        Kind = "CompanyData"
	KindEmail          Kind = "EmailData"
	KindProfile        Kind = "UserProfile"
	KindLenientProfile Kind = "UserProfileLenient"
)

type fieldType int

const (
	typeString fieldType = iota
	typeURL
	typeEmail
	typePhone
	typeTimestamp
	typeInt
	typeStringList
	typeBool
)

type field struct {
	name     string
	typ      fieldType
	required bool
}

// timestampPattern accepts ISO-8601 dates and date-times with or without a
// zone offset.
const timestampPattern = `^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?)?(Z|[+-]\d{2}:?\d{2})?$`

var fieldSets = map[Kind][]field{
	KindCompany: {
		{name: "company_name", typ: typeString, required: true},
		{name: "industry", typ: typeString, required: true},
		{name: "province", typ: typeString, required: true},
		{name: "website", typ: typeURL},
		{name: "email", typ: typeEmail},
		{name: "instagram", typ: typeString},
		{name: "facebook", typ: typeString},
		{name: "about", typ: typeString},
		{name: "employees", typ: typeInt},
		{name: "source", typ: typeString, required: true},
		{name: "fecha_consulta", typ: typeTimestamp, required: true},
	},
	KindEmail: {
		{name: "email_subject", typ: typeString, required: true},
		{name: "email_body", typ: typeString, required: true},
		{name: "keywords", typ: typeStringList},
		{name: "generated_at", typ: typeTimestamp, required: true},
	},
	KindProfile: profileFields(true),
	// Earlier pipeline variant: every field optional.
	KindLenientProfile: profileFields(false),
}

func profileFields(strict bool) []field {
	return []field{
		{name: "name", typ: typeString, required: strict},
		{name: "role", typ: typeString, required: strict},
		{name: "company_name", typ: typeString},
		{name: "website", typ: typeURL},
		{name: "phone", typ: typePhone},
		{name: "email", typ: typeEmail, required: strict},
		{name: "keywords", typ: typeStringList},
		{name: "summary", typ: typeString},
		{name: "interests", typ: typeStringList},
		{name: "parsing_success", typ: typeBool},
	}
}

// buildJSONSchema renders a field set as a JSON Schema document.
func buildJSONSchema(fields []field) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		props[f.name] = propFor(f)
		if f.required {
			required = append(required, f.name)
		}
	}
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func propFor(f field) map[string]any {
	var p map[string]any
	switch f.typ {
	case typeURL:
		p = map[string]any{"type": "string", "format": "uri", "pattern": "^https?://"}
	case typeEmail:
		p = map[string]any{"type": "string", "format": "email"}
	case typeTimestamp:
		p = map[string]any{"type": "string", "pattern": timestampPattern}
	case typeInt:
		p = map[string]any{"type": "integer", "minimum": 0}
	case typeStringList:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case typeBool:
		return map[string]any{"type": "boolean"}
	default:
		p = map[string]any{"type": "string"}
	}
	if f.required {
		p["minLength"] = 1
		return p
	}
	return map[string]any{"anyOf": []any{p, map[string]any{"type": "null"}}}
}
