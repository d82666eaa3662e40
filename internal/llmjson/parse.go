// Package llmjson extracts JSON objects from free-form model replies.
//
// Parse never fails atomically: a Result carries whatever object could be
// decoded alongside the error describing what was wrong with it, and callers
// inspect both.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// MaxSnippet bounds the prefix of offending text kept in parse errors.
const MaxSnippet = 200

const op = "llmjson: parse"

// Result is the outcome of Parse. Data may be non-nil even when Err is set.
type Result struct {
	Data map[string]any
	Err  *model.Error
}

// OK reports whether parsing succeeded without error.
func (r *Result) OK() bool {
	return r.Err == nil
}

type requirement struct {
	key  string
	list bool
}

type options struct {
	required []requirement
	nonEmpty bool
}

// Option declares an expectation about the parsed object.
type Option func(*options)

// WithRequiredKey requires key to be present with any value.
func WithRequiredKey(key string) Option {
	return func(o *options) {
		o.required = append(o.required, requirement{key: key})
	}
}

// WithRequiredList requires key to be present and hold a JSON array. An
// empty array satisfies the requirement unless WithNonEmpty is also given.
func WithRequiredList(key string) Option {
	return func(o *options) {
		o.required = append(o.required, requirement{key: key, list: true})
	}
}

// WithNonEmpty makes required lists fail when they are empty.
func WithNonEmpty() Option {
	return func(o *options) {
		o.nonEmpty = true
	}
}

// Parse decodes a JSON object from raw model text.
func Parse(raw string, opts ...Option) *Result {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	text := Clean(raw)
	if text == "" {
		return &Result{Err: model.NewError(model.KindMalformedJSON, op, "empty reply")}
	}

	v, err := decode(text)
	if err != nil {
		repaired := repair(text)
		if repaired == "" || repaired == text {
			return &Result{Err: malformed(text, err)}
		}
		if v, err = decode(repaired); err != nil {
			return &Result{Err: malformed(text, err)}
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return &Result{Err: model.NewError(model.KindSchemaMismatch, op,
			"top-level value is %s, want object", typeName(v))}
	}
	return &Result{Data: obj, Err: o.check(obj)}
}

func (o options) check(obj map[string]any) *model.Error {
	for _, r := range o.required {
		val, present := obj[r.key]
		if !present {
			return &model.Error{Kind: model.KindSchemaMismatch, Op: op, Field: r.key,
				Detail: fmt.Sprintf("missing required key %q", r.key)}
		}
		if !r.list {
			continue
		}
		list, ok := val.([]any)
		if !ok {
			return &model.Error{Kind: model.KindSchemaMismatch, Op: op, Field: r.key,
				Detail: fmt.Sprintf("key %q is %s, is not a list", r.key, typeName(val))}
		}
		if o.nonEmpty && len(list) == 0 {
			return &model.Error{Kind: model.KindSchemaMismatch, Op: op, Field: r.key,
				Detail: fmt.Sprintf("key %q is an empty list", r.key)}
		}
	}
	return nil
}

// Clean strips surrounding whitespace, byte-order marks and a Markdown code
// fence from a model reply.
func Clean(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\ufeff", ""))
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json", "JSON", ...) up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// repair cuts prose surrounding a JSON object: everything before the first
// '{' and after the last '}'.
func repair(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func malformed(text string, err error) *model.Error {
	return &model.Error{
		Kind:   model.KindMalformedJSON,
		Op:     op,
		Detail: fmt.Sprintf("reply is not valid JSON (%s): %q", err, Snippet(text)),
	}
}

// Snippet returns at most MaxSnippet runes of s, marking truncation.
func Snippet(s string) string {
	if utf8.RuneCountInString(s) <= MaxSnippet {
		return s
	}
	r := []rune(s)
	return string(r[:MaxSnippet]) + "..."
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
