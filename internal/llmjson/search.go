package llmjson

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const searchOp = "llmjson: parse search"

// SearchResult is a search reply reduced to its organic hits.
type SearchResult struct {
	Organic []map[string]any
	Insight *string
	Err     *model.Error
}

// ParseSearch reads a search reply given as JSON text, raw bytes or an
// already decoded object. A reply without an "organic" list yields an empty
// Organic slice and an error; a reply holding only an "error" message
// propagates that message. An empty organic list is a valid, empty result.
func ParseSearch(raw any) SearchResult {
	var obj map[string]any
	switch t := raw.(type) {
	case map[string]any:
		obj = t
	case string, []byte, json.RawMessage:
		text := asString(t)
		res := Parse(text)
		if res.Err != nil {
			res.Err.Op = searchOp
			return SearchResult{Organic: []map[string]any{}, Err: res.Err}
		}
		obj = res.Data
	case nil:
		return SearchResult{Organic: []map[string]any{},
			Err: model.NewError(model.KindMalformedJSON, searchOp, "empty reply")}
	default:
		return SearchResult{Organic: []map[string]any{},
			Err: model.NewError(model.KindSchemaMismatch, searchOp, "unsupported reply type %T", raw)}
	}

	if msg, ok := onlyError(obj); ok {
		return SearchResult{Organic: []map[string]any{},
			Err: &model.Error{Kind: model.KindTransport, Op: searchOp, Detail: msg}}
	}

	out := SearchResult{Organic: []map[string]any{}}
	if s, ok := obj["insight"].(string); ok && strings.TrimSpace(s) != "" {
		out.Insight = &s
	}

	val, present := obj["organic"]
	if !present {
		out.Err = &model.Error{Kind: model.KindSchemaMismatch, Op: searchOp, Field: "organic",
			Detail: "reply did not contain an 'organic' key with a list value"}
		return out
	}
	list, ok := val.([]any)
	if !ok {
		out.Err = &model.Error{Kind: model.KindSchemaMismatch, Op: searchOp, Field: "organic",
			Detail: "'organic' is " + typeName(val) + ", is not a list"}
		return out
	}
	for _, item := range list {
		if entry, ok := item.(map[string]any); ok {
			out.Organic = append(out.Organic, entry)
		}
	}
	return out
}

// onlyError reports whether obj is an error envelope: a string "error" key
// and no organic results.
func onlyError(obj map[string]any) (string, bool) {
	msg, ok := obj["error"].(string)
	if !ok {
		return "", false
	}
	if _, has := obj["organic"]; has {
		return "", false
	}
	return msg, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	}
	return ""
}
