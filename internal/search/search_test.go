package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/llmjson"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/jina"
	jinamocks "github.com/sells-group/leadgen-cli/pkg/jina/mocks"
	"github.com/sells-group/leadgen-cli/pkg/serper"
	serpermocks "github.com/sells-group/leadgen-cli/pkg/serper/mocks"
)

const serperBody = `{"organic":[{"title":"Acme SA","link":"https://acme.com.ar","snippet":"Software","position":1}]}`

func TestRaw_Value(t *testing.T) {
	assert.Equal(t, "{}", Raw{Body: "{}"}.Value())

	obj := map[string]any{"organic": []any{}}
	assert.Equal(t, obj, Raw{Body: "ignored", Object: obj}.Value())
}

func TestFunc(t *testing.T) {
	var s Searcher = Func(func(_ context.Context, q string) (Raw, error) {
		return Raw{Body: q}, nil
	})
	raw, err := s.Search(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "hola", raw.Body)
	assert.Equal(t, "func", s.Name())
}

func TestSerper_Search(t *testing.T) {
	m := serpermocks.NewMockClient(t)
	m.On("Search", mock.Anything, serper.SearchRequest{
		Query: "software Córdoba", Country: "ar", Language: "es", Num: 10,
	}).Return(&serper.SearchResponse{Raw: []byte(serperBody)}, nil)

	s := NewSerper(m, SerperOptions{})
	assert.Equal(t, "serper", s.Name())

	raw, err := s.Search(context.Background(), "software Córdoba")
	require.NoError(t, err)
	assert.Equal(t, serperBody, raw.Body)

	parsed := llmjson.ParseSearch(raw.Value())
	require.Nil(t, parsed.Err)
	require.Len(t, parsed.Organic, 1)
	assert.Equal(t, "https://acme.com.ar", parsed.Organic[0]["link"])
}

func TestSerper_TransientStatus(t *testing.T) {
	m := serpermocks.NewMockClient(t)
	m.On("Search", mock.Anything, mock.Anything).
		Return(nil, &serper.StatusError{StatusCode: 503, Body: "busy"})

	_, err := NewSerper(m, SerperOptions{Country: "ar"}).Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "search: serper")
}

func TestSerper_PermanentStatus(t *testing.T) {
	m := serpermocks.NewMockClient(t)
	m.On("Search", mock.Anything, mock.Anything).
		Return(nil, &serper.StatusError{StatusCode: 401, Body: "Unauthorized."})

	_, err := NewSerper(m, SerperOptions{}).Search(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestJina_SearchReshapesResults(t *testing.T) {
	m := jinamocks.NewMockClient(t)
	m.On("Search", mock.Anything, "software Córdoba").Return(&jina.SearchResponse{
		Code: 200,
		Data: []jina.SearchResult{
			{Title: "Acme SA", URL: "https://acme.com.ar", Description: "Software a medida"},
			{Title: "Beta", URL: "https://beta.com.ar", Content: strings.Repeat("é", 400)},
		},
	}, nil)

	raw, err := NewJina(m, "ar").Search(context.Background(), "software Córdoba")
	require.NoError(t, err)
	require.NotNil(t, raw.Object)

	parsed := llmjson.ParseSearch(raw.Value())
	require.Nil(t, parsed.Err)
	require.Len(t, parsed.Organic, 2)
	assert.Equal(t, "Acme SA", parsed.Organic[0]["title"])
	assert.Equal(t, "https://acme.com.ar", parsed.Organic[0]["link"])
	assert.Equal(t, "Software a medida", parsed.Organic[0]["snippet"])
	assert.Len(t, []rune(parsed.Organic[1]["snippet"].(string)), snippetRunes)
}

func TestJina_SearchEmpty(t *testing.T) {
	m := jinamocks.NewMockClient(t)
	m.On("Search", mock.Anything, "nada").Return(&jina.SearchResponse{Code: 422}, nil)

	raw, err := NewJina(m, "").Search(context.Background(), "nada")
	require.NoError(t, err)

	parsed := llmjson.ParseSearch(raw.Value())
	assert.Nil(t, parsed.Err)
	assert.Empty(t, parsed.Organic)
}

func TestJina_SearchError(t *testing.T) {
	m := jinamocks.NewMockClient(t)
	m.On("Search", mock.Anything, "q").Return(nil, &jina.StatusError{Op: "search", StatusCode: 429})

	_, err := NewJina(m, "ar").Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	m2 := jinamocks.NewMockClient(t)
	m2.On("Search", mock.Anything, "q").Return(nil, errors.New("boom"))
	_, err = NewJina(m2, "ar").Search(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
