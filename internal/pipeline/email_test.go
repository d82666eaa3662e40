package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func newEmail(t *testing.T, c *scriptedCompleter) *EmailStage {
	t.Helper()
	s := NewEmailStage(c, testValidator(t))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestStructureEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		subject string
		body    string
	}{
		{"spanish label", "Asunto: Oferta\nLinea1\nLinea2", "Oferta", "Linea1\nLinea2"},
		{"english label", "Subject: Offer\n\nHello", "Offer", "Hello"},
		{"case insensitive", "ASUNTO:   Propuesta de IA\nCuerpo", "Propuesta de IA", "Cuerpo"},
		{"bold label", "**Asunto:** Oferta\nCuerpo", "Oferta", "Cuerpo"},
		{"no label", "Hola equipo\nCuerpo", "Hola equipo", "Cuerpo"},
		{"leading blank lines", "\n\n  Asunto: X\r\nA\r\nB  \n", "X", "A\nB"},
		{"empty label", "Asunto:\nCuerpo", DefaultSubject, "Cuerpo"},
		{"empty reply", "  \n ", DefaultSubject, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := StructureEmail(tt.in)
			assert.Equal(t, tt.subject, subject)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestStructureEmail_NormalizesToNFC(t *testing.T) {
	// Decomposed "o" plus combining acute accent.
	subject, _ := StructureEmail("Asunto: Informacio\u0301n\nCuerpo")
	assert.Equal(t, "Informaci\u00f3n", subject)
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"CRM", "datos", "IA"}, SplitKeywords("CRM, datos\n- IA\ncrm", 5))
	assert.Equal(t, []string{"a", "b"}, SplitKeywords("a,b,c,d", 2))
	assert.Equal(t, []string{}, SplitKeywords("  ", 5))
}

func TestEmailGenerate(t *testing.T) {
	c := (&scriptedCompleter{}).
		push("Asunto: Oferta\nLinea1\nLinea2").
		push("automatización, CRM, datos, ventas, IA, extra")

	got, verr := newEmail(t, c).Generate(context.Background(), testCompany("Acme"), testProfile())
	require.Nil(t, verr)

	assert.Equal(t, "Oferta", got.EmailSubject)
	assert.Equal(t, "Linea1\nLinea2", got.EmailBody)
	assert.Equal(t, []string{"automatización", "CRM", "datos", "ventas", "IA"}, got.Keywords)
	assert.Equal(t, "2026-10-19T13:00:00Z", got.GeneratedAt)

	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[0], "Acme")
	assert.Contains(t, c.prompts[0], "Ana Pérez")
	assert.Contains(t, c.prompts[1], "Linea1\nLinea2")
}

func TestEmailGenerate_CompletionFailure(t *testing.T) {
	c := (&scriptedCompleter{}).fail(errors.New("timeout"))

	got, verr := newEmail(t, c).Generate(context.Background(), testCompany("Acme"), testProfile())
	assert.Nil(t, got)
	require.NotNil(t, verr)
	assert.Equal(t, model.KindTransport, verr.Kind)
	assert.Contains(t, verr.Error(), "timeout")
	assert.Len(t, c.prompts, 1)
}

func TestEmailGenerate_KeywordFailure(t *testing.T) {
	c := (&scriptedCompleter{}).push("Asunto: Oferta\nCuerpo").fail(errors.New("rate limited"))

	got, verr := newEmail(t, c).Generate(context.Background(), testCompany("Acme"), testProfile())
	assert.Nil(t, got)
	require.NotNil(t, verr)
	assert.Equal(t, model.KindTransport, verr.Kind)
}

func TestEmailGenerate_EmptyBodyInvalid(t *testing.T) {
	c := (&scriptedCompleter{}).push("Asunto: Solo asunto").push("")

	got, verr := newEmail(t, c).Generate(context.Background(), testCompany("Acme"), testProfile())
	assert.Nil(t, got)
	require.NotNil(t, verr)
	assert.Equal(t, model.KindValidation, verr.Kind)
}
