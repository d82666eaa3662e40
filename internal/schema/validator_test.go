package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func validCompany() map[string]any {
	return map[string]any{
		"company_name":   "Acme SA",
		"industry":       "Software",
		"province":       "Córdoba",
		"website":        "https://acme.com.ar/",
		"email":          "ventas@acme.com.ar",
		"source":         "scrape",
		"fecha_consulta": "2026-10-19T10:00:00Z",
	}
}

func TestValidate_CompanySuccess(t *testing.T) {
	v := newTestValidator(t)

	c, verr := v.Company(validCompany())
	require.Nil(t, verr)
	assert.Equal(t, "Acme SA", c.CompanyName)
	assert.Equal(t, "https://acme.com.ar/", model.StringOr(c.Website, ""))
	assert.Nil(t, c.Instagram)
	assert.Nil(t, c.Employees)
}

func TestValidate_MissingRequiredField(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	delete(data, "province")

	_, verr := v.Company(data)
	require.NotNil(t, verr)
	assert.Equal(t, model.KindValidation, verr.Kind)
	assert.Equal(t, "/province", verr.Field)
}

func TestValidate_BlankRequiredField(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["company_name"] = "   "

	_, verr := v.Company(data)
	require.NotNil(t, verr)
	assert.Equal(t, "/company_name", verr.Field)
}

func TestValidate_NullTokensBecomeNil(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["email"] = "null"
	data["website"] = "N/A"
	data["instagram"] = "None"
	data["about"] = ""

	c, verr := v.Company(data)
	require.Nil(t, verr)
	assert.Nil(t, c.Email)
	assert.Nil(t, c.Website)
	assert.Nil(t, c.Instagram)
	assert.Nil(t, c.About)
}

func TestValidate_NullTokenInRequiredField(t *testing.T) {
	v := newTestValidator(t)
	for _, token := range []string{"null", "N/A", "None", "no disponible"} {
		t.Run(token, func(t *testing.T) {
			data := validCompany()
			data["company_name"] = token

			_, verr := v.Company(data)
			require.NotNil(t, verr)
			assert.Equal(t, model.KindValidation, verr.Kind)
			assert.Equal(t, "/company_name", verr.Field)
			assert.Contains(t, verr.Detail, "empty")
		})
	}
}

func TestValidate_WebsiteMustBeHTTP(t *testing.T) {
	v := newTestValidator(t)
	for _, site := range []string{"javascript:alert(1)", "ftp://acme.com.ar/", "mailto:ventas@acme.com.ar"} {
		t.Run(site, func(t *testing.T) {
			data := validCompany()
			data["website"] = site

			_, verr := v.Company(data)
			require.NotNil(t, verr)
			assert.Equal(t, "/website", verr.Field)
		})
	}

	profile := map[string]any{
		"name":    "Ana",
		"role":    "Consultora",
		"email":   "ana@example.com",
		"website": "javascript:alert(1)",
	}
	_, verr := v.Profile(profile)
	require.NotNil(t, verr)
	assert.Equal(t, "/website", verr.Field)

	data := validCompany()
	data["website"] = "HTTP://Acme.com.ar"
	c, verr := v.Company(data)
	require.Nil(t, verr)
	assert.Equal(t, "http://acme.com.ar/", *c.Website)
}

func TestValidate_InvalidEmail(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["email"] = "not-an-email"

	_, verr := v.Company(data)
	require.NotNil(t, verr)
	assert.Equal(t, model.KindValidation, verr.Kind)
	assert.Equal(t, "/email", verr.Field)
}

func TestValidate_InvalidTimestamp(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["fecha_consulta"] = "yesterday"

	_, verr := v.Company(data)
	require.NotNil(t, verr)
	assert.Equal(t, "/fecha_consulta", verr.Field)
}

func TestValidate_WebsiteWithoutScheme(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["website"] = "Example.com"

	c, verr := v.Company(data)
	require.Nil(t, verr)
	assert.Equal(t, "https://example.com/", *c.Website)
}

func TestValidate_EmailDomainIDNA(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["email"] = "info@München.de"

	c, verr := v.Company(data)
	require.Nil(t, verr)
	assert.Equal(t, "info@xn--mnchen-3ya.de", *c.Email)
}

func TestValidate_IntegerCoercion(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		in   any
		want *int
	}{
		{"digit string", "42", model.Ptr(42)},
		{"number", float64(17), model.Ptr(17)},
		{"words", "about fifty", nil},
		{"signed", "-3", nil},
		{"fraction", 2.5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validCompany()
			data["employees"] = tt.in
			c, verr := v.Company(data)
			require.Nil(t, verr)
			assert.Equal(t, tt.want, c.Employees)
		})
	}
}

func TestValidate_DropsUnknownKeys(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["description"] = "extra"
	data["social_media"] = map[string]any{"linkedin": "x"}

	out, verr := v.Validate(KindCompany, data)
	require.Nil(t, verr)
	assert.NotContains(t, out, "description")
	assert.NotContains(t, out, "social_media")
	// Input is left untouched.
	assert.Contains(t, data, "description")
}

func TestValidate_Idempotent(t *testing.T) {
	v := newTestValidator(t)
	data := validCompany()
	data["website"] = "acme.com.ar"
	data["employees"] = "12"

	first, verr := v.Company(data)
	require.Nil(t, verr)

	m, err := first.Map()
	require.NoError(t, err)
	second, verr := v.Company(m)
	require.Nil(t, verr)
	assert.Equal(t, first, second)
}

func TestValidate_UnknownKind(t *testing.T) {
	v := newTestValidator(t)
	_, verr := v.Validate(Kind("Nope"), map[string]any{})
	require.NotNil(t, verr)
	assert.Equal(t, model.KindValidation, verr.Kind)
}

func TestValidate_Email(t *testing.T) {
	v := newTestValidator(t)

	e, verr := v.Email(map[string]any{
		"email_subject": "Oferta",
		"email_body":    "Hola",
		"generated_at":  "2026-10-19T10:00:00-03:00",
	})
	require.Nil(t, verr)
	assert.Equal(t, "Oferta", e.EmailSubject)
	assert.Equal(t, []string{}, e.Keywords)

	e, verr = v.Email(map[string]any{
		"email_subject": "Oferta",
		"email_body":    "Hola",
		"keywords":      "crm, ventas , ,datos",
		"generated_at":  "2026-10-19",
	})
	require.Nil(t, verr)
	assert.Equal(t, []string{"crm", "ventas", "datos"}, e.Keywords)
}

func TestValidate_EmailMissingBody(t *testing.T) {
	v := newTestValidator(t)
	_, verr := v.Email(map[string]any{
		"email_subject": "Oferta",
		"generated_at":  "2026-10-19T10:00:00Z",
	})
	require.NotNil(t, verr)
	assert.Equal(t, "/email_body", verr.Field)
}

func TestValidate_ProfileStrict(t *testing.T) {
	v := newTestValidator(t)

	p, verr := v.Profile(map[string]any{
		"name":     "Ana",
		"role":     "Ventas",
		"email":    "ana@example.com",
		"website":  "https://example.com",
		"phone":    "011 4321-5678",
		"keywords": []any{"crm", "erp"},
	})
	require.Nil(t, verr)
	assert.True(t, p.ParsingSuccess)
	assert.Equal(t, "https://example.com/", *p.Website)
	assert.Equal(t, "+541143215678", *p.Phone)
	assert.Equal(t, []string{"crm", "erp"}, p.Keywords)

	_, verr = v.Profile(map[string]any{"name": "Ana", "role": "Ventas"})
	require.NotNil(t, verr)
	assert.Equal(t, "/email", verr.Field)
}

func TestValidate_ProfileUnparseablePhoneKept(t *testing.T) {
	v := newTestValidator(t)
	p, verr := v.Profile(map[string]any{
		"name":  "Ana",
		"role":  "Ventas",
		"email": "ana@example.com",
		"phone": "ask reception",
	})
	require.Nil(t, verr)
	assert.Equal(t, "ask reception", *p.Phone)
}

func TestValidate_LenientProfile(t *testing.T) {
	v := newTestValidator(t)
	p, verr := v.LenientProfile(map[string]any{"summary": "Consultora"})
	require.Nil(t, verr)
	assert.Equal(t, "", p.Name)
	assert.Equal(t, "Consultora", *p.Summary)
}
