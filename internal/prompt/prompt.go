// Package prompt renders the instructions sent to the completion model.
// Every builder is a pure function of its inputs.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const (
	// EmailWordBudget caps the length of generated emails.
	EmailWordBudget = 200
	// PageCharBudget caps the page text embedded in extraction prompts.
	PageCharBudget = 6000
)

// Neutral stand-ins for values missing from the profile or company record.
const (
	defaultUserName    = "Representante de Ventas"
	defaultUserCompany = "Nuestra Empresa"
	defaultUserRole    = "Representante de Ventas"
	defaultWebsite     = "No Disponible"
	defaultIndustry    = "el sector"
	defaultProvince    = "la región"
	defaultAbout       = "la información disponible"
	defaultCompanyName = "la empresa"
	defaultSearchScope = "empresas"
	defaultCountryArea = "Argentina"
)

// Research builds the search query for the given criteria. Profile keywords
// come first, followed by the manual criteria keywords; optional filters are
// appended only when set.
func Research(c model.SearchCriteria, p *model.UserProfile) string {
	industry := orDefault(c.Industry, defaultSearchScope)
	province := orDefault(c.Province, defaultCountryArea)

	var profileKeywords []string
	if p != nil {
		profileKeywords = p.Keywords
	}
	keywords := MergeKeywords(profileKeywords, c.Keywords)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Encuentra sitios web de %s en %s, Argentina", industry, province)
	if len(keywords) > 0 {
		fmt.Fprintf(&sb, ", que mencionen explícitamente la necesidad o el uso de servicios relacionados con: %s. ",
			strings.Join(keywords, ", "))
		sb.WriteString("Prioriza resultados que indiquen una necesidad activa de estos servicios.")
	} else {
		sb.WriteString(".")
	}

	if v := strings.TrimSpace(c.CompanyName); v != "" {
		fmt.Fprintf(&sb, " Considera especialmente si el nombre de la empresa es %s.", v)
	}
	if v := strings.TrimSpace(c.CompanySize); v != "" {
		fmt.Fprintf(&sb, " Considera empresas de tamaño: %s.", v)
	}
	if v := strings.TrimSpace(c.Revenue); v != "" {
		fmt.Fprintf(&sb, " Considera empresas con facturación anual en el rango: %s.", v)
	}
	if v := strings.TrimSpace(c.Location); v != "" {
		fmt.Fprintf(&sb, " La empresa debe estar localizada, o tener sede/oficina en: %s.", v)
	}
	if techs := MergeKeywords(c.Technologies, nil); len(techs) > 0 {
		fmt.Fprintf(&sb, " Considera si la empresa utiliza, o menciona explícitamente las siguientes tecnologías: %s.",
			strings.Join(techs, ", "))
	}
	if v := strings.TrimSpace(c.Needs); v != "" {
		fmt.Fprintf(&sb, " Busca empresas que tengan las siguientes necesidades: %s.", v)
	}

	out := sb.String()
	zap.L().Debug("prompt: research query built", zap.Int("chars", len(out)))
	return out
}

// Email builds the instruction for a personalized sales email to company,
// written on behalf of the profile's owner.
func Email(c model.CompanyData, p *model.UserProfile) string {
	if p == nil {
		p = &model.UserProfile{}
	}
	userName := orDefault(p.Name, defaultUserName)
	userCompany := model.StringOr(p.CompanyName, defaultUserCompany)
	userRole := orDefault(p.Role, defaultUserRole)
	userWebsite := model.StringOr(p.Website, defaultWebsite)
	userKeywords := strings.Join(MergeKeywords(p.Keywords, nil), ", ")
	userSummary := model.StringOr(p.Summary, "")

	name := orDefault(c.CompanyName, defaultCompanyName)
	industry := orDefault(c.Industry, defaultIndustry)
	province := orDefault(c.Province, defaultProvince)
	about := model.StringOr(c.About, defaultAbout)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Escribe un correo electrónico de ventas altamente personalizado para %s, ", name)
	fmt.Fprintf(&sb, "una empresa en el rubro de %s ubicada en %s.\n\n", industry, province)
	fmt.Fprintf(&sb, "Información sobre %s:\n%s\n\n", name, about)
	fmt.Fprintf(&sb, "Debes presentarte como %s de %s, %s.\n", userName, userCompany, userRole)
	fmt.Fprintf(&sb, "Tu sitio web es %s.\n", userWebsite)
	fmt.Fprintf(&sb, "Tus áreas de especialización son: %s.\n", userKeywords)
	fmt.Fprintf(&sb, "Breve descripción de tu experiencia: %s\n\n", userSummary)
	fmt.Fprintf(&sb, "El objetivo del correo es iniciar una conversación y programar una breve reunión "+
		"para discutir cómo tus habilidades o servicios pueden ayudar específicamente a %s "+
		"a resolver sus desafíos o aprovechar oportunidades en su rubro.\n\n", name)
	fmt.Fprintf(&sb, "Debes conectar la información sobre %s con tus habilidades o servicios. "+
		"Por ejemplo, si la descripción de la empresa menciona un enfoque en 'SEO' y tienes "+
		"experiencia en 'generación de contenido con IA', menciona cómo puedes ayudarles "+
		"a mejorar su SEO con contenido de alta calidad.\n\n", name)
	fmt.Fprintf(&sb, "El tono debe ser profesional pero amigable, y el correo debe ser conciso (no más de %d palabras).\n",
		EmailWordBudget)
	sb.WriteString("Incluye una única llamada a la acción (CTA) clara, proponiendo un tema específico para la reunión.\n")
	sb.WriteString("La primera línea debe ser el asunto con el formato \"Asunto: <asunto>\" y el resto el cuerpo del correo.\n")
	sb.WriteString("El correo debe estar en formato de texto plano, listo para ser enviado. Evita saludos genéricos, sé directo.")

	out := sb.String()
	zap.L().Debug("prompt: email prompt built",
		zap.String("company", c.CompanyName),
		zap.Int("chars", len(out)),
	)
	return out
}

const extractionTemplate = `De la siguiente página web, extrae la información de contacto de la empresa, si es que existe.
Extrae el nombre de la empresa, su sitio web, una breve descripción de la empresa (máximo 200 caracteres),
su correo electrónico y sus redes sociales.

Si no encuentras alguno de los datos solicitados, devuelve null para ese campo. No omitas ningún campo.

Página web:
` + "```" + `
%s
` + "```" + `

Formato de salida (JSON, estrictamente):
{
    "company_name": "Nombre de la Empresa",
    "website": "URL válida del sitio web",
    "description": "Breve descripción",
    "email": "Correo electrónico (o null)",
    "social_media": {
        "linkedin": "URL de LinkedIn (o null)",
        "twitter": "URL de Twitter (o null)",
        "facebook": "URL de Facebook (o null)",
        "instagram": "URL de Instagram (o null)"
    }
}`

// Extraction builds the instruction that turns a scraped page into a
// company record. At most PageCharBudget characters of content are embedded.
func Extraction(content string) string {
	return fmt.Sprintf(extractionTemplate, Truncate(content, PageCharBudget))
}

// Keywords builds the instruction that extracts n comma separated keywords
// from an email body.
func Keywords(body string, n int) string {
	return fmt.Sprintf("Extrae exactamente %d palabras clave del siguiente texto. "+
		"Responde solo con las palabras clave separadas por comas, sin numeración ni texto adicional.\n\n%s",
		n, body)
}

// MergeKeywords concatenates keyword lists, trimming blanks and dropping
// case-insensitive duplicates while preserving first-seen order.
func MergeKeywords(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, k := range list {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			key := strings.ToLower(k)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Truncate returns at most n characters of s without splitting a UTF-8
// sequence.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
