package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ReportFileName returns the artifact name for a run.
func ReportFileName(runID string) string {
	return "report_" + runID + ".md"
}

// RenderReport renders the successful sub-reports of run as Markdown: per
// company the company info, email content and user info sections, with
// companies separated by a horizontal rule.
func RenderReport(run *model.RunResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Informe de prospección %s\n\n", run.RunID)
	fmt.Fprintf(&sb, "Generado: %s\n", model.Timestamp(run.FinishedAt))

	for _, sub := range run.Reports {
		if !sub.OK() || sub.Data == nil {
			continue
		}
		r := sub.Data
		c := r.CompanyInfo
		sb.WriteString("\n---\n\n")
		fmt.Fprintf(&sb, "## %s\n\n", c.CompanyName)

		sb.WriteString("### Información de la empresa\n\n")
		writeField(&sb, "Empresa", c.CompanyName)
		writeField(&sb, "Industria", c.Industry)
		writeField(&sb, "Provincia", c.Province)
		writeField(&sb, "Sitio web", model.StringOr(c.Website, ""))
		writeField(&sb, "Email", model.StringOr(c.Email, ""))
		writeField(&sb, "Instagram", model.StringOr(c.Instagram, ""))
		writeField(&sb, "Facebook", model.StringOr(c.Facebook, ""))
		writeField(&sb, "Acerca de", model.StringOr(c.About, ""))
		writeField(&sb, "Fuente", c.Source)
		writeField(&sb, "Fecha de consulta", c.FechaConsulta)

		sb.WriteString("\n### Contenido del email\n\n")
		writeField(&sb, "Asunto", r.EmailContent.EmailSubject)
		writeField(&sb, "Palabras clave", strings.Join(r.EmailContent.Keywords, ", "))
		sb.WriteString("\n")
		sb.WriteString(r.EmailContent.EmailBody)
		sb.WriteString("\n")

		u := r.UserInfo
		sb.WriteString("\n### Información del usuario\n\n")
		writeField(&sb, "Nombre", u.Name)
		writeField(&sb, "Cargo", u.Role)
		writeField(&sb, "Empresa", model.StringOr(u.CompanyName, ""))
		writeField(&sb, "Sitio web", model.StringOr(u.Website, ""))
		writeField(&sb, "Email", u.Email)
	}
	return norm.NFC.String(sb.String())
}

func writeField(sb *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(sb, "- **%s**: %s\n", label, value)
}

// WriteReport renders run into dir and returns the file path.
func WriteReport(dir string, run *model.RunResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create %s", dir)
	}
	path := filepath.Join(dir, ReportFileName(run.RunID))
	if err := os.WriteFile(path, []byte(RenderReport(run)), 0o644); err != nil {
		return "", eris.Wrapf(err, "pipeline: write report %s", path)
	}
	return path, nil
}
