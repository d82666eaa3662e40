package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func testRun() *model.RunResult {
	report := func(name string) model.SubReport {
		return model.SubReport{
			Status:  model.StatusSuccess,
			Company: name,
			Data: &model.Report{
				CompanyInfo:  testCompany(name),
				EmailContent: testEmail(),
				UserInfo:     *testProfile(),
			},
		}
	}
	return &model.RunResult{
		RunID:      "run-1",
		FinishedAt: fixedNow,
		Reports: []model.SubReport{
			report("Acme"),
			{Status: model.StatusError, Company: "Rota", Errors: "boom"},
			report("Ñandú SRL"),
		},
	}
}

func TestRenderReport_SectionsInOrder(t *testing.T) {
	out := RenderReport(testRun())

	assert.Contains(t, out, "# Informe de prospección run-1")
	assert.NotContains(t, out, "Rota")
	assert.Equal(t, 2, strings.Count(out, "\n---\n"))

	acme := strings.Index(out, "## Acme")
	info := strings.Index(out, "### Información de la empresa")
	email := strings.Index(out, "### Contenido del email")
	user := strings.Index(out, "### Información del usuario")
	second := strings.Index(out, "## Ñandú SRL")
	assert.True(t, acme < info && info < email && email < user && user < second)

	assert.Contains(t, out, "- **Sitio web**: https://acme.example.com/")
	assert.Contains(t, out, "- **Asunto**: Oferta")
	assert.Contains(t, out, "- **Nombre**: Ana Pérez")
	assert.NotContains(t, out, "**Instagram**")
}

func TestRenderReport_NormalizesUnicode(t *testing.T) {
	run := testRun()
	run.Reports[0].Data.EmailContent.EmailBody = "Informacio\u0301n"

	assert.Contains(t, RenderReport(run), "Informaci\u00f3n")
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteReport(dir, testRun())
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ReportFileName("run-1")))
}
