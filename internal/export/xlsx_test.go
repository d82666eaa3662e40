package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func lead(name string) model.CompanyData {
	return model.CompanyData{
		CompanyName:   name,
		Industry:      "Software",
		Province:      "Córdoba",
		Website:       model.Ptr("https://acme.example.com/"),
		Source:        model.SourceScrape,
		FechaConsulta: "2026-10-19T13:00:00Z",
	}
}

func sheetRows(t *testing.T, path, name string) [][]string {
	t.Helper()
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "sheet %s", name)

	var rows [][]string
	for _, r := range sheet.Rows {
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			cells[i] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

func TestWriteLeads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, WriteLeads(path, []model.CompanyData{lead("Acme"), lead("Ñandú SRL")}))

	rows := sheetRows(t, path, SheetLeads)
	require.Len(t, rows, 3)
	assert.Equal(t, LeadHeader, rows[0])
	assert.Equal(t, "Acme", rows[1][0])
	assert.Equal(t, "https://acme.example.com/", rows[1][3])
	assert.Equal(t, "", rows[1][4])
	assert.Equal(t, "Ñandú SRL", rows[2][0])
}

func TestWriteRun(t *testing.T) {
	run := &model.RunResult{
		RunID: "run-1",
		Reports: []model.SubReport{
			{
				Status:  model.StatusSuccess,
				Company: "Acme",
				Data: &model.Report{
					CompanyInfo: lead("Acme"),
					EmailContent: model.EmailData{
						EmailSubject: "Oferta",
						EmailBody:    "Hola",
						Keywords:     []string{"crm", "datos"},
					},
				},
			},
			{Status: model.StatusValidationError, Company: "Rota", Errors: "bad email"},
		},
	}
	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, WriteRun(path, run))

	leads := sheetRows(t, path, SheetLeads)
	require.Len(t, leads, 2)
	assert.Equal(t, "Acme", leads[1][0])

	emails := sheetRows(t, path, SheetEmails)
	require.Len(t, emails, 3)
	require.GreaterOrEqual(t, len(emails[1]), 5)
	assert.Equal(t, []string{"Acme", "success", "Oferta", "Hola", "crm, datos"}, emails[1][:5])
	assert.Equal(t, []string{"Rota", "validation_error", "", "", "", "bad email"}, emails[2])
}

func TestWriteLeads_BadPath(t *testing.T) {
	err := WriteLeads(filepath.Join(t.TempDir(), "missing", "leads.xlsx"), nil)
	assert.Error(t, err)
}

func TestReadColumn(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("URLs")
	require.NoError(t, err)
	for _, v := range []string{"url", "https://a.example.com/", " ", "https://b.example.com/"} {
		sheet.AddRow().AddCell().SetString(v)
	}
	path := filepath.Join(t.TempDir(), "urls.xlsx")
	require.NoError(t, f.Save(path))

	got, err := ReadColumn(path, "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com/", "https://b.example.com/"}, got)

	got, err = ReadColumn(path, "URLs", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"url", "https://a.example.com/", "https://b.example.com/"}, got)

	_, err = ReadColumn(path, "Missing", 0)
	assert.Error(t, err)
}

func TestReadColumn_MissingFile(t *testing.T) {
	_, err := ReadColumn(filepath.Join(t.TempDir(), "nope.xlsx"), "", 0)
	assert.Error(t, err)
}
