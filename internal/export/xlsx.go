// Package export writes leads and run results to spreadsheet workbooks.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Sheet names used in exported workbooks.
const (
	SheetLeads  = "Leads"
	SheetEmails = "Emails"
)

// LeadHeader is the first row of the Leads sheet.
var LeadHeader = []string{
	"company_name", "industry", "province", "website", "email",
	"instagram", "facebook", "about", "source", "fecha_consulta",
}

// EmailHeader is the first row of the Emails sheet.
var EmailHeader = []string{
	"company_name", "status", "email_subject", "email_body", "keywords", "error",
}

// LeadRow flattens a lead into LeadHeader order.
func LeadRow(c model.CompanyData) []string {
	return []string{
		c.CompanyName,
		c.Industry,
		c.Province,
		model.StringOr(c.Website, ""),
		model.StringOr(c.Email, ""),
		model.StringOr(c.Instagram, ""),
		model.StringOr(c.Facebook, ""),
		model.StringOr(c.About, ""),
		c.Source,
		c.FechaConsulta,
	}
}

// WriteLeads saves leads as a single-sheet workbook at path.
func WriteLeads(path string, leads []model.CompanyData) error {
	f := xlsx.NewFile()
	if err := addLeadSheet(f, leads); err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

// WriteRun saves the companies of a run and their emails. Failed
// sub-reports appear on the Emails sheet with their error.
func WriteRun(path string, run *model.RunResult) error {
	var leads []model.CompanyData
	emails := [][]string{EmailHeader}
	for _, sub := range run.Reports {
		if sub.Data == nil {
			emails = append(emails, []string{sub.Company, string(sub.Status), "", "", "", sub.Errors})
			continue
		}
		leads = append(leads, sub.Data.CompanyInfo)
		e := sub.Data.EmailContent
		emails = append(emails, []string{
			sub.Company, string(sub.Status), e.EmailSubject, e.EmailBody,
			strings.Join(e.Keywords, ", "), sub.Errors,
		})
	}

	f := xlsx.NewFile()
	if err := addLeadSheet(f, leads); err != nil {
		return err
	}
	if err := addSheet(f, SheetEmails, emails); err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addLeadSheet(f *xlsx.File, leads []model.CompanyData) error {
	rows := make([][]string, 0, len(leads)+1)
	rows = append(rows, LeadHeader)
	for _, c := range leads {
		rows = append(rows, LeadRow(c))
	}
	return addSheet(f, SheetLeads, rows)
}

func addSheet(f *xlsx.File, name string, rows [][]string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	for _, data := range rows {
		row := sheet.AddRow()
		for _, v := range data {
			row.AddCell().SetString(v)
		}
	}
	return nil
}

// ReadColumn returns the non-empty values of the first column of a sheet,
// skipping skipRows header rows. An empty sheet name selects the first
// sheet.
func ReadColumn(path, sheetName string, skipRows int) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		var ok bool
		if sheet, ok = f.Sheet[sheetName]; !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	var out []string
	for i, row := range sheet.Rows {
		if i < skipRows || len(row.Cells) == 0 {
			continue
		}
		if v := strings.TrimSpace(row.Cells[0].String()); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
