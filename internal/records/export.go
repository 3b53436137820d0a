package records

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	// ExportFilename is the download name of the spreadsheet.
	ExportFilename = "Registros_Escuchas.xlsx"
	// ExportContentType is the MIME type of the spreadsheet.
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportSheet = "Registros"
)

var (
	exportHeaders = []string{
		"ID", "Teléfono", "DNI Asesor", "Asesor", "Campaña", "Supervisor", "Coordinador",
		"¿Tipifica Bien?", "¿Consentimiento?", "Observaciones", "Auditor", "Fecha de Registro",
	}
	exportWidths = []float64{5, 12, 12, 30, 20, 30, 30, 10, 10, 50, 30, 20}
)

// WriteXLSX renders rows into a workbook with a single "Registros" sheet.
func WriteXLSX(rows []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("records: rename sheet: %w", err)
	}

	for i, width := range exportWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("records: column width: %w", err)
		}
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("records: header row: %w", err)
	}

	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			rec.ID, rec.Telefono, rec.DNIAsesor, rec.Asesor, rec.Campana, rec.Supervisor,
			rec.Coordinador, rec.TipificaBien, rec.ClienteDesiste, rec.Observaciones,
			rec.NombreAuditor, FormatStamp(rec.FechaRegistro),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("records: row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("records: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
