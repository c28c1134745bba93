// Package excel exports analysis outputs as workbooks, one sheet per
// result kind, for inspection outside the pipeline.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/errors"
)

// ResultWriter accumulates sheets into one workbook.
type ResultWriter struct {
	file *excelize.File
}

func NewResultWriter() *ResultWriter {
	return &ResultWriter{file: excelize.NewFile()}
}

// WriteFitResult adds a sheet with the per-bin fit outcome.
func (w *ResultWriter) WriteFitResult(sheet string, res *spectra.FitResult, significances []float64) error {
	if _, err := w.file.NewSheet(sheet); err != nil {
		return errors.ResourceError("creating result sheet", err)
	}

	headers := []string{"energy_bin", "fraction", "fitted_counts", "fitted_flux", "significance"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := w.file.SetCellValue(sheet, cell, h); err != nil {
			return errors.ResourceError("writing result header", err)
		}
	}

	for i, f := range res.Fractions {
		row := i + 2
		values := []interface{}{i, f, nil, nil, nil}
		if i < len(res.FittedCounts) {
			values[2] = res.FittedCounts[i]
		}
		if i < len(res.FittedFlux) {
			values[3] = res.FittedFlux[i]
		}
		if i < len(significances) {
			values[4] = significances[i]
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := w.file.SetCellValue(sheet, cell, v); err != nil {
				return errors.ResourceError("writing result row", err)
			}
		}
	}

	summaryRow := len(res.Fractions) + 3
	summary := [][2]interface{}{
		{"ts", res.TS},
		{"ts_clamped", res.TSClamped},
		{"converged", res.Converged},
		{"at_boundary", res.AtBoundary},
		{"restarts", res.Restarts},
	}
	if res.HasIndex {
		summary = append(summary, [2]interface{}{"spectral_index", res.SpectralIndex})
	}
	for i, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, summaryRow+i)
		valCell, _ := excelize.CoordinatesToCellName(2, summaryRow+i)
		if err := w.file.SetCellValue(sheet, keyCell, kv[0]); err != nil {
			return errors.ResourceError("writing result summary", err)
		}
		if err := w.file.SetCellValue(sheet, valCell, kv[1]); err != nil {
			return errors.ResourceError("writing result summary", err)
		}
	}
	return nil
}

// WriteTSDistribution adds a sheet with the empirical distribution summary
// and the raw values.
func (w *ResultWriter) WriteTSDistribution(sheet string, dist *spectra.TSDistribution) error {
	if _, err := w.file.NewSheet(sheet); err != nil {
		return errors.ResourceError("creating distribution sheet", err)
	}

	summary := [][2]interface{}{
		{"injected_fraction", dist.InjectedFraction},
		{"trials", len(dist.Values)},
		{"median", dist.Median},
		{"p90", dist.P90},
		{"p99", dist.P99},
	}
	row := 1
	for _, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := w.file.SetCellValue(sheet, keyCell, kv[0]); err != nil {
			return errors.ResourceError("writing distribution summary", err)
		}
		if err := w.file.SetCellValue(sheet, valCell, kv[1]); err != nil {
			return errors.ResourceError("writing distribution summary", err)
		}
		row++
	}
	for threshold, frac := range dist.FractionAbove {
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := w.file.SetCellValue(sheet, keyCell, fmt.Sprintf("fraction_above_%.1f", threshold)); err != nil {
			return errors.ResourceError("writing distribution summary", err)
		}
		if err := w.file.SetCellValue(sheet, valCell, frac); err != nil {
			return errors.ResourceError("writing distribution summary", err)
		}
		row++
	}

	row++
	for i, v := range dist.Values {
		cell, _ := excelize.CoordinatesToCellName(1, row+i)
		if err := w.file.SetCellValue(sheet, cell, v); err != nil {
			return errors.ResourceError("writing distribution values", err)
		}
	}
	return nil
}

// Save writes the workbook, dropping the default empty sheet.
func (w *ResultWriter) Save(path string) error {
	w.file.DeleteSheet("Sheet1")
	if err := w.file.SaveAs(path); err != nil {
		return errors.ResourceError("saving workbook", err)
	}
	return nil
}
