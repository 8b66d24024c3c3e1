// Package excel exports recorded runs to spreadsheet files for offline
// analysis. One row per timestep, one column per action variable, state
// variable, and reward factor, so the sheet stands alone without the
// binary results stream.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
)

// RunExporter writes one run's outcomes to a single file. The format is
// picked from the path extension: ".csv" writes CSV, anything else writes
// an xlsx workbook.
type RunExporter struct {
	path     string
	fileType string // "xlsx" or "csv"
}

// NewRunExporter creates an exporter targeting the given path.
func NewRunExporter(path string) *RunExporter {
	ext := strings.ToLower(filepath.Ext(path))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &RunExporter{path: path, fileType: fileType}
}

// Export renders the outcomes under the setup's problem and writes the file.
// Column order follows the model's registry, so every export of the same
// model lines up.
func (e *RunExporter) Export(setup *experiment.Setup, outcomes []experiment.Outcome) error {
	if setup == nil || setup.Problem == nil || setup.Problem.Variables == nil {
		return fmt.Errorf("export needs a setup with a finalized problem")
	}

	headers := Headers(setup.Problem)
	rows := make([][]string, 0, len(outcomes))
	for i := range outcomes {
		row, err := exportRow(setup.Problem, &outcomes[i])
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	switch e.fileType {
	case "csv":
		return e.writeCSV(headers, rows)
	default:
		return e.writeXLSX(headers, rows)
	}
}

// Headers lists the export columns for a model.
func Headers(model *mdp.Model) []string {
	headers := []string{"episode", "timestep", "act_ms", "update_ms"}
	for _, v := range model.Variables.ActionVariables() {
		headers = append(headers, fmt.Sprintf("action_%d", v.ID))
	}
	for _, v := range model.Variables.StateVariables() {
		headers = append(headers, fmt.Sprintf("state_%d", v.ID))
	}
	for _, r := range model.Rewards {
		headers = append(headers, fmt.Sprintf("reward_%d", r.ID))
	}
	return append(headers, "total_reward")
}

func exportRow(model *mdp.Model, o *experiment.Outcome) ([]string, error) {
	row := make([]string, 0, 5+model.Variables.NumAction()+model.Variables.NumState()+len(model.Rewards))
	row = append(row,
		strconv.Itoa(o.Episode),
		strconv.Itoa(o.Timestep),
		fToStr(float64(o.ActTime.Nanoseconds())/1e6, 3),
		fToStr(float64(o.UpdateTime.Nanoseconds())/1e6, 3),
	)

	vars := append(model.Variables.ActionVariables(), model.Variables.StateVariables()...)
	for _, v := range vars {
		value, ok := o.Setting(v.ID)
		if !ok {
			return nil, fmt.Errorf("outcome %d/%d does not record variable %d", o.Episode, o.Timestep, v.ID)
		}
		row = append(row, strconv.Itoa(value))
	}

	for _, factor := range model.Rewards {
		found := false
		for _, r := range o.Rewards {
			if r.ID == factor.ID {
				row = append(row, fToStr(r.Value, 6))
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("outcome %d/%d does not record reward factor %d", o.Episode, o.Timestep, factor.ID)
		}
	}

	return append(row, fToStr(o.TotalReward(), 6)), nil
}

func (e *RunExporter) writeCSV(headers []string, rows [][]string) error {
	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func (e *RunExporter) writeXLSX(headers []string, rows [][]string) error {
	f := excelize.NewFile()

	// Ensure Sheet1 exists and is active.
	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for r := range rows {
		rowIdx := r + 2
		for c, v := range rows[r] {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func fToStr(x float64, decimals int) string {
	return strconv.FormatFloat(x, 'f', decimals, 64)
}
