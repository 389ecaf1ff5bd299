// Package export renders task snapshots as spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"gtec-tasks/internal/model"
	"gtec-tasks/internal/repository"
)

// SheetName is the single worksheet of an export.
const SheetName = "Tasks"

// ContentType is the MIME type of WriteWorkbook output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteWorkbook writes tasks as one sheet with the tabular store columns.
// Numeric columns are stored as numbers; everything else as text.
func WriteWorkbook(w io.Writer, tasks []model.Task) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCE6F1"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(repository.Columns), 18); err != nil {
		return err
	}
	if err := sw.SetRow("A1", toCells(repository.Columns), excelize.RowOpts{StyleID: header}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, rowValues(t)); err != nil {
			return fmt.Errorf("write task %s: %w", t.ID, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns the download name for an export taken at now.
func FileName(now time.Time) string {
	return "gtec_tasks_" + now.Format("20060102_150405") + ".xlsx"
}

// WriteSnapshot stores a workbook of tasks in dir and returns its path.
func WriteSnapshot(dir string, tasks []model.Task, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteWorkbook(file, tasks); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func rowValues(t model.Task) []interface{} {
	cells := toCells(repository.EncodeRow(t))
	// Hours Estimated and Rework Hours.
	cells[6] = t.HoursEstimated
	cells[14] = t.ReworkHours
	return cells
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
