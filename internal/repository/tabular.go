package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"gtec-tasks/internal/model"
)

// Columns is the header of the tabular task format, in column order.
var Columns = []string{
	"Task ID", "Requester", "Request Date", "Proposed Deadline", "Department", "Description",
	"Hours Estimated", "Direct Release", "GTEC User", "GTEC Deadline", "Status",
	"Completion Date", "Rework Needed", "Rework Type", "Rework Hours",
	"Rework Status", "Final Approval",
}

// EncodeRow renders t in Columns order. Sentinels become empty cells.
func EncodeRow(t model.Task) []string {
	return []string{
		t.ID,
		t.Requester,
		string(t.RequestDate),
		string(t.ProposedDeadline),
		t.Department,
		t.Description,
		formatFloat(t.HoursEstimated),
		string(t.DirectRelease),
		t.GTECUser,
		string(t.GTECDeadline),
		string(t.Status),
		string(t.CompletionDate),
		string(t.ReworkNeeded),
		string(t.ReworkType),
		formatFloat(t.ReworkHours),
		string(t.ReworkStatus),
		string(t.FinalApproval),
	}
}

// DecodeRow maps a record onto a Task using header positions, so files with
// reordered or missing columns still load. Values are kept verbatim. A number
// cell that does not parse is read as 0 and reported in the error, while the
// returned task is still complete.
func DecodeRow(header, record []string) (model.Task, error) {
	get := func(col string) string {
		for i, h := range header {
			if strings.TrimSpace(h) == col && i < len(record) {
				return record[i]
			}
		}
		return ""
	}

	var bad []error
	number := func(col string) float64 {
		raw := strings.TrimSpace(get(col))
		v, err := parseFloat(raw)
		if err != nil {
			bad = append(bad, fmt.Errorf("%s %q is not a number", col, raw))
			return 0
		}
		return v
	}
	hours := number("Hours Estimated")
	reworkHours := number("Rework Hours")

	return model.Task{
		ID:               get("Task ID"),
		Requester:        get("Requester"),
		RequestDate:      model.Date(get("Request Date")),
		ProposedDeadline: model.Date(get("Proposed Deadline")),
		Department:       get("Department"),
		Description:      get("Description"),
		HoursEstimated:   hours,
		DirectRelease:    model.YesNo(get("Direct Release")),
		GTECUser:         get("GTEC User"),
		GTECDeadline:     model.Date(get("GTEC Deadline")),
		Status:           model.Status(get("Status")),
		CompletionDate:   model.Date(get("Completion Date")),
		ReworkNeeded:     model.YesNo(get("Rework Needed")),
		ReworkType:       model.ReworkType(get("Rework Type")),
		ReworkHours:      reworkHours,
		ReworkStatus:     model.ReworkStatus(get("Rework Status")),
		FinalApproval:    model.FinalApproval(get("Final Approval")),
	}, errors.Join(bad...)
}

// WriteCSV writes the header and one row per task.
func WriteCSV(w io.Writer, tasks []model.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cw.Write(EncodeRow(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. An empty input yields no tasks.
// Bad number cells are logged and read as 0 so one hand edit cannot lock the
// whole file.
func ReadCSV(r io.Reader) ([]model.Task, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	if len(header) > 0 {
		// Spreadsheet tools like to prepend a byte order mark.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	tasks := make([]model.Task, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t, err := DecodeRow(header, rec)
		if err != nil {
			log.Printf("[info] csv row %d (task %s): %v, read as 0", i+2, t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(raw string) (float64, error) {
	if raw == "" || strings.EqualFold(raw, "nan") {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
