package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"flowscope/internal/store"
)

const (
	summarySheet = "Summary"
	samplesSheet = "Samples"
)

var sampleHeaders = []string{
	"Timestamp", "Heart Rate (bpm)", "Blood Oxygen (%)", "Systolic (mmHg)",
	"Diastolic (mmHg)", "Respiratory Rate (breaths/min)", "Recovery Rate (%)", "Status",
}

// ExportFilename is the download name of r's workbook.
func ExportFilename(r store.Report) string {
	return fmt.Sprintf("health-report-%d-%s.xlsx", r.ID, r.CreatedAt.UTC().Format("20060102"))
}

// ExportXLSX renders r as a workbook with a Summary sheet and, when the
// payload carries samples, one Samples row per sample.
func ExportXLSX(r store.Report, logger *zap.Logger) ([]byte, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is called explicitly below.

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(samplesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(0)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, r, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSamples(f, exportSamples(r, logger), headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, r store.Report, headerStyle int) error {
	rows := [][2]any{
		{"Report ID", r.ID},
		{"User ID", r.UserID},
		{"Title", r.Title},
		{"Status", string(r.HealthStatus)},
		{"Risk Level", r.HealthStatus.RiskLevel()},
		{"Created At", r.CreatedAt.UTC().Format(time.RFC3339)},
		{"Summary", r.Summary},
	}
	for i, row := range rows {
		if err := setCellValue(f, summarySheet, 1, i+1, row[0]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		if err := setCellValue(f, summarySheet, 2, i+1, row[1]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 14); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(summarySheet, "B", "B", 80)
}

func writeSamples(f *excelize.File, samples []store.HealthSample, headerStyle int) error {
	for col, header := range sampleHeaders {
		if err := setCellValue(f, samplesSheet, col+1, 1, header); err != nil {
			return fmt.Errorf("write sample header: %w", err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(sampleHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(samplesSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style sample header: %w", err)
	}

	for i, s := range samples {
		row := i + 2
		values := []any{
			s.Timestamp.UTC().Format(time.RFC3339),
			cellInt(s.HeartRate),
			cellInt(s.BloodOxygen),
			cellInt(s.BloodPressureSystolic),
			cellInt(s.BloodPressureDiastolic),
			cellInt(s.RespiratoryRate),
			cellInt(s.RecoveryRate),
			string(s.HealthStatus),
		}
		for col, v := range values {
			if err := setCellValue(f, samplesSheet, col+1, row, v); err != nil {
				return fmt.Errorf("write sample row %d: %w", row, err)
			}
		}
	}

	return f.SetPanes(samplesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func cellInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// exportSamples decodes the payload's healthData one element at a time.
// Payload shape is not enforced on POST /api/reports, so elements that do not
// decode are logged and skipped.
func exportSamples(r store.Report, logger *zap.Logger) []store.HealthSample {
	if len(r.ReportData) == 0 {
		return nil
	}

	var raw struct {
		HealthData []json.RawMessage `json:"healthData"`
	}
	if err := json.Unmarshal(r.ReportData, &raw); err != nil {
		logger.Warn("report payload has no sample list",
			zap.Int64("report_id", r.ID),
			zap.Error(err),
		)
		return nil
	}

	samples := make([]store.HealthSample, 0, len(raw.HealthData))
	for i, item := range raw.HealthData {
		var s store.HealthSample
		if err := json.Unmarshal(item, &s); err != nil {
			logger.Warn("skipping undecodable report sample",
				zap.Int64("report_id", r.ID),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		samples = append(samples, s)
	}
	return samples
}
