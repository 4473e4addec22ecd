package fam

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/tagreview/pkg/models"
)

// ErrUnsupportedFormat signals an uploaded file that is neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrMalformedSheet signals a sheet that could not be parsed into tag rows.
var ErrMalformedSheet = errors.New("malformed sheet")

// Import run sources
const (
	SourceUpload = "upload"
	SourceSync   = "fam_sync"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Record is one tag row as FAM reports it, via API or exported sheet.
type Record struct {
	GUID        string `json:"guid"`
	TagNumber   string `json:"tagNumber"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Area        string `json:"area"`
	Discipline  string `json:"discipline"`
}

// Validate checks the fields ingestion relies on: a tag number is mandatory
// and a GUID, when present, must be a UUID.
func (r Record) Validate() error {
	if strings.TrimSpace(r.TagNumber) == "" {
		return errors.New("missing tag number")
	}
	if guid := strings.TrimSpace(r.GUID); guid != "" {
		if _, err := uuid.Parse(guid); err != nil {
			return fmt.Errorf("invalid guid %q: %w", guid, err)
		}
	}
	return nil
}

func (r Record) toModel(projectID int64) *models.TagData {
	return &models.TagData{
		ProjectID:   projectID,
		TagNumber:   strings.TrimSpace(r.TagNumber),
		Description: nilIfEmpty(r.Description),
		Category:    nilIfEmpty(r.Category),
		Area:        nilIfEmpty(r.Area),
		Discipline:  nilIfEmpty(r.Discipline),
		FamGUID:     nilIfEmpty(strings.TrimSpace(r.GUID)),
	}
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(s)
	return &trimmed
}

type tagWriter interface {
	UpsertFAMTag(ctx context.Context, tag *models.TagData, syncedAt time.Time) error
}

type importRunStore interface {
	CreateImportRun(ctx context.Context, run *models.ImportRun) error
	FinishImportRun(ctx context.Context, run *models.ImportRun) error
}

// Ingestor writes FAM records into the tag data table, recording every run.
type Ingestor struct {
	tags tagWriter
	runs importRunStore
}

// NewIngestor creates a new ingestor
func NewIngestor(tags tagWriter, runs importRunStore) *Ingestor {
	return &Ingestor{tags: tags, runs: runs}
}

// IngestSheet parses an uploaded FAM export (CSV or XLSX) and upserts its
// rows. Parse failures happen before anything is recorded; row-level
// validation failures are counted on the run and skipped.
func (ing *Ingestor) IngestSheet(ctx context.Context, projectID int64, fileName string, payload []byte) (*models.ImportRun, error) {
	records, err := parseSheet(fileName, payload)
	if err != nil {
		return nil, err
	}
	return ing.run(ctx, projectID, SourceUpload, records)
}

// IngestRecords upserts rows already fetched from the FAM API.
func (ing *Ingestor) IngestRecords(ctx context.Context, projectID int64, records []Record) (*models.ImportRun, error) {
	return ing.run(ctx, projectID, SourceSync, records)
}

func (ing *Ingestor) run(ctx context.Context, projectID int64, source string, records []Record) (*models.ImportRun, error) {
	run := &models.ImportRun{
		ProjectID: projectID,
		Source:    source,
		Status:    models.ImportRunStatusRunning,
	}
	if err := ing.runs.CreateImportRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record import run: %w", err)
	}

	syncedAt := time.Now().UTC()
	rowsFailed := 0
	var abortErr error

	for i, record := range records {
		if err := record.Validate(); err != nil {
			rowsFailed++
			log.Warn().Err(err).Int("row", i+1).Str("import_run", run.ID).Msg("skipping invalid row")
			continue
		}
		if err := ing.tags.UpsertFAMTag(ctx, record.toModel(projectID), syncedAt); err != nil {
			abortErr = fmt.Errorf("row %d: %w", i+1, err)
			break
		}
	}

	run.RowsTotal = len(records)
	run.RowsFailed = rowsFailed
	if abortErr != nil {
		run.Status = models.ImportRunStatusFailed
		detail := abortErr.Error()
		run.Detail = &detail
	} else {
		run.Status = models.ImportRunStatusSucceeded
	}
	if err := ing.runs.FinishImportRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to finish import run: %w", err)
	}

	if abortErr != nil {
		return nil, abortErr
	}
	return run, nil
}

func parseSheet(fileName string, payload []byte) ([]Record, error) {
	var records []Record
	var err error

	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		records, err = parseCSV(payload)
	case ".xlsx":
		records, err = parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSheet, err)
	}
	return records, nil
}

func parseCSV(payload []byte) ([]Record, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	return rowsToRecords(rows)
}

func parseExcel(payload []byte) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return rowsToRecords(rows)
}

// Column headers FAM exports under varying labels, normalized to lowercase
// with separators stripped.
var headerFields = map[string]string{
	"tagnumber":   "tagNumber",
	"tagno":       "tagNumber",
	"tag":         "tagNumber",
	"guid":        "guid",
	"famguid":     "guid",
	"description": "description",
	"desc":        "description",
	"category":    "category",
	"area":        "area",
	"discipline":  "discipline",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
	return h
}

func rowsToRecords(rows [][]string) ([]Record, error) {
	var headers []string
	headerIndex := -1
	for idx, row := range rows {
		if len(cleanRow(row)) == 0 {
			continue
		}
		headers = row
		headerIndex = idx
		break
	}
	if headers == nil {
		return nil, errors.New("header row could not be detected")
	}

	fieldByColumn := make(map[int]string, len(headers))
	for col, header := range headers {
		if field, ok := headerFields[normalizeHeader(header)]; ok {
			fieldByColumn[col] = field
		}
	}
	if !hasField(fieldByColumn, "tagNumber") {
		return nil, errors.New("no tag number column found")
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows[headerIndex+1:] {
		if len(cleanRow(row)) == 0 {
			continue
		}
		var record Record
		for col, field := range fieldByColumn {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			switch field {
			case "tagNumber":
				record.TagNumber = value
			case "guid":
				record.GUID = value
			case "description":
				record.Description = value
			case "category":
				record.Category = value
			case "area":
				record.Area = value
			case "discipline":
				record.Discipline = value
			}
		}
		records = append(records, record)
	}

	return records, nil
}

func hasField(fieldByColumn map[int]string, name string) bool {
	for _, field := range fieldByColumn {
		if field == name {
			return true
		}
	}
	return false
}

func cleanRow(row []string) []string {
	cleaned := make([]string, 0, len(row))
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, strings.TrimSpace(cell))
		}
	}
	return cleaned
}
