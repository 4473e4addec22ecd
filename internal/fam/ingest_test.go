package fam

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tagreview/pkg/models"
)

type fakeTagWriter struct {
	upserts []*models.TagData
	failOn  string
}

func (f *fakeTagWriter) UpsertFAMTag(ctx context.Context, tag *models.TagData, syncedAt time.Time) error {
	if f.failOn != "" && tag.TagNumber == f.failOn {
		return errors.New("connection reset")
	}
	f.upserts = append(f.upserts, tag)
	return nil
}

type fakeRunStore struct {
	created  int
	finished []*models.ImportRun
}

func (f *fakeRunStore) CreateImportRun(ctx context.Context, run *models.ImportRun) error {
	f.created++
	run.ID = fmt.Sprintf("run-%d", f.created)
	run.StartedAt = time.Now()
	return nil
}

func (f *fakeRunStore) FinishImportRun(ctx context.Context, run *models.ImportRun) error {
	now := time.Now()
	run.FinishedAt = &now
	f.finished = append(f.finished, run)
	return nil
}

const sampleGUID = "5f8a1c9e-4b2d-4e6f-8a3b-9c7d2e1f0a4b"

func sampleCSV() []byte {
	return []byte("Tag Number,GUID,Description,Category,Area,Discipline\n" +
		"10-PT-1001," + sampleGUID + ",Pressure transmitter,Instrument,Unit 10,Instrumentation\n" +
		"10-PT-1002,,Spare transmitter,Instrument,Unit 10,Instrumentation\n")
}

func TestIngestSheet(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests a CSV export", func(t *testing.T) {
		tags := &fakeTagWriter{}
		runs := &fakeRunStore{}
		ingestor := NewIngestor(tags, runs)

		run, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", sampleCSV())
		require.NoError(t, err)

		assert.Equal(t, models.ImportRunStatusSucceeded, run.Status)
		assert.Equal(t, SourceUpload, run.Source)
		assert.Equal(t, 2, run.RowsTotal)
		assert.Zero(t, run.RowsFailed)

		require.Len(t, tags.upserts, 2)
		first := tags.upserts[0]
		assert.Equal(t, "10-PT-1001", first.TagNumber)
		assert.Equal(t, int64(1), first.ProjectID)
		require.NotNil(t, first.Description)
		assert.Equal(t, "Pressure transmitter", *first.Description)
		require.NotNil(t, first.FamGUID)
		assert.Equal(t, sampleGUID, *first.FamGUID)
		assert.Nil(t, tags.upserts[1].FamGUID)
	})

	t.Run("handles a UTF-8 byte order mark", func(t *testing.T) {
		tags := &fakeTagWriter{}
		ingestor := NewIngestor(tags, &fakeRunStore{})

		payload := append([]byte{0xEF, 0xBB, 0xBF}, sampleCSV()...)
		run, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", payload)
		require.NoError(t, err)
		assert.Equal(t, 2, run.RowsTotal)
	})

	t.Run("ingests an XLSX export", func(t *testing.T) {
		f := excelize.NewFile()
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "Tag No"))
		require.NoError(t, f.SetCellValue("Sheet1", "B1", "Description"))
		require.NoError(t, f.SetCellValue("Sheet1", "A2", "20-FT-2001"))
		require.NoError(t, f.SetCellValue("Sheet1", "B2", "Flow transmitter"))
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)

		tags := &fakeTagWriter{}
		ingestor := NewIngestor(tags, &fakeRunStore{})

		run, err := ingestor.IngestSheet(ctx, 1, "fam-export.xlsx", buf.Bytes())
		require.NoError(t, err)

		assert.Equal(t, 1, run.RowsTotal)
		require.Len(t, tags.upserts, 1)
		assert.Equal(t, "20-FT-2001", tags.upserts[0].TagNumber)
	})

	t.Run("rejects unsupported formats before recording anything", func(t *testing.T) {
		runs := &fakeRunStore{}
		ingestor := NewIngestor(&fakeTagWriter{}, runs)

		_, err := ingestor.IngestSheet(ctx, 1, "fam-export.pdf", []byte("%PDF"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Zero(t, runs.created)
	})

	t.Run("rejects a sheet without a tag number column", func(t *testing.T) {
		runs := &fakeRunStore{}
		ingestor := NewIngestor(&fakeTagWriter{}, runs)

		_, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", []byte("GUID,Description\nx,y\n"))
		assert.ErrorIs(t, err, ErrMalformedSheet)
		assert.Zero(t, runs.created)
	})

	t.Run("counts invalid rows and keeps going", func(t *testing.T) {
		payload := []byte("Tag Number,GUID\n" +
			"10-PT-1001," + sampleGUID + "\n" +
			"," + sampleGUID + "\n" +
			"10-PT-1003,not-a-guid\n")
		tags := &fakeTagWriter{}
		ingestor := NewIngestor(tags, &fakeRunStore{})

		run, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", payload)
		require.NoError(t, err)

		assert.Equal(t, models.ImportRunStatusSucceeded, run.Status)
		assert.Equal(t, 3, run.RowsTotal)
		assert.Equal(t, 2, run.RowsFailed)
		require.Len(t, tags.upserts, 1)
		assert.Equal(t, "10-PT-1001", tags.upserts[0].TagNumber)
	})

	t.Run("skips blank rows without counting them", func(t *testing.T) {
		payload := []byte("Tag Number\n\n10-PT-1001\n  ,  \n")
		tags := &fakeTagWriter{}
		ingestor := NewIngestor(tags, &fakeRunStore{})

		run, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", payload)
		require.NoError(t, err)
		assert.Equal(t, 1, run.RowsTotal)
		assert.Len(t, tags.upserts, 1)
	})

	t.Run("marks the run failed when the tag store aborts", func(t *testing.T) {
		tags := &fakeTagWriter{failOn: "10-PT-1002"}
		runs := &fakeRunStore{}
		ingestor := NewIngestor(tags, runs)

		_, err := ingestor.IngestSheet(ctx, 1, "fam-export.csv", sampleCSV())
		require.Error(t, err)

		require.Len(t, runs.finished, 1)
		finished := runs.finished[0]
		assert.Equal(t, models.ImportRunStatusFailed, finished.Status)
		require.NotNil(t, finished.Detail)
		assert.Contains(t, *finished.Detail, "row 2")
	})
}

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, Record{TagNumber: "10-PT-1001"}.Validate())
	assert.NoError(t, Record{TagNumber: "10-PT-1001", GUID: sampleGUID}.Validate())
	assert.Error(t, Record{}.Validate())
	assert.Error(t, Record{TagNumber: "  "}.Validate())
	assert.Error(t, Record{TagNumber: "10-PT-1001", GUID: "not-a-guid"}.Validate())
}
