package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
)

func openTestRepo(t *testing.T, path string) *IndexRepository {
	t.Helper()
	db := New(path)
	if err := db.Open(); err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("initialize db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewIndexRepository(db)
}

func TestUpsertsAreIdempotentAndNonDestructive(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	first, err := repo.UpsertPatient(ctx, domain.Patient{PatientID: "P1", PatientName: "DOE^JANE", Sex: "F"})
	if err != nil {
		t.Fatalf("upsert patient: %v", err)
	}

	// Re-upserting with some fields blank must not erase them.
	second, err := repo.UpsertPatient(ctx, domain.Patient{PatientID: "P1", BirthDate: "19800101"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a duplicate row: %d vs %d", second.ID, first.ID)
	}
	if second.PatientName != "DOE^JANE" || second.Sex != "F" {
		t.Fatalf("blank fields overwrote recorded values: %+v", second)
	}
	if second.BirthDate != "19800101" {
		t.Fatalf("new field not recorded: %+v", second)
	}

	stored, err := repo.PatientByID(ctx, "P1")
	if err != nil {
		t.Fatalf("patient by id: %v", err)
	}
	if stored.PatientName != "DOE^JANE" || stored.BirthDate != "19800101" {
		t.Fatalf("persisted row diverges: %+v", stored)
	}

	patients, err := repo.ListPatients(ctx)
	if err != nil {
		t.Fatalf("list patients: %v", err)
	}
	if len(patients) != 1 {
		t.Fatalf("expected one patient, got %d", len(patients))
	}
}

func TestListOrderFollowsInsertion(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	for _, id := range []string{"P3", "P1", "P2"} {
		if _, err := repo.UpsertPatient(ctx, domain.Patient{PatientID: id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	// A repeat upsert must not move the row.
	if _, err := repo.UpsertPatient(ctx, domain.Patient{PatientID: "P3", PatientName: "X"}); err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}

	patients, err := repo.ListPatients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(patients))
	for _, p := range patients {
		got = append(got, p.PatientID)
	}
	want := []string{"P3", "P1", "P2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestTagValuesUpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	values := []domain.TagValue{
		{SOPInstanceUID: "I1", Key: "0008,0060", Value: "CT"},
		{SOPInstanceUID: "I1", Key: "0010,0010", Value: "DOE^JANE"},
	}
	if err := repo.UpsertTagValues(ctx, values); err != nil {
		t.Fatalf("upsert tags: %v", err)
	}

	value, found, err := repo.TagValue(ctx, "I1", "0008,0060")
	if err != nil || !found || value != "CT" {
		t.Fatalf("tag lookup: %q %t %v", value, found, err)
	}

	// Second upsert replaces the value instead of adding a row.
	if err := repo.UpsertTagValues(ctx, []domain.TagValue{{SOPInstanceUID: "I1", Key: "0008,0060", Value: "MR"}}); err != nil {
		t.Fatalf("replace tag: %v", err)
	}
	value, found, err = repo.TagValue(ctx, "I1", "0008,0060")
	if err != nil || !found || value != "MR" {
		t.Fatalf("replaced tag lookup: %q %t %v", value, found, err)
	}

	value, found, err = repo.TagValue(ctx, "I1", "7FE0,0010")
	if err != nil || found || value != "" {
		t.Fatalf("absent tag should yield empty without error: %q %t %v", value, found, err)
	}
}

func TestDeleteSeriesCascadesInstancesAndTags(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	if _, err := repo.UpsertSeries(ctx, domain.Series{SeriesInstanceUID: "SE1", StudyInstanceUID: "S1", Modality: "CT"}); err != nil {
		t.Fatalf("upsert series: %v", err)
	}
	for _, uid := range []string{"I1", "I2"} {
		if _, err := repo.UpsertInstance(ctx, domain.Instance{SOPInstanceUID: uid, SeriesInstanceUID: "SE1"}); err != nil {
			t.Fatalf("upsert instance %s: %v", uid, err)
		}
	}
	if _, err := repo.UpsertInstance(ctx, domain.Instance{SOPInstanceUID: "I9", SeriesInstanceUID: "SE9"}); err != nil {
		t.Fatalf("upsert unrelated instance: %v", err)
	}
	if err := repo.UpsertTagValues(ctx, []domain.TagValue{
		{SOPInstanceUID: "I1", Key: "0008,0060", Value: "CT"},
		{SOPInstanceUID: "I9", Key: "0008,0060", Value: "MR"},
	}); err != nil {
		t.Fatalf("upsert tags: %v", err)
	}

	existed, err := repo.DeleteSeries(ctx, "SE1")
	if err != nil {
		t.Fatalf("delete series: %v", err)
	}
	if !existed {
		t.Fatalf("series existed, delete should report true")
	}

	if _, err := repo.SeriesByUID(ctx, "SE1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("series should be gone, got %v", err)
	}
	if _, err := repo.InstanceByUID(ctx, "I1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("child instance should be gone, got %v", err)
	}
	if _, _, err := repo.TagValue(ctx, "I1", "0008,0060"); err != nil {
		t.Fatalf("tag lookup after delete: %v", err)
	}
	if value, found, _ := repo.TagValue(ctx, "I1", "0008,0060"); found || value != "" {
		t.Fatalf("child tag rows should be gone")
	}

	// Unrelated rows survive.
	if _, err := repo.InstanceByUID(ctx, "I9"); err != nil {
		t.Fatalf("unrelated instance vanished: %v", err)
	}
	if value, found, _ := repo.TagValue(ctx, "I9", "0008,0060"); !found || value != "MR" {
		t.Fatalf("unrelated tag vanished")
	}

	existed, err = repo.DeleteSeries(ctx, "SE1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatalf("missing series, delete should report false")
	}
}

func TestRecordInstanceFileAndLookupByFilename(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	if _, err := repo.UpsertInstance(ctx, domain.Instance{SOPInstanceUID: "I1", SeriesInstanceUID: "SE1"}); err != nil {
		t.Fatalf("upsert instance: %v", err)
	}
	if err := repo.RecordInstanceFile(ctx, "I1", "/data/dicom/s/se/i1", 42, 1700000000); err != nil {
		t.Fatalf("record file: %v", err)
	}

	inst, err := repo.InstanceByFilename(ctx, "/data/dicom/s/se/i1")
	if err != nil {
		t.Fatalf("by filename: %v", err)
	}
	if inst.SOPInstanceUID != "I1" || inst.SizeBytes != 42 || inst.ModTimeUnix != 1700000000 {
		t.Fatalf("digest not recorded: %+v", inst)
	}

	if err := repo.RecordInstanceFile(ctx, "I404", "/nowhere", 1, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("recording against a missing instance: %v", err)
	}
	if _, err := repo.InstanceByFilename(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty filename must never match: %v", err)
	}
}

func TestSetSeriesThumbnailKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	if _, err := repo.UpsertSeries(ctx, domain.Series{SeriesInstanceUID: "SE1", StudyInstanceUID: "S1"}); err != nil {
		t.Fatalf("upsert series: %v", err)
	}
	if err := repo.SetSeriesThumbnail(ctx, "SE1", "/thumbs/a.png"); err != nil {
		t.Fatalf("set thumbnail: %v", err)
	}
	if err := repo.SetSeriesThumbnail(ctx, "SE1", "/thumbs/b.png"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	series, err := repo.SeriesByUID(ctx, "SE1")
	if err != nil {
		t.Fatalf("series by uid: %v", err)
	}
	if series.ThumbnailPath != "/thumbs/a.png" {
		t.Fatalf("first thumbnail should win, got %q", series.ThumbnailPath)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "index.db"))

	sentinel := errors.New("abort")
	err := repo.Tx(ctx, func(tx domain.IndexRepository) error {
		if _, err := tx.UpsertPatient(ctx, domain.Patient{PatientID: "P1"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if _, err := repo.PatientByID(ctx, "P1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rolled-back row is visible: %v", err)
	}
}

func TestInMemoryDatabaseNeverTouchesDisk(t *testing.T) {
	ctx := context.Background()
	db := New(MemoryPath)
	if err := db.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !db.IsInMemory() {
		t.Fatalf("expected in-memory mode")
	}

	repo := NewIndexRepository(db)
	if _, err := repo.UpsertPatient(ctx, domain.Patient{PatientID: "P1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	patients, err := repo.ListPatients(ctx)
	if err != nil || len(patients) != 1 {
		t.Fatalf("list: %v, %d rows", err, len(patients))
	}
}

func TestClosedDatabaseReturnsErrNotOpen(t *testing.T) {
	ctx := context.Background()
	db := New(filepath.Join(t.TempDir(), "index.db"))
	repo := NewIndexRepository(db)

	if _, err := repo.ListPatients(ctx); !errors.Is(err, domain.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if db.IsOpen() {
		t.Fatalf("unopened database reports open")
	}
}
