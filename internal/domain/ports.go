package domain

import "context"

// IndexRepository is the persistence port for the hierarchy and the tag-value
// side table. Upserts are non-destructive: a field already recorded for a row
// is never blanked out by an empty incoming value. List results come back in
// insertion order.
type IndexRepository interface {
	// Tx runs fn against a transactional view of the repository. Everything
	// fn writes commits as one unit or not at all.
	Tx(ctx context.Context, fn func(IndexRepository) error) error

	UpsertPatient(ctx context.Context, value Patient) (Patient, error)
	UpsertStudy(ctx context.Context, value Study) (Study, error)
	UpsertSeries(ctx context.Context, value Series) (Series, error)
	UpsertInstance(ctx context.Context, value Instance) (Instance, error)
	UpsertTagValues(ctx context.Context, values []TagValue) error

	ListPatients(ctx context.Context) ([]Patient, error)
	StudiesForPatient(ctx context.Context, patientID string) ([]Study, error)
	SeriesForStudy(ctx context.Context, studyUID string) ([]Series, error)
	InstancesForSeries(ctx context.Context, seriesUID string) ([]Instance, error)
	ListInstances(ctx context.Context) ([]Instance, error)

	PatientByID(ctx context.Context, patientID string) (Patient, error)
	StudyByUID(ctx context.Context, studyUID string) (Study, error)
	SeriesByUID(ctx context.Context, seriesUID string) (Series, error)
	InstanceByUID(ctx context.Context, sopInstanceUID string) (Instance, error)
	InstanceByFilename(ctx context.Context, filename string) (Instance, error)

	TagValue(ctx context.Context, sopInstanceUID, key string) (string, bool, error)

	// RecordInstanceFile stores the on-disk digest (size, mtime) for an
	// already-indexed instance after its file has been written.
	RecordInstanceFile(ctx context.Context, sopInstanceUID, filename string, sizeBytes, modTimeUnix int64) error
	// SetSeriesThumbnail records the thumbnail path unless one is already set.
	SetSeriesThumbnail(ctx context.Context, seriesUID, thumbnailPath string) error

	// Delete* remove rows only; file removal is the caller's business.
	// They report whether the target row existed.
	DeleteInstance(ctx context.Context, sopInstanceUID string) (bool, error)
	DeleteSeries(ctx context.Context, seriesUID string) (bool, error)
	DeleteStudy(ctx context.Context, studyUID string) (bool, error)
	DeletePatient(ctx context.Context, patientID string) (bool, error)
}

// Connection is the read-only face of the schema and connection manager.
type Connection interface {
	IsOpen() bool
	IsInMemory() bool
	LastError() string
}

// ObjectParser is the external parser capability: given a file or an
// in-memory buffer, produce the structured view of the object. Malformed
// input fails with an error wrapping ErrParse.
type ObjectParser interface {
	ParseFile(path string) (*ParsedObject, error)
	ParseBytes(data []byte) (*ParsedObject, error)
}

// ThumbnailGenerator is the external thumbnail capability: render a preview
// of the object at sourcePath into destPath. Best effort; failures are
// reported but never block indexing.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, sourcePath, destPath string) error
}
