package domain

import "time"

// Patient is the top of the index hierarchy, keyed by the DICOM PatientID.
// Name, birth date and sex are display attributes carried along for listings.
type Patient struct {
	ID          uint
	PatientID   string
	PatientName string
	BirthDate   string
	Sex         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Study struct {
	ID                 uint
	StudyInstanceUID   string
	PatientID          string
	StudyDate          string
	StudyTime          string
	AccessionNumber    string
	Description        string
	ReferringPhysician string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Series carries the modality and, once a thumbnail has been generated for one
// of its instances, the path of that thumbnail.
type Series struct {
	ID                uint
	SeriesInstanceUID string
	StudyInstanceUID  string
	Modality          string
	SeriesNumber      string
	Description       string
	ThumbnailPath     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Instance is a single stored object. Filename is empty for index-only records
// (partial hierarchies, in-memory mode). SizeBytes and ModTimeUnix record the
// on-disk state of Filename at the time it was last written and are the basis
// of the up-to-date check that makes re-imports idempotent.
type Instance struct {
	ID                uint
	SOPInstanceUID    string
	SeriesInstanceUID string
	Filename          string
	SizeBytes         int64
	ModTimeUnix       int64
	InsertedAt        time.Time
}

// TagValue is one denormalized (instance, tag) -> value projection. Key is the
// zero-filled hex "GGGG,EEEE" form produced by Tag.Key.
type TagValue struct {
	SOPInstanceUID string
	Key            string
	Value          string
}

// Element is a single header field as reported by the parser adapter.
type Element struct {
	Tag   Tag
	Value string
}

// ParsedObject is the structured view of one DICOM object. Any subset of the
// identifiers may be present; a study-level query result with no instance data
// is still a valid ParsedObject.
type ParsedObject struct {
	PatientID          string
	PatientName        string
	PatientBirthDate   string
	PatientSex         string
	StudyInstanceUID   string
	StudyDate          string
	StudyTime          string
	AccessionNumber    string
	StudyDescription   string
	ReferringPhysician string
	SeriesInstanceUID  string
	Modality           string
	SeriesNumber       string
	SeriesDescription  string
	SOPInstanceUID     string

	// Elements is the bounded set of header fields the parser chose to
	// report, in file order. It feeds the tag-value side table.
	Elements []Element
}

// ObjectSource is the tagged-variant input to Insert. Exactly one of the
// fields should be set; Dataset wins over Bytes, Bytes over Path.
type ObjectSource struct {
	// Path of a DICOM file to parse and (optionally) copy into the store.
	Path string
	// Bytes of an in-memory DICOM object.
	Bytes []byte
	// Dataset is an already-parsed object. No file content is available, so
	// such inserts are index-only.
	Dataset *ParsedObject
}

// InsertOptions mirror the flags of the insert operation. The zero value is
// not useful; use DefaultInsertOptions.
type InsertOptions struct {
	// StoreFile copies the object into the managed tree. Ignored when the
	// database is in-memory or when no file content is available.
	StoreFile bool
	// GenerateThumbnail invokes the thumbnail capability, best effort.
	GenerateThumbnail bool
	// CreateHierarchy creates missing patient/study/series rows. When false,
	// inserting an instance whose parents are not already indexed fails.
	CreateHierarchy bool
	// DestinationDir overrides the resolver-computed directory for the
	// stored object file. Empty means the canonical location.
	DestinationDir string
}

func DefaultInsertOptions() InsertOptions {
	return InsertOptions{StoreFile: true, GenerateThumbnail: true, CreateHierarchy: true}
}
