package domain

import "errors"

var (
	// ErrNotOpen is returned for any operation attempted on a closed handle.
	ErrNotOpen = errors.New("database not open")
	// ErrParse is returned when a source cannot be interpreted as a DICOM
	// object.
	ErrParse = errors.New("unparsable object")
	// ErrIntegrity is returned when an insert would violate the hierarchy,
	// e.g. an instance whose series is unknown and CreateHierarchy is off.
	ErrIntegrity = errors.New("hierarchy integrity violation")
	// ErrNotFound is returned by lookups for UIDs or paths that are not
	// indexed. Absent tags are not errors; tag lookups return "".
	ErrNotFound = errors.New("not found")
)
