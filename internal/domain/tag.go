package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies one header field by its (group, element) pair.
type Tag struct {
	Group   uint16
	Element uint16
}

// Key returns the zero-filled uppercase hex form "GGGG,EEEE" used as the
// lookup key in the tag-value table and in header cursors.
func (t Tag) Key() string {
	return fmt.Sprintf("%04X,%04X", t.Group, t.Element)
}

func (t Tag) String() string { return t.Key() }

// ParseTag parses a "GGGG,EEEE" key back into a Tag. Hex digits of either
// case are accepted; both halves must be exactly four digits.
func ParseTag(key string) (Tag, error) {
	parts := strings.Split(strings.TrimSpace(key), ",")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return Tag{}, fmt.Errorf("%w: tag key %q is not GGGG,EEEE", ErrParse, key)
	}
	group, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag key %q: %v", ErrParse, key, err)
	}
	element, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag key %q: %v", ErrParse, key, err)
	}
	return Tag{Group: uint16(group), Element: uint16(element)}, nil
}

// Tags the indexer itself needs when mapping a parsed object onto the
// patient/study/series/instance hierarchy.
var (
	TagPatientID          = Tag{0x0010, 0x0020}
	TagPatientName        = Tag{0x0010, 0x0010}
	TagPatientBirthDate   = Tag{0x0010, 0x0030}
	TagPatientSex         = Tag{0x0010, 0x0040}
	TagStudyInstanceUID   = Tag{0x0020, 0x000D}
	TagStudyDate          = Tag{0x0008, 0x0020}
	TagStudyTime          = Tag{0x0008, 0x0030}
	TagAccessionNumber    = Tag{0x0008, 0x0050}
	TagStudyDescription   = Tag{0x0008, 0x1030}
	TagReferringPhysician = Tag{0x0008, 0x0090}
	TagSeriesInstanceUID  = Tag{0x0020, 0x000E}
	TagModality           = Tag{0x0008, 0x0060}
	TagSeriesNumber       = Tag{0x0020, 0x0011}
	TagSeriesDescription  = Tag{0x0008, 0x103E}
	TagSOPInstanceUID     = Tag{0x0008, 0x0018}
)
