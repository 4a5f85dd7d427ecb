package dicomfile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"github.com/suyashkumar/dicom"
)

// Parser is the object parser adapter over suyashkumar/dicom. It reports
// every top-level header element with a printable value; pixel data, nested
// sequences and raw byte fields are not indexed.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) ParseFile(path string) (*domain.ParsedObject, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, path, err)
	}
	return fromDataset(ds), nil
}

func (p *Parser) ParseBytes(data []byte) (*domain.ParsedObject, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return fromDataset(ds), nil
}

func fromDataset(ds dicom.Dataset) *domain.ParsedObject {
	obj := &domain.ParsedObject{}
	for _, el := range ds.Elements {
		if el == nil || el.Value == nil {
			continue
		}
		value, ok := valueString(el)
		if !ok {
			continue
		}
		t := domain.Tag{Group: el.Tag.Group, Element: el.Tag.Element}
		obj.Elements = append(obj.Elements, domain.Element{Tag: t, Value: value})

		switch t {
		case domain.TagPatientID:
			obj.PatientID = value
		case domain.TagPatientName:
			obj.PatientName = value
		case domain.TagPatientBirthDate:
			obj.PatientBirthDate = value
		case domain.TagPatientSex:
			obj.PatientSex = value
		case domain.TagStudyInstanceUID:
			obj.StudyInstanceUID = value
		case domain.TagStudyDate:
			obj.StudyDate = value
		case domain.TagStudyTime:
			obj.StudyTime = value
		case domain.TagAccessionNumber:
			obj.AccessionNumber = value
		case domain.TagStudyDescription:
			obj.StudyDescription = value
		case domain.TagReferringPhysician:
			obj.ReferringPhysician = value
		case domain.TagSeriesInstanceUID:
			obj.SeriesInstanceUID = value
		case domain.TagModality:
			obj.Modality = value
		case domain.TagSeriesNumber:
			obj.SeriesNumber = value
		case domain.TagSeriesDescription:
			obj.SeriesDescription = value
		case domain.TagSOPInstanceUID:
			obj.SOPInstanceUID = value
		}
	}
	return obj
}

// valueString renders an element's value as the backslash-joined string form
// DICOM uses for multi-valued fields. Non-printable value kinds report false.
func valueString(el *dicom.Element) (string, bool) {
	switch el.Value.ValueType() {
	case dicom.Strings:
		if vals, ok := el.Value.GetValue().([]string); ok {
			return strings.TrimSpace(strings.Join(vals, "\\")), true
		}
	case dicom.Ints:
		if vals, ok := el.Value.GetValue().([]int); ok {
			parts := make([]string, 0, len(vals))
			for _, v := range vals {
				parts = append(parts, strconv.Itoa(v))
			}
			return strings.Join(parts, "\\"), true
		}
	case dicom.Floats:
		if vals, ok := el.Value.GetValue().([]float64); ok {
			parts := make([]string, 0, len(vals))
			for _, v := range vals {
				parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
			}
			return strings.Join(parts, "\\"), true
		}
	}
	return "", false
}

var _ domain.ObjectParser = (*Parser)(nil)
