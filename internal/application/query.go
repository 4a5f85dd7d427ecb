package application

import (
	"context"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
)

// Patients lists all indexed patients in insertion order.
func (s *IndexService) Patients(ctx context.Context) ([]domain.Patient, error) {
	if !s.conn.IsOpen() {
		return nil, domain.ErrNotOpen
	}
	return s.repo.ListPatients(ctx)
}

func (s *IndexService) StudiesForPatient(ctx context.Context, patientID string) ([]domain.Study, error) {
	if !s.conn.IsOpen() {
		return nil, domain.ErrNotOpen
	}
	return s.repo.StudiesForPatient(ctx, patientID)
}

func (s *IndexService) SeriesForStudy(ctx context.Context, studyUID string) ([]domain.Series, error) {
	if !s.conn.IsOpen() {
		return nil, domain.ErrNotOpen
	}
	return s.repo.SeriesForStudy(ctx, studyUID)
}

// FilesForSeries lists the stored object files of a series. Index-only
// instances (no file) are skipped.
func (s *IndexService) FilesForSeries(ctx context.Context, seriesUID string) ([]string, error) {
	if !s.conn.IsOpen() {
		return nil, domain.ErrNotOpen
	}
	instances, err := s.repo.InstancesForSeries(ctx, seriesUID)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(instances))
	for _, inst := range instances {
		if inst.Filename != "" {
			files = append(files, inst.Filename)
		}
	}
	return files, nil
}

// FileForInstance returns the stored file path of an instance, or
// domain.ErrNotFound if the instance is not indexed. An indexed instance
// without a file returns "".
func (s *IndexService) FileForInstance(ctx context.Context, sopInstanceUID string) (string, error) {
	if !s.conn.IsOpen() {
		return "", domain.ErrNotOpen
	}
	inst, err := s.repo.InstanceByUID(ctx, sopInstanceUID)
	if err != nil {
		return "", err
	}
	return inst.Filename, nil
}

// InstanceValue returns the recorded value of a tag for an instance, keyed
// by the "GGGG,EEEE" form. An absent tag yields "", never an error.
func (s *IndexService) InstanceValue(ctx context.Context, sopInstanceUID, key string) (string, error) {
	if !s.conn.IsOpen() {
		return "", domain.ErrNotOpen
	}
	t, err := domain.ParseTag(key)
	if err != nil {
		return "", err
	}
	value, _, err := s.repo.TagValue(ctx, sopInstanceUID, t.Key())
	return value, err
}

// InstanceValueGE is InstanceValue with the tag given as a numeric
// (group, element) pair.
func (s *IndexService) InstanceValueGE(ctx context.Context, sopInstanceUID string, group, element uint16) (string, error) {
	if !s.conn.IsOpen() {
		return "", domain.ErrNotOpen
	}
	value, _, err := s.repo.TagValue(ctx, sopInstanceUID, domain.Tag{Group: group, Element: element}.Key())
	return value, err
}

// FileValue resolves path back to its instance and looks the tag up there.
func (s *IndexService) FileValue(ctx context.Context, path, key string) (string, error) {
	if !s.conn.IsOpen() {
		return "", domain.ErrNotOpen
	}
	inst, err := s.repo.InstanceByFilename(ctx, path)
	if err != nil {
		return "", err
	}
	return s.InstanceValue(ctx, inst.SOPInstanceUID, key)
}

func (s *IndexService) FileValueGE(ctx context.Context, path string, group, element uint16) (string, error) {
	if !s.conn.IsOpen() {
		return "", domain.ErrNotOpen
	}
	inst, err := s.repo.InstanceByFilename(ctx, path)
	if err != nil {
		return "", err
	}
	return s.InstanceValueGE(ctx, inst.SOPInstanceUID, group, element)
}

// TagToGroupElement parses a "GGGG,EEEE" key into its numeric halves.
func (s *IndexService) TagToGroupElement(key string) (group, element uint16, ok bool) {
	t, err := domain.ParseTag(key)
	if err != nil {
		return 0, 0, false
	}
	return t.Group, t.Element, true
}

// LoadInstanceHeader parses the stored file of an instance into the header
// cursor. The cursor holds the most recently loaded header only: a second
// load replaces the first. Sharing one service between callers that
// interleave load and readback is not supported; the cursor is a
// single-caller convenience for sequential scans.
func (s *IndexService) LoadInstanceHeader(ctx context.Context, sopInstanceUID string) error {
	path, err := s.FileForInstance(ctx, sopInstanceUID)
	if err != nil {
		return err
	}
	if path == "" {
		return domain.ErrNotFound
	}
	return s.LoadFileHeader(path)
}

// LoadFileHeader parses path into the header cursor. See LoadInstanceHeader
// for the cursor contract.
func (s *IndexService) LoadFileHeader(path string) error {
	obj, err := s.parser.ParseFile(path)

	s.headerMu.Lock()
	defer s.headerMu.Unlock()
	s.headerKeys = nil
	s.headerVals = nil
	if err != nil {
		return err
	}
	s.headerVals = make(map[string]string, len(obj.Elements))
	for _, el := range obj.Elements {
		key := el.Tag.Key()
		if _, seen := s.headerVals[key]; !seen {
			s.headerKeys = append(s.headerKeys, key)
		}
		s.headerVals[key] = el.Value
	}
	return nil
}

// HeaderKeys returns the tag keys of the currently loaded header in file
// order, or nil when no header is loaded.
func (s *IndexService) HeaderKeys() []string {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()
	keys := make([]string, len(s.headerKeys))
	copy(keys, s.headerKeys)
	return keys
}

// HeaderValue queries the currently loaded header. An absent key yields "".
func (s *IndexService) HeaderValue(key string) string {
	normalized := key
	if t, err := domain.ParseTag(key); err == nil {
		normalized = t.Key()
	}
	s.headerMu.Lock()
	defer s.headerMu.Unlock()
	return s.headerVals[normalized]
}
