package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"github.com/atvirokodosprendimai/dicomindex/internal/storage"
	"go.uber.org/zap"
)

// IndexService coordinates the relational index and the file-system object
// store. Mutating calls (Insert, Remove*, Cleanup) are serialized by an
// internal mutex: the service supports a single logical writer, with readers
// running interleaved against committed state.
type IndexService struct {
	conn   domain.Connection
	repo   domain.IndexRepository
	store  *storage.Store
	parser domain.ObjectParser
	log    *zap.SugaredLogger

	thumbMu sync.RWMutex
	thumbs  domain.ThumbnailGenerator

	writeMu sync.Mutex

	listenerMu sync.Mutex
	listeners  []func()

	// Header cursor state, see LoadFileHeader.
	headerMu   sync.Mutex
	headerKeys []string
	headerVals map[string]string
}

func NewIndexService(conn domain.Connection, repo domain.IndexRepository, store *storage.Store, parser domain.ObjectParser, log *zap.SugaredLogger) *IndexService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IndexService{
		conn:   conn,
		repo:   repo,
		store:  store,
		parser: parser,
		log:    log,
	}
}

// SetThumbnailGenerator installs the external thumbnail capability. A nil
// generator disables thumbnail generation.
func (s *IndexService) SetThumbnailGenerator(g domain.ThumbnailGenerator) {
	s.thumbMu.Lock()
	defer s.thumbMu.Unlock()
	s.thumbs = g
}

func (s *IndexService) thumbnailGenerator() domain.ThumbnailGenerator {
	s.thumbMu.RLock()
	defer s.thumbMu.RUnlock()
	return s.thumbs
}

// Subscribe registers a listener invoked after every successful mutating
// call, strictly after the index rows are committed. Listeners receive no
// payload; they re-query.
func (s *IndexService) Subscribe(fn func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *IndexService) notifyChanged() {
	s.listenerMu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// LastError exposes the connection manager's most recent textual error.
func (s *IndexService) LastError() string { return s.conn.LastError() }

// Insert indexes one object. The hierarchy rows and tag values commit as one
// transaction; the file copy happens after the commit, so a disk failure
// leaves valid index rows pointing at a missing file (recoverable via
// Cleanup). One change notification fires per successful call.
func (s *IndexService) Insert(ctx context.Context, source domain.ObjectSource, opts domain.InsertOptions) error {
	if !s.conn.IsOpen() {
		return domain.ErrNotOpen
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	obj, err := s.resolveSource(source)
	if err != nil {
		return err
	}
	if obj.PatientID == "" && obj.StudyInstanceUID == "" && obj.SeriesInstanceUID == "" && obj.SOPInstanceUID == "" {
		return fmt.Errorf("%w: object carries no identifiers", domain.ErrParse)
	}

	storeFile := opts.StoreFile &&
		!s.conn.IsInMemory() &&
		obj.SOPInstanceUID != "" &&
		(source.Path != "" || len(source.Bytes) > 0)

	var dest string
	if storeFile {
		root := s.store.Root()
		if opts.DestinationDir != "" {
			root = opts.DestinationDir
		}
		dest = storage.InstancePath(root, obj.StudyInstanceUID, obj.SeriesInstanceUID, obj.SOPInstanceUID)
	}

	// Re-inserting unchanged content is a no-op for the file copy and the
	// tag table; the row upserts below are idempotent by themselves.
	upToDate := false
	if storeFile {
		inst, err := s.repo.InstanceByUID(ctx, obj.SOPInstanceUID)
		switch {
		case err == nil:
			upToDate = inst.Filename == dest && s.store.UpToDate(dest, inst.SizeBytes, inst.ModTimeUnix)
		case errors.Is(err, domain.ErrNotFound):
		default:
			return err
		}
	}

	err = s.repo.Tx(ctx, func(tx domain.IndexRepository) error {
		return upsertHierarchy(ctx, tx, obj, opts, dest, upToDate)
	})
	if err != nil {
		return err
	}

	if storeFile && !upToDate {
		if err := s.writeObject(source, dest); err != nil {
			return fmt.Errorf("store object %s: %w", obj.SOPInstanceUID, err)
		}
		size, mod, err := s.store.Stat(dest)
		if err != nil {
			return fmt.Errorf("stat stored object %s: %w", dest, err)
		}
		if err := s.repo.RecordInstanceFile(ctx, obj.SOPInstanceUID, dest, size, mod); err != nil {
			return err
		}
	}

	if opts.GenerateThumbnail && storeFile {
		s.generateThumbnail(ctx, obj, dest)
	}

	s.notifyChanged()
	return nil
}

func upsertHierarchy(ctx context.Context, tx domain.IndexRepository, obj *domain.ParsedObject, opts domain.InsertOptions, dest string, upToDate bool) error {
	if obj.SOPInstanceUID != "" && obj.SeriesInstanceUID == "" {
		return fmt.Errorf("%w: instance %s has no series", domain.ErrIntegrity, obj.SOPInstanceUID)
	}
	if !opts.CreateHierarchy && obj.SeriesInstanceUID != "" {
		if _, err := tx.SeriesByUID(ctx, obj.SeriesInstanceUID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: series %s is not indexed and hierarchy creation is off", domain.ErrIntegrity, obj.SeriesInstanceUID)
			}
			return err
		}
	}

	if obj.PatientID != "" {
		_, err := tx.UpsertPatient(ctx, domain.Patient{
			PatientID:   obj.PatientID,
			PatientName: obj.PatientName,
			BirthDate:   obj.PatientBirthDate,
			Sex:         obj.PatientSex,
		})
		if err != nil {
			return err
		}
	}
	if obj.StudyInstanceUID != "" {
		_, err := tx.UpsertStudy(ctx, domain.Study{
			StudyInstanceUID:   obj.StudyInstanceUID,
			PatientID:          obj.PatientID,
			StudyDate:          obj.StudyDate,
			StudyTime:          obj.StudyTime,
			AccessionNumber:    obj.AccessionNumber,
			Description:        obj.StudyDescription,
			ReferringPhysician: obj.ReferringPhysician,
		})
		if err != nil {
			return err
		}
	}
	if obj.SeriesInstanceUID != "" {
		_, err := tx.UpsertSeries(ctx, domain.Series{
			SeriesInstanceUID: obj.SeriesInstanceUID,
			StudyInstanceUID:  obj.StudyInstanceUID,
			Modality:          obj.Modality,
			SeriesNumber:      obj.SeriesNumber,
			Description:       obj.SeriesDescription,
		})
		if err != nil {
			return err
		}
	}
	if obj.SOPInstanceUID != "" {
		_, err := tx.UpsertInstance(ctx, domain.Instance{
			SOPInstanceUID:    obj.SOPInstanceUID,
			SeriesInstanceUID: obj.SeriesInstanceUID,
			Filename:          dest,
		})
		if err != nil {
			return err
		}
		if !upToDate && len(obj.Elements) > 0 {
			values := make([]domain.TagValue, 0, len(obj.Elements))
			for _, el := range obj.Elements {
				values = append(values, domain.TagValue{
					SOPInstanceUID: obj.SOPInstanceUID,
					Key:            el.Tag.Key(),
					Value:          el.Value,
				})
			}
			if err := tx.UpsertTagValues(ctx, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *IndexService) resolveSource(source domain.ObjectSource) (*domain.ParsedObject, error) {
	switch {
	case source.Dataset != nil:
		return source.Dataset, nil
	case len(source.Bytes) > 0:
		return s.parser.ParseBytes(source.Bytes)
	case source.Path != "":
		return s.parser.ParseFile(source.Path)
	}
	return nil, fmt.Errorf("%w: empty object source", domain.ErrParse)
}

func (s *IndexService) writeObject(source domain.ObjectSource, dest string) error {
	if len(source.Bytes) > 0 {
		return s.store.WriteObject(dest, bytes.NewReader(source.Bytes))
	}
	return s.store.CopyObject(dest, source.Path)
}

func (s *IndexService) generateThumbnail(ctx context.Context, obj *domain.ParsedObject, objectPath string) {
	g := s.thumbnailGenerator()
	if g == nil {
		return
	}
	thumbPath := s.store.ThumbnailPath(obj.StudyInstanceUID, obj.SeriesInstanceUID, obj.SOPInstanceUID)
	if err := g.Generate(ctx, objectPath, thumbPath); err != nil {
		s.log.Warnw("thumbnail generation failed", "instance", obj.SOPInstanceUID, "error", err)
		return
	}
	if err := s.repo.SetSeriesThumbnail(ctx, obj.SeriesInstanceUID, thumbPath); err != nil {
		s.log.Warnw("recording series thumbnail failed", "series", obj.SeriesInstanceUID, "error", err)
	}
}

// FileExistsAndUpToDate reports whether path is an indexed object file whose
// current on-disk state matches the recorded digest. Unindexed paths are
// never up to date.
func (s *IndexService) FileExistsAndUpToDate(ctx context.Context, path string) bool {
	if !s.conn.IsOpen() {
		return false
	}
	inst, err := s.repo.InstanceByFilename(ctx, path)
	if err != nil {
		return false
	}
	return s.store.UpToDate(path, inst.SizeBytes, inst.ModTimeUnix)
}
