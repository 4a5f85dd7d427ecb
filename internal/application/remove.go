package application

import (
	"context"
	"os"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
)

// RemoveSeries deletes the series row, its instance rows and tag values, and
// the object files and thumbnails on disk, then prunes emptied directories.
// It returns false if the series is not indexed or any file deletion failed;
// rows already removed stay removed either way.
func (s *IndexService) RemoveSeries(ctx context.Context, seriesUID string) bool {
	if !s.conn.IsOpen() {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	changed, ok := s.removeSeriesLocked(ctx, seriesUID)
	if changed {
		s.notifyChanged()
	}
	return ok
}

func (s *IndexService) removeSeriesLocked(ctx context.Context, seriesUID string) (changed, ok bool) {
	series, err := s.repo.SeriesByUID(ctx, seriesUID)
	if err != nil {
		return false, false
	}
	instances, err := s.repo.InstancesForSeries(ctx, seriesUID)
	if err != nil {
		s.log.Errorw("listing instances for removal failed", "series", seriesUID, "error", err)
		return false, false
	}

	existed := false
	err = s.repo.Tx(ctx, func(tx domain.IndexRepository) error {
		e, err := tx.DeleteSeries(ctx, seriesUID)
		existed = e
		return err
	})
	if err != nil {
		s.log.Errorw("deleting series rows failed", "series", seriesUID, "error", err)
		return false, false
	}

	ok = true
	for _, inst := range instances {
		if err := s.store.Remove(inst.Filename); err != nil {
			s.log.Warnw("removing object file failed", "file", inst.Filename, "error", err)
			ok = false
		}
		thumb := s.store.ThumbnailPath(series.StudyInstanceUID, seriesUID, inst.SOPInstanceUID)
		if err := s.store.Remove(thumb); err != nil {
			s.log.Warnw("removing thumbnail failed", "file", thumb, "error", err)
			ok = false
		}
	}
	if series.ThumbnailPath != "" {
		if err := s.store.Remove(series.ThumbnailPath); err != nil {
			ok = false
		}
	}
	if err := s.store.PruneEmptyDirs(); err != nil {
		s.log.Warnw("pruning directories failed", "error", err)
	}
	return existed, existed && ok
}

// RemoveStudy cascades RemoveSeries over every child series, then deletes
// the study row.
func (s *IndexService) RemoveStudy(ctx context.Context, studyUID string) bool {
	if !s.conn.IsOpen() {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	changed, ok := s.removeStudyLocked(ctx, studyUID)
	if changed {
		s.notifyChanged()
	}
	return ok
}

func (s *IndexService) removeStudyLocked(ctx context.Context, studyUID string) (changed, ok bool) {
	if _, err := s.repo.StudyByUID(ctx, studyUID); err != nil {
		return false, false
	}
	series, err := s.repo.SeriesForStudy(ctx, studyUID)
	if err != nil {
		s.log.Errorw("listing series for removal failed", "study", studyUID, "error", err)
		return false, false
	}

	ok = true
	for _, item := range series {
		ch, sok := s.removeSeriesLocked(ctx, item.SeriesInstanceUID)
		changed = changed || ch
		ok = ok && sok
	}

	existed := false
	err = s.repo.Tx(ctx, func(tx domain.IndexRepository) error {
		e, err := tx.DeleteStudy(ctx, studyUID)
		existed = e
		return err
	})
	if err != nil {
		s.log.Errorw("deleting study row failed", "study", studyUID, "error", err)
		return changed, false
	}
	return changed || existed, ok && existed
}

// RemovePatient cascades RemoveStudy over every child study, then deletes
// the patient row.
func (s *IndexService) RemovePatient(ctx context.Context, patientID string) bool {
	if !s.conn.IsOpen() {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.repo.PatientByID(ctx, patientID); err != nil {
		return false
	}
	studies, err := s.repo.StudiesForPatient(ctx, patientID)
	if err != nil {
		s.log.Errorw("listing studies for removal failed", "patient", patientID, "error", err)
		return false
	}

	ok := true
	changed := false
	for _, study := range studies {
		ch, sok := s.removeStudyLocked(ctx, study.StudyInstanceUID)
		changed = changed || ch
		ok = ok && sok
	}

	existed := false
	err = s.repo.Tx(ctx, func(tx domain.IndexRepository) error {
		e, err := tx.DeletePatient(ctx, patientID)
		existed = e
		return err
	})
	if err != nil {
		s.log.Errorw("deleting patient row failed", "patient", patientID, "error", err)
		ok = false
	}
	changed = changed || existed

	if changed {
		s.notifyChanged()
	}
	return ok && existed
}

// Cleanup is the consistency sweep: index rows whose file vanished are
// dropped and emptied directories are pruned. It is idempotent and safe to
// retry.
func (s *IndexService) Cleanup(ctx context.Context) error {
	if !s.conn.IsOpen() {
		return domain.ErrNotOpen
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	instances, err := s.repo.ListInstances(ctx)
	if err != nil {
		return err
	}

	changed := false
	for _, inst := range instances {
		if inst.Filename == "" {
			continue
		}
		if _, statErr := os.Stat(inst.Filename); !os.IsNotExist(statErr) {
			continue
		}
		err := s.repo.Tx(ctx, func(tx domain.IndexRepository) error {
			_, err := tx.DeleteInstance(ctx, inst.SOPInstanceUID)
			return err
		})
		if err != nil {
			return err
		}
		s.log.Infow("dropped index row for missing file", "instance", inst.SOPInstanceUID, "file", inst.Filename)
		changed = true
	}

	if err := s.store.PruneEmptyDirs(); err != nil {
		s.log.Warnw("pruning directories failed", "error", err)
	}
	if changed {
		s.notifyChanged()
	}
	return nil
}
