package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/dicomindex/internal/domain"
	"gorm.io/gorm"
)

// IndexRepository persists the patient/study/series/instance hierarchy and
// the tag-value side table. Upserts never blank a previously recorded field
// with an empty incoming value.
type IndexRepository struct {
	database *Database
	tx       *gorm.DB
}

func NewIndexRepository(database *Database) *IndexRepository {
	return &IndexRepository{database: database}
}

func (r *IndexRepository) conn() (*gorm.DB, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	return r.database.handle()
}

func (r *IndexRepository) Tx(ctx context.Context, fn func(domain.IndexRepository) error) error {
	g, err := r.conn()
	if err != nil {
		return err
	}
	return g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&IndexRepository{database: r.database, tx: tx})
	})
}

func (r *IndexRepository) UpsertPatient(ctx context.Context, value domain.Patient) (domain.Patient, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Patient{}, err
	}

	var m PatientModel
	err = g.WithContext(ctx).Where("patient_id = ?", value.PatientID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = PatientModel{
			PatientID:   value.PatientID,
			PatientName: value.PatientName,
			BirthDate:   value.BirthDate,
			Sex:         value.Sex,
		}
		if err := g.WithContext(ctx).Create(&m).Error; err != nil {
			return domain.Patient{}, err
		}
		return patientToDomain(m), nil
	}
	if err != nil {
		return domain.Patient{}, err
	}

	updates := map[string]any{}
	if value.PatientName != "" && value.PatientName != m.PatientName {
		updates["patient_name"] = value.PatientName
		m.PatientName = value.PatientName
	}
	if value.BirthDate != "" && value.BirthDate != m.BirthDate {
		updates["birth_date"] = value.BirthDate
		m.BirthDate = value.BirthDate
	}
	if value.Sex != "" && value.Sex != m.Sex {
		updates["sex"] = value.Sex
		m.Sex = value.Sex
	}
	if len(updates) > 0 {
		if err := g.WithContext(ctx).Model(&PatientModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return domain.Patient{}, err
		}
	}
	return patientToDomain(m), nil
}

func (r *IndexRepository) UpsertStudy(ctx context.Context, value domain.Study) (domain.Study, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Study{}, err
	}

	var m StudyModel
	err = g.WithContext(ctx).Where("study_instance_uid = ?", value.StudyInstanceUID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = StudyModel{
			StudyInstanceUID:   value.StudyInstanceUID,
			PatientID:          value.PatientID,
			StudyDate:          value.StudyDate,
			StudyTime:          value.StudyTime,
			AccessionNumber:    value.AccessionNumber,
			Description:        value.Description,
			ReferringPhysician: value.ReferringPhysician,
		}
		if err := g.WithContext(ctx).Create(&m).Error; err != nil {
			return domain.Study{}, err
		}
		return studyToDomain(m), nil
	}
	if err != nil {
		return domain.Study{}, err
	}

	updates := map[string]any{}
	if value.PatientID != "" && value.PatientID != m.PatientID {
		updates["patient_id"] = value.PatientID
		m.PatientID = value.PatientID
	}
	if value.StudyDate != "" && value.StudyDate != m.StudyDate {
		updates["study_date"] = value.StudyDate
		m.StudyDate = value.StudyDate
	}
	if value.StudyTime != "" && value.StudyTime != m.StudyTime {
		updates["study_time"] = value.StudyTime
		m.StudyTime = value.StudyTime
	}
	if value.AccessionNumber != "" && value.AccessionNumber != m.AccessionNumber {
		updates["accession_number"] = value.AccessionNumber
		m.AccessionNumber = value.AccessionNumber
	}
	if value.Description != "" && value.Description != m.Description {
		updates["description"] = value.Description
		m.Description = value.Description
	}
	if value.ReferringPhysician != "" && value.ReferringPhysician != m.ReferringPhysician {
		updates["referring_physician"] = value.ReferringPhysician
		m.ReferringPhysician = value.ReferringPhysician
	}
	if len(updates) > 0 {
		if err := g.WithContext(ctx).Model(&StudyModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return domain.Study{}, err
		}
	}
	return studyToDomain(m), nil
}

func (r *IndexRepository) UpsertSeries(ctx context.Context, value domain.Series) (domain.Series, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Series{}, err
	}

	var m SeriesModel
	err = g.WithContext(ctx).Where("series_instance_uid = ?", value.SeriesInstanceUID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = SeriesModel{
			SeriesInstanceUID: value.SeriesInstanceUID,
			StudyInstanceUID:  value.StudyInstanceUID,
			Modality:          value.Modality,
			SeriesNumber:      value.SeriesNumber,
			Description:       value.Description,
			ThumbnailPath:     value.ThumbnailPath,
		}
		if err := g.WithContext(ctx).Create(&m).Error; err != nil {
			return domain.Series{}, err
		}
		return seriesToDomain(m), nil
	}
	if err != nil {
		return domain.Series{}, err
	}

	updates := map[string]any{}
	if value.StudyInstanceUID != "" && value.StudyInstanceUID != m.StudyInstanceUID {
		updates["study_instance_uid"] = value.StudyInstanceUID
		m.StudyInstanceUID = value.StudyInstanceUID
	}
	if value.Modality != "" && value.Modality != m.Modality {
		updates["modality"] = value.Modality
		m.Modality = value.Modality
	}
	if value.SeriesNumber != "" && value.SeriesNumber != m.SeriesNumber {
		updates["series_number"] = value.SeriesNumber
		m.SeriesNumber = value.SeriesNumber
	}
	if value.Description != "" && value.Description != m.Description {
		updates["description"] = value.Description
		m.Description = value.Description
	}
	if len(updates) > 0 {
		if err := g.WithContext(ctx).Model(&SeriesModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return domain.Series{}, err
		}
	}
	return seriesToDomain(m), nil
}

func (r *IndexRepository) UpsertInstance(ctx context.Context, value domain.Instance) (domain.Instance, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Instance{}, err
	}

	var m InstanceModel
	err = g.WithContext(ctx).Where("sop_instance_uid = ?", value.SOPInstanceUID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = InstanceModel{
			SOPInstanceUID:    value.SOPInstanceUID,
			SeriesInstanceUID: value.SeriesInstanceUID,
			Filename:          value.Filename,
			SizeBytes:         value.SizeBytes,
			ModTimeUnix:       value.ModTimeUnix,
		}
		if err := g.WithContext(ctx).Create(&m).Error; err != nil {
			return domain.Instance{}, err
		}
		return instanceToDomain(m), nil
	}
	if err != nil {
		return domain.Instance{}, err
	}

	updates := map[string]any{}
	if value.SeriesInstanceUID != "" && value.SeriesInstanceUID != m.SeriesInstanceUID {
		updates["series_instance_uid"] = value.SeriesInstanceUID
		m.SeriesInstanceUID = value.SeriesInstanceUID
	}
	if value.Filename != "" && value.Filename != m.Filename {
		updates["filename"] = value.Filename
		m.Filename = value.Filename
	}
	if len(updates) > 0 {
		if err := g.WithContext(ctx).Model(&InstanceModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return domain.Instance{}, err
		}
	}
	return instanceToDomain(m), nil
}

func (r *IndexRepository) UpsertTagValues(ctx context.Context, values []domain.TagValue) error {
	g, err := r.conn()
	if err != nil {
		return err
	}
	for _, value := range values {
		m := TagValueModel{SOPInstanceUID: value.SOPInstanceUID, TagKey: value.Key, Value: value.Value}
		err := g.WithContext(ctx).
			Where("sop_instance_uid = ? AND tag_key = ?", value.SOPInstanceUID, value.Key).
			Assign(map[string]any{"value": value.Value}).
			FirstOrCreate(&m).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *IndexRepository) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	g, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows := make([]PatientModel, 0)
	if err := g.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Patient, 0, len(rows))
	for _, m := range rows {
		result = append(result, patientToDomain(m))
	}
	return result, nil
}

func (r *IndexRepository) StudiesForPatient(ctx context.Context, patientID string) ([]domain.Study, error) {
	g, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows := make([]StudyModel, 0)
	if err := g.WithContext(ctx).Where("patient_id = ?", patientID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Study, 0, len(rows))
	for _, m := range rows {
		result = append(result, studyToDomain(m))
	}
	return result, nil
}

func (r *IndexRepository) SeriesForStudy(ctx context.Context, studyUID string) ([]domain.Series, error) {
	g, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows := make([]SeriesModel, 0)
	if err := g.WithContext(ctx).Where("study_instance_uid = ?", studyUID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Series, 0, len(rows))
	for _, m := range rows {
		result = append(result, seriesToDomain(m))
	}
	return result, nil
}

func (r *IndexRepository) InstancesForSeries(ctx context.Context, seriesUID string) ([]domain.Instance, error) {
	g, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows := make([]InstanceModel, 0)
	if err := g.WithContext(ctx).Where("series_instance_uid = ?", seriesUID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Instance, 0, len(rows))
	for _, m := range rows {
		result = append(result, instanceToDomain(m))
	}
	return result, nil
}

func (r *IndexRepository) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	g, err := r.conn()
	if err != nil {
		return nil, err
	}
	rows := make([]InstanceModel, 0)
	if err := g.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Instance, 0, len(rows))
	for _, m := range rows {
		result = append(result, instanceToDomain(m))
	}
	return result, nil
}

func (r *IndexRepository) PatientByID(ctx context.Context, patientID string) (domain.Patient, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Patient{}, err
	}
	var m PatientModel
	if err := g.WithContext(ctx).Where("patient_id = ?", patientID).First(&m).Error; err != nil {
		return domain.Patient{}, notFound(err, "patient %s", patientID)
	}
	return patientToDomain(m), nil
}

func (r *IndexRepository) StudyByUID(ctx context.Context, studyUID string) (domain.Study, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Study{}, err
	}
	var m StudyModel
	if err := g.WithContext(ctx).Where("study_instance_uid = ?", studyUID).First(&m).Error; err != nil {
		return domain.Study{}, notFound(err, "study %s", studyUID)
	}
	return studyToDomain(m), nil
}

func (r *IndexRepository) SeriesByUID(ctx context.Context, seriesUID string) (domain.Series, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Series{}, err
	}
	var m SeriesModel
	if err := g.WithContext(ctx).Where("series_instance_uid = ?", seriesUID).First(&m).Error; err != nil {
		return domain.Series{}, notFound(err, "series %s", seriesUID)
	}
	return seriesToDomain(m), nil
}

func (r *IndexRepository) InstanceByUID(ctx context.Context, sopInstanceUID string) (domain.Instance, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Instance{}, err
	}
	var m InstanceModel
	if err := g.WithContext(ctx).Where("sop_instance_uid = ?", sopInstanceUID).First(&m).Error; err != nil {
		return domain.Instance{}, notFound(err, "instance %s", sopInstanceUID)
	}
	return instanceToDomain(m), nil
}

func (r *IndexRepository) InstanceByFilename(ctx context.Context, filename string) (domain.Instance, error) {
	g, err := r.conn()
	if err != nil {
		return domain.Instance{}, err
	}
	var m InstanceModel
	if err := g.WithContext(ctx).Where("filename = ? AND filename != ''", filename).First(&m).Error; err != nil {
		return domain.Instance{}, notFound(err, "file %s", filename)
	}
	return instanceToDomain(m), nil
}

func (r *IndexRepository) TagValue(ctx context.Context, sopInstanceUID, key string) (string, bool, error) {
	g, err := r.conn()
	if err != nil {
		return "", false, err
	}
	var m TagValueModel
	err = g.WithContext(ctx).Where("sop_instance_uid = ? AND tag_key = ?", sopInstanceUID, key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

func (r *IndexRepository) RecordInstanceFile(ctx context.Context, sopInstanceUID, filename string, sizeBytes, modTimeUnix int64) error {
	g, err := r.conn()
	if err != nil {
		return err
	}
	res := g.WithContext(ctx).Model(&InstanceModel{}).
		Where("sop_instance_uid = ?", sopInstanceUID).
		Updates(map[string]any{"filename": filename, "size_bytes": sizeBytes, "mod_time_unix": modTimeUnix})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: instance %s", domain.ErrNotFound, sopInstanceUID)
	}
	return nil
}

func (r *IndexRepository) SetSeriesThumbnail(ctx context.Context, seriesUID, thumbnailPath string) error {
	g, err := r.conn()
	if err != nil {
		return err
	}
	return g.WithContext(ctx).Model(&SeriesModel{}).
		Where("series_instance_uid = ? AND thumbnail_path = ''", seriesUID).
		Update("thumbnail_path", thumbnailPath).Error
}

func (r *IndexRepository) DeleteInstance(ctx context.Context, sopInstanceUID string) (bool, error) {
	g, err := r.conn()
	if err != nil {
		return false, err
	}
	if err := g.WithContext(ctx).Where("sop_instance_uid = ?", sopInstanceUID).Delete(&TagValueModel{}).Error; err != nil {
		return false, err
	}
	res := g.WithContext(ctx).Where("sop_instance_uid = ?", sopInstanceUID).Delete(&InstanceModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteSeries removes the series row plus all child instance rows and their
// tag values. Files are not touched here.
func (r *IndexRepository) DeleteSeries(ctx context.Context, seriesUID string) (bool, error) {
	g, err := r.conn()
	if err != nil {
		return false, err
	}
	err = g.WithContext(ctx).
		Where("sop_instance_uid IN (?)",
			g.WithContext(ctx).Model(&InstanceModel{}).Select("sop_instance_uid").Where("series_instance_uid = ?", seriesUID)).
		Delete(&TagValueModel{}).Error
	if err != nil {
		return false, err
	}
	if err := g.WithContext(ctx).Where("series_instance_uid = ?", seriesUID).Delete(&InstanceModel{}).Error; err != nil {
		return false, err
	}
	res := g.WithContext(ctx).Where("series_instance_uid = ?", seriesUID).Delete(&SeriesModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *IndexRepository) DeleteStudy(ctx context.Context, studyUID string) (bool, error) {
	g, err := r.conn()
	if err != nil {
		return false, err
	}
	res := g.WithContext(ctx).Where("study_instance_uid = ?", studyUID).Delete(&StudyModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *IndexRepository) DeletePatient(ctx context.Context, patientID string) (bool, error) {
	g, err := r.conn()
	if err != nil {
		return false, err
	}
	res := g.WithContext(ctx).Where("patient_id = ?", patientID).Delete(&PatientModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func patientToDomain(m PatientModel) domain.Patient {
	return domain.Patient{
		ID:          m.ID,
		PatientID:   m.PatientID,
		PatientName: m.PatientName,
		BirthDate:   m.BirthDate,
		Sex:         m.Sex,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func studyToDomain(m StudyModel) domain.Study {
	return domain.Study{
		ID:                 m.ID,
		StudyInstanceUID:   m.StudyInstanceUID,
		PatientID:          m.PatientID,
		StudyDate:          m.StudyDate,
		StudyTime:          m.StudyTime,
		AccessionNumber:    m.AccessionNumber,
		Description:        m.Description,
		ReferringPhysician: m.ReferringPhysician,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func seriesToDomain(m SeriesModel) domain.Series {
	return domain.Series{
		ID:                m.ID,
		SeriesInstanceUID: m.SeriesInstanceUID,
		StudyInstanceUID:  m.StudyInstanceUID,
		Modality:          m.Modality,
		SeriesNumber:      m.SeriesNumber,
		Description:       m.Description,
		ThumbnailPath:     m.ThumbnailPath,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func instanceToDomain(m InstanceModel) domain.Instance {
	return domain.Instance{
		ID:                m.ID,
		SOPInstanceUID:    m.SOPInstanceUID,
		SeriesInstanceUID: m.SeriesInstanceUID,
		Filename:          m.Filename,
		SizeBytes:         m.SizeBytes,
		ModTimeUnix:       m.ModTimeUnix,
		InsertedAt:        m.CreatedAt,
	}
}

var _ domain.IndexRepository = (*IndexRepository)(nil)
