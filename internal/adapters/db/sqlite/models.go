package sqlite

import "time"

type PatientModel struct {
	ID          uint   `gorm:"primaryKey"`
	PatientID   string `gorm:"uniqueIndex;not null"`
	PatientName string `gorm:"not null;default:''"`
	BirthDate   string `gorm:"not null;default:''"`
	Sex         string `gorm:"not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PatientModel) TableName() string { return "patients" }

type StudyModel struct {
	ID                 uint   `gorm:"primaryKey"`
	StudyInstanceUID   string `gorm:"column:study_instance_uid;uniqueIndex;not null"`
	PatientID          string `gorm:"not null;index"`
	StudyDate          string `gorm:"not null;default:''"`
	StudyTime          string `gorm:"not null;default:''"`
	AccessionNumber    string `gorm:"not null;default:''"`
	Description        string `gorm:"not null;default:''"`
	ReferringPhysician string `gorm:"not null;default:''"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (StudyModel) TableName() string { return "studies" }

type SeriesModel struct {
	ID                uint   `gorm:"primaryKey"`
	SeriesInstanceUID string `gorm:"column:series_instance_uid;uniqueIndex;not null"`
	StudyInstanceUID  string `gorm:"column:study_instance_uid;not null;index"`
	Modality          string `gorm:"not null;default:''"`
	SeriesNumber      string `gorm:"not null;default:''"`
	Description       string `gorm:"not null;default:''"`
	ThumbnailPath     string `gorm:"not null;default:''"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (SeriesModel) TableName() string { return "series" }

type InstanceModel struct {
	ID                uint   `gorm:"primaryKey"`
	SOPInstanceUID    string `gorm:"column:sop_instance_uid;uniqueIndex;not null"`
	SeriesInstanceUID string `gorm:"column:series_instance_uid;not null;index"`
	Filename          string `gorm:"not null;default:'';index"`
	SizeBytes         int64  `gorm:"not null;default:0"`
	ModTimeUnix       int64  `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (InstanceModel) TableName() string { return "instances" }

type TagValueModel struct {
	ID             uint   `gorm:"primaryKey"`
	SOPInstanceUID string `gorm:"column:sop_instance_uid;not null;index:idx_tag_values_instance_key,unique"`
	TagKey         string `gorm:"column:tag_key;not null;index:idx_tag_values_instance_key,unique"`
	Value          string `gorm:"not null;default:''"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TagValueModel) TableName() string { return "tag_values" }
