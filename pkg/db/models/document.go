package models

import "time"

// Document is one stored node of the path addressed document tree.
type Document struct {
	Path      string    `gorm:"column:path;primaryKey"`
	Body      string    `gorm:"column:body;type:text;not null"`
	Version   int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Document) TableName() string {
	return "documents"
}
