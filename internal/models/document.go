package models

import "time"

// DocumentTypeOfficial marks the PDF generated when an application is
// approved, as opposed to citizen-uploaded supporting files.
const DocumentTypeOfficial = "official_document"

// Document is an uploaded or generated file tied to one application.
// Files live on local disk; only the path is stored.
type Document struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	ApplicationID    uint   `gorm:"not null;index" json:"applicationId"`
	Filename         string `gorm:"size:255;not null" json:"filename"`
	OriginalFilename string `gorm:"size:255;not null" json:"originalFilename"`
	FilePath         string `gorm:"size:500;not null" json:"-"`
	FileSize         int64  `json:"fileSize"`
	MimeType         string `gorm:"size:100" json:"mimeType,omitempty"`
	DocumentType     string `gorm:"size:50;index" json:"documentType,omitempty"`

	CreatedAt time.Time `gorm:"column:uploaded_at" json:"uploadedAt"`
}

// TableName specifies the table name for Document model
func (Document) TableName() string {
	return "documents"
}

// FileSizeMB returns the size in megabytes, rounded for display.
func (d *Document) FileSizeMB() float64 {
	if d.FileSize <= 0 {
		return 0
	}
	return float64(d.FileSize) / (1024 * 1024)
}
