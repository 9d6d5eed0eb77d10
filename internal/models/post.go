package models

// Post is an immutable question or answer published by a user, optionally carrying
// an uploaded file and a code snippet stored in object storage.
type Post struct {
	BaseModel

	Title          string `gorm:"type:varchar(255);not null" json:"title"`
	Content        string `gorm:"type:text" json:"content"`
	AuthorID       string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	FileURL        string `gorm:"type:text" json:"file_url,omitempty"`
	FileName       string `gorm:"type:varchar(255)" json:"file_name,omitempty"`
	FileType       string `gorm:"type:varchar(64)" json:"file_type,omitempty"`
	CodeSnippetURL string `gorm:"type:text" json:"code_snippet_url,omitempty"`
}
