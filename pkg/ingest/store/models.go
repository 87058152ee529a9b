package store

import "time"

// Run status constants.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one accepted upload: the archive on disk plus the metadata that
// arrived with it.
type Run struct {
	ID          uint      `gorm:"primaryKey" json:"run_id"`
	Project     string    `gorm:"index;not null" json:"project"`
	Trigger     string    `json:"trigger,omitempty"`
	Branch      string    `json:"branch,omitempty"`
	Commit      string    `json:"commit,omitempty"`
	Status      string    `gorm:"not null" json:"status"`
	ArchivePath string    `json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	Metadata    string    `json:"-"` // raw metadata JSON as received
	CreatedAt   time.Time `json:"created_at"`
}
