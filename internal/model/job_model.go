package model

import (
	"strings"
	"time"

	"github.com/gould-simon/ai-accounting-job-matching/internal/util"
)

// Job mirrors the external catalog's job listing table. The catalog is owned
// by the scraper system; this service never inserts, updates, or deletes rows
// here. There is deliberately no repository method that writes this model.
type Job struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	JobTitle    string    `gorm:"type:varchar(1000)" json:"job_title"`
	Seniority   string    `gorm:"type:varchar(1000)" json:"seniority"`
	Service     string    `gorm:"type:varchar(1000)" json:"service"`
	Industry    string    `gorm:"type:varchar(1000)" json:"industry"`
	Location    string    `gorm:"type:varchar(5000)" json:"location"`
	Employment  string    `gorm:"type:varchar(1000)" json:"employment"`
	Salary      string    `gorm:"type:varchar(1000)" json:"salary"`
	SalaryMin   int64     `json:"salary_min"`
	SalaryMax   int64     `json:"salary_max"`
	Description string    `gorm:"type:text" json:"description"`
	Link        string    `gorm:"type:varchar(400)" json:"link"`
	FirmID      int64     `json:"firm_id"`
	IsIndexed   bool      `json:"is_indexed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *Job) TableName() string {
	return "jobs"
}

// EmbeddingText assembles the fields that feed embedding generation.
func (j *Job) EmbeddingText() string {
	parts := []string{j.JobTitle, j.Seniority, j.Service, j.Location, j.Employment, j.Description}
	return strings.Join(parts, "\n")
}

// ContentHash fingerprints the embedding-relevant fields. An embedding is
// fresh exactly when its stored content_hash equals this value.
func (j *Job) ContentHash() string {
	return util.HashText(j.EmbeddingText())
}
