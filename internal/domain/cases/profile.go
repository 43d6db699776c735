package cases

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type IntakeStatus string

const (
	IntakeNotStarted IntakeStatus = "NOT_STARTED"
	IntakeInProgress IntakeStatus = "IN_PROGRESS"
	IntakeComplete   IntakeStatus = "COMPLETE"
)

func (s IntakeStatus) Valid() bool {
	switch s {
	case IntakeNotStarted, IntakeInProgress, IntakeComplete:
		return true
	}
	return false
}

// CaseProfile holds the deep-merged survey answers. It is mutated in place;
// Version counts PATCHes and is not a history key.
type CaseProfile struct {
	ID              uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID          uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"case_id"`
	Data            datatypes.JSON               `gorm:"column:data" json:"data"`
	Version         int                          `gorm:"column:version;not null" json:"version"`
	SkippedSections datatypes.JSONType[[]string] `gorm:"column:skipped_sections" json:"skipped_sections"`
	IntakeStatus    IntakeStatus                 `gorm:"column:intake_status;not null" json:"intake_status"`
	CreatedAt       time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                    `gorm:"not null" json:"updated_at"`
}

func (CaseProfile) TableName() string { return "case_profile" }
