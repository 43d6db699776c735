package cases

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIntake       Status = "INTAKE"
	StatusAnalyzed     Status = "ANALYZED"
	StatusVerified     Status = "VERIFIED"
	StatusConsolidated Status = "CONSOLIDATED"
)

var statusRank = map[Status]int{
	StatusIntake:       0,
	StatusAnalyzed:     1,
	StatusVerified:     2,
	StatusConsolidated: 3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Case is the applicant's working file. Every other record hangs off CaseID.
type Case struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID *uuid.UUID `gorm:"type:uuid;column:owner_user_id;index" json:"owner_user_id,omitempty"`
	Status      Status     `gorm:"column:status;not null;index" json:"status"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (Case) TableName() string { return "case_file" }

// Advance moves the case forward to s. It reports false (and leaves the case
// untouched) when s is not ahead of the current status.
func (c *Case) Advance(s Status) bool {
	if c == nil || !s.Valid() {
		return false
	}
	if statusRank[s] <= statusRank[c.Status] {
		return false
	}
	c.Status = s
	return true
}

// OwnedBy reports whether the caller may act on the case. Unclaimed cases are
// open to any caller until someone claims them.
func (c *Case) OwnedBy(userID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.OwnerUserID == nil || *c.OwnerUserID == uuid.Nil {
		return true
	}
	return *c.OwnerUserID == userID
}
