package invitation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
)

// Status is the invitation lifecycle state. Exactly one transition away from
// pending is ever recorded.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

type Invitation struct {
	ID        string             `json:"id"`
	ClassID   string             `json:"class_id"`
	Class     *classroom.ClassRef `json:"class,omitempty"`
	StudentID string             `json:"student_id"`
	Student   *classroom.UserRef `json:"student,omitempty"`
	InvitedBy string             `json:"invited_by"`
	Inviter   *classroom.UserRef `json:"inviter,omitempty"`
	SchoolID  string             `json:"school_id"`
	Status    Status             `json:"status"`
	CreatedAt time.Time          `json:"created_at"` // UTC
	UpdatedAt time.Time          `json:"updated_at"` // UTC
}

func (inv Invitation) IsPending() bool { return inv.Status == StatusPending }

// NewInvitation contains information needed to invite a student to a class.
type NewInvitation struct {
	ClassID   string `json:"class_id" validate:"required,uuid4"`
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

func (ni *NewInvitation) Validate(validate *validator.Validate) error {
	ni.ClassID = core.CleanString(ni.ClassID)
	ni.StudentID = core.CleanString(ni.StudentID)
	return validate.Struct(ni)
}
