package invitation

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("invitation not found")
	ErrInvitationExists = errors.New("an invitation for this student and class already exists")
	ErrAlreadyDecided   = errors.New("invitation has already been decided")
)

type (
	QueryFilter struct {
		ClassID   string
		StudentID string
		SchoolID  string
		Status    Status
	}

	Repository interface {
		// CreateInvitation enforces at-most-one invitation per (class, student)
		// pair and returns ErrInvitationExists on a duplicate, racing creators
		// included.
		CreateInvitation(ctx context.Context, inv Invitation, exec ...core.DBExecutor) (Invitation, error)
		GetInvitation(ctx context.Context, id string, exec ...core.DBExecutor) (Invitation, error)
		QueryInvitations(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Invitation, error)
		// DecideInvitation flips a pending invitation to the given terminal
		// status. It reports false when the invitation was no longer pending,
		// so concurrent decisions settle exactly one.
		DecideInvitation(ctx context.Context, id string, status Status, exec ...core.DBExecutor) (decided bool, err error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		classSvc *classroom.Service
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

func NewService(db core.DB, repo Repository, classSvc *classroom.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{db: db, repo: repo, classSvc: classSvc, mailSvc: mailSvc, conf: conf}
}

// Create invites a student to a class the calling teacher owns. The student
// must belong to the class's school; at most one invitation exists per
// (class, student) pair regardless of status.
func (svc *Service) Create(ctx context.Context, prin core.Principal, ni NewInvitation) (Invitation, error) {
	cls, err := svc.classSvc.OwnedClass(ctx, prin, ni.ClassID)
	if err != nil {
		return Invitation{}, err
	}

	student, err := svc.classSvc.ValidStudent(ctx, cls.SchoolID, ni.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Invitation{}, core.NewValidationError(err,
				core.FieldError{Field: "student_id", Error: "not a student of this school"})
		}
		return Invitation{}, err
	}

	now := time.Now().UTC()
	inv := Invitation{
		ClassID:   cls.ID,
		StudentID: student.ID,
		InvitedBy: prin.UserID,
		SchoolID:  cls.SchoolID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inv, err = svc.repo.CreateInvitation(ctx, inv)
	if err != nil {
		return Invitation{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Class Invitation",
		TemplateName: "invitation",
		TemplateData: struct{ Name, ClassName, AppName string }{student.Name, cls.Name, svc.conf.AppName},
	})
	return inv, nil
}

// Accept settles a pending invitation addressed to the caller and enrolls
// them into the class. The status flip and the membership write land in one
// transaction; enrolling an already-enrolled student is a no-op.
func (svc *Service) Accept(ctx context.Context, prin core.Principal, id string) (Invitation, error) {
	inv, err := svc.addressedInvitation(ctx, prin, id)
	if err != nil {
		return Invitation{}, err
	}
	if !inv.IsPending() {
		return Invitation{}, ErrAlreadyDecided
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "beginning transaction")
	}

	decided, err := svc.repo.DecideInvitation(ctx, inv.ID, StatusAccepted, tx)
	if err != nil {
		_ = tx.Rollback()
		return Invitation{}, err
	}
	if !decided {
		// lost the race to a concurrent decision
		_ = tx.Rollback()
		return Invitation{}, ErrAlreadyDecided
	}
	if _, err = svc.classSvc.Enroll(ctx, inv.ClassID, inv.StudentID, tx); err != nil {
		_ = tx.Rollback()
		return Invitation{}, err
	}
	if err = tx.Commit(); err != nil {
		return Invitation{}, errors.Wrap(err, "committing invitation accept")
	}

	inv.Status = StatusAccepted
	inv.UpdatedAt = time.Now().UTC()
	return inv, nil
}

// Reject settles a pending invitation addressed to the caller without
// touching membership.
func (svc *Service) Reject(ctx context.Context, prin core.Principal, id string) (Invitation, error) {
	inv, err := svc.addressedInvitation(ctx, prin, id)
	if err != nil {
		return Invitation{}, err
	}
	if !inv.IsPending() {
		return Invitation{}, ErrAlreadyDecided
	}

	decided, err := svc.repo.DecideInvitation(ctx, inv.ID, StatusRejected)
	if err != nil {
		return Invitation{}, err
	}
	if !decided {
		return Invitation{}, ErrAlreadyDecided
	}

	inv.Status = StatusRejected
	inv.UpdatedAt = time.Now().UTC()
	return inv, nil
}

// PendingForStudent lists a student's pending invitations. Students see their
// own; admins may consult any student of their scope.
func (svc *Service) PendingForStudent(ctx context.Context, prin core.Principal, studentID string) ([]Invitation, error) {
	if studentID == "" {
		studentID = prin.UserID
	}
	if studentID != prin.UserID && !prin.IsAdmin() {
		return nil, ErrNotFound
	}
	filter := QueryFilter{StudentID: studentID, Status: StatusPending}
	return svc.repo.QueryInvitations(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: false}})
}

// ForClass lists every invitation of a class the calling teacher owns.
func (svc *Service) ForClass(ctx context.Context, prin core.Principal, classID string) ([]Invitation, error) {
	cls, err := svc.classSvc.OwnedClass(ctx, prin, classID)
	if err != nil {
		return nil, err
	}
	filter := QueryFilter{ClassID: cls.ID}
	return svc.repo.QueryInvitations(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: false}})
}

// addressedInvitation fetches an invitation and asserts it is addressed to
// the caller. Invitations addressed to others are indistinguishable from
// absent ones.
func (svc *Service) addressedInvitation(ctx context.Context, prin core.Principal, id string) (Invitation, error) {
	inv, err := svc.repo.GetInvitation(ctx, id)
	if err != nil {
		return Invitation{}, err
	}
	if inv.StudentID != prin.UserID {
		return Invitation{}, ErrNotFound
	}
	return inv, nil
}
