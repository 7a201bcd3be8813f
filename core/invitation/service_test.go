package invitation_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
	emailsvc "github.com/shulehub/shule/services/email"
	inmemdb "github.com/shulehub/shule/storage/database/inmem"
	testutil "github.com/shulehub/shule/tests"
)

var ctx = context.Background()

type testEnv struct {
	svc     *invitation.Service
	clsSvc  *classroom.Service
	clsRepo classroom.Repository
	usrRepo user.Repository
	invRepo invitation.Repository
	schRepo school.Repository

	teacher user.User
	student user.User
	class   classroom.Class
}

func setup(t *testing.T) *testEnv {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	clsRepo := inmemdb.NewClassroomRepository(db)
	invRepo := inmemdb.NewInvitationRepository(db)
	schRepo := inmemdb.NewSchoolRepository(db)

	clsSvc := classroom.NewService(db, clsRepo, usrRepo)
	mailSvc := emailsvc.NewConsoleServiceMock()

	sch := testutil.CreateSchool(t, schRepo, "Bumi High", "SCH1BUMI")
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@bumi.cd", core.RoleTeacher, sch.ID, "")
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@bumi.cd", core.RoleStudent, sch.ID, "")

	emailsvc.SentMessages = nil // reset

	return &testEnv{
		svc:     invitation.NewService(db, invRepo, clsSvc, mailSvc, core.Conf),
		clsSvc:  clsSvc,
		clsRepo: clsRepo,
		usrRepo: usrRepo,
		invRepo: invRepo,
		schRepo: schRepo,
		teacher: teacher,
		student: student,
		class:   testutil.CreateClass(t, clsRepo, "Math", teacher),
	}
}

func TestService_Create(t *testing.T) {
	env := setup(t)

	inv, err := env.svc.Create(ctx, env.teacher.Principal(), invitation.NewInvitation{ClassID: env.class.ID, StudentID: env.student.ID})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !inv.IsPending() {
		t.Errorf("Status = %s; want %s", inv.Status, invitation.StatusPending)
	}
	if inv.SchoolID != env.class.SchoolID {
		t.Errorf("SchoolID = %s; want %s", inv.SchoolID, env.class.SchoolID)
	}

	// the student got an email
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
	if to := emailsvc.SentMessages[0].To[0].Address; to != env.student.Email {
		t.Errorf("To = %s; want %s", to, env.student.Email)
	}

	// one invitation per (class, student) pair, whatever its status
	if _, err := env.svc.Create(ctx, env.teacher.Principal(), invitation.NewInvitation{ClassID: env.class.ID, StudentID: env.student.ID}); err != invitation.ErrInvitationExists {
		t.Errorf("Create() error = %v, want %v", err, invitation.ErrInvitationExists)
	}
}

func TestService_Create_scope(t *testing.T) {
	env := setup(t)

	moon := testutil.CreateSchool(t, env.schRepo, "Moon Academy", "SCH2MOON")
	rival := testutil.CreateUser(t, env.usrRepo, "Rival", "rival@moon.cd", core.RoleTeacher, moon.ID, "")
	moonStudent := testutil.CreateUser(t, env.usrRepo, "Faraway", "faraway@moon.cd", core.RoleStudent, moon.ID, "")

	// inviting to a class the caller does not own looks like an absent class
	if _, err := env.svc.Create(ctx, rival.Principal(), invitation.NewInvitation{ClassID: env.class.ID, StudentID: moonStudent.ID}); err != classroom.ErrNotFound {
		t.Errorf("Create() error = %v, want %v", err, classroom.ErrNotFound)
	}

	// a student of another school is a validation failure, not an enrollment
	_, err := env.svc.Create(ctx, env.teacher.Principal(), invitation.NewInvitation{ClassID: env.class.ID, StudentID: moonStudent.ID})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Create() error = %v, want a validation error", err)
	}

	// a teacher cannot be invited either
	if _, err = env.svc.Create(ctx, env.teacher.Principal(), invitation.NewInvitation{ClassID: env.class.ID, StudentID: env.teacher.ID}); !errors.As(err, &vErr) {
		t.Fatalf("Create() error = %v, want a validation error", err)
	}
}

func TestService_Accept(t *testing.T) {
	env := setup(t)
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)

	accepted, err := env.svc.Accept(ctx, env.student.Principal(), inv.ID)
	if err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}
	if accepted.Status != invitation.StatusAccepted {
		t.Errorf("Status = %s; want %s", accepted.Status, invitation.StatusAccepted)
	}

	// acceptance enrolled the student
	cls, err := env.clsRepo.GetClass(ctx, env.class.ID)
	if err != nil {
		t.Fatalf("GetClass() failed: %v", err)
	}
	if !cls.HasStudent(env.student.ID) {
		t.Error("student not enrolled after accept")
	}

	// a settled invitation cannot be decided again
	if _, err := env.svc.Accept(ctx, env.student.Principal(), inv.ID); err != invitation.ErrAlreadyDecided {
		t.Errorf("Accept() error = %v, want %v", err, invitation.ErrAlreadyDecided)
	}
	if _, err := env.svc.Reject(ctx, env.student.Principal(), inv.ID); err != invitation.ErrAlreadyDecided {
		t.Errorf("Reject() error = %v, want %v", err, invitation.ErrAlreadyDecided)
	}
}

func TestService_Accept_alreadyEnrolled(t *testing.T) {
	env := setup(t)
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)
	testutil.EnrollStudent(t, env.clsRepo, env.class.ID, env.student.ID)

	// accepting while already enrolled settles the invitation and keeps
	// membership a set
	if _, err := env.svc.Accept(ctx, env.student.Principal(), inv.ID); err != nil {
		t.Fatalf("Accept() failed: %v", err)
	}
	cls, _ := env.clsRepo.GetClass(ctx, env.class.ID)
	if len(cls.StudentIDs) != 1 {
		t.Errorf("StudentIDs = %v; want 1 member", cls.StudentIDs)
	}
}

func TestService_Reject(t *testing.T) {
	env := setup(t)
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)

	rejected, err := env.svc.Reject(ctx, env.student.Principal(), inv.ID)
	if err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	if rejected.Status != invitation.StatusRejected {
		t.Errorf("Status = %s; want %s", rejected.Status, invitation.StatusRejected)
	}

	// rejection never touches membership
	cls, _ := env.clsRepo.GetClass(ctx, env.class.ID)
	if cls.HasStudent(env.student.ID) {
		t.Error("student enrolled after reject")
	}
}

func TestService_addressing(t *testing.T) {
	env := setup(t)
	other := testutil.CreateUser(t, env.usrRepo, "King", "king@bumi.cd", core.RoleStudent, env.class.SchoolID, "")
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)

	// an invitation addressed to someone else looks absent
	if _, err := env.svc.Accept(ctx, other.Principal(), inv.ID); err != invitation.ErrNotFound {
		t.Errorf("Accept() error = %v, want %v", err, invitation.ErrNotFound)
	}
	if _, err := env.svc.Reject(ctx, other.Principal(), inv.ID); err != invitation.ErrNotFound {
		t.Errorf("Reject() error = %v, want %v", err, invitation.ErrNotFound)
	}

	// and it is still pending for the addressee
	invs, err := env.svc.PendingForStudent(ctx, env.student.Principal(), "")
	if err != nil {
		t.Fatalf("PendingForStudent() failed: %v", err)
	}
	if len(invs) != 1 || invs[0].ID != inv.ID {
		t.Errorf("pending = %v; want [%s]", invs, inv.ID)
	}
}

func TestService_PendingForStudent(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@bumi.cd", core.RoleAdmin, env.class.SchoolID, "")
	other := testutil.CreateUser(t, env.usrRepo, "King", "king@bumi.cd", core.RoleStudent, env.class.SchoolID, "")
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)

	// students only consult their own invitations
	if _, err := env.svc.PendingForStudent(ctx, other.Principal(), env.student.ID); err != invitation.ErrNotFound {
		t.Errorf("PendingForStudent() error = %v, want %v", err, invitation.ErrNotFound)
	}

	// admins may consult any student
	invs, err := env.svc.PendingForStudent(ctx, admin.Principal(), env.student.ID)
	if err != nil {
		t.Fatalf("PendingForStudent() failed: %v", err)
	}
	if len(invs) != 1 || invs[0].ID != inv.ID {
		t.Errorf("pending = %v; want [%s]", invs, inv.ID)
	}

	// settled invitations drop out of the pending listing
	if _, err := env.svc.Reject(ctx, env.student.Principal(), inv.ID); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	invs, err = env.svc.PendingForStudent(ctx, env.student.Principal(), "")
	if err != nil {
		t.Fatalf("PendingForStudent() failed: %v", err)
	}
	if len(invs) != 0 {
		t.Errorf("pending = %v; want none", invs)
	}
}

func TestService_ForClass(t *testing.T) {
	env := setup(t)
	moon := testutil.CreateSchool(t, env.schRepo, "Moon Academy", "SCH2MOON")
	rival := testutil.CreateUser(t, env.usrRepo, "Rival", "rival@moon.cd", core.RoleTeacher, moon.ID, "")
	inv := testutil.CreateInvitation(t, env.invRepo, env.class, env.student.ID)

	invs, err := env.svc.ForClass(ctx, env.teacher.Principal(), env.class.ID)
	if err != nil {
		t.Fatalf("ForClass() failed: %v", err)
	}
	if len(invs) != 1 || invs[0].ID != inv.ID {
		t.Errorf("invitations = %v; want [%s]", invs, inv.ID)
	}

	// only the owning teacher lists a class's invitations
	if _, err := env.svc.ForClass(ctx, rival.Principal(), env.class.ID); err != classroom.ErrNotFound {
		t.Errorf("ForClass() error = %v, want %v", err, classroom.ErrNotFound)
	}
}
