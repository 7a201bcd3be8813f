package classroom_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
	inmemdb "github.com/shulehub/shule/storage/database/inmem"
	testutil "github.com/shulehub/shule/tests"
)

var ctx = context.Background()

type testEnv struct {
	svc     *classroom.Service
	clsRepo classroom.Repository
	usrRepo user.Repository
	invRepo invitation.Repository
	schRepo school.Repository

	school  user.User // admin of the school
	teacher user.User
	student user.User
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

	sch := testutil.CreateSchool(t, schRepo, "Bumi High", "SCH1BUMI")
	return &testEnv{
		svc:     classroom.NewService(db, clsRepo, usrRepo),
		clsRepo: clsRepo,
		usrRepo: usrRepo,
		invRepo: invRepo,
		schRepo: schRepo,
		school:  testutil.CreateUser(t, usrRepo, "Admin", "admin@bumi.cd", core.RoleAdmin, sch.ID, ""),
		teacher: testutil.CreateUser(t, usrRepo, "Teacher", "teacher@bumi.cd", core.RoleTeacher, sch.ID, ""),
		student: testutil.CreateUser(t, usrRepo, "Hero", "hero@bumi.cd", core.RoleStudent, sch.ID, ""),
	}
}

func (env *testEnv) otherSchoolTeacher(t *testing.T) user.User {
	t.Helper()
	sch := testutil.CreateSchool(t, env.schRepo, "Moon Academy", "SCH2MOON")
	return testutil.CreateUser(t, env.usrRepo, "Rival", "rival@moon.cd", core.RoleTeacher, sch.ID, "")
}

func TestService_Create(t *testing.T) {
	env := setup(t)

	cls, err := env.svc.Create(ctx, env.teacher.Principal(), classroom.NewClass{Name: "Math", Description: "Numbers"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if cls.CreatedBy.ID != env.teacher.ID {
		t.Errorf("CreatedBy = %s; want %s", cls.CreatedBy.ID, env.teacher.ID)
	}
	if cls.SchoolID != env.teacher.SchoolID.String {
		t.Errorf("SchoolID = %s; want %s", cls.SchoolID, env.teacher.SchoolID.String)
	}

	// only teachers create classes
	if _, err := env.svc.Create(ctx, env.student.Principal(), classroom.NewClass{Name: "Nope", Description: "Nope"}); err != classroom.ErrNotFound {
		t.Errorf("Create() error = %v, want %v", err, classroom.ErrNotFound)
	}
	if _, err := env.svc.Create(ctx, env.school.Principal(), classroom.NewClass{Name: "Nope", Description: "Nope"}); err != classroom.ErrNotFound {
		t.Errorf("Create() error = %v, want %v", err, classroom.ErrNotFound)
	}
}

func TestService_Query_scoping(t *testing.T) {
	env := setup(t)
	rival := env.otherSchoolTeacher(t)

	mine := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)
	theirs := testutil.CreateClass(t, env.clsRepo, "Alchemy", rival)
	testutil.EnrollStudent(t, env.clsRepo, mine.ID, env.student.ID)

	// teachers see the classes they created
	classes, err := env.svc.Query(ctx, env.teacher.Principal())
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(classes) != 1 || classes[0].ID != mine.ID {
		t.Errorf("teacher query = %v; want [%s]", classes, mine.ID)
	}

	// students see the classes they are enrolled in
	classes, err = env.svc.Query(ctx, env.student.Principal())
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(classes) != 1 || classes[0].ID != mine.ID {
		t.Errorf("student query = %v; want [%s]", classes, mine.ID)
	}

	// admins see every class of their school
	classes, err = env.svc.Query(ctx, env.school.Principal())
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(classes) != 1 || classes[0].ID != mine.ID {
		t.Errorf("admin query = %v; want [%s]", classes, mine.ID)
	}

	// the rival's class never leaks across schools
	for _, cls := range classes {
		if cls.ID == theirs.ID {
			t.Errorf("class %s leaked across schools", theirs.ID)
		}
	}
}

func TestService_ownership(t *testing.T) {
	env := setup(t)
	rival := env.otherSchoolTeacher(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)

	// a class outside the caller's scope is indistinguishable from an absent one
	if _, err := env.svc.Update(ctx, rival.Principal(), cls.ID, classroom.UpdateClass{Name: "Hacked", Description: "d"}); err != classroom.ErrNotFound {
		t.Errorf("Update() error = %v, want %v", err, classroom.ErrNotFound)
	}
	if err := env.svc.Delete(ctx, rival.Principal(), cls.ID); err != classroom.ErrNotFound {
		t.Errorf("Delete() error = %v, want %v", err, classroom.ErrNotFound)
	}
	if _, err := env.svc.GetByID(ctx, rival.Principal(), cls.ID); err != classroom.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, classroom.ErrNotFound)
	}

	// the owner updates fine
	updated, err := env.svc.Update(ctx, env.teacher.Principal(), cls.ID, classroom.UpdateClass{Name: "Math II", Description: "More numbers"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Name != "Math II" {
		t.Errorf("Name = %s; want Math II", updated.Name)
	}
}

func TestService_AddStudents(t *testing.T) {
	env := setup(t)
	rival := env.otherSchoolTeacher(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)

	otherSchoolStudent := testutil.CreateUser(t, env.usrRepo, "Faraway", "faraway@moon.cd", core.RoleStudent, rival.SchoolID.String, "")
	second := testutil.CreateUser(t, env.usrRepo, "King", "king@bumi.cd", core.RoleStudent, env.teacher.SchoolID.String, "")
	testutil.EnrollStudent(t, env.clsRepo, cls.ID, second.ID)

	res, err := env.svc.AddStudents(ctx, env.teacher.Principal(), cls.ID, []string{
		env.student.ID,
		env.student.ID, // duplicate input lands in one bucket once
		second.ID,
		otherSchoolStudent.ID,
		env.teacher.ID, // not a student
		"no-such-user",
	})
	if err != nil {
		t.Fatalf("AddStudents() failed: %v", err)
	}

	if !reflect.DeepEqual(res.Added, []string{env.student.ID}) {
		t.Errorf("Added = %v; want [%s]", res.Added, env.student.ID)
	}
	if !reflect.DeepEqual(res.AlreadyInClass, []string{second.ID}) {
		t.Errorf("AlreadyInClass = %v; want [%s]", res.AlreadyInClass, second.ID)
	}
	if !reflect.DeepEqual(res.Invalid, []string{otherSchoolStudent.ID, env.teacher.ID, "no-such-user"}) {
		t.Errorf("Invalid = %v", res.Invalid)
	}

	// invalid ids were never enrolled
	got, err := env.clsRepo.GetClass(ctx, cls.ID)
	if err != nil {
		t.Fatalf("GetClass() failed: %v", err)
	}
	if len(got.StudentIDs) != 2 {
		t.Errorf("StudentIDs = %v; want 2 members", got.StudentIDs)
	}
}

func TestService_AddStudents_idempotent(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)

	res, err := env.svc.AddStudents(ctx, env.teacher.Principal(), cls.ID, []string{env.student.ID})
	if err != nil {
		t.Fatalf("AddStudents() failed: %v", err)
	}
	if len(res.Added) != 1 {
		t.Fatalf("Added = %v; want 1", res.Added)
	}

	// adding again reports already-in-class, membership stays a set
	res, err = env.svc.AddStudents(ctx, env.teacher.Principal(), cls.ID, []string{env.student.ID})
	if err != nil {
		t.Fatalf("AddStudents() failed: %v", err)
	}
	if len(res.Added) != 0 || len(res.AlreadyInClass) != 1 {
		t.Errorf("re-add = %+v; want already_in_class only", res)
	}

	got, _ := env.clsRepo.GetClass(ctx, cls.ID)
	if len(got.StudentIDs) != 1 {
		t.Errorf("StudentIDs = %v; want 1 member", got.StudentIDs)
	}
}

func TestService_RemoveStudents(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)
	testutil.EnrollStudent(t, env.clsRepo, cls.ID, env.student.ID)

	res, err := env.svc.RemoveStudents(ctx, env.teacher.Principal(), cls.ID, []string{env.student.ID, "never-there"})
	if err != nil {
		t.Fatalf("RemoveStudents() failed: %v", err)
	}
	if !reflect.DeepEqual(res.Removed, []string{env.student.ID}) {
		t.Errorf("Removed = %v; want [%s]", res.Removed, env.student.ID)
	}
	if !reflect.DeepEqual(res.NotInClass, []string{"never-there"}) {
		t.Errorf("NotInClass = %v; want [never-there]", res.NotInClass)
	}

	// removing again reports not-in-class
	res, err = env.svc.RemoveStudents(ctx, env.teacher.Principal(), cls.ID, []string{env.student.ID})
	if err != nil {
		t.Fatalf("RemoveStudents() failed: %v", err)
	}
	if len(res.Removed) != 0 || len(res.NotInClass) != 1 {
		t.Errorf("re-remove = %+v; want not_in_class only", res)
	}
}

func TestService_Delete_cascades(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)
	sub := testutil.CreateSubject(t, env.clsRepo, cls.ID, "Algebra")
	testutil.EnrollStudent(t, env.clsRepo, cls.ID, env.student.ID)
	inv := testutil.CreateInvitation(t, env.invRepo, cls, env.student.ID)

	if err := env.svc.Delete(ctx, env.teacher.Principal(), cls.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := env.clsRepo.GetClass(ctx, cls.ID); err != classroom.ErrNotFound {
		t.Errorf("GetClass() error = %v, want %v", err, classroom.ErrNotFound)
	}
	if _, err := env.clsRepo.GetSubject(ctx, sub.ID); err != classroom.ErrSubjectNotFound {
		t.Errorf("GetSubject() error = %v, want %v", err, classroom.ErrSubjectNotFound)
	}
	if _, err := env.invRepo.GetInvitation(ctx, inv.ID); err != invitation.ErrNotFound {
		t.Errorf("GetInvitation() error = %v, want %v", err, invitation.ErrNotFound)
	}
	classes, err := env.svc.Query(ctx, env.student.Principal())
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(classes) != 0 {
		t.Errorf("student still enrolled after delete: %v", classes)
	}
}

func TestService_subjects(t *testing.T) {
	env := setup(t)
	rival := env.otherSchoolTeacher(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)

	sub, err := env.svc.CreateSubject(ctx, env.teacher.Principal(), cls.ID, classroom.NewSubject{
		Title:       "Algebra",
		Description: "Letters pretending to be numbers",
		QuizQuestions: []classroom.QuizQuestionInput{
			{Question: "2+2?", Options: []string{"3", "4", "4"}, Answers: []string{"4", "5"}},
			{Question: "", Options: []string{"a", "b"}},          // empty question: dropped
			{Question: "One option?", Options: []string{"only"}}, // too few options: dropped
		},
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}

	want := []classroom.QuizQuestion{{Question: "2+2?", Options: []string{"3", "4"}, Answers: []string{"4"}}}
	if !reflect.DeepEqual(sub.QuizQuestions, want) {
		t.Errorf("QuizQuestions = %+v; want %+v", sub.QuizQuestions, want)
	}

	// rival cannot see or touch it
	if _, err := env.svc.GetSubject(ctx, rival.Principal(), sub.ID); err != classroom.ErrSubjectNotFound {
		t.Errorf("GetSubject() error = %v, want %v", err, classroom.ErrSubjectNotFound)
	}
	if err := env.svc.DeleteSubject(ctx, rival.Principal(), sub.ID); err != classroom.ErrSubjectNotFound {
		t.Errorf("DeleteSubject() error = %v, want %v", err, classroom.ErrSubjectNotFound)
	}

	// nil questions on update leave the stored ones untouched
	updated, err := env.svc.UpdateSubject(ctx, env.teacher.Principal(), sub.ID, classroom.UpdateSubject{Title: "Algebra I", Description: sub.Description})
	if err != nil {
		t.Fatalf("UpdateSubject() failed: %v", err)
	}
	if !reflect.DeepEqual(updated.QuizQuestions, want) {
		t.Errorf("QuizQuestions = %+v; want unchanged %+v", updated.QuizQuestions, want)
	}

	// an empty (non-nil) slice clears them
	updated, err = env.svc.UpdateSubject(ctx, env.teacher.Principal(), sub.ID, classroom.UpdateSubject{
		Title: "Algebra I", Description: sub.Description, QuizQuestions: []classroom.QuizQuestionInput{},
	})
	if err != nil {
		t.Fatalf("UpdateSubject() failed: %v", err)
	}
	if len(updated.QuizQuestions) != 0 {
		t.Errorf("QuizQuestions = %+v; want none", updated.QuizQuestions)
	}
}

func TestService_AvailableStudents(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)
	second := testutil.CreateUser(t, env.usrRepo, "King", "king@bumi.cd", core.RoleStudent, env.teacher.SchoolID.String, "")
	testutil.EnrollStudent(t, env.clsRepo, cls.ID, env.student.ID)

	members, err := env.svc.AvailableStudents(ctx, env.teacher.Principal(), cls.SchoolID, cls.ID, "")
	if err != nil {
		t.Fatalf("AvailableStudents() failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %v; want 2", members)
	}
	byID := make(map[string]classroom.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	if !byID[env.student.ID].Enrolled {
		t.Errorf("student %s should be flagged enrolled", env.student.ID)
	}
	if byID[second.ID].Enrolled {
		t.Errorf("student %s should not be flagged enrolled", second.ID)
	}

	// students may not consult the listing
	if _, err := env.svc.AvailableStudents(ctx, env.student.Principal(), cls.SchoolID, cls.ID, ""); err != classroom.ErrNotFound {
		t.Errorf("AvailableStudents() error = %v, want %v", err, classroom.ErrNotFound)
	}
}

func TestService_Members(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.clsRepo, "Math", env.teacher)
	testutil.EnrollStudent(t, env.clsRepo, cls.ID, env.student.ID)

	members, err := env.svc.Members(ctx, env.student.Principal(), cls.ID)
	if err != nil {
		t.Fatalf("Members() failed: %v", err)
	}
	if len(members) != 1 || members[0].ID != env.student.ID || !members[0].Enrolled {
		t.Errorf("members = %+v; want the enrolled student", members)
	}
}
