package classroom

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("class not found")
	ErrSubjectNotFound = errors.New("subject not found")
)

type (
	// QueryFilter scopes class listings. Exactly one of the scoping fields is
	// set by the service according to the caller's role.
	QueryFilter struct {
		SchoolID  string
		CreatedBy string
		StudentID string
	}

	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// GetClass returns the class with its owner reference and student ids
		// populated, subjects excluded.
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// DeleteClass removes the class together with its subjects, memberships
		// and invitations.
		DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, classID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subject, error)
		UpdateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AddClassStudent records membership as a set-add: it reports true
		// when the student was newly added and false when they were already a
		// member. Concurrent adds of the same pair yield exactly one true.
		AddClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (added bool, err error)
		// RemoveClassStudent reports true when an existing membership was
		// removed and false when there was none.
		RemoveClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (removed bool, err error)
		QueryClassMembers(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Member, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
	}
)

func NewService(db core.DB, repo Repository, usrRepo user.Repository) *Service {
	return &Service{db: db, repo: repo, usrRepo: usrRepo}
}

// Create registers a new class owned by the calling teacher, in the teacher's
// school.
func (svc *Service) Create(ctx context.Context, prin core.Principal, nc NewClass) (Class, error) {
	if !prin.IsTeacher() || prin.SchoolID == "" {
		return Class{}, ErrNotFound
	}
	now := time.Now().UTC()
	cls := Class{
		Name:        nc.Name,
		Description: nc.Description,
		CreatedBy:   UserRef{ID: prin.UserID},
		SchoolID:    prin.SchoolID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClass(ctx, cls)
}

// Query lists classes visible to the caller: teachers see the classes they
// created, students the classes they are enrolled in, and admins every class
// of their school.
func (svc *Service) Query(ctx context.Context, prin core.Principal, ordering ...core.DBOrdering) ([]Class, error) {
	var filter QueryFilter
	switch {
	case prin.IsTeacher():
		filter.CreatedBy = prin.UserID
	case prin.IsStudent():
		filter.StudentID = prin.UserID
	case prin.IsAdmin():
		filter.SchoolID = prin.SchoolID
	default: // super admin
		if prin.SchoolID != "" {
			filter.SchoolID = prin.SchoolID
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, prin core.Principal, id string) (Class, error) {
	cls, err := svc.scopedClass(ctx, prin, id)
	if err != nil {
		return Class{}, err
	}
	subjects, err := svc.repo.QuerySubjects(ctx, cls.ID, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return Class{}, errors.Wrap(err, "loading class subjects")
	}
	cls.Subjects = subjects
	return cls, nil
}

func (svc *Service) Update(ctx context.Context, prin core.Principal, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.OwnedClass(ctx, prin, id)
	if err != nil {
		return Class{}, err
	}
	cls.Name = uc.Name
	cls.Description = uc.Description
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

// Delete removes an owned class and everything attached to it. Subjects,
// memberships and pending invitations go with it in a single transaction.
func (svc *Service) Delete(ctx context.Context, prin core.Principal, id string) error {
	cls, err := svc.OwnedClass(ctx, prin, id)
	if err != nil {
		return err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = svc.repo.DeleteClass(ctx, cls.ID, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing class delete")
}

// OwnedClass fetches a class and asserts the caller is its owning teacher.
// Classes outside the caller's scope are indistinguishable from absent ones.
func (svc *Service) OwnedClass(ctx context.Context, prin core.Principal, id string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if !cls.OwnedBy(prin) {
		return Class{}, ErrNotFound
	}
	return cls, nil
}

// scopedClass fetches a class readable by the caller: the owning teacher, any
// enrolled or same-school student, or a same-school admin.
func (svc *Service) scopedClass(ctx context.Context, prin core.Principal, id string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if prin.IsTeacher() {
		if !cls.OwnedBy(prin) {
			return Class{}, ErrNotFound
		}
		return cls, nil
	}
	if !prin.CanReadSchool(cls.SchoolID) {
		return Class{}, ErrNotFound
	}
	return cls, nil
}

// CreateSubject adds a subject to an owned class. Quiz questions are
// normalized, not validated: malformed entries are dropped.
func (svc *Service) CreateSubject(ctx context.Context, prin core.Principal, classID string, ns NewSubject) (Subject, error) {
	cls, err := svc.OwnedClass(ctx, prin, classID)
	if err != nil {
		return Subject{}, err
	}
	now := time.Now().UTC()
	sub := Subject{
		Title:         ns.Title,
		Description:   ns.Description,
		QuizQuestions: NormalizeQuizQuestions(ns.QuizQuestions),
		ClassID:       cls.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateSubject(ctx, sub)
}

// Subjects lists the subjects of a class readable by the caller.
func (svc *Service) Subjects(ctx context.Context, prin core.Principal, classID string) ([]Subject, error) {
	cls, err := svc.scopedClass(ctx, prin, classID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySubjects(ctx, cls.ID, []core.DBOrdering{{Field: "created_at", Ascending: true}})
}

func (svc *Service) GetSubject(ctx context.Context, prin core.Principal, id string) (Subject, error) {
	sub, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if _, err = svc.scopedClass(ctx, prin, sub.ClassID); err != nil {
		return Subject{}, ErrSubjectNotFound
	}
	return sub, nil
}

func (svc *Service) UpdateSubject(ctx context.Context, prin core.Principal, id string, us UpdateSubject) (Subject, error) {
	sub, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if _, err = svc.OwnedClass(ctx, prin, sub.ClassID); err != nil {
		return Subject{}, ErrSubjectNotFound
	}
	sub.Title = us.Title
	sub.Description = us.Description
	if us.QuizQuestions != nil {
		sub.QuizQuestions = NormalizeQuizQuestions(us.QuizQuestions)
	}
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubject(ctx, sub)
}

func (svc *Service) DeleteSubject(ctx context.Context, prin core.Principal, id string) error {
	sub, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.OwnedClass(ctx, prin, sub.ClassID); err != nil {
		return ErrSubjectNotFound
	}
	return svc.repo.DeleteSubject(ctx, sub.ID)
}

// AddStudents enrolls students into an owned class in bulk. Every input id
// lands in exactly one result bucket; unknown users, non-students and
// students of other schools are reported as invalid, never enrolled.
func (svc *Service) AddStudents(ctx context.Context, prin core.Principal, classID string, studentIDs []string) (EnrollmentResult, error) {
	cls, err := svc.OwnedClass(ctx, prin, classID)
	if err != nil {
		return EnrollmentResult{}, err
	}

	valid, err := svc.validStudentSet(ctx, cls.SchoolID, studentIDs)
	if err != nil {
		return EnrollmentResult{}, err
	}

	res := EnrollmentResult{Added: []string{}, AlreadyInClass: []string{}, Invalid: []string{}}
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if !valid[id] {
			res.Invalid = append(res.Invalid, id)
			continue
		}
		added, err := svc.repo.AddClassStudent(ctx, cls.ID, id)
		if err != nil {
			return EnrollmentResult{}, err
		}
		if added {
			res.Added = append(res.Added, id)
		} else {
			res.AlreadyInClass = append(res.AlreadyInClass, id)
		}
	}
	return res, nil
}

// RemoveStudents removes students from an owned class in bulk. Removing an
// absent member is reported, not failed.
func (svc *Service) RemoveStudents(ctx context.Context, prin core.Principal, classID string, studentIDs []string) (RemovalResult, error) {
	cls, err := svc.OwnedClass(ctx, prin, classID)
	if err != nil {
		return RemovalResult{}, err
	}

	res := RemovalResult{Removed: []string{}, NotInClass: []string{}}
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		removed, err := svc.repo.RemoveClassStudent(ctx, cls.ID, id)
		if err != nil {
			return RemovalResult{}, err
		}
		if removed {
			res.Removed = append(res.Removed, id)
		} else {
			res.NotInClass = append(res.NotInClass, id)
		}
	}
	return res, nil
}

// Enroll is the single membership-creating primitive. Both direct teacher
// adds and invitation acceptance go through it; exec lets acceptance run it
// inside its transaction.
func (svc *Service) Enroll(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (added bool, err error) {
	return svc.repo.AddClassStudent(ctx, classID, studentID, exec...)
}

// Members lists the enrolled students of a class readable by the caller.
func (svc *Service) Members(ctx context.Context, prin core.Principal, classID string) ([]Member, error) {
	cls, err := svc.scopedClass(ctx, prin, classID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryClassMembers(ctx, cls.ID)
}

// AvailableStudents lists the students of a school, each flagged with
// whether they already belong to the given class. Teachers may only consult
// their own classes.
func (svc *Service) AvailableStudents(ctx context.Context, prin core.Principal, schoolID, classID, search string) ([]Member, error) {
	if prin.IsStudent() || !prin.CanReadSchool(schoolID) {
		return nil, ErrNotFound
	}

	enrolled := make(map[string]bool)
	if classID != "" {
		cls, err := svc.scopedClass(ctx, prin, classID)
		if err != nil {
			return nil, err
		}
		if cls.SchoolID != schoolID {
			return nil, ErrNotFound
		}
		for _, id := range cls.StudentIDs {
			enrolled[id] = true
		}
	}

	filter := &user.QueryFilter{
		Search:   core.CleanString(search),
		Role:     core.RoleStudent.String(),
		SchoolID: schoolID,
	}
	students, err := svc.usrRepo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying school students")
	}

	members := make([]Member, 0, len(students))
	for _, st := range students {
		members = append(members, Member{
			ID:       st.ID,
			Name:     st.Name,
			Email:    st.Email,
			Enrolled: enrolled[st.ID],
		})
	}
	return members, nil
}

// ValidStudent reports whether id names a student of the given school.
func (svc *Service) ValidStudent(ctx context.Context, schoolID, studentID string) (user.User, error) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		return user.User{}, err
	}
	if !usr.IsStudent() || usr.SchoolID.String != schoolID {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (svc *Service) validStudentSet(ctx context.Context, schoolID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	filter := &user.QueryFilter{
		Role:     core.RoleStudent.String(),
		SchoolID: schoolID,
		IDs:      ids,
	}
	students, err := svc.usrRepo.QueryUsers(ctx, filter, nil)
	if err != nil {
		return nil, errors.Wrap(err, "validating student ids")
	}
	valid := make(map[string]bool, len(students))
	for _, st := range students {
		valid[st.ID] = true
	}
	return valid, nil
}
