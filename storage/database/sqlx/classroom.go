package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
)

// class columns are always selected with the owner joined in
const classCols = `c.id, c.name, c.description, c.school_id, c.created_at, c.updated_at,
	u.id, u.name, u.email`

const subjectCols = "id, title, description, quiz_questions, class_id, created_at, updated_at"

type classroomRepository struct {
	exec core.DBExecutor
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(exec core.DBExecutor) *classroomRepository {
	return &classroomRepository{exec: exec}
}

func (repo classroomRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo classroomRepository) scanClass(row rowScanner) (classroom.Class, error) {
	var cls classroom.Class
	err := row.Scan(
		&cls.ID, &cls.Name, &cls.Description, &cls.SchoolID, &cls.CreatedAt, &cls.UpdatedAt,
		&cls.CreatedBy.ID, &cls.CreatedBy.Name, &cls.CreatedBy.Email,
	)
	return cls, err
}

func (repo classroomRepository) scanSubject(row rowScanner) (classroom.Subject, error) {
	var sub classroom.Subject
	var questions []byte
	err := row.Scan(&sub.ID, &sub.Title, &sub.Description, &questions, &sub.ClassID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return classroom.Subject{}, err
	}
	if err = json.Unmarshal(questions, &sub.QuizQuestions); err != nil {
		return classroom.Subject{}, errors.Wrap(err, "decoding quiz questions")
	}
	return sub, nil
}

func (repo classroomRepository) CreateClass(ctx context.Context, cls classroom.Class, exec ...core.DBExecutor) (classroom.Class, error) {
	cls.ID = uuid.New().String()
	query := rebind(`
		INSERT INTO class (id, name, description, created_by, school_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		cls.ID, cls.Name, cls.Description, cls.CreatedBy.ID, cls.SchoolID, cls.CreatedAt, cls.UpdatedAt,
	)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "inserting class")
	}
	return repo.GetClass(ctx, cls.ID, exec...)
}

func (repo classroomRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classroom.Class{}, classroom.ErrNotFound
	}

	exe := repo.getExec(exec)
	query := rebind("SELECT " + classCols + " FROM class c JOIN app_user u ON u.id = c.created_by WHERE c.id = ?")
	cls, err := repo.scanClass(exe.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return classroom.Class{}, classroom.ErrNotFound
		}
		return classroom.Class{}, errors.Wrap(err, "finding class")
	}

	cls.StudentIDs, err = repo.classStudentIDs(ctx, exe, cls.ID)
	if err != nil {
		return classroom.Class{}, err
	}
	return cls, nil
}

func (repo classroomRepository) classStudentIDs(ctx context.Context, exe core.DBExecutor, classID string) ([]string, error) {
	query := rebind("SELECT student_id FROM class_student WHERE class_id = ? ORDER BY created_at")
	rows, err := exe.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning class student")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "querying class students")
}

// classSortable and subjectSortable whitelist the columns a caller may
// sort classes and subjects on.
var (
	classSortable = map[string]string{
		"name":       "c.name",
		"created_at": "c.created_at",
	}
	subjectSortable = map[string]string{
		"name":       "name",
		"created_at": "created_at",
	}
)

func (repo classroomRepository) QueryClasses(ctx context.Context, filter classroom.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]classroom.Class, error) {
	query := "SELECT " + classCols + " FROM class c JOIN app_user u ON u.id = c.created_by"
	var where []string
	var args []interface{}

	if filter.StudentID != "" {
		query += " JOIN class_student cs ON cs.class_id = c.id"
		where = append(where, "cs.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.CreatedBy != "" {
		where = append(where, "c.created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.SchoolID != "" {
		where = append(where, "c.school_id = ?")
		args = append(args, filter.SchoolID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += orderByClause(ordering, classSortable)

	exe := repo.getExec(exec)
	rows, err := exe.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	defer func() { _ = rows.Close() }()

	classes := make([]classroom.Class, 0)
	for rows.Next() {
		cls, err := repo.scanClass(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning class")
		}
		classes = append(classes, cls)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}

	for i := range classes {
		if classes[i].StudentIDs, err = repo.classStudentIDs(ctx, exe, classes[i].ID); err != nil {
			return nil, err
		}
	}
	return classes, nil
}

func (repo classroomRepository) UpdateClass(ctx context.Context, cls classroom.Class, exec ...core.DBExecutor) (classroom.Class, error) {
	query := rebind("UPDATE class SET name = ?, description = ?, updated_at = ? WHERE id = ?")
	res, err := repo.getExec(exec).ExecContext(ctx, query, cls.Name, cls.Description, cls.UpdatedAt, cls.ID)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "updating class")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return repo.GetClass(ctx, cls.ID, exec...)
}

func (repo classroomRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	// subjects, memberships and invitations go with it via FK cascades
	query := rebind("DELETE FROM class WHERE id = ?")
	res, err := repo.getExec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

func (repo classroomRepository) CreateSubject(ctx context.Context, sub classroom.Subject, exec ...core.DBExecutor) (classroom.Subject, error) {
	sub.ID = uuid.New().String()
	questions, err := json.Marshal(sub.QuizQuestions)
	if err != nil {
		return classroom.Subject{}, errors.Wrap(err, "encoding quiz questions")
	}

	query := rebind(`
		INSERT INTO subject (id, title, description, quiz_questions, class_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + subjectCols)
	row := repo.getExec(exec).QueryRowContext(ctx, query,
		sub.ID, sub.Title, sub.Description, questions, sub.ClassID, sub.CreatedAt, sub.UpdatedAt,
	)
	created, err := repo.scanSubject(row)
	if err != nil {
		return classroom.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return created, nil
}

func (repo classroomRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classroom.Subject{}, classroom.ErrSubjectNotFound
	}

	query := rebind(`
		SELECT s.id, s.title, s.description, s.quiz_questions, s.class_id, s.created_at, s.updated_at,
			c.id, c.name, c.description
		FROM subject s
		JOIN class c ON c.id = s.class_id
		WHERE s.id = ?`)

	var sub classroom.Subject
	var questions []byte
	var cls classroom.ClassRef
	err := repo.getExec(exec).QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.Title, &sub.Description, &questions, &sub.ClassID, &sub.CreatedAt, &sub.UpdatedAt,
		&cls.ID, &cls.Name, &cls.Description,
	)
	if err != nil {
		if isNoRows(err) {
			return classroom.Subject{}, classroom.ErrSubjectNotFound
		}
		return classroom.Subject{}, errors.Wrap(err, "finding subject")
	}
	if err = json.Unmarshal(questions, &sub.QuizQuestions); err != nil {
		return classroom.Subject{}, errors.Wrap(err, "decoding quiz questions")
	}
	sub.Class = &cls
	return sub, nil
}

func (repo classroomRepository) QuerySubjects(ctx context.Context, classID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]classroom.Subject, error) {
	query := "SELECT " + subjectCols + " FROM subject WHERE class_id = ?"
	query += orderByClause(ordering, subjectSortable)

	rows, err := repo.getExec(exec).QueryContext(ctx, rebind(query), classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	defer func() { _ = rows.Close() }()

	subjects := make([]classroom.Subject, 0)
	for rows.Next() {
		sub, err := repo.scanSubject(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning subject")
		}
		subjects = append(subjects, sub)
	}
	return subjects, errors.Wrap(rows.Err(), "querying subjects")
}

func (repo classroomRepository) UpdateSubject(ctx context.Context, sub classroom.Subject, exec ...core.DBExecutor) (classroom.Subject, error) {
	questions, err := json.Marshal(sub.QuizQuestions)
	if err != nil {
		return classroom.Subject{}, errors.Wrap(err, "encoding quiz questions")
	}

	query := rebind(`
		UPDATE subject SET title = ?, description = ?, quiz_questions = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + subjectCols)
	row := repo.getExec(exec).QueryRowContext(ctx, query, sub.Title, sub.Description, questions, sub.UpdatedAt, sub.ID)
	updated, err := repo.scanSubject(row)
	if err != nil {
		if isNoRows(err) {
			return classroom.Subject{}, classroom.ErrSubjectNotFound
		}
		return classroom.Subject{}, errors.Wrap(err, "updating subject")
	}
	return updated, nil
}

func (repo classroomRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	query := rebind("DELETE FROM subject WHERE id = ?")
	res, err := repo.getExec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return classroom.ErrSubjectNotFound
	}
	return nil
}

// AddClassStudent relies on the class_student primary key: the conflict
// clause makes concurrent adds of the same pair settle on exactly one
// inserted row.
func (repo classroomRepository) AddClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	query := rebind(`
		INSERT INTO class_student (class_id, student_id)
		VALUES (?, ?)
		ON CONFLICT (class_id, student_id) DO NOTHING`)
	res, err := repo.getExec(exec).ExecContext(ctx, query, classID, studentID)
	if err != nil {
		return false, errors.Wrap(err, "adding class student")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "adding class student")
	}
	return cnt == 1, nil
}

func (repo classroomRepository) RemoveClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	query := rebind("DELETE FROM class_student WHERE class_id = ? AND student_id = ?")
	res, err := repo.getExec(exec).ExecContext(ctx, query, classID, studentID)
	if err != nil {
		return false, errors.Wrap(err, "removing class student")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "removing class student")
	}
	return cnt == 1, nil
}

func (repo classroomRepository) QueryClassMembers(ctx context.Context, classID string, exec ...core.DBExecutor) ([]classroom.Member, error) {
	query := rebind(`
		SELECT u.id, u.name, u.email
		FROM app_user u
		JOIN class_student cs ON cs.student_id = u.id
		WHERE cs.class_id = ?
		ORDER BY u.name`)
	rows, err := repo.getExec(exec).QueryContext(ctx, query, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class members")
	}
	defer func() { _ = rows.Close() }()

	members := make([]classroom.Member, 0)
	for rows.Next() {
		m := classroom.Member{Enrolled: true}
		if err = rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, errors.Wrap(err, "scanning class member")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "querying class members")
}
