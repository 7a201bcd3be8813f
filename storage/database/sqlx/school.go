package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/school"
)

const schoolCols = "id, name, address, email, uid, created_at, updated_at"

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo schoolRepository) scanSchool(row rowScanner) (school.School, error) {
	var sch school.School
	err := row.Scan(&sch.ID, &sch.Name, &sch.Address, &sch.Email, &sch.UID, &sch.CreatedAt, &sch.UpdatedAt)
	return sch, err
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = uuid.New().String()
	query := rebind(`
		INSERT INTO school (id, name, address, email, uid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + schoolCols)
	row := repo.getExec(exec).QueryRowContext(ctx, query,
		sch.ID, sch.Name, sch.Address, sch.Email, sch.UID, sch.CreatedAt, sch.UpdatedAt,
	)
	created, err := repo.scanSchool(row)
	if err != nil {
		if isUniqueViolation(err) {
			return school.School{}, school.ErrUIDExists
		}
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return created, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, filter school.GetFilter, exec ...core.DBExecutor) (school.School, error) {
	var query string
	var arg interface{}

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return school.School{}, school.ErrNotFound
		}
		query = "SELECT " + schoolCols + " FROM school WHERE id = ?"
		arg = filter.ID
	} else {
		query = "SELECT " + schoolCols + " FROM school WHERE uid = ?"
		arg = filter.UID
	}

	sch, err := repo.scanSchool(repo.getExec(exec).QueryRowContext(ctx, rebind(query), arg))
	if err != nil {
		if isNoRows(err) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "finding school")
	}
	return sch, nil
}

// schoolSortable whitelists the school columns a caller may sort on.
var schoolSortable = map[string]string{
	"name":       "name",
	"uid":        "uid",
	"created_at": "created_at",
}

func (repo schoolRepository) QuerySchools(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.School, error) {
	query := "SELECT " + schoolCols + " FROM school"
	query += orderByClause(ordering, schoolSortable)

	rows, err := repo.getExec(exec).QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	defer func() { _ = rows.Close() }()

	schools := make([]school.School, 0)
	for rows.Next() {
		sch, err := repo.scanSchool(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning school")
		}
		schools = append(schools, sch)
	}
	return schools, errors.Wrap(rows.Err(), "querying schools")
}
