package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
)

// invitation columns are always selected with class, student and inviter
// joined in for display
const invitationCols = `i.id, i.class_id, i.student_id, i.invited_by, i.school_id, i.status, i.created_at, i.updated_at,
	c.id, c.name, c.description,
	s.id, s.name, s.email,
	t.id, t.name, t.email`

const invitationJoins = `
	FROM invitation i
	JOIN class c ON c.id = i.class_id
	JOIN app_user s ON s.id = i.student_id
	JOIN app_user t ON t.id = i.invited_by`

type invitationRepository struct {
	exec core.DBExecutor
}

var _ invitation.Repository = (*invitationRepository)(nil) // interface compliance check

func NewInvitationRepository(exec core.DBExecutor) *invitationRepository {
	return &invitationRepository{exec: exec}
}

func (repo invitationRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo invitationRepository) scanInvitation(row rowScanner) (invitation.Invitation, error) {
	var inv invitation.Invitation
	var cls classroom.ClassRef
	var student, inviter classroom.UserRef
	err := row.Scan(
		&inv.ID, &inv.ClassID, &inv.StudentID, &inv.InvitedBy, &inv.SchoolID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
		&cls.ID, &cls.Name, &cls.Description,
		&student.ID, &student.Name, &student.Email,
		&inviter.ID, &inviter.Name, &inviter.Email,
	)
	if err != nil {
		return invitation.Invitation{}, err
	}
	inv.Class = &cls
	inv.Student = &student
	inv.Inviter = &inviter
	return inv, nil
}

func (repo invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation, exec ...core.DBExecutor) (invitation.Invitation, error) {
	inv.ID = uuid.New().String()
	query := rebind(`
		INSERT INTO invitation (id, class_id, student_id, invited_by, school_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		inv.ID, inv.ClassID, inv.StudentID, inv.InvitedBy, inv.SchoolID, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return invitation.Invitation{}, invitation.ErrInvitationExists
		}
		return invitation.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return repo.GetInvitation(ctx, inv.ID, exec...)
}

func (repo invitationRepository) GetInvitation(ctx context.Context, id string, exec ...core.DBExecutor) (invitation.Invitation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return invitation.Invitation{}, invitation.ErrNotFound
	}

	query := rebind("SELECT " + invitationCols + invitationJoins + " WHERE i.id = ?")
	inv, err := repo.scanInvitation(repo.getExec(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return invitation.Invitation{}, invitation.ErrNotFound
		}
		return invitation.Invitation{}, errors.Wrap(err, "finding invitation")
	}
	return inv, nil
}

// invitationSortable whitelists the invitation columns a caller may sort on.
var invitationSortable = map[string]string{
	"status":     "i.status",
	"created_at": "i.created_at",
}

func (repo invitationRepository) QueryInvitations(ctx context.Context, filter invitation.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]invitation.Invitation, error) {
	query := "SELECT " + invitationCols + invitationJoins
	var where []string
	var args []interface{}

	if filter.ClassID != "" {
		where = append(where, "i.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		where = append(where, "i.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.SchoolID != "" {
		where = append(where, "i.school_id = ?")
		args = append(args, filter.SchoolID)
	}
	if filter.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, filter.Status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += orderByClause(ordering, invitationSortable)

	rows, err := repo.getExec(exec).QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	defer func() { _ = rows.Close() }()

	invs := make([]invitation.Invitation, 0)
	for rows.Next() {
		inv, err := repo.scanInvitation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning invitation")
		}
		invs = append(invs, inv)
	}
	return invs, errors.Wrap(rows.Err(), "querying invitations")
}

// DecideInvitation is a compare-and-set on the pending status; a concurrent
// decision that lands first leaves nothing to update here.
func (repo invitationRepository) DecideInvitation(ctx context.Context, id string, status invitation.Status, exec ...core.DBExecutor) (bool, error) {
	query := rebind("UPDATE invitation SET status = ?, updated_at = now() WHERE id = ? AND status = ?")
	res, err := repo.getExec(exec).ExecContext(ctx, query, status, id, invitation.StatusPending)
	if err != nil {
		return false, errors.Wrap(err, "deciding invitation")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deciding invitation")
	}
	return cnt == 1, nil
}
