package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
)

type invitationRepository struct {
	db *DB
}

var _ invitation.Repository = (*invitationRepository)(nil) // interface compliance check

func NewInvitationRepository(db *DB) *invitationRepository {
	return &invitationRepository{db: db}
}

func (repo *invitationRepository) populate(inv invitation.Invitation) invitation.Invitation {
	if cls, ok := repo.db.classes[inv.ClassID]; ok {
		inv.Class = &classroom.ClassRef{ID: cls.ID, Name: cls.Name, Description: cls.Description}
	}
	if usr, ok := repo.db.users[inv.StudentID]; ok {
		inv.Student = &classroom.UserRef{ID: usr.ID, Name: usr.Name, Email: usr.Email}
	}
	if usr, ok := repo.db.users[inv.InvitedBy]; ok {
		inv.Inviter = &classroom.UserRef{ID: usr.ID, Name: usr.Name, Email: usr.Email}
	}
	return inv
}

func (repo *invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation, exec ...core.DBExecutor) (invitation.Invitation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// at most one invitation per (class, student), any status
	for _, existing := range repo.db.invitations {
		if existing.ClassID == inv.ClassID && existing.StudentID == inv.StudentID {
			return invitation.Invitation{}, invitation.ErrInvitationExists
		}
	}

	inv.ID = uuid.New().String()
	stored := inv
	repo.db.invitations[inv.ID] = &stored
	return repo.populate(inv), nil
}

func (repo *invitationRepository) GetInvitation(ctx context.Context, id string, exec ...core.DBExecutor) (invitation.Invitation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	inv, ok := repo.db.invitations[id]
	if !ok {
		return invitation.Invitation{}, invitation.ErrNotFound
	}
	return repo.populate(*inv), nil
}

func (repo *invitationRepository) QueryInvitations(ctx context.Context, filter invitation.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]invitation.Invitation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invs := make([]invitation.Invitation, 0)
	for _, inv := range repo.db.invitations {
		if filter.ClassID != "" && inv.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && inv.StudentID != filter.StudentID {
			continue
		}
		if filter.SchoolID != "" && inv.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		invs = append(invs, repo.populate(*inv))
	}

	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}

func (repo *invitationRepository) DecideInvitation(ctx context.Context, id string, status invitation.Status, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invitations[id]
	if !ok || inv.Status != invitation.StatusPending {
		return false, nil
	}
	inv.Status = status
	inv.UpdatedAt = time.Now().UTC()
	return true, nil
}
