package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

// populate fills the owner reference and student ids, like the pg flavor's
// joins do.
func (repo *classroomRepository) populate(cls classroom.Class) classroom.Class {
	if owner, ok := repo.db.users[cls.CreatedBy.ID]; ok {
		cls.CreatedBy = classroom.UserRef{ID: owner.ID, Name: owner.Name, Email: owner.Email}
	}

	members := repo.db.memberships[cls.ID]
	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(members))
	for id, at := range members {
		entries = append(entries, entry{id, at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	cls.StudentIDs = make([]string, 0, len(entries))
	for _, e := range entries {
		cls.StudentIDs = append(cls.StudentIDs, e.id)
	}
	cls.Subjects = nil
	return cls
}

func (repo *classroomRepository) CreateClass(ctx context.Context, cls classroom.Class, exec ...core.DBExecutor) (classroom.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls.ID = uuid.New().String()
	stored := cls
	repo.db.classes[cls.ID] = &stored
	repo.db.memberships[cls.ID] = make(map[string]time.Time)
	return repo.populate(cls), nil
}

func (repo *classroomRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cls, ok := repo.db.classes[id]
	if !ok {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return repo.populate(*cls), nil
}

func (repo *classroomRepository) QueryClasses(ctx context.Context, filter classroom.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]classroom.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]classroom.Class, 0)
	for _, cls := range repo.db.classes {
		if filter.CreatedBy != "" && cls.CreatedBy.ID != filter.CreatedBy {
			continue
		}
		if filter.SchoolID != "" && cls.SchoolID != filter.SchoolID {
			continue
		}
		if filter.StudentID != "" {
			if _, ok := repo.db.memberships[cls.ID][filter.StudentID]; !ok {
				continue
			}
		}
		classes = append(classes, repo.populate(*cls))
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].CreatedAt.After(classes[j].CreatedAt) })
	return classes, nil
}

func (repo *classroomRepository) UpdateClass(ctx context.Context, cls classroom.Class, exec ...core.DBExecutor) (classroom.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.classes[cls.ID]
	if !ok {
		return classroom.Class{}, classroom.ErrNotFound
	}
	stored.Name = cls.Name
	stored.Description = cls.Description
	stored.UpdatedAt = cls.UpdatedAt
	return repo.populate(*stored), nil
}

func (repo *classroomRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return classroom.ErrNotFound
	}
	delete(repo.db.classes, id)
	delete(repo.db.memberships, id)
	for sid, sub := range repo.db.subjects {
		if sub.ClassID == id {
			delete(repo.db.subjects, sid)
		}
	}
	for iid, inv := range repo.db.invitations {
		if inv.ClassID == id {
			delete(repo.db.invitations, iid)
		}
	}
	return nil
}

func (repo *classroomRepository) CreateSubject(ctx context.Context, sub classroom.Subject, exec ...core.DBExecutor) (classroom.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub.ID = uuid.New().String()
	stored := sub
	repo.db.subjects[sub.ID] = &stored
	return sub, nil
}

func (repo *classroomRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sub, ok := repo.db.subjects[id]
	if !ok {
		return classroom.Subject{}, classroom.ErrSubjectNotFound
	}
	got := *sub
	if cls, ok := repo.db.classes[sub.ClassID]; ok {
		got.Class = &classroom.ClassRef{ID: cls.ID, Name: cls.Name, Description: cls.Description}
	}
	return got, nil
}

func (repo *classroomRepository) QuerySubjects(ctx context.Context, classID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]classroom.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]classroom.Subject, 0)
	for _, sub := range repo.db.subjects {
		if sub.ClassID == classID {
			subjects = append(subjects, *sub)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].CreatedAt.Before(subjects[j].CreatedAt) })
	return subjects, nil
}

func (repo *classroomRepository) UpdateSubject(ctx context.Context, sub classroom.Subject, exec ...core.DBExecutor) (classroom.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.subjects[sub.ID]
	if !ok {
		return classroom.Subject{}, classroom.ErrSubjectNotFound
	}
	stored.Title = sub.Title
	stored.Description = sub.Description
	stored.QuizQuestions = sub.QuizQuestions
	stored.UpdatedAt = sub.UpdatedAt
	return *stored, nil
}

func (repo *classroomRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return classroom.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	return nil
}

func (repo *classroomRepository) AddClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	members, ok := repo.db.memberships[classID]
	if !ok {
		members = make(map[string]time.Time)
		repo.db.memberships[classID] = members
	}
	if _, ok = members[studentID]; ok {
		return false, nil
	}
	members[studentID] = time.Now().UTC()
	return true, nil
}

func (repo *classroomRepository) RemoveClassStudent(ctx context.Context, classID, studentID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	members := repo.db.memberships[classID]
	if _, ok := members[studentID]; !ok {
		return false, nil
	}
	delete(members, studentID)
	return true, nil
}

func (repo *classroomRepository) QueryClassMembers(ctx context.Context, classID string, exec ...core.DBExecutor) ([]classroom.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]classroom.Member, 0)
	for id := range repo.db.memberships[classID] {
		if usr, ok := repo.db.users[id]; ok {
			members = append(members, classroom.Member{ID: usr.ID, Name: usr.Name, Email: usr.Email, Enrolled: true})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}
