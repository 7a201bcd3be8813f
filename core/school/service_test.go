package school

import (
	"context"
	"strings"
	"testing"

	"github.com/shulehub/shule/core"
)

// stubRepo fails CreateSchool with ErrUIDExists a fixed number of times
// before accepting, recording every UID attempted.
type stubRepo struct {
	collisions int
	uids       []string
	stored     []School
}

func (r *stubRepo) CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error) {
	r.uids = append(r.uids, sch.UID)
	if len(r.uids) <= r.collisions {
		return School{}, ErrUIDExists
	}
	sch.ID = "id-1"
	r.stored = append(r.stored, sch)
	return sch, nil
}

func (r *stubRepo) GetSchool(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (School, error) {
	for _, sch := range r.stored {
		if sch.ID == filter.ID || sch.UID == filter.UID {
			return sch, nil
		}
	}
	return School{}, ErrNotFound
}

func (r *stubRepo) QuerySchools(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]School, error) {
	return r.stored, nil
}

var _ Repository = (*stubRepo)(nil) // interface compliance check

func TestService_Create_regeneratesCollidingUIDs(t *testing.T) {
	repo := &stubRepo{collisions: 2}
	svc := NewService(repo)

	sch, err := svc.Create(context.Background(), NewSchool{Name: "Bumi High", Address: "1 Main St", Email: "info@bumi.cd"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if len(repo.uids) != 3 {
		t.Fatalf("attempts = %d; want 3", len(repo.uids))
	}
	// every collision got a fresh UID
	seen := make(map[string]bool, len(repo.uids))
	for _, uid := range repo.uids {
		if seen[uid] {
			t.Errorf("UID %s reused after collision", uid)
		}
		seen[uid] = true
	}
	if !strings.HasPrefix(sch.UID, "SCH") {
		t.Errorf("UID = %s; want SCH prefix", sch.UID)
	}
}

func TestService_GetByUID_normalizes(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), NewSchool{Name: "Bumi High", Address: "1 Main St", Email: "info@bumi.cd"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := svc.GetByUID(context.Background(), "  "+strings.ToLower(created.UID)+"  ")
	if err != nil {
		t.Fatalf("GetByUID() failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %s; want %s", got.ID, created.ID)
	}

	if _, err := svc.GetByUID(context.Background(), "SCH0UNKNOWN"); err != ErrNotFound {
		t.Errorf("GetByUID() error = %v, want %v", err, ErrNotFound)
	}
}
