package school

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
)

var (
	// errors
	ErrNotFound  = errors.New("school not found")
	ErrUIDExists = errors.New("a school with this uid already exists")

	uidRandSrc = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type (
	GetFilter struct {
		ID  string
		UID string
	}

	Repository interface {
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]School, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new school with a generated globally-unique UID.
// UID uniqueness is enforced by the store; collisions are retried with a
// fresh suffix.
func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch := School{
		Name:      ns.Name,
		Address:   ns.Address,
		Email:     ns.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempts := 0; ; attempts++ {
		sch.UID = generateUID()
		created, err := svc.repo.CreateSchool(ctx, sch)
		if err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrUIDExists || attempts >= 5 {
			return School{}, err
		}
	}
}

func (svc *Service) Query(ctx context.Context, ordering ...core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUID(ctx context.Context, uid string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{UID: strings.ToUpper(core.CleanString(uid))})
}

// generateUID builds a "SCH<timestamp><random>" identifier.
func generateUID() string {
	const alphanum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		sb.WriteByte(alphanum[uidRandSrc.Intn(len(alphanum))])
	}
	return fmt.Sprintf("SCH%d%s", time.Now().UnixNano()/int64(time.Millisecond), sb.String())
}
