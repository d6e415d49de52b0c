package alert

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List results. Empty or "all" values match everything.
type Filter struct {
	Status   string
	Category string
	Priority string
}

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Alert, int, error)
	UpdateStatus(ctx context.Context, a *Alert) error
	CountByStatus(ctx context.Context, status string) (int, error)
}
