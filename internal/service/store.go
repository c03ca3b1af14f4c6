package service

import (
	"context"

	"rental/internal/repository"
)

// store runs multi-entity writes. With a Transactor the writes share one
// transaction; without one they run in order against the plain repositories.
type store struct {
	repos repository.Repositories
	tx    repository.Transactor
}

func (s store) within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if s.tx == nil {
		return fn(ctx, s.repos)
	}
	return s.tx.WithinTx(ctx, fn)
}

func (s store) transactional() bool {
	return s.tx != nil
}
