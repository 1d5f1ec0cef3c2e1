package payment

import (
	"context"

	"github.com/bhmc/slot-reservation/internal/repository"
)

// StoreMembership records season memberships in the slot store.
type StoreMembership struct {
	store repository.Store
}

func NewStoreMembership(store repository.Store) *StoreMembership {
	return &StoreMembership{store: store}
}

func (m *StoreMembership) GrantMembership(ctx context.Context, playerID uint64, season int) error {
	return m.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.GrantMembership(ctx, playerID, season)
	})
}
