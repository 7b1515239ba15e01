package router

import (
	"context"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.InventoryEventRow
	err      error
}

func (f *fakeWriter) InsertInventoryEvent(_ context.Context, row types.InventoryEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
