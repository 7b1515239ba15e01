package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
)

func TestRepositoryReserve(t *testing.T) {
	client, repo := newTestRepo(t)
	ctx := context.Background()
	warehouse := mustWarehouse(t, client.DB(), "WH1")
	item := mustItem(t, client.DB(), warehouse.ID, "SKU-1", 10, 0)

	updated, err := repo.Reserve(ctx, item.ID, 7)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if updated.QuantityReserved != 7 || updated.Available() != 3 {
		t.Fatalf("unexpected item after reserve: %+v", updated)
	}
	if updated.Version != item.Version+1 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}

	_, err = repo.Reserve(ctx, item.ID, 4)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	shortage, ok := typed.Details().(StockShortage)
	if !ok || shortage.Available != 3 || shortage.Requested != 4 {
		t.Fatalf("unexpected conflict details: %#v", typed.Details())
	}

	reloaded, err := repo.FindItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.QuantityReserved != 7 {
		t.Fatalf("rejected reserve must not mutate, reserved=%d", reloaded.QuantityReserved)
	}
}

func TestRepositoryReserveUnknownItem(t *testing.T) {
	_, repo := newTestRepo(t)

	_, err := repo.Reserve(context.Background(), uuid.New(), 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepositoryReserveRejectsNonPositive(t *testing.T) {
	_, repo := newTestRepo(t)

	if _, err := repo.Reserve(context.Background(), uuid.New(), 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRepositoryReleaseAndConsume(t *testing.T) {
	client, repo := newTestRepo(t)
	ctx := context.Background()
	warehouse := mustWarehouse(t, client.DB(), "WH1")
	item := mustItem(t, client.DB(), warehouse.ID, "SKU-1", 20, 8)

	released, err := repo.Release(ctx, item.ID, 3)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.QuantityReserved != 5 || released.QuantityOnHand != 20 {
		t.Fatalf("unexpected item after release: %+v", released)
	}

	if _, err := repo.Release(ctx, item.ID, 6); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict releasing more than reserved, got %v", err)
	}

	consumed, err := repo.Consume(ctx, item.ID, 5)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.QuantityOnHand != 15 || consumed.QuantityReserved != 0 {
		t.Fatalf("unexpected item after consume: %+v", consumed)
	}
	if _, err := repo.Consume(ctx, item.ID, 1); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict consuming unreserved stock, got %v", err)
	}
}

func TestRepositoryApplyOnHandDeltaGuardsReservedStock(t *testing.T) {
	client, repo := newTestRepo(t)
	ctx := context.Background()
	warehouse := mustWarehouse(t, client.DB(), "WH1")
	item := mustItem(t, client.DB(), warehouse.ID, "SKU-1", 10, 4)

	if _, err := repo.ApplyOnHandDelta(ctx, item.ID, -7); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict dipping into reserved stock, got %v", err)
	}

	updated, err := repo.ApplyOnHandDelta(ctx, item.ID, -6)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if updated.QuantityOnHand != 4 || updated.Available() != 0 {
		t.Fatalf("unexpected item: %+v", updated)
	}

	updated, err = repo.ApplyOnHandDelta(ctx, item.ID, 12)
	if err != nil {
		t.Fatalf("apply positive delta: %v", err)
	}
	if updated.QuantityOnHand != 16 {
		t.Fatalf("expected on hand 16, got %d", updated.QuantityOnHand)
	}

	if _, err := repo.ApplyOnHandDelta(ctx, item.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for zero delta, got %v", err)
	}
}

func TestRepositorySetOnHand(t *testing.T) {
	client, repo := newTestRepo(t)
	ctx := context.Background()
	warehouse := mustWarehouse(t, client.DB(), "WH1")
	item := mustItem(t, client.DB(), warehouse.ID, "SKU-1", 10, 3)

	stale := item.Version + 5
	if _, err := repo.SetOnHand(ctx, item.ID, 12, &stale, fixedNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if _, err := repo.SetOnHand(ctx, item.ID, 2, nil, fixedNow); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict counting below reserved, got %v", err)
	}

	updated, err := repo.SetOnHand(ctx, item.ID, 12, &item.Version, fixedNow)
	if err != nil {
		t.Fatalf("set on hand: %v", err)
	}
	if updated.QuantityOnHand != 12 || updated.LastCountedAt == nil {
		t.Fatalf("unexpected item after count: %+v", updated)
	}
}

func TestRepositoryListItemsOrderingAndFilters(t *testing.T) {
	client, repo := newTestRepo(t)
	ctx := context.Background()
	wh1 := mustWarehouse(t, client.DB(), "WH1")
	wh2 := mustWarehouse(t, client.DB(), "WH2")
	mustItem(t, client.DB(), wh1.ID, "SKU-B", 50, 0)
	mustItem(t, client.DB(), wh1.ID, "SKU-A", 3, 0)
	mustItem(t, client.DB(), wh2.ID, "SKU-C", 1, 0)

	all, err := repo.ListItems(ctx, ItemFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].SKU != "SKU-A" || all[1].SKU != "SKU-B" || all[2].SKU != "SKU-C" {
		t.Fatalf("unexpected ordering: %+v", all)
	}

	scoped, err := repo.ListItems(ctx, ItemFilter{WarehouseID: &wh1.ID})
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("expected 2 items in warehouse, got %d", len(scoped))
	}

	low, err := repo.ListItems(ctx, ItemFilter{LowStockOnly: true})
	if err != nil {
		t.Fatalf("list low: %v", err)
	}
	if len(low) != 2 || low[0].SKU != "SKU-A" || low[1].SKU != "SKU-C" {
		t.Fatalf("unexpected low stock items: %+v", low)
	}
}
