package movements

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/metrics"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	conn *gorm.DB
	svc  *service
	reg  *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.New(t)
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(client.DB()),
		Inventory: inventory.NewRepository(client.DB()),
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Metrics:   metrics.NewInventoryMetrics(reg),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return &harness{conn: client.DB(), svc: impl, reg: reg}
}

func (h *harness) item(t *testing.T, sku string, onHand, reserved int) *models.InventoryItem {
	t.Helper()
	warehouse := &models.Warehouse{Code: "WH-" + sku, Name: "Warehouse " + sku, IsActive: true}
	if err := h.conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	item := &models.InventoryItem{
		WarehouseID:      warehouse.ID,
		ProductID:        uuid.New(),
		SKU:              sku,
		QuantityOnHand:   onHand,
		QuantityReserved: reserved,
		ReorderLevel:     5,
	}
	if err := h.conn.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (h *harness) countMovements(t *testing.T, itemID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := h.conn.Model(&models.InventoryMovement{}).Where("inventory_item_id = ?", itemID).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	return count
}

func (h *harness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecordInAndOut(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)
	ctx := context.Background()

	in, err := h.svc.Record(ctx, RecordInput{ItemID: item.ID, Type: enums.MovementTypeIn, Quantity: 15})
	if err != nil {
		t.Fatalf("record in: %v", err)
	}
	if in.Item.QuantityOnHand != 25 {
		t.Fatalf("expected on hand 25, got %d", in.Item.QuantityOnHand)
	}
	if !strings.HasPrefix(in.Movement.MovementNumber, "MOV-20260310-") {
		t.Fatalf("unexpected movement number %q", in.Movement.MovementNumber)
	}

	out, err := h.svc.Record(ctx, RecordInput{ItemID: item.ID, Type: enums.MovementTypeOut, Quantity: 5})
	if err != nil {
		t.Fatalf("record out: %v", err)
	}
	if out.Item.QuantityOnHand != 20 || out.Movement.Quantity != 5 {
		t.Fatalf("unexpected out result: item=%+v movement=%+v", out.Item, out.Movement)
	}
	if got := h.countMovements(t, item.ID); got != 2 {
		t.Fatalf("expected 2 movements, got %d", got)
	}
	if got := h.countEvents(t, enums.EventMovementRecorded); got != 2 {
		t.Fatalf("expected 2 movement events, got %d", got)
	}
	if got := counterValue(t, h.reg, "stockhold_movements_recorded_total", "OUT"); got != 1 {
		t.Fatalf("expected OUT metric 1, got %v", got)
	}
}

func TestRecordOutExceedingStockWritesNothing(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)

	_, err := h.svc.Record(context.Background(), RecordInput{ItemID: item.ID, Type: enums.MovementTypeOut, Quantity: 11})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := h.countMovements(t, item.ID); got != 0 {
		t.Fatalf("expected no movement rows, got %d", got)
	}
	var reloaded models.InventoryItem
	if err := h.conn.First(&reloaded, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.QuantityOnHand != 10 {
		t.Fatalf("on hand must be unchanged, got %d", reloaded.QuantityOnHand)
	}
}

func TestRecordOutRespectsReservedStock(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 6)

	if _, err := h.svc.Record(context.Background(), RecordInput{ItemID: item.ID, Type: enums.MovementTypeOut, Quantity: 5}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict when OUT exceeds available, got %v", err)
	}
}

func TestRecordValidation(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)
	badRef := enums.MovementReferenceType("GIFT")

	cases := map[string]RecordInput{
		"zero quantity":      {ItemID: item.ID, Type: enums.MovementTypeAdjust, Quantity: 0},
		"negative in":        {ItemID: item.ID, Type: enums.MovementTypeIn, Quantity: -2},
		"negative out":       {ItemID: item.ID, Type: enums.MovementTypeOut, Quantity: -2},
		"unknown type":       {ItemID: item.ID, Type: "SIDEWAYS", Quantity: 2},
		"missing item":       {Type: enums.MovementTypeIn, Quantity: 2},
		"unknown references": {ItemID: item.ID, Type: enums.MovementTypeIn, Quantity: 2, ReferenceType: &badRef},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.svc.Record(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecordAdjustNegativeEmitsStockLowOncePerDay(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Record(ctx, RecordInput{ItemID: item.ID, Type: enums.MovementTypeAdjust, Quantity: -3}); err != nil {
			t.Fatalf("adjust %d: %v", i, err)
		}
	}
	if got := h.countEvents(t, enums.EventStockLow); got != 1 {
		t.Fatalf("expected one stock_low event, got %d", got)
	}
}

func TestTransferMovesStockBetweenItems(t *testing.T) {
	h := newHarness(t)
	from := h.item(t, "SKU-A", 20, 5)
	to := h.item(t, "SKU-B", 1, 0)
	if err := h.conn.Model(&models.InventoryItem{}).Where("id = ?", to.ID).Update("product_id", from.ProductID).Error; err != nil {
		t.Fatalf("align product: %v", err)
	}

	result, err := h.svc.Transfer(context.Background(), TransferInput{FromItemID: from.ID, ToItemID: to.ID, Quantity: 10})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.Out.Item.QuantityOnHand != 10 || result.In.Item.QuantityOnHand != 11 {
		t.Fatalf("unexpected levels: out=%d in=%d", result.Out.Item.QuantityOnHand, result.In.Item.QuantityOnHand)
	}
	if result.Out.Movement.MovementType != enums.MovementTypeTransfer || *result.Out.Movement.ReferenceID != to.ID {
		t.Fatalf("unexpected outbound leg: %+v", result.Out.Movement)
	}

	if _, err := h.svc.Transfer(context.Background(), TransferInput{FromItemID: from.ID, ToItemID: to.ID, Quantity: 6}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict moving reserved stock, got %v", err)
	}
	if got := h.countMovements(t, to.ID); got != 1 {
		t.Fatalf("rejected transfer must not write movements, got %d", got)
	}
}

func TestTransferRejectsDifferentProducts(t *testing.T) {
	h := newHarness(t)
	from := h.item(t, "SKU-A", 20, 0)
	to := h.item(t, "SKU-B", 1, 0)

	if _, err := h.svc.Transfer(context.Background(), TransferInput{FromItemID: from.ID, ToItemID: to.ID, Quantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCycleCountWritesVariance(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 2)
	ctx := context.Background()

	result, err := h.svc.CycleCount(ctx, CycleCountInput{ItemID: item.ID, CountedQuantity: 7})
	if err != nil {
		t.Fatalf("cycle count: %v", err)
	}
	if result.Item.QuantityOnHand != 7 || result.Item.LastCountedAt == nil {
		t.Fatalf("unexpected item: %+v", result.Item)
	}
	if result.Movement == nil || result.Movement.MovementType != enums.MovementTypeAdjust || result.Movement.Quantity != -3 {
		t.Fatalf("unexpected variance movement: %+v", result.Movement)
	}

	same, err := h.svc.CycleCount(ctx, CycleCountInput{ItemID: item.ID, CountedQuantity: 7})
	if err != nil {
		t.Fatalf("second count: %v", err)
	}
	if same.Movement != nil {
		t.Fatalf("no movement expected without variance")
	}

	if _, err := h.svc.CycleCount(ctx, CycleCountInput{ItemID: item.ID, CountedQuantity: 1}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict counting below reserved, got %v", err)
	}

	stale := int64(1)
	if _, err := h.svc.CycleCount(ctx, CycleCountInput{ItemID: item.ID, CountedQuantity: 9, ExpectedVersion: &stale}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected stale version conflict, got %v", err)
	}
}

func TestReturnRecordsOutWithReason(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 4)
	ctx := context.Background()

	result, err := h.svc.Return(ctx, ReturnInput{ItemID: item.ID, Quantity: 6, Reason: enums.ReturnReasonDamage})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	m := result.Movement
	if m.MovementType != enums.MovementTypeOut || m.ReferenceType == nil || *m.ReferenceType != enums.ReferenceReturn || *m.Reason != "damage" {
		t.Fatalf("unexpected return movement: %+v", m)
	}

	if _, err := h.svc.Return(ctx, ReturnInput{ItemID: item.ID, Quantity: 1, Reason: enums.ReturnReasonDamage}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict returning reserved stock, got %v", err)
	}
	if _, err := h.svc.Return(ctx, ReturnInput{ItemID: item.ID, Quantity: 1, Reason: "lost"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for unknown reason, got %v", err)
	}
}

func TestQueryHalfOpenWindow(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 100, 0)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	for i, at := range []time.Time{t0, t1, t2} {
		stamp := at
		h.svc.now = func() time.Time { return stamp }
		if _, err := h.svc.Record(context.Background(), RecordInput{ItemID: item.ID, Type: enums.MovementTypeIn, Quantity: i + 1}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	rows, err := h.svc.Query(context.Background(), QueryFilter{From: t0, To: t2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].CreatedAt.Equal(t1) || !rows[1].CreatedAt.Equal(t0) {
		t.Fatalf("expected newest first, got %v then %v", rows[0].CreatedAt, rows[1].CreatedAt)
	}

	limited, err := h.svc.Query(context.Background(), QueryFilter{From: t0, To: t2.Add(time.Second), Limit: 1})
	if err != nil {
		t.Fatalf("query limited: %v", err)
	}
	if len(limited) != 1 || !limited[0].CreatedAt.Equal(t2) {
		t.Fatalf("unexpected limited rows: %+v", limited)
	}

	if _, err := h.svc.Query(context.Background(), QueryFilter{From: t2, To: t0}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for inverted range, got %v", err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: 100, -5: 100, 10: 10, 100: 100, 500: 100}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d)=%d want %d", in, got, want)
		}
	}
}

func TestMovementNumber(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-4e5f-6789-abcd-ef0123456789")
	if got := MovementNumber(fixedNow, id); got != "MOV-20260310-0A1B2C3D4E5F6789" {
		t.Fatalf("unexpected movement number %q", got)
	}
}

func TestAppendKeepsIDsWithSharedPrefixApart(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)
	ctx := context.Background()

	ids := []string{"abcdef12-0000-4000-8000-000000000001", "abcdef12-1111-4111-8111-111111111112"}
	numbers := map[string]bool{}
	for _, raw := range ids {
		movement := &models.InventoryMovement{ID: uuid.MustParse(raw), MovementType: enums.MovementTypeIn, Quantity: 1}
		err := h.conn.Transaction(func(tx *gorm.DB) error {
			return h.svc.Append(ctx, tx, item, movement)
		})
		if err != nil {
			t.Fatalf("append %s: %v", raw, err)
		}
		numbers[movement.MovementNumber] = true
	}
	if len(numbers) != 2 {
		t.Fatalf("expected distinct movement numbers, got %v", numbers)
	}
	if got := h.countMovements(t, item.ID); got != 2 {
		t.Fatalf("expected 2 movements, got %d", got)
	}
}

func TestRecordRejectsSingleLegTransfer(t *testing.T) {
	h := newHarness(t)
	item := h.item(t, "SKU-1", 10, 0)

	_, err := h.svc.Record(context.Background(), RecordInput{ItemID: item.ID, Type: enums.MovementTypeTransfer, Quantity: 4})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := h.countMovements(t, item.ID); got != 0 {
		t.Fatalf("expected no movement rows, got %d", got)
	}
	var reloaded models.InventoryItem
	if err := h.conn.First(&reloaded, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.QuantityOnHand != 10 {
		t.Fatalf("on hand must be unchanged, got %d", reloaded.QuantityOnHand)
	}
}
