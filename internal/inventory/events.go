package inventory

import (
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
)

// StockLowEvent builds the stock_low event for item when its available
// quantity is at or below the reorder level. The dedupe key limits the event
// to one per item per UTC day.
func StockLowEvent(item *models.InventoryItem, now time.Time) (outbox.DomainEvent, bool) {
	if item == nil {
		return outbox.DomainEvent{}, false
	}
	available := item.Available()
	if available > item.ReorderLevel {
		return outbox.DomainEvent{}, false
	}
	severity := enums.SeverityMedium
	switch {
	case available <= 0:
		severity = enums.SeverityCritical
	case available <= item.ReorderLevel/2:
		severity = enums.SeverityHigh
	}
	now = now.UTC()
	return outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		DedupeKey:     "stock_low:" + now.Format("2006-01-02"),
		OccurredAt:    now,
		Data: payloads.StockLowEvent{
			InventoryItemID: item.ID,
			WarehouseID:     item.WarehouseID,
			SKU:             item.SKU,
			Available:       available,
			ReorderLevel:    item.ReorderLevel,
			Severity:        severity,
		},
	}, true
}
