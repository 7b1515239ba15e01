package inventory

import (
	"sort"
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// DeriveAlerts computes stock alerts for items at now. An item can raise one
// quantity alert plus one expiry alert. Results are ordered by severity, then SKU.
func DeriveAlerts(items []models.InventoryItem, now time.Time, expiringWindow time.Duration) []Alert {
	alerts := make([]Alert, 0)
	for _, item := range items {
		available := item.Available()
		base := Alert{
			InventoryItemID: item.ID,
			WarehouseID:     item.WarehouseID,
			SKU:             item.SKU,
			Available:       available,
			OnHand:          item.QuantityOnHand,
			ReorderLevel:    item.ReorderLevel,
			ExpiryDate:      item.ExpiryDate,
		}

		switch {
		case available <= 0:
			alerts = append(alerts, withKind(base, enums.StockAlertOutOfStock, enums.SeverityCritical))
		case available <= item.ReorderLevel:
			severity := enums.SeverityMedium
			if available <= item.ReorderLevel/2 {
				severity = enums.SeverityHigh
			}
			alerts = append(alerts, withKind(base, enums.StockAlertLowStock, severity))
		case item.MaxStockLevel != nil && item.QuantityOnHand > *item.MaxStockLevel:
			alerts = append(alerts, withKind(base, enums.StockAlertOverstock, enums.SeverityLow))
		}

		if item.ExpiryDate != nil {
			switch {
			case !item.ExpiryDate.After(now):
				alerts = append(alerts, withKind(base, enums.StockAlertExpired, enums.SeverityCritical))
			case item.ExpiryDate.Sub(now) <= expiringWindow:
				alerts = append(alerts, withKind(base, enums.StockAlertExpiringSoon, enums.SeverityMedium))
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].SKU < alerts[j].SKU
	})
	return alerts
}

func withKind(alert Alert, kind enums.StockAlertType, severity enums.StockAlertSeverity) Alert {
	alert.Type = kind
	alert.Severity = severity
	return alert
}
