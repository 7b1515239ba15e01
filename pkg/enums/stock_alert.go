package enums

// StockAlertType labels a derived inventory alert.
type StockAlertType string

const (
	StockAlertOutOfStock   StockAlertType = "OUT_OF_STOCK"
	StockAlertLowStock     StockAlertType = "LOW_STOCK"
	StockAlertOverstock    StockAlertType = "OVERSTOCK"
	StockAlertExpired      StockAlertType = "EXPIRED"
	StockAlertExpiringSoon StockAlertType = "EXPIRING_SOON"
)

// StockAlertSeverity orders alerts for display.
type StockAlertSeverity string

const (
	SeverityCritical StockAlertSeverity = "CRITICAL"
	SeverityHigh     StockAlertSeverity = "HIGH"
	SeverityMedium   StockAlertSeverity = "MEDIUM"
	SeverityLow      StockAlertSeverity = "LOW"
)

// Rank returns 0 for the most severe level.
func (s StockAlertSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}
