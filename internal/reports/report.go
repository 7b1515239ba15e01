package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
)

const (
	csvDateLayout     = "2006-01-02 15:04"
	unspecifiedRefCSV = "غير محدد"
)

var csvHeader = []string{"رقم الحركة", "النوع", "الكمية", "التاريخ", "المرجع", "الملاحظات"}

var movementTypeLabels = map[enums.MovementType]string{
	enums.MovementTypeIn:       "دخول",
	enums.MovementTypeOut:      "خروج",
	enums.MovementTypeAdjust:   "تعديل",
	enums.MovementTypeTransfer: "تحويل",
}

// TimeWindow is a half-open interval [From, To).
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Summary aggregates a set of movements. NetMovement is TotalIn - TotalOut.
type Summary struct {
	TotalIn     int `json:"total_in"`
	TotalOut    int `json:"total_out"`
	NetMovement int `json:"net_movement"`
	Count       int `json:"count"`
}

// Window resolves a named range ending at now. "today" starts at midnight in
// loc; the other ranges count back from now.
func Window(r enums.ReportRange, now time.Time, loc *time.Location) (TimeWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	var from time.Time
	switch r {
	case enums.ReportRangeToday:
		from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	case enums.ReportRangeWeek:
		from = local.AddDate(0, 0, -7)
	case enums.ReportRangeMonth:
		from = local.AddDate(0, -1, 0)
	case enums.ReportRangeQuarter:
		from = local.AddDate(0, -3, 0)
	default:
		return TimeWindow{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid report range").
			WithDetails(map[string]any{"range": string(r)})
	}
	return TimeWindow{From: from.UTC(), To: now.UTC()}, nil
}

// Summarize totals IN and OUT quantities. ADJUST and TRANSFER rows count
// toward Count only.
func Summarize(movements []models.InventoryMovement) Summary {
	var summary Summary
	for _, m := range movements {
		switch m.MovementType {
		case enums.MovementTypeIn:
			summary.TotalIn += m.Quantity
		case enums.MovementTypeOut:
			summary.TotalOut += m.Quantity
		}
	}
	summary.NetMovement = summary.TotalIn - summary.TotalOut
	summary.Count = len(movements)
	return summary
}

// WriteCSV renders movements as RFC 4180 CSV with Arabic headers and labels.
func WriteCSV(w io.Writer, movements []models.InventoryMovement, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, m := range movements {
		reference := unspecifiedRefCSV
		if m.ReferenceType != nil && *m.ReferenceType != "" {
			reference = string(*m.ReferenceType)
		}
		notes := ""
		if m.Notes != nil {
			notes = *m.Notes
		}
		label, ok := movementTypeLabels[m.MovementType]
		if !ok {
			label = string(m.MovementType)
		}
		record := []string{
			m.MovementNumber,
			label,
			strconv.Itoa(m.Quantity),
			m.CreatedAt.In(loc).Format(csvDateLayout),
			reference,
			notes,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportCSV returns the CSV document as a string.
func ExportCSV(movements []models.InventoryMovement, loc *time.Location) (string, error) {
	var b strings.Builder
	if err := WriteCSV(&b, movements, loc); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ExportFilename names a CSV export generated at now.
func ExportFilename(now time.Time) string {
	return "تقرير_حركات_المخزون_" + now.UTC().Format("2006-01-02") + ".csv"
}
