package reports

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

func TestWindow(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	cases := []struct {
		name string
		rng  enums.ReportRange
		loc  *time.Location
		from time.Time
	}{
		{"today utc", enums.ReportRangeToday, time.UTC, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"today local midnight", enums.ReportRangeToday, riyadh, time.Date(2026, 3, 9, 21, 0, 0, 0, time.UTC)},
		{"week", enums.ReportRangeWeek, time.UTC, fixedNow.AddDate(0, 0, -7)},
		{"month", enums.ReportRangeMonth, time.UTC, time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)},
		{"quarter", enums.ReportRangeQuarter, time.UTC, time.Date(2025, 12, 10, 12, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window, err := Window(tc.rng, fixedNow, tc.loc)
			if err != nil {
				t.Fatalf("window: %v", err)
			}
			if !window.From.Equal(tc.from) {
				t.Fatalf("expected from %s, got %s", tc.from, window.From)
			}
			if !window.To.Equal(fixedNow) {
				t.Fatalf("expected to %s, got %s", fixedNow, window.To)
			}
		})
	}
}

func TestWindowRejectsUnknownRange(t *testing.T) {
	if _, err := Window("year", fixedNow, time.UTC); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	rows := []models.InventoryMovement{
		{MovementType: enums.MovementTypeIn, Quantity: 50},
		{MovementType: enums.MovementTypeOut, Quantity: 12},
		{MovementType: enums.MovementTypeAdjust, Quantity: -3},
		{MovementType: enums.MovementTypeTransfer, Quantity: 5},
		{MovementType: enums.MovementTypeIn, Quantity: 7},
		{MovementType: enums.MovementTypeOut, Quantity: 1},
	}
	summary := Summarize(rows)
	if summary.TotalIn != 57 || summary.TotalOut != 13 || summary.Count != 6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.NetMovement != summary.TotalIn-summary.TotalOut {
		t.Fatalf("net movement %d does not equal in-out", summary.NetMovement)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if summary := Summarize(nil); summary != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestExportCSV(t *testing.T) {
	ref := enums.ReferenceOrder
	notes := `packed, "fragile"`
	rows := []models.InventoryMovement{
		{
			MovementNumber: "MOV-20260310-0A1B2C3D",
			MovementType:   enums.MovementTypeOut,
			Quantity:       4,
			ReferenceType:  &ref,
			Notes:          &notes,
			CreatedAt:      time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC),
		},
		{
			MovementNumber: "MOV-20260310-FFFF0000",
			MovementType:   enums.MovementTypeAdjust,
			Quantity:       -2,
			CreatedAt:      time.Date(2026, 3, 10, 22, 45, 0, 0, time.UTC),
		},
	}

	body, err := ExportCSV(rows, time.FixedZone("AST", 3*60*60))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "رقم الحركة,النوع,الكمية,التاريخ,المرجع,الملاحظات" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	want := [][]string{
		{"MOV-20260310-0A1B2C3D", "خروج", "4", "2026-03-10 12:05", "ORDER", `packed, "fragile"`},
		{"MOV-20260310-FFFF0000", "تعديل", "-2", "2026-03-11 01:45", "غير محدد", ""},
	}
	for i, w := range want {
		if strings.Join(records[i+1], "|") != strings.Join(w, "|") {
			t.Fatalf("row %d: expected %v, got %v", i, w, records[i+1])
		}
	}
}

func TestExportCSVHeaderOnly(t *testing.T) {
	body, err := ExportCSV(nil, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if body != "رقم الحركة,النوع,الكمية,التاريخ,المرجع,الملاحظات\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestExportFilename(t *testing.T) {
	if got := ExportFilename(fixedNow); got != "تقرير_حركات_المخزون_2026-03-10.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}
