package types

import cbigquery "cloud.google.com/go/bigquery"

// InventoryEventSchema is the inventory_events table layout matching
// InventoryEventRow. The table is partitioned by day on occurred_at.
func InventoryEventSchema() cbigquery.Schema {
	nullableString := func(name string) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: cbigquery.StringFieldType}
	}
	nullableInt := func(name string) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: cbigquery.IntegerFieldType}
	}
	return cbigquery.Schema{
		{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
		{Name: "aggregate_type", Type: cbigquery.StringFieldType, Required: true},
		{Name: "aggregate_id", Type: cbigquery.StringFieldType, Required: true},
		{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
		nullableString("inventory_item_id"),
		nullableString("warehouse_id"),
		nullableString("reservation_id"),
		nullableString("movement_id"),
		nullableString("order_id"),
		nullableString("review_id"),
		nullableString("movement_type"),
		nullableInt("quantity"),
		nullableInt("on_hand_after"),
		nullableInt("reserved_after"),
		nullableInt("available_after"),
		nullableString("status"),
		nullableString("severity"),
		{Name: "payload", Type: cbigquery.JSONFieldType},
	}
}
