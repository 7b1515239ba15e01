package models

// All lists every persisted model, used by SQLite auto-migration in local
// mode and tests. Postgres schema is owned by goose migrations.
func All() []any {
	return []any{
		&Warehouse{},
		&InventoryItem{},
		&InventoryReservation{},
		&InventoryMovement{},
		&Order{},
		&AdminOrderReview{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
