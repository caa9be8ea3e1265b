package model

// All lists every table for AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&Application{},
		&ReviewRecord{},
		&ReviewerAssignment{},
		&Document{},
		&ScanResult{},
		&ScanJob{},
		&QuarantineRecord{},
		&Event{},
		&KV{},
	}
}
