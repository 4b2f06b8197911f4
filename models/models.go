package models

// All lists every model for migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Account{},
		&AccountBadge{},
		&ScanRecord{},
		&LedgerEntry{},
		&Notification{},
	}
}
