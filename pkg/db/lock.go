package db

import "gorm.io/gorm"

// ForUpdate returns the row-lock suffix for raw queries. SQLite has no
// FOR UPDATE; its writer lock serializes transactions anyway.
func ForUpdate(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
