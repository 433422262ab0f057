package storage

import "time"

// InstitutionSummary describes what is stored for one institution.
type InstitutionSummary struct {
	Institution string    `json:"institution"`
	Classes     int       `json:"classes"`
	Grades      int       `json:"grades"`
	SyncedAt    time.Time `json:"synced_at"`
}
