package models

import "time"

// CustodyRecord links an asset to the person currently responsible for it.
// Exactly one record per asset is active (released_at IS NULL) at a time.
type CustodyRecord struct {
	ID             string     `db:"id" json:"id"`
	AssetID        string     `db:"asset_id" json:"asset_id"`
	HolderName     string     `db:"holder_name" json:"holder_name"`
	SupervisorName string     `db:"supervisor_name" json:"supervisor_name"`
	AssignedAt     time.Time  `db:"assigned_at" json:"assigned_at"`
	ReleasedAt     *time.Time `db:"released_at" json:"released_at,omitempty"`
}
