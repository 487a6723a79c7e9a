package models

import "time"

// AssetStatus enumerates lifecycle states for a registered asset.
type AssetStatus string

const (
	AssetStatusActive     AssetStatus = "ACTIVE"
	AssetStatusInDisposal AssetStatus = "IN_DISPOSAL_PROCESS"
	AssetStatusDisposed   AssetStatus = "DISPOSED"
)

// Asset represents a registered institutional asset ("bien").
type Asset struct {
	ID          string      `db:"id" json:"id"`
	Code        string      `db:"code" json:"code"`
	Name        string      `db:"name" json:"name"`
	Description *string     `db:"description" json:"description,omitempty"`
	Value       float64     `db:"value" json:"value"`
	Location    *string     `db:"location" json:"location,omitempty"`
	Status      AssetStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// AssetFilter captures filtering criteria for listing assets.
type AssetFilter struct {
	Status   *AssetStatus
	Search   string
	Page     int
	PageSize int
}
