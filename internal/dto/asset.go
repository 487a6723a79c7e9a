package dto

// CreateAssetRequest registers a new asset.
type CreateAssetRequest struct {
	Code        string  `json:"code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Value       float64 `json:"value" validate:"gte=0"`
	Location    *string `json:"location,omitempty"`
}

// AssignCustodyRequest hands an asset to a new holder.
type AssignCustodyRequest struct {
	HolderName     string `json:"holder_name" validate:"required"`
	SupervisorName string `json:"supervisor_name" validate:"required"`
}

// AssetQuery filters asset listings.
type AssetQuery struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}
