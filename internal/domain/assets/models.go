package assets

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/geography"
)

type Asset struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	AssetType      string          `json:"assetType"`
	Description    *string         `json:"description"`
	IsActive       bool            `json:"isActive"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Detail struct {
	Asset
	Locations       []geography.Location `json:"locations"`
	DataCategoryIDs []string             `json:"dataCategoryIds"`
}

type CreateInput struct {
	Name            string                  `json:"name" validate:"required,max=200"`
	AssetType       string                  `json:"assetType" validate:"required,oneof=DATABASE APPLICATION CLOUD_SERVICE FILE_STORAGE PHYSICAL OTHER"`
	Description     *string                 `json:"description" validate:"omitempty,max=4000"`
	Metadata        map[string]any          `json:"metadata"`
	Locations       []geography.NewLocation `json:"locations"`
	DataCategoryIDs []string                `json:"dataCategoryIds"`
}

type UpdateInput struct {
	Name        dal.Field[string]         `json:"name"`
	AssetType   dal.Field[string]         `json:"assetType"`
	Description dal.Field[string]         `json:"description"`
	IsActive    dal.Field[bool]           `json:"isActive"`
	Metadata    dal.Field[map[string]any] `json:"metadata"`
}

type Filter struct {
	AssetType string
	IsActive  *bool
}

var assetTypes = map[string]bool{
	"DATABASE": true, "APPLICATION": true, "CLOUD_SERVICE": true,
	"FILE_STORAGE": true, "PHYSICAL": true, "OTHER": true,
}
