package orgunits

import (
	"time"

	"privacyhub/internal/domain/dal"
)

type Unit struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	ParentID       *string   `json:"parentId"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
}

type UpdateInput struct {
	Name        dal.Field[string] `json:"name"`
	Description dal.Field[string] `json:"description"`
	ParentID    dal.Field[string] `json:"parentId"`
}

type Filter struct {
	ParentID  string
	RootsOnly bool
}
