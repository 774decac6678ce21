package organizations

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/dal"
)

const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusArchived  = "ARCHIVED"
)

type Organization struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Slug                  string          `json:"slug"`
	Status                string          `json:"status"`
	HeadquartersCountryID *string         `json:"headquartersCountryId"`
	Metadata              json.RawMessage `json:"metadata"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	DeletedAt             *time.Time      `json:"deletedAt,omitempty"`
}

type CreateInput struct {
	Name                  string         `json:"name" validate:"required,max=200"`
	Slug                  string         `json:"slug" validate:"required,max=100"`
	HeadquartersCountryID *string        `json:"headquartersCountryId" validate:"omitempty,uuid"`
	Metadata              map[string]any `json:"metadata"`
}

type UpdateInput struct {
	Name                  dal.Field[string]         `json:"name"`
	Slug                  dal.Field[string]         `json:"slug"`
	Status                dal.Field[string]         `json:"status"`
	HeadquartersCountryID dal.Field[string]         `json:"headquartersCountryId"`
	Metadata              dal.Field[map[string]any] `json:"metadata"`
}

type Filter struct {
	Status         string
	Search         string
	IncludeDeleted bool
}
