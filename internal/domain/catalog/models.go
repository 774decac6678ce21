package catalog

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
)

// Kind selects one of the organization-owned vocabularies.
type Kind struct {
	Name      string
	Table     tenancy.Table
	Component changes.ComponentType
	// Special is true for tables carrying is_special_category.
	Special bool
}

var (
	Purposes              = Kind{Name: "purposes", Table: tenancy.Purposes, Component: changes.Purpose}
	DataCategories        = Kind{Name: "data-categories", Table: tenancy.DataCategories, Component: changes.DataCategory, Special: true}
	DataSubjectCategories = Kind{Name: "data-subjects", Table: tenancy.DataSubjectCategories, Component: changes.DataSubjectCategory}
)

func KindByName(name string) (Kind, bool) {
	for _, k := range []Kind{Purposes, DataCategories, DataSubjectCategories} {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

type Item struct {
	ID                string          `json:"id"`
	OrganizationID    string          `json:"organizationId"`
	Name              string          `json:"name"`
	Description       *string         `json:"description"`
	IsActive          bool            `json:"isActive"`
	IsSpecialCategory bool            `json:"isSpecialCategory"`
	Metadata          json.RawMessage `json:"metadata"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type CreateInput struct {
	Name              string         `json:"name" validate:"required,max=200"`
	Description       *string        `json:"description" validate:"omitempty,max=2000"`
	IsSpecialCategory bool           `json:"isSpecialCategory"`
	Metadata          map[string]any `json:"metadata"`
}

type UpdateInput struct {
	Name              dal.Field[string]         `json:"name"`
	Description       dal.Field[string]         `json:"description"`
	IsActive          dal.Field[bool]           `json:"isActive"`
	IsSpecialCategory dal.Field[bool]           `json:"isSpecialCategory"`
	Metadata          dal.Field[map[string]any] `json:"metadata"`
}

type Filter struct {
	IsActive *bool
	Search   string
}

type Country struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	GDPRStatus string `json:"gdprStatus"`
}

type Mechanism struct {
	ID             string  `json:"id"`
	OrganizationID *string `json:"organizationId"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
}

type MechanismInput struct {
	Code     string `json:"code" validate:"required,max=50"`
	Name     string `json:"name" validate:"required,max=200"`
	Category string `json:"category" validate:"required,oneof=ADEQUACY SAFEGUARD DEROGATION"`
}
