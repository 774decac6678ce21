package recipients

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/domain/hierarchy"
)

const (
	TypeProcessor          = "PROCESSOR"
	TypeSubProcessor       = "SUB_PROCESSOR"
	TypeJointController    = "JOINT_CONTROLLER"
	TypeSeparateController = "SEPARATE_CONTROLLER"
	TypeInternalDepartment = "INTERNAL_DEPARTMENT"
	TypePublicAuthority    = "PUBLIC_AUTHORITY"
)

var recipientTypes = map[string]bool{
	TypeProcessor: true, TypeSubProcessor: true, TypeJointController: true,
	TypeSeparateController: true, TypeInternalDepartment: true, TypePublicAuthority: true,
}

type Recipient struct {
	ID                     string          `json:"id"`
	OrganizationID         string          `json:"organizationId"`
	Name                   string          `json:"name"`
	RecipientType          string          `json:"recipientType"`
	HierarchyType          hierarchy.Type  `json:"hierarchyType"`
	ParentID               *string         `json:"parentId"`
	ExternalOrganizationID *string         `json:"externalOrganizationId"`
	Description            *string         `json:"description"`
	IsActive               bool            `json:"isActive"`
	Metadata               json.RawMessage `json:"metadata"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

type Detail struct {
	Recipient
	Locations []geography.Location `json:"locations"`
}

type CreateInput struct {
	Name                   string                  `json:"name" validate:"required,max=200"`
	RecipientType          string                  `json:"recipientType" validate:"required,oneof=PROCESSOR SUB_PROCESSOR JOINT_CONTROLLER SEPARATE_CONTROLLER INTERNAL_DEPARTMENT PUBLIC_AUTHORITY"`
	HierarchyType          hierarchy.Type          `json:"hierarchyType" validate:"omitempty,oneof=PROCESSOR_CHAIN ORGANIZATIONAL"`
	ParentID               *string                 `json:"parentId" validate:"omitempty,uuid"`
	ExternalOrganizationID *string                 `json:"externalOrganizationId" validate:"omitempty,uuid"`
	Description            *string                 `json:"description" validate:"omitempty,max=4000"`
	Metadata               map[string]any          `json:"metadata"`
	Locations              []geography.NewLocation `json:"locations"`
}

type UpdateInput struct {
	Name                   dal.Field[string]         `json:"name"`
	RecipientType          dal.Field[string]         `json:"recipientType"`
	HierarchyType          dal.Field[hierarchy.Type] `json:"hierarchyType"`
	ParentID               dal.Field[string]         `json:"parentId"`
	ExternalOrganizationID dal.Field[string]         `json:"externalOrganizationId"`
	Description            dal.Field[string]         `json:"description"`
	IsActive               dal.Field[bool]           `json:"isActive"`
	Metadata               dal.Field[map[string]any] `json:"metadata"`
}

type Filter struct {
	RecipientType string
	HierarchyType hierarchy.Type
	ParentID      string
	RootsOnly     bool
	IsActive      *bool
}
