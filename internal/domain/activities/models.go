package activities

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/relations"
)

const (
	StatusDraft    = "DRAFT"
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

var legalBases = map[string]bool{
	"CONSENT":              true,
	"CONTRACT":             true,
	"LEGAL_OBLIGATION":     true,
	"VITAL_INTERESTS":      true,
	"PUBLIC_TASK":          true,
	"LEGITIMATE_INTERESTS": true,
}

type Activity struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Description    *string         `json:"description"`
	Status         string          `json:"status"`
	LegalBasis     *string         `json:"legalBasis"`
	OwnerUnitID    *string         `json:"ownerUnitId"`
	RequiresDPIA   bool            `json:"requiresDpia"`
	NextReviewAt   *time.Time      `json:"nextReviewAt"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Detail is an activity with the ids of everything linked to it.
type Detail struct {
	Activity
	PurposeIDs      []string `json:"purposeIds"`
	DataCategoryIDs []string `json:"dataCategoryIds"`
	DataSubjectIDs  []string `json:"dataSubjectIds"`
	RecipientIDs    []string `json:"recipientIds"`
	AssetIDs        []string `json:"assetIds"`
}

type CreateInput struct {
	Name         string         `json:"name" validate:"required,max=200"`
	Description  *string        `json:"description" validate:"omitempty,max=4000"`
	Status       string         `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE ARCHIVED"`
	LegalBasis   *string        `json:"legalBasis"`
	OwnerUnitID  *string        `json:"ownerUnitId" validate:"omitempty,uuid"`
	RequiresDPIA bool           `json:"requiresDpia"`
	NextReviewAt *time.Time     `json:"nextReviewAt"`
	Metadata     map[string]any `json:"metadata"`

	PurposeIDs      []string `json:"purposeIds"`
	DataCategoryIDs []string `json:"dataCategoryIds"`
	DataSubjectIDs  []string `json:"dataSubjectIds"`
	RecipientIDs    []string `json:"recipientIds"`
	AssetIDs        []string `json:"assetIds"`
}

type UpdateInput struct {
	Name         dal.Field[string]         `json:"name"`
	Description  dal.Field[string]         `json:"description"`
	Status       dal.Field[string]         `json:"status"`
	LegalBasis   dal.Field[string]         `json:"legalBasis"`
	OwnerUnitID  dal.Field[string]         `json:"ownerUnitId"`
	RequiresDPIA dal.Field[bool]           `json:"requiresDpia"`
	NextReviewAt dal.Field[time.Time]      `json:"nextReviewAt"`
	Metadata     dal.Field[map[string]any] `json:"metadata"`
}

type Filter struct {
	Status          string
	RequiresDPIA    *bool
	ReviewDueBefore *time.Time
	OwnerUnitID     string
}

// Relation names a junction hanging off an activity and the field under which
// its changes are recorded.
type Relation struct {
	Junction relations.Junction
	Field    string
}

var (
	Purposes       = Relation{Junction: relations.ActivityPurposes, Field: "purposeIds"}
	DataCategories = Relation{Junction: relations.ActivityDataCategories, Field: "dataCategoryIds"}
	DataSubjects   = Relation{Junction: relations.ActivityDataSubjects, Field: "dataSubjectIds"}
	Recipients     = Relation{Junction: relations.ActivityRecipients, Field: "recipientIds"}
	Assets         = Relation{Junction: relations.ActivityAssets, Field: "assetIds"}
)

// RelationByName resolves the path segment used by the HTTP layer.
func RelationByName(name string) (Relation, bool) {
	switch name {
	case "purposes":
		return Purposes, true
	case "data-categories":
		return DataCategories, true
	case "data-subjects":
		return DataSubjects, true
	case "recipients":
		return Recipients, true
	case "assets":
		return Assets, true
	}
	return Relation{}, false
}
