package changes

import (
	"encoding/json"
	"time"

	"privacyhub/internal/domain/tenancy"
)

// ComponentType tags the kind of entity a change entry refers to. Entries hold
// no foreign key to the component; the registry resolves tags to tables.
type ComponentType string

const (
	Organization        ComponentType = "organization"
	Purpose             ComponentType = "purpose"
	DataCategory        ComponentType = "data_category"
	DataSubjectCategory ComponentType = "data_subject_category"
	Recipient           ComponentType = "recipient"
	DigitalAsset        ComponentType = "digital_asset"
	ProcessingActivity  ComponentType = "processing_activity"
	ProcessingLocation  ComponentType = "processing_location"
	OrgUnit             ComponentType = "org_unit"
	GeneratedDocument   ComponentType = "generated_document"
)

var registry = map[ComponentType][]tenancy.Table{
	Organization:        {tenancy.Organizations},
	Purpose:             {tenancy.Purposes},
	DataCategory:        {tenancy.DataCategories},
	DataSubjectCategory: {tenancy.DataSubjectCategories},
	Recipient:           {tenancy.Recipients},
	DigitalAsset:        {tenancy.DigitalAssets},
	ProcessingActivity:  {tenancy.ProcessingActivities},
	ProcessingLocation:  {tenancy.AssetLocations, tenancy.RecipientLocations},
	OrgUnit:             {tenancy.OrgUnits},
	GeneratedDocument:   {tenancy.GeneratedDocuments},
}

func (c ComponentType) Valid() bool {
	_, ok := registry[c]
	return ok
}

// Tables lists the tables that may hold a component of this type.
func (c ComponentType) Tables() []tenancy.Table { return registry[c] }

func ComponentTypes() []ComponentType {
	return []ComponentType{Organization, Purpose, DataCategory, DataSubjectCategory, Recipient,
		DigitalAsset, ProcessingActivity, ProcessingLocation, OrgUnit, GeneratedDocument}
}

type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

func (k ChangeKind) Valid() bool { return k == Created || k == Updated || k == Deleted }

type Actor struct {
	ID     string
	Reason string
}

type NewEntry struct {
	OrganizationID string
	ComponentType  ComponentType
	ComponentID    string
	ChangeType     ChangeKind
	FieldName      string
	OldValue       any
	NewValue       any
	Actor          Actor
}

type Entry struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	ComponentType  ComponentType   `json:"componentType"`
	ComponentID    string          `json:"componentId"`
	ChangeType     ChangeKind      `json:"changeType"`
	FieldName      *string         `json:"fieldName"`
	OldValue       json.RawMessage `json:"oldValue"`
	NewValue       json.RawMessage `json:"newValue"`
	ActorID        *string         `json:"actorId"`
	Reason         *string         `json:"reason"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Filter struct {
	ComponentType ComponentType
	ComponentID   string
	ChangeType    ChangeKind
	Since         *time.Time
}

type ImpactType string

const (
	ContentOutdated ImpactType = "CONTENT_OUTDATED"
	ReviewRequired  ImpactType = "REVIEW_REQUIRED"
	Regenerate      ImpactType = "REGENERATE"
)

func (i ImpactType) Valid() bool {
	return i == ContentOutdated || i == ReviewRequired || i == Regenerate
}

type AffectedDocument struct {
	ID                  string     `json:"id"`
	OrganizationID      string     `json:"organizationId"`
	GeneratedDocumentID string     `json:"generatedDocumentId"`
	ChangeLogID         string     `json:"changeLogId"`
	ImpactType          ImpactType `json:"impactType"`
	Description         *string    `json:"description"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// StaleDocument is a final document with impact links recorded after its last update.
type StaleDocument struct {
	DocumentID   string    `json:"documentId"`
	DocumentType string    `json:"documentType"`
	Title        string    `json:"title"`
	Impacts      int       `json:"impacts"`
	LatestImpact time.Time `json:"latestImpact"`
}
