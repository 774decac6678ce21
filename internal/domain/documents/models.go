package documents

import (
	"encoding/json"
	"time"
)

const (
	StatusDraft      = "draft"
	StatusFinal      = "final"
	StatusSuperseded = "superseded"
	StatusArchived   = "archived"
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusDraft:      {StatusFinal, StatusArchived},
	StatusFinal:      {StatusSuperseded, StatusArchived},
	StatusSuperseded: {StatusArchived},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Document struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	DocumentType   string          `json:"documentType"`
	Title          string          `json:"title"`
	Version        int             `json:"version"`
	Status         string          `json:"status"`
	ActivityID     *string         `json:"activityId"`
	AssessmentID   *string         `json:"assessmentId"`
	DataSnapshot   json.RawMessage `json:"dataSnapshot"`
	DocxURL        *string         `json:"docxUrl"`
	PdfURL         *string         `json:"pdfUrl"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type CreateInput struct {
	DocumentType string         `json:"documentType" validate:"required,oneof=ROPA DPIA TIA PRIVACY_NOTICE DPA"`
	Title        string         `json:"title" validate:"required,max=300"`
	ActivityID   *string        `json:"activityId" validate:"omitempty,uuid"`
	AssessmentID *string        `json:"assessmentId" validate:"omitempty,uuid"`
	DataSnapshot map[string]any `json:"dataSnapshot"`
	DocxURL      *string        `json:"docxUrl" validate:"omitempty,url"`
	PdfURL       *string        `json:"pdfUrl" validate:"omitempty,url"`
}

type Filter struct {
	DocumentType string
	Status       string
	ActivityID   string
}
