package geography

import (
	"time"

	"github.com/go-faster/errors"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
)

type LocationKind string

const (
	AssetLocation     LocationKind = "asset"
	RecipientLocation LocationKind = "recipient"
)

func (k LocationKind) Valid() bool { return k == AssetLocation || k == RecipientLocation }

func (k LocationKind) table() tenancy.Table {
	if k == RecipientLocation {
		return tenancy.RecipientLocations
	}
	return tenancy.AssetLocations
}

func (k LocationKind) ownerTable() tenancy.Table {
	if k == RecipientLocation {
		return tenancy.Recipients
	}
	return tenancy.DigitalAssets
}

func (k LocationKind) ownerColumn() string {
	if k == RecipientLocation {
		return "recipient_id"
	}
	return "asset_id"
}

type Role string

const (
	RoleHosting    Role = "HOSTING"
	RoleProcessing Role = "PROCESSING"
	RoleBoth       Role = "BOTH"
)

const (
	StatusEU           = "EU"
	StatusEEA          = "EEA"
	StatusAdequate     = "ADEQUATE"
	StatusThirdCountry = "THIRD_COUNTRY"
)

var (
	ErrMechanismRequired = errors.Wrap(dal.ErrValidation, "transfer mechanism required for third country location")
	ErrHomeCountryUnset  = errors.Wrap(dal.ErrValidation, "organization has no headquarters country")
)

type Country struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	GDPRStatus string `json:"gdprStatus"`
}

type Mechanism struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Location struct {
	ID                  string       `json:"id"`
	OrganizationID      string       `json:"organizationId"`
	Kind                LocationKind `json:"kind"`
	OwnerID             string       `json:"ownerId"`
	Country             Country      `json:"country"`
	Role                Role         `json:"role"`
	PurposeID           *string      `json:"purposeId"`
	TransferMechanismID *string      `json:"transferMechanismId"`
	IsActive            bool         `json:"isActive"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

type LocationInput struct {
	OwnerID             string  `json:"ownerId" validate:"required,uuid"`
	CountryID           string  `json:"countryId" validate:"required,uuid"`
	Role                Role    `json:"role" validate:"required,oneof=HOSTING PROCESSING BOTH"`
	PurposeID           *string `json:"purposeId" validate:"omitempty,uuid"`
	TransferMechanismID *string `json:"transferMechanismId" validate:"omitempty,uuid"`
}

// NewLocation is a location supplied together with a new owner, before the
// owner id is known.
type NewLocation struct {
	CountryID           string  `json:"countryId"`
	Role                Role    `json:"role"`
	PurposeID           *string `json:"purposeId"`
	TransferMechanismID *string `json:"transferMechanismId"`
}

func (n NewLocation) For(ownerID string) LocationInput {
	return LocationInput{
		OwnerID:             ownerID,
		CountryID:           n.CountryID,
		Role:                n.Role,
		PurposeID:           n.PurposeID,
		TransferMechanismID: n.TransferMechanismID,
	}
}

// MoveInput relocates a location to another country. Omitted fields keep the
// values of the location being replaced.
type MoveInput struct {
	CountryID           string  `json:"countryId" validate:"required,uuid"`
	Role                Role    `json:"role" validate:"omitempty,oneof=HOSTING PROCESSING BOTH"`
	TransferMechanismID *string `json:"transferMechanismId" validate:"omitempty,uuid"`
}

type AnchorKind string

const (
	AnchorAsset        AnchorKind = "asset"
	AnchorRecipient    AnchorKind = "recipient"
	AnchorActivity     AnchorKind = "activity"
	AnchorOrganization AnchorKind = "organization"
)

type Anchor struct {
	Kind AnchorKind
	ID   string
}

// Row is one active location joined with its country and mechanism.
type Row struct {
	LocationID string
	Kind       LocationKind
	OwnerID    string
	Country    Country
	Mechanism  *Mechanism
}

type TransferCandidate struct {
	Country          Country     `json:"country"`
	Locations        []string    `json:"locationIds"`
	Mechanisms       []Mechanism `json:"mechanisms"`
	MissingMechanism bool        `json:"missingMechanism"`
}

type Assessment struct {
	HomeCountry Country             `json:"homeCountry"`
	Transfers   []TransferCandidate `json:"transfers"`
}
