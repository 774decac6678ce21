package relations

import (
	"github.com/jackc/pgx/v5"

	"privacyhub/internal/domain/tenancy"
)

// Junction describes a many-to-many table between an anchor entity and a
// right-hand entity. Both sides and the junction row carry organization_id.
type Junction struct {
	Name         string
	Table        string
	AnchorColumn string
	RightColumn  string
	Anchor       tenancy.Table
	Right        tenancy.Table
}

var (
	ActivityPurposes = Junction{
		Name: "activity_purposes", Table: "activity_purposes",
		AnchorColumn: "activity_id", RightColumn: "purpose_id",
		Anchor: tenancy.ProcessingActivities, Right: tenancy.Purposes,
	}
	ActivityDataCategories = Junction{
		Name: "activity_data_categories", Table: "activity_data_categories",
		AnchorColumn: "activity_id", RightColumn: "data_category_id",
		Anchor: tenancy.ProcessingActivities, Right: tenancy.DataCategories,
	}
	ActivityDataSubjects = Junction{
		Name: "activity_data_subjects", Table: "activity_data_subjects",
		AnchorColumn: "activity_id", RightColumn: "data_subject_category_id",
		Anchor: tenancy.ProcessingActivities, Right: tenancy.DataSubjectCategories,
	}
	ActivityRecipients = Junction{
		Name: "activity_recipients", Table: "activity_recipients",
		AnchorColumn: "activity_id", RightColumn: "recipient_id",
		Anchor: tenancy.ProcessingActivities, Right: tenancy.Recipients,
	}
	ActivityAssets = Junction{
		Name: "activity_assets", Table: "activity_assets",
		AnchorColumn: "activity_id", RightColumn: "asset_id",
		Anchor: tenancy.ProcessingActivities, Right: tenancy.DigitalAssets,
	}
	AssetDataCategories = Junction{
		Name: "asset_data_categories", Table: "asset_data_categories",
		AnchorColumn: "asset_id", RightColumn: "data_category_id",
		Anchor: tenancy.DigitalAssets, Right: tenancy.DataCategories,
	}
)

// All lists every registered junction.
func All() []Junction {
	return []Junction{ActivityPurposes, ActivityDataCategories, ActivityDataSubjects, ActivityRecipients, ActivityAssets, AssetDataCategories}
}

func (j Junction) table() string { return pgx.Identifier{j.Table}.Sanitize() }
func (j Junction) anchor() string { return pgx.Identifier{j.AnchorColumn}.Sanitize() }
func (j Junction) right() string { return pgx.Identifier{j.RightColumn}.Sanitize() }
