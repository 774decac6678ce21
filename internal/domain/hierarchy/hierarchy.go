package hierarchy

import (
	"github.com/go-faster/errors"

	"privacyhub/internal/domain/dal"
	"privacyhub/internal/domain/tenancy"
)

type Type string

const (
	ProcessorChain Type = "PROCESSOR_CHAIN"
	Organizational Type = "ORGANIZATIONAL"
)

// MaxDepth is the deepest allowed distance from a root. Roots are depth 0.
func (t Type) MaxDepth() int {
	switch t {
	case ProcessorChain:
		return 4
	case Organizational:
		return 10
	default:
		return 0
	}
}

func (t Type) Valid() bool { return t == ProcessorChain || t == Organizational }

var (
	ErrCycle         = errors.Wrap(dal.ErrValidation, "hierarchy cycle")
	ErrDepthExceeded = errors.Wrap(dal.ErrValidation, "hierarchy depth exceeded")
	ErrTypeMismatch  = errors.Wrap(dal.ErrValidation, "hierarchy type mismatch")
)

// Spec binds the checker to one self-referencing table. TypeColumn holds the
// hierarchy discriminator; when empty every row has FixedType.
type Spec struct {
	Table      tenancy.Table
	TypeColumn string
	FixedType  Type
}

var (
	Recipients = Spec{Table: tenancy.Recipients, TypeColumn: "hierarchy_type"}
	OrgUnits   = Spec{Table: tenancy.OrgUnits, FixedType: Organizational}
)

type Node struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId"`
	Name     string  `json:"name"`
	Type     Type    `json:"hierarchyType"`
	Depth    int     `json:"depth"`
}

// Rule selects nodes for the advisory scans. Column conditions are fixed SQL
// fragments, never user input.
type Rule struct {
	Column string
	Values []string
	// RequiredLink names the column that must be non-null for unlinked scans.
	RequiredLink string
}

var (
	OrphanedSubProcessors = Rule{Column: "recipient_type", Values: []string{"SUB_PROCESSOR"}}
	UnlinkedExternal      = Rule{
		Column:       "recipient_type",
		Values:       []string{"PROCESSOR", "SUB_PROCESSOR", "JOINT_CONTROLLER", "SEPARATE_CONTROLLER"},
		RequiredLink: "external_organization_id",
	}
)
