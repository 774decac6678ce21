package geography

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	germany = Country{ID: "de", Code: "DE", Name: "Germany", GDPRStatus: StatusEU}
	usa     = Country{ID: "us", Code: "US", Name: "United States", GDPRStatus: StatusThirdCountry}
	india   = Country{ID: "in", Code: "IN", Name: "India", GDPRStatus: StatusThirdCountry}
	swiss   = Country{ID: "ch", Code: "CH", Name: "Switzerland", GDPRStatus: StatusAdequate}
)

func TestDeriveSkipsHomeCountry(t *testing.T) {
	rows := []Row{
		{LocationID: "l1", Country: germany},
		{LocationID: "l2", Country: usa, Mechanism: &Mechanism{ID: "scc", Code: "SCC"}},
	}
	got := Derive(germany.ID, rows)
	require.Len(t, got, 1)
	require.Equal(t, "US", got[0].Country.Code)
	require.Equal(t, []string{"l2"}, got[0].Locations)
	require.False(t, got[0].MissingMechanism)
}

func TestDeriveGroupsAndFlagsMissingMechanism(t *testing.T) {
	scc := &Mechanism{ID: "scc", Code: "SCC"}
	rows := []Row{
		{LocationID: "l1", Country: usa, Mechanism: scc},
		{LocationID: "l2", Country: usa, Mechanism: scc},
		{LocationID: "l3", Country: usa},
		{LocationID: "l4", Country: india, Mechanism: &Mechanism{ID: "bcr", Code: "BCR"}},
		{LocationID: "l5", Country: swiss},
	}
	got := Derive(germany.ID, rows)
	require.Len(t, got, 3)
	require.Equal(t, []string{"CH", "IN", "US"}, []string{got[0].Country.Code, got[1].Country.Code, got[2].Country.Code})

	us := got[2]
	require.Equal(t, []string{"l1", "l2", "l3"}, us.Locations)
	require.Len(t, us.Mechanisms, 1)
	require.True(t, us.MissingMechanism)

	require.True(t, got[0].MissingMechanism)
	require.Empty(t, got[0].Mechanisms)
}

func TestDeriveEmpty(t *testing.T) {
	got := Derive(germany.ID, nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestRequiresMechanism(t *testing.T) {
	require.True(t, RequiresMechanism(germany.ID, usa))
	require.False(t, RequiresMechanism(germany.ID, swiss))
	require.False(t, RequiresMechanism(usa.ID, usa))
	require.True(t, RequiresMechanism("", usa))
	require.False(t, RequiresMechanism("", germany))
}
