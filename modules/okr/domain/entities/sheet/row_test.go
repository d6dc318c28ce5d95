package sheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsedRow_GetMatchesAliases(t *testing.T) {
	t.Parallel()

	row := ParsedRow{
		Number: 2,
		Cells: map[string]string{
			"Objective Title": "  Grow Revenue ",
			"progress":        "50",
			"notes":           "",
		},
	}

	require.Equal(t, "Grow Revenue", row.Get("objective_title", "objective"))
	require.Equal(t, "Grow Revenue", row.Get("Objective-Title"))
	require.Equal(t, "50", row.Get("progress"))
	require.Equal(t, "", row.Get("notes"))
	require.Equal(t, "", row.Get("missing"))
	require.False(t, row.IsEmpty())

	require.True(t, ParsedRow{Number: 3, Cells: map[string]string{"a": "  "}}.IsEmpty())
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "grow revenue", NormalizeKey("  Grow Revenue "))
	require.Equal(t, "grow revenue::expand apac", InitiativeKey("Grow Revenue", " Expand APAC"))
}
