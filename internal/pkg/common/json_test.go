package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringListJSONArray(t *testing.T) {
	out, err := ParseStringList(`["Nuts", "Dairy"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"nuts", "dairy"}, out)
}

func TestParseStringListPythonLiteral(t *testing.T) {
	out, err := ParseStringList(`['nuts', 'dairy']`)
	require.NoError(t, err)
	assert.Equal(t, []string{"nuts", "dairy"}, out)
}

func TestParseStringListCommaSeparated(t *testing.T) {
	out, err := ParseStringList("nuts, Dairy ,gluten")
	require.NoError(t, err)
	assert.Equal(t, []string{"nuts", "dairy", "gluten"}, out)
}

func TestParseStringListEmptyVariants(t *testing.T) {
	for _, raw := range []string{"", "  ", "[]", "None", "none", "null", "NULL"} {
		out, err := ParseStringList(raw)
		require.NoError(t, err, "raw=%q", raw)
		assert.Empty(t, out, "raw=%q", raw)
	}
}

func TestParseStringListDropsBlankElements(t *testing.T) {
	out, err := ParseStringList("nuts,, ,dairy")
	require.NoError(t, err)
	assert.Equal(t, []string{"nuts", "dairy"}, out)
}

func TestParseStringListMalformed(t *testing.T) {
	_, err := ParseStringList(`["nuts"`)
	assert.Error(t, err)

	_, err = ParseStringList(`[nuts, dairy]`)
	assert.Error(t, err)
}

func TestStringSliceToString(t *testing.T) {
	assert.Equal(t, "", StringSliceToString(nil))
	assert.Equal(t, "nuts,dairy", StringSliceToString([]string{"nuts", "dairy"}))
}
