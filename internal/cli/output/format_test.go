package output

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormatDefaultsToYAML(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, f)
}

func TestParseFormatRejectsUnknown(t *testing.T) {
	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestParseFormatAcceptsJSON(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
}
