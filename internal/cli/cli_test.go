package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelections(t *testing.T) {
	pairs, err := parseSelections([]string{"l1:U101", "l1:U102", "l2:U103"})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, selectionPair{learnerKey: "l1", unitKey: "U101"}, pairs[0])
	assert.Equal(t, selectionPair{learnerKey: "l2", unitKey: "U103"}, pairs[2])

	_, err = parseSelections([]string{"missing-separator"})
	require.Error(t, err)

	_, err = parseSelections([]string{":U101"})
	require.Error(t, err)

	_, err = parseSelections([]string{"l1:"})
	require.Error(t, err)
}

func TestCheckServerCompat(t *testing.T) {
	ok, _ := checkServerCompat("0.1.0")
	assert.True(t, ok)

	ok, _ = checkServerCompat("v1.2.3")
	assert.True(t, ok)

	ok, note := checkServerCompat("0.0.1")
	assert.False(t, ok)
	assert.NotEmpty(t, note)

	ok, _ = checkServerCompat("")
	assert.False(t, ok)

	ok, _ = checkServerCompat("not-a-version")
	assert.False(t, ok)
}
