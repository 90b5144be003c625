package writer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAliasIDOfRecognizesConfiguredAliases(t *testing.T) {
	idOf, err := AliasIDOf("uid", "pk", "nodeId")
	require.NoError(t, err)

	id, ok := idOf(map[string]any{"uid": "42", "name": "Ada"}, "Author")
	require.True(t, ok)
	require.Equal(t, "Author:42", id)
}

func TestAliasIDOfFallsBackToDefaultFields(t *testing.T) {
	idOf, err := AliasIDOf("uid")
	require.NoError(t, err)

	id, ok := idOf(map[string]any{"id": "7"}, "Book")
	require.True(t, ok)
	require.Equal(t, "Book:7", id)
}

func TestAliasIDOfRejectsPartialKeyMatches(t *testing.T) {
	idOf, err := AliasIDOf("uid")
	require.NoError(t, err)

	_, ok := idOf(map[string]any{"uidHistory": "should-not-match"}, "Book")
	require.False(t, ok)
}

func TestAliasIDOfRequiresTypename(t *testing.T) {
	idOf, err := AliasIDOf("uid")
	require.NoError(t, err)

	_, ok := idOf(map[string]any{"uid": "1"}, "")
	require.False(t, ok)
}
