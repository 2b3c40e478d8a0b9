package collation_test

import (
	"errors"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/pkg/collation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodepoint(t *testing.T) {
	coll, err := collation.Lookup(collation.Codepoint)
	require.NoError(t, err)
	assert.Nil(t, coll)
	assert.Equal(t, -1, collation.Compare(coll)("B", "a"))
}

func TestUCA(t *testing.T) {
	coll, err := collation.Lookup(collation.UCA + "?lang=en")
	require.NoError(t, err)
	require.NotNil(t, coll)
	assert.Equal(t, -1, coll.CompareString("a", "B"))
	primary, err := collation.Lookup(collation.UCA + "?lang=en;strength=primary")
	require.Error(t, err)
	assert.Nil(t, primary)
	primary, err = collation.Lookup(collation.UCA + "?lang=en&strength=primary")
	require.NoError(t, err)
	assert.Equal(t, 0, primary.CompareString("resume", "Résumé"))
}

func TestUnsupported(t *testing.T) {
	_, err := collation.Lookup("http://example.com/collation")
	assert.True(t, errors.Is(err, jsoniq.UnsupportedCollation))
}
