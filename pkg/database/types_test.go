package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArray_ValueThenScan(t *testing.T) {
	original := StringArray{"u1", "u2"}

	value, err := original.Value()
	require.NoError(t, err)
	assert.Equal(t, `["u1","u2"]`, value)

	var scanned StringArray
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestStringArray_ScanPostgresLiteral(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan([]byte(`{u1,u2}`)))
	assert.Equal(t, StringArray{"u1", "u2"}, a)

	require.NoError(t, a.Scan([]byte(`{"with,comma","plain"}`)))
	assert.Equal(t, StringArray{"with,comma", "plain"}, a)

	require.NoError(t, a.Scan([]byte(`{}`)))
	assert.Empty(t, a)
}

func TestStringArray_ScanNil(t *testing.T) {
	a := StringArray{"stale"}
	require.NoError(t, a.Scan(nil))
	assert.Nil(t, []string(a))

	var empty StringArray
	value, err := empty.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}
