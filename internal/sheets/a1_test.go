package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetters(t *testing.T) {
	for idx, want := range map[int]string{0: "A", 13: "N", 14: "O", 25: "Z", 26: "AA", 51: "AZ", 52: "BA"} {
		assert.Equal(t, want, ColumnLetter(idx))
		assert.Equal(t, idx, ColumnIndex(want))
	}
	assert.Equal(t, -1, ColumnIndex(""))
	assert.Equal(t, -1, ColumnIndex("A1"))
}

func TestRowRange(t *testing.T) {
	rng, err := RowRange("N:O", 12)
	require.NoError(t, err)
	assert.Equal(t, "N12:O12", rng)

	rng, err = RowRange("a", 1)
	require.NoError(t, err)
	assert.Equal(t, "A1:A1", rng)

	_, err = RowRange("N:9", 1)
	assert.Error(t, err)
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "Registrations!A:O", qualify("Registrations", "A:O"))
	assert.Equal(t, "'Fest 2026'!A1", qualify("Fest 2026", "A1"))
	assert.Equal(t, "'Bob''s'!A1", qualify("Bob's", "A1"))
}
