package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqualCrossVariant(t *testing.T) {
	assert.False(t, NewInteger(1).Equal(NewString("1")))
	assert.False(t, NewInteger(1).Equal(Null))
	assert.True(t, Null.Equal(Null))
	assert.True(t, NewInteger(5).Equal(NewInteger(5)))
}

func TestValueLessCrossVariantIsFalse(t *testing.T) {
	assert.False(t, NewInteger(1).Less(NewFloat(2)))
	assert.False(t, Null.Less(NewInteger(1)))
	assert.True(t, NewInteger(1).Less(NewInteger(2)))
}

func TestValueMatchesType(t *testing.T) {
	assert.True(t, Null.MatchesType(TypeInteger))
	assert.True(t, NewInteger(1).MatchesType(TypeInteger))
	assert.False(t, NewInteger(1).MatchesType(TypeString))
}

func TestDateTimeTruncatesToSeconds(t *testing.T) {
	t1 := NewDateTime(time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC))
	t2 := NewDateTime(time.Date(2026, 1, 1, 0, 0, 0, 999, time.UTC))
	assert.True(t, t1.Equal(t2))
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	v := NewUUID(id)
	got, ok := v.UUID()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestCanonicalBytesDistinguishesIntFromFloat(t *testing.T) {
	a := NewInteger(3).canonicalBytes(nil)
	b := NewFloat(3).canonicalBytes(nil)
	assert.NotEqual(t, a, b)
}

func TestNumeric(t *testing.T) {
	f, ok := NewInteger(4).Numeric()
	require.True(t, ok)
	assert.Equal(t, 4.0, f)

	_, ok = NewString("x").Numeric()
	assert.False(t, ok)
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType(" Integer ")
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, dt)

	_, err = ParseDataType("nonsense")
	assert.Error(t, err)
}
