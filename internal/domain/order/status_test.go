package order

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusShipped}:   true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusShipped, StatusDelivered}:   true,
		{StatusShipped, StatusCancelled}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := from == to || allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(StatusPending, StatusConfirmed))

	err := ValidateTransition(StatusDelivered, StatusPending)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusDelivered, te.From)
	assert.Equal(t, StatusPending, te.To)
	assert.Contains(t, err.Error(), "from Delivered to Pending")
}

func TestNewIDGenerator(t *testing.T) {
	gen := NewIDGenerator("NIL", 6)
	for range 200 {
		id := gen()
		require.Regexp(t, `^NIL-[1-9][0-9]{5}$`, id)
		assert.True(t, IsReference("NIL", id))
	}
	assert.False(t, IsReference("NIL", "6650f1c2"))
}

func TestShippingAddressString(t *testing.T) {
	a := ShippingAddress{Address: "12 MG Road", City: "Nilambur", State: "Kerala", PostalCode: "679329"}
	assert.Equal(t, "12 MG Road, Nilambur, Kerala - 679329", a.String())
	assert.Equal(t, "12 MG Road, Nilambur", ShippingAddress{Address: "12 MG Road", City: "Nilambur"}.String())
}
