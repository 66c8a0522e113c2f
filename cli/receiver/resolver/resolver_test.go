package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/cli/receiver/store/memory"
)

func TestResolveExactMatch(t *testing.T) {
	s := memory.New()
	s.AddVehicle("eqw1054")

	r := New(s, false)

	v, err := r.Resolve(context.Background(), "eqw1054")
	require.NoError(t, err)
	assert.Equal(t, "eqw1054", v.DeviceID)

	// Raw wire refs are normalized before lookup.
	v, err = r.Resolve(context.Background(), "B-EQW1054\x00\x00")
	require.NoError(t, err)
	assert.Equal(t, "eqw1054", v.DeviceID)
}

func TestResolveUnknownDevice(t *testing.T) {
	s := memory.New()
	s.AddVehicle("eqw1054")

	r := New(s, false)

	_, err := r.Resolve(context.Background(), "nope999")
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = r.Resolve(context.Background(), "\x00\x00")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestResolveSubstringDisabledByDefault(t *testing.T) {
	s := memory.New()
	s.AddVehicle("eqw1054")

	r := New(s, false)

	// A truncated ref does not resolve unless the compatibility mode is on.
	_, err := r.Resolve(context.Background(), "qw105")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestResolveSubstringCompatibility(t *testing.T) {
	s := memory.New()
	s.AddVehicle("eqw1054")
	s.AddVehicle("eqe2152")

	r := New(s, true)

	// Truncated ref contained in exactly one known id.
	v, err := r.Resolve(context.Background(), "qw105")
	require.NoError(t, err)
	assert.Equal(t, "eqw1054", v.DeviceID)

	// Over-long ref containing a known id.
	v, err = r.Resolve(context.Background(), "xxeqe2152yy")
	require.NoError(t, err)
	assert.Equal(t, "eqe2152", v.DeviceID)
}

func TestResolveSubstringAmbiguityFailsLoudly(t *testing.T) {
	s := memory.New()
	s.AddVehicle("eqw1054")
	s.AddVehicle("eqw1054b")

	r := New(s, true)

	_, err := r.Resolve(context.Background(), "qw1054")
	assert.ErrorIs(t, err, ErrAmbiguousDevice)
}
