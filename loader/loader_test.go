package loader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/errors"
)

func testFactory(metadata map[string]any) (component.Component, error) {
	return component.New(component.Options{}), nil
}

func TestRegisterAndLoad(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register("Repeat", testFactory))

	instance, err := registry.Load("Repeat", nil)
	require.NoError(t, err)
	assert.NotNil(t, instance)
}

func TestRegisterValidation(t *testing.T) {
	registry := NewRegistry(nil)
	require.Error(t, registry.Register("", testFactory))
	require.Error(t, registry.Register("Repeat", nil))
}

func TestDuplicateRegistration(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register("Repeat", testFactory))
	err := registry.Register("Repeat", testFactory)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFactoryExists)
}

func TestLoadUnknown(t *testing.T) {
	registry := NewRegistry(nil)
	_, err := registry.Load("Ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrComponentUnknown)
}

func TestLoadFactoryError(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register("Broken", func(metadata map[string]any) (component.Component, error) {
		return nil, fmt.Errorf("out of parts")
	}))
	_, err := registry.Load("Broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of parts")
}

func TestNames(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register("Sink", testFactory))
	require.NoError(t, registry.Register("Repeat", testFactory))
	assert.Equal(t, []string{"Repeat", "Sink"}, registry.Names())
}
