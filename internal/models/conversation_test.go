package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDisplayNameExplicitWins(t *testing.T) {
	name := "Project alpha"
	got := DeriveDisplayName(&name, []string{"Bea", "Carla"}, "Ana")
	assert.Equal(t, "Project alpha", got)
}

func TestDeriveDisplayNameEmptyStringIsUnset(t *testing.T) {
	empty := ""
	got := DeriveDisplayName(&empty, []string{"Bea"}, "Ana")
	assert.Equal(t, "Bea", got)
}

func TestDeriveDisplayNameFromOthers(t *testing.T) {
	assert.Equal(t, "Bea", DeriveDisplayName(nil, []string{"Bea"}, "Ana"))
	assert.Equal(t, "Bea, Carla", DeriveDisplayName(nil, []string{"Bea", "Carla"}, "Ana"))
}

func TestDeriveDisplayNameSamplesFirstTwoOthers(t *testing.T) {
	got := DeriveDisplayName(nil, []string{"Bea", "Carla", "Dani"}, "Ana")
	assert.Equal(t, "Bea, Carla and more…", got)
}

func TestDeriveDisplayNameCreatorFallback(t *testing.T) {
	assert.Equal(t, "Ana", DeriveDisplayName(nil, nil, "Ana"))
}
