package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `form:"name" validate:"required"`
	Category string `json:"category" validate:"required,category"`
	Image    string `form:"imageUrl" validate:"omitempty,url"`
	Password string `json:"password" validate:"pwd"`
}

func TestDefaultValidatorUsesTagNames(t *testing.T) {
	err := Default().Struct(sample{Category: "Toys", Image: "not a url", Password: "abc"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be one of the listed categories", details["category"])
	assert.Equal(t, "must be a valid URL", details["imageUrl"])
	assert.Equal(t, "must be at least 6 characters", details["password"])
}

func TestDefaultValidatorAcceptsKnownCategory(t *testing.T) {
	err := Default().Struct(sample{Name: "Cough Syrup", Category: "Syrups", Password: "secret1"})
	assert.NoError(t, err)
}

func TestToDetailsFallbacks(t *testing.T) {
	assert.Nil(t, ToDetails(nil))
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("boom")))
}
