package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusNotFound, StatusOf(NotFound("gone")))
	assert.Equal(t, StatusUnknown, StatusOf(errors.New("plain")))
	assert.Equal(t, StatusConflict, StatusOf(fmt.Errorf("wrapped: %w", Conflict("busy"))))
}

func TestBaseErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("write failed", WithErr(cause))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestValidationDetailsSurviveJSON(t *testing.T) {
	err := ValidationFailed("invalid input", WithDetails(Detail{Field: "name", Message: "must not be empty"}))

	var base BaseError
	require.True(t, errors.As(err, &base))
	body, ok := base.JSON().(map[string]interface{})
	require.True(t, ok)
	inner, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, StatusValidationFailed, inner["code"])
	assert.Equal(t, []Detail{{Field: "name", Message: "must not be empty"}}, inner["details"])
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusValidationFailed.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, StatusForbidden.HTTPStatus())
	assert.Equal(t, http.StatusConflict, StatusConflict.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, StatusInternal.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, StatusUnknown.HTTPStatus())
}

func TestUserErrorClassification(t *testing.T) {
	assert.True(t, StatusNotFound.IsUserError())
	assert.True(t, StatusConflict.IsUserError())
	assert.False(t, StatusInternal.IsUserError())
	assert.False(t, StatusUnknown.IsUserError())
}
