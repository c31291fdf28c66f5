package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Invalid("bad input")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("user", 7)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestKindsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading report: %w", NotFound("report", 3))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
}

func TestInternalKeepsKnownKinds(t *testing.T) {
	nf := NotFound("user", 1)
	assert.Same(t, nf, Internal("op", nf))
	assert.Nil(t, Internal("op", nil))

	err := Internal("analyze", errors.New("timeout"))
	var ie *InternalError
	assert.ErrorAs(t, err, &ie)
	assert.Equal(t, "analyze: timeout", err.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	err := Invalid("Invalid health data",
		FieldError{Field: "userId", Message: "is required"},
		FieldError{Field: "healthStatus", Message: "must be one of healthy concerning critical"},
	)
	assert.Equal(t,
		"Invalid health data (userId: is required; healthStatus: must be one of healthy concerning critical)",
		err.Error())
	assert.Equal(t, "user 9 not found", NotFound("user", 9).Error())
	assert.Equal(t, "health data not found", NotFound("health data", nil).Error())
}
