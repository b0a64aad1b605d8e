package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound("meal not found", nil)))
	assert.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("wrapped: %w", BadRequest("bad", nil))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestBodyHidesInternalCause(t *testing.T) {
	err := Internal("failed to save meal", errors.New("disk I/O error at /data/meal-log.db"))
	assert.Equal(t, Body{Error: "failed to save meal"}, BodyOf(err))

	bad := &Error{Status: http.StatusBadRequest, Message: "invalid products", Details: []string{"products[0]: name is required"}}
	assert.Equal(t, "invalid products", BodyOf(bad).Error)
	assert.Equal(t, []string{"products[0]: name is required"}, BodyOf(bad).Details)

	assert.Equal(t, "internal server error", BodyOf(errors.New("raw")).Error)
}

func TestBodyFallsBackToCause(t *testing.T) {
	err := New(http.StatusBadRequest, "", errors.New("userId is required"))
	assert.Equal(t, "userId is required", BodyOf(err).Error)
}
