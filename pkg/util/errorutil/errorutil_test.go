package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{name: "validation", err: NewValidationError("bad", nil), code: "VALIDATION_FAILED", status: http.StatusBadRequest},
		{name: "wrapped domain", err: fmt.Errorf("ctx: %w", NewUnauthorized("nope")), code: "UNAUTHORIZED", status: http.StatusUnauthorized},
		{name: "no rows", err: fmt.Errorf("get inspection: %w", pgx.ErrNoRows), code: "NOT_FOUND", status: http.StatusNotFound},
		{name: "forbidden", err: NewForbidden("suspended"), code: "FORBIDDEN", status: http.StatusForbidden},
		{name: "generic", err: errors.New("boom"), code: "INTERNAL_ERROR", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: db down", err.Error())
}
