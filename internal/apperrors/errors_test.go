package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindTooLarge, http.StatusRequestEntityTooLarge},
		{KindUnprocessable, http.StatusUnprocessableEntity},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindNotImplemented, http.StatusNotImplemented},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestKindOf_WalksChain(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("Dataset not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, errors.Is(err, NotFound("")))
	assert.False(t, errors.Is(err, Forbidden("")))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(KindInternal, "Failed to save dataset", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to save dataset: db down", err.Error())
}

func TestSanitize(t *testing.T) {
	msg := Sanitize("open /var/lib/app/uploads/x.csv failed with key sk-abcDEF123")
	assert.Equal(t, "open [PATH] failed with key [API_KEY]", msg)

	long := Sanitize(strings.Repeat("a", 250))
	assert.Len(t, long, 203)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Dataset not found", PublicMessage(NotFound("Dataset not found")))
	assert.Equal(t, "An unexpected error occurred: read [PATH] denied",
		PublicMessage(errors.New("read /etc/secret: denied")))
}
