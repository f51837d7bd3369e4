package errorbank_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/Additional-Code/workorders/pkg/errorbank"
)

func TestAppError_StatusCode(t *testing.T) {
	testCases := []struct {
		err      *errorbank.AppError
		httpCode int
		grpcCode codes.Code
	}{
		{errorbank.BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{errorbank.Validation("missing"), http.StatusBadRequest, codes.InvalidArgument},
		{errorbank.Conflict("dup"), http.StatusConflict, codes.AlreadyExists},
		{errorbank.InvalidTransition("no"), http.StatusConflict, codes.FailedPrecondition},
		{errorbank.NotFound("gone"), http.StatusNotFound, codes.NotFound},
		{errorbank.ReferenceNotFound("ref"), http.StatusUnprocessableEntity, codes.NotFound},
		{errorbank.Unprocessable("nope"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{errorbank.Unavailable("down"), http.StatusServiceUnavailable, codes.Unavailable},
		{errorbank.Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tc := range testCases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.httpCode, tc.err.StatusCode())
			assert.Equal(t, tc.grpcCode, tc.err.GRPCCode())
		})
	}
}

func TestAppError_NilReceiver(t *testing.T) {
	var appErr *errorbank.AppError

	assert.Equal(t, "<nil>", appErr.Error())
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
	assert.Nil(t, appErr.Details())
}

func TestAppError_CauseAndDetails(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := errorbank.Unavailable("orders store unavailable",
		errorbank.WithCause(cause),
		errorbank.WithDetail("order_id", int64(7)),
		errorbank.WithDetails(map[string]any{"op": "get"}),
	)

	assert.Equal(t, "orders store unavailable: connection refused", appErr.Error())
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, map[string]any{"order_id": int64(7), "op": "get"}, appErr.Details())
}

func TestNew_DefaultsMessageToKind(t *testing.T) {
	appErr := errorbank.New(errorbank.KindNotFound, "")
	assert.Equal(t, "not_found", appErr.Message())
}

func TestFrom(t *testing.T) {
	t.Run("should return nil for nil", func(t *testing.T) {
		assert.Nil(t, errorbank.From(nil))
	})

	t.Run("should unwrap wrapped AppError", func(t *testing.T) {
		original := errorbank.InvalidTransition("open -> closed")
		wrapped := fmt.Errorf("change status: %w", original)

		got := errorbank.From(wrapped)
		require.NotNil(t, got)
		assert.Same(t, original, got)
	})

	t.Run("should wrap foreign errors as internal", func(t *testing.T) {
		got := errorbank.From(errors.New("boom"))
		require.NotNil(t, got)
		assert.Equal(t, errorbank.KindInternal, got.Kind())
		assert.Equal(t, "internal error", got.Message())
	})
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", errorbank.ReferenceNotFound("customer 9 not found"))

	assert.True(t, errorbank.Is(err, errorbank.KindReferenceNotFound))
	assert.False(t, errorbank.Is(err, errorbank.KindNotFound))
	assert.False(t, errorbank.Is(nil, errorbank.KindInternal))
	assert.Equal(t, errorbank.KindInternal, errorbank.KindOf(errors.New("plain")))
}
