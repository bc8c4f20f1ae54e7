package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodeByKind(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{Forbidden("nope"), http.StatusForbidden, codes.PermissionDenied},
		{Conflict("clash"), http.StatusConflict, codes.AlreadyExists},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Unprocessable("invalid"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode())
		assert.Equal(t, tc.code, tc.err.GRPCCode())
	}
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("driver failure")
	err := Internal("query failed", WithCause(cause))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "driver failure")
}

func TestWithDetailAccumulates(t *testing.T) {
	err := Unprocessable("invalid status transition",
		WithDetail("from", "pending"),
		WithDetail("to", "ready"),
	)

	details := err.Details()
	require.Len(t, details, 2)
	assert.Equal(t, "pending", details["from"])
	assert.Equal(t, "ready", details["to"])
}

func TestFromPassesThroughAppErrors(t *testing.T) {
	original := Forbidden("not yours")
	assert.Same(t, original, From(original))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	err := From(errors.New("surprise"))
	require.NotNil(t, err)
	assert.Equal(t, KindInternal, err.Kind())
	assert.Contains(t, err.Error(), "surprise")
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
}
