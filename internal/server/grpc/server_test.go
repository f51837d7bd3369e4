package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/workorders/internal/testutil"
	"github.com/Additional-Code/workorders/pkg/errorbank"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", errorbank.Validation("bad"), codes.InvalidArgument},
		{"not found", errorbank.NotFound("missing"), codes.NotFound},
		{"reference", errorbank.ReferenceNotFound("missing customer"), codes.NotFound},
		{"transition", errorbank.InvalidTransition("nope"), codes.FailedPrecondition},
		{"unavailable", errorbank.Unavailable("db down"), codes.Unavailable},
		{"foreign", errors.New("boom"), codes.Internal},
		{"status", status.Error(codes.PermissionDenied, "denied"), codes.PermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, status.Code(toStatus(tc.err)))
		})
	}

	assert.NoError(t, toStatus(nil))
}

func TestRegisterHealth(t *testing.T) {
	conns := testutil.NewDB(t)
	logger := testutil.Logger(t)
	lc := fxtest.NewLifecycle(t)
	hs := health.NewServer()

	RegisterHealth(lc, NewServer(logger), hs, conns, logger)
	lc.RequireStart()

	for _, service := range []string{"", ServiceName} {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}

	lc.RequireStop()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
