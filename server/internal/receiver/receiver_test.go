package receiver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/auth"
	"github.com/repowatch/repowatch/server/internal/config"
	"github.com/repowatch/repowatch/server/internal/receiver"
	"github.com/repowatch/repowatch/server/internal/store"
)

type fixture struct {
	conn   *grpc.ClientConn
	engine *alerts.Engine
	store  *store.Store
}

// startServer starts a gRPC server with the given interceptor on a random
// loopback port.
func startServer(t *testing.T, interceptor grpc.UnaryServerInterceptor) fixture {
	t.Helper()

	engine, err := alerts.New(config.Default().Alerts, nil)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	st := store.New(5 * time.Minute)
	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	receiver.New(engine, st).Register(srv)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.Dial(lis.Addr().String(), //nolint:staticcheck
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return fixture{conn: conn, engine: engine, store: st}
}

func allowAll(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	return handler(ctx, req)
}

func failing() *types.Snapshot {
	return &types.Snapshot{
		Workflows: &types.Workflows{SuccessRate: types.Float(65)},
		Issues:    &types.Issues{Stale: types.Float(3)},
	}
}

func TestSubmit_CreatesAlertAndStoresSnapshot(t *testing.T) {
	f := startServer(t, allowAll)
	c := receiver.NewClient(f.conn, "x-api-key", "")

	got, err := c.Submit(context.Background(), "org/repo", failing())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "workflow_success_rate", got[0].Type)
	assert.Equal(t, alerts.SeverityCritical, got[0].Severity)
	assert.Equal(t, 65.0, got[0].CurrentValue)
	assert.Equal(t, time.Hour, got[0].EvaluationPeriod)
	assert.NotEmpty(t, got[0].ID)

	e, ok := f.store.Get("org/repo")
	require.True(t, ok)
	assert.Equal(t, 1, e.Alerts)
	require.NotNil(t, e.Snapshot.Issues)
	assert.Equal(t, 3.0, *e.Snapshot.Issues.Stale)

	assert.Len(t, f.engine.Active(), 1)
}

func TestSubmit_RepeatReturnsNothingNew(t *testing.T) {
	f := startServer(t, allowAll)
	c := receiver.NewClient(f.conn, "x-api-key", "")
	ctx := context.Background()

	_, err := c.Submit(ctx, "org/repo", failing())
	require.NoError(t, err)
	got, err := c.Submit(ctx, "org/repo", failing())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, f.store.Count())
}

func TestSubmit_RecoveryResolves(t *testing.T) {
	f := startServer(t, allowAll)
	c := receiver.NewClient(f.conn, "x-api-key", "")
	ctx := context.Background()

	_, err := c.Submit(ctx, "org/repo", failing())
	require.NoError(t, err)
	_, err = c.Submit(ctx, "org/repo", &types.Snapshot{
		Workflows: &types.Workflows{SuccessRate: types.Float(99)},
	})
	require.NoError(t, err)
	assert.Empty(t, f.engine.Active())
}

func TestSubmit_InvalidArgument(t *testing.T) {
	f := startServer(t, allowAll)
	ctx := context.Background()

	cases := map[string]map[string]any{
		"missing repository": {"metrics": map[string]any{}},
		"missing metrics":    {"repository": "org/repo"},
		"metrics not object": {"repository": "org/repo", "metrics": "nope"},
		"bad field type": {"repository": "org/repo", "metrics": map[string]any{
			"workflows": map[string]any{"successRate": "high"},
		}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := structpb.NewStruct(body)
			require.NoError(t, err)
			err = f.conn.Invoke(ctx, receiver.SubmitSnapshotMethod, req, new(structpb.Struct))
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.True(t, receiver.IsPermanent(err))
		})
	}
	assert.Zero(t, f.store.Count())
}

func TestSubmit_APIKey(t *testing.T) {
	f := startServer(t, auth.APIKeyInterceptor("apikey", "x-api-key", "testkey"))
	ctx := context.Background()

	_, err := receiver.NewClient(f.conn, "x-api-key", "testkey").Submit(ctx, "org/repo", failing())
	require.NoError(t, err)

	for name, key := range map[string]string{"wrong": "nope", "missing": ""} {
		t.Run(name, func(t *testing.T) {
			_, err := receiver.NewClient(f.conn, "x-api-key", key).Submit(ctx, "org/other", failing())
			require.Error(t, err)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
	assert.Equal(t, 1, f.store.Count())
}

func TestSubmitRetry_PermanentErrorIsNotRetried(t *testing.T) {
	f := startServer(t, auth.APIKeyInterceptor("apikey", "x-api-key", "testkey"))
	c := receiver.NewClient(f.conn, "x-api-key", "wrong")

	start := time.Now()
	_, err := c.SubmitRetry(context.Background(), "org/repo", failing(), 5)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
