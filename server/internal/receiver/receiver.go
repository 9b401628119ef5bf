package receiver

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/store"
)

const (
	ServiceName          = "repowatch.v1.MetricsService"
	SubmitSnapshotMethod = "/" + ServiceName + "/SubmitSnapshot"
)

// MetricsServer is the server API for repowatch.v1.MetricsService.
type MetricsServer interface {
	SubmitSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes repowatch.v1.MetricsService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetricsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitSnapshot", Handler: submitSnapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "repowatch/v1/metrics.proto",
}

func submitSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetricsServer).SubmitSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MetricsServer).SubmitSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Receiver implements MetricsServer.
type Receiver struct {
	engine *alerts.Engine
	store  *store.Store
}

// New creates a Receiver that evaluates snapshots with engine and records
// them in st.
func New(engine *alerts.Engine, st *store.Store) *Receiver {
	return &Receiver{engine: engine, store: st}
}

// Register adds the service to srv.
func (r *Receiver) Register(srv *grpc.Server) {
	srv.RegisterService(&ServiceDesc, r)
}

// SubmitSnapshot is the unary RPC handler called by collectors.
func (r *Receiver) SubmitSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	repo, snap, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}

	created := r.engine.EvaluateMetrics(repo, snap)
	r.store.Put(repo, snap, len(created))

	slog.Debug("receiver: snapshot evaluated",
		"repository", repo,
		"alerts", len(created),
	)

	resp, err := encodeAlerts(created)
	if err != nil {
		slog.Error("receiver: encode response", "repository", repo, "err", err)
		return nil, status.Error(codes.Internal, "encode response")
	}
	return resp, nil
}

func decodeRequest(req *structpb.Struct) (string, *types.Snapshot, error) {
	fields := req.GetFields()
	repo := fields["repository"].GetStringValue()
	if repo == "" {
		return "", nil, status.Error(codes.InvalidArgument, "repository is required")
	}
	m := fields["metrics"].GetStructValue()
	if m == nil {
		return "", nil, status.Error(codes.InvalidArgument, "metrics is required")
	}
	raw, err := protojson.Marshal(m)
	if err != nil {
		return "", nil, status.Errorf(codes.InvalidArgument, "metrics: %v", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return "", nil, status.Errorf(codes.InvalidArgument, "metrics: %v", err)
	}
	return repo, &snap, nil
}

// encodeAlerts goes through JSON so the Struct carries the same field names
// as the REST API.
func encodeAlerts(list []alerts.Alert) (*structpb.Struct, error) {
	if list == nil {
		list = []alerts.Alert{}
	}
	raw, err := json.Marshal(map[string]any{"alerts": list})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
