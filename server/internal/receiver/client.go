package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
)

const (
	backoffInitial    = 500 * time.Millisecond
	backoffMax        = 30 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Client submits snapshots to a MetricsService.
type Client struct {
	conn   *grpc.ClientConn
	header string
	key    string
}

// Dial opens a connection to endpoint. When key is non-empty it is sent in
// the header metadata on every call.
func Dial(ctx context.Context, endpoint, header, key string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, endpoint, //nolint:staticcheck // DialContext kept for grpc 1.62
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("receiver: dial %s: %w", endpoint, err)
	}
	return NewClient(conn, header, key), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn, header, key string) *Client {
	return &Client{conn: conn, header: header, key: key}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Submit sends one snapshot and returns the alerts it created or changed.
func (c *Client) Submit(ctx context.Context, repository string, snap *types.Snapshot) ([]alerts.Alert, error) {
	req, err := encodeRequest(repository, snap)
	if err != nil {
		return nil, fmt.Errorf("receiver: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if c.key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, c.header, c.key)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, SubmitSnapshotMethod, req, resp); err != nil {
		return nil, err
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("receiver: decode response: %w", err)
	}
	var out struct {
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("receiver: decode response: %w", err)
	}
	return out.Alerts, nil
}

// SubmitRetry calls Submit up to attempts times, backing off between
// transient failures. Permanent errors are returned immediately.
func (c *Client) SubmitRetry(ctx context.Context, repository string, snap *types.Snapshot, attempts int) ([]alerts.Alert, error) {
	bo := newBackoff()
	var err error
	for i := 0; i < attempts; i++ {
		var out []alerts.Alert
		out, err = c.Submit(ctx, repository, snap)
		if err == nil {
			return out, nil
		}
		if IsPermanent(err) || i == attempts-1 {
			break
		}
		wait := bo.next()
		slog.Warn("receiver: submit failed, will retry",
			"repository", repository,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, err
}

// IsPermanent reports whether err means the request itself was rejected and
// retrying it cannot succeed.
func IsPermanent(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

func encodeRequest(repository string, snap *types.Snapshot) (*structpb.Struct, error) {
	if snap == nil {
		snap = &types.Snapshot{}
	}
	raw, err := json.Marshal(map[string]any{"repository": repository, "metrics": snap})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// backoff is truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}
