package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProber asks the server's gRPC health service whether the store is
// serving.
type HealthProber struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

func NewHealthProber(addr string) (*HealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create health client for %s: %w", addr, err)
	}
	return &HealthProber{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

func (p *HealthProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapTransport(ctx, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *HealthProber) Close() error {
	return p.conn.Close()
}

// PingProber probes the HTTP health endpoint of a Client.
type PingProber struct {
	Client *Client
}

func (p PingProber) Probe(ctx context.Context) error {
	return p.Client.Ping(ctx)
}
