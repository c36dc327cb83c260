package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *HealthServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start).String()}
	if code != codes.OK {
		s.logger.Warn(ctx, "grpc request failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "grpc request", args...)
	}
	return resp, err
}
