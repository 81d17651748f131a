package engine

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataAPIKey - ключ агента в метаданных gRPC (заголовки там в нижнем регистре)
const MetadataAPIKey = "x-agent-api-key"

// UnaryAuthInterceptor проверяет API-ключ в метаданных gRPC вызова тем же гейтом, что и HTTP
func UnaryAuthInterceptor(gate Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
		}

		keys := md.Get(MetadataAPIKey)
		if len(keys) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "missing api key")
		}
		if err := gate.Validate(keys[0]); err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "%v", err)
		}

		if ids := md.Get("x-trace-id"); len(ids) > 0 {
			ctx = WithTraceID(ctx, ids[0])
		}
		return handler(ctx, req)
	}
}
