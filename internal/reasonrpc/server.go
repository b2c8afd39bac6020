package reasonrpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
)

// recommendServer is the handler type checked by grpc.Server.RegisterService.
type recommendServer interface {
	Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*recommendServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pick27/reasoning/v1/reasoner.proto",
}

func recommendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(recommendServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecommendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(recommendServer).Recommend(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes an assistant.Reasoner over gRPC.
type Server struct {
	reasoner assistant.Reasoner
	logger   *slog.Logger
}

// Register adds the reasoner service and a health service to s.
func Register(s *grpc.Server, reasoner assistant.Reasoner, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.RegisterService(&serviceDesc, &Server{reasoner: reasoner, logger: logger})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
}

// Recommend decodes a ReasonRequest, runs the reasoner and encodes its reply.
func (s *Server) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req domain.ReasonRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, status.Error(codes.InvalidArgument, "message is required")
	}

	reply, err := s.reasoner.Reason(ctx, req)
	if err != nil {
		s.logger.Error("reasoner failed", "error", err)
		return nil, status.Errorf(codes.Internal, "reasoning failed: %v", err)
	}
	out, err := toStruct(reply)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}
