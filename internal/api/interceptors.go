package api

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"roombook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// requestIDHeader is shared with the HTTP surface so one id follows a booking
// across both transports.
const requestIDHeader = "x-request-id"

const healthMethodPrefix = "/grpc.health.v1.Health/"

// rpcName strips the service path from a full method name, leaving e.g. "Confirm".
func rpcName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}

// logRPCs stores a per-call logger in the context and writes one line per
// reservation RPC. Health checks only log at debug level.
func logRPCs(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incomingRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

		callLog := base.With().Str("request_id", requestID).Str("rpc", rpcName(info.FullMethod)).Logger()
		ctx = callLog.WithContext(ctx)

		started := time.Now()
		resp, err := handler(ctx, req)
		st := status.Convert(err)
		metrics.IncGRPC(info.FullMethod, st.Code().String())

		var ev *zerolog.Event
		switch {
		case strings.HasPrefix(info.FullMethod, healthMethodPrefix):
			ev = callLog.Debug()
		case st.Code() == codes.OK:
			ev = callLog.Info()
		case st.Code() == codes.Internal || st.Code() == codes.DataLoss || st.Code() == codes.Unavailable:
			ev = callLog.Error().Str("detail", st.Message())
		default:
			ev = callLog.Warn().Str("detail", st.Message())
		}
		ev.Str("caller", callerHost(ctx)).
			Str("status", st.Code().String()).
			Dur("elapsed", time.Since(started)).
			Msg("Reservation RPC served")

		return resp, err
	}
}

// recoverRPCs converts a handler panic into codes.Internal. It logs through
// the per-call logger, so it runs inside logRPCs.
func recoverRPCs() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(ctx).Error().
					Interface("panic", r).
					Str("rpc", rpcName(info.FullMethod)).
					Bytes("stack", debug.Stack()).
					Msg("Reservation RPC panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func callerHost(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return remoteHost(p.Addr.String())
	}
	return clientKeyUnknown
}

// incomingRequestID reuses the caller's id when one was sent.
func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if id := first(md.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
