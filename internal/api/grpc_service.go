package api

import (
	"context"
	"encoding/json"
	"fmt"

	"roombook/internal/models"
	"roombook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service carries its messages as google.protobuf.Struct holding the
// same JSON documents the HTTP API uses.
const serviceName = "roombook.reservation.v1.ReservationService"

const (
	methodQuote         = "/" + serviceName + "/Quote"
	methodCheckAndHold  = "/" + serviceName + "/CheckAndHold"
	methodConfirm       = "/" + serviceName + "/Confirm"
	methodListResources = "/" + serviceName + "/ListResources"
)

type ReservationServer interface {
	Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CheckAndHold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListResources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&reservationServiceDesc, srv)
}

var reservationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: unaryHandler(methodQuote, ReservationServer.Quote)},
		{MethodName: "CheckAndHold", Handler: unaryHandler(methodCheckAndHold, ReservationServer.CheckAndHold)},
		{MethodName: "Confirm", Handler: unaryHandler(methodConfirm, ReservationServer.Confirm)},
		{MethodName: "ListResources", Handler: unaryHandler(methodListResources, ReservationServer.ListResources)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roombook/reservation/v1/reservation.proto",
}

type structCall func(ReservationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReservationService adapts the Backend to the gRPC surface.
type ReservationService struct {
	backend Backend
}

func NewReservationService(backend Backend) *ReservationService {
	return &ReservationService{backend: backend}
}

func (s *ReservationService) Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.QuoteRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	quote, err := s.backend.Quote(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(quote)
}

// CheckAndHold reports conflicts in the response body with ok=false rather
// than as an error status.
func (s *ReservationService) CheckAndHold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.HoldRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	result, err := s.backend.CheckAndHold(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(result)
}

func (s *ReservationService) Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.ConfirmRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.HoldID == "" {
		return nil, status.Error(codes.InvalidArgument, "hold_id is required")
	}
	reservation, err := s.backend.Confirm(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(reservation)
}

func (s *ReservationService) ListResources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Refresh bool `json:"refresh"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	resources := s.backend.ListResources(ctx, in.Refresh)
	if resources == nil {
		resources = []*models.Resource{}
	}
	return toStruct(map[string]any{"resources": resources})
}

func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// ReservationClient calls ReservationService over a client connection.
type ReservationClient struct {
	conn grpc.ClientConnInterface
}

func NewReservationClient(conn grpc.ClientConnInterface) *ReservationClient {
	return &ReservationClient{conn: conn}
}

func (c *ReservationClient) Quote(ctx context.Context, req service.QuoteRequest, opts ...grpc.CallOption) (*models.MultiQuote, error) {
	var out models.MultiQuote
	return &out, c.invoke(ctx, methodQuote, req, &out, opts...)
}

func (c *ReservationClient) CheckAndHold(ctx context.Context, req service.HoldRequest, opts ...grpc.CallOption) (*service.HoldResult, error) {
	var out service.HoldResult
	return &out, c.invoke(ctx, methodCheckAndHold, req, &out, opts...)
}

func (c *ReservationClient) Confirm(ctx context.Context, req service.ConfirmRequest, opts ...grpc.CallOption) (*models.Reservation, error) {
	var out models.Reservation
	return &out, c.invoke(ctx, methodConfirm, req, &out, opts...)
}

func (c *ReservationClient) ListResources(ctx context.Context, refresh bool, opts ...grpc.CallOption) ([]*models.Resource, error) {
	var out struct {
		Resources []*models.Resource `json:"resources"`
	}
	err := c.invoke(ctx, methodListResources, map[string]bool{"refresh": refresh}, &out, opts...)
	return out.Resources, err
}

func (c *ReservationClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	raw, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return json.Unmarshal(raw, out)
}
