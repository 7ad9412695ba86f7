package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/payload"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/service"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const bookingServiceName = "venueqr.bookings.v1.BookingService"

const (
	methodDecode        = "/" + bookingServiceName + "/Decode"
	methodScan          = "/" + bookingServiceName + "/Scan"
	methodListByDate    = "/" + bookingServiceName + "/ListByDate"
	methodGetByCustomer = "/" + bookingServiceName + "/GetByCustomer"
	methodDelete        = "/" + bookingServiceName + "/Delete"
	methodEncode        = "/" + bookingServiceName + "/Encode"
)

// BookingServiceServer is the server API for the booking service. Requests and
// responses are free-form structs so clients need no generated stubs.
type BookingServiceServer interface {
	Decode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListByDate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetByCustomer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Encode(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

type unaryMethod func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: methodHandler(methodDecode, BookingServiceServer.Decode)},
		{MethodName: "Scan", Handler: methodHandler(methodScan, BookingServiceServer.Scan)},
		{MethodName: "ListByDate", Handler: methodHandler(methodListByDate, BookingServiceServer.ListByDate)},
		{MethodName: "GetByCustomer", Handler: methodHandler(methodGetByCustomer, BookingServiceServer.GetByCustomer)},
		{MethodName: "Delete", Handler: methodHandler(methodDelete, BookingServiceServer.Delete)},
		{MethodName: "Encode", Handler: methodHandler(methodEncode, BookingServiceServer.Encode)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "venueqr/bookings/v1/bookings.proto",
}

// BookingService serves the scan service over gRPC.
type BookingService struct {
	svc *service.ScanService
}

func NewBookingService(svc *service.ScanService) *BookingService {
	return &BookingService{svc: svc}
}

func (s *BookingService) Decode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := requiredString(req, "payload")
	if err != nil {
		return nil, err
	}
	rec, err := s.svc.Preview(raw)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"record": rec})
}

func (s *BookingService) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := requiredString(req, "payload")
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Scan(ctx, raw)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

func (s *BookingService) ListByDate(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := requiredString(req, "date")
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"bookings": nonNil(s.svc.ListByDate(date))})
}

func (s *BookingService) GetByCustomer(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	rec, ok := s.svc.FindCustomer(name)
	if !ok {
		return nil, status.Error(codes.NotFound, "booking not found")
	}
	return toStruct(map[string]any{"record": rec})
}

func (s *BookingService) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := recordField(req)
	if err != nil {
		return nil, err
	}
	notice, err := s.svc.Cancel(ctx, rec, service.SourceAPI)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"notice": notice})
}

func (s *BookingService) Encode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := recordField(req)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.Encode(rec)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(out)
}

func grpcError(err error) error {
	var de *payload.DecodeError
	switch {
	case errors.As(err, &de):
		return status.Error(codes.InvalidArgument, de.Reason())
	case errors.Is(err, store.ErrDuplicateBooking):
		return status.Error(codes.AlreadyExists, service.NoticeFor(err).Message)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func requiredString(req *structpb.Struct, field string) (string, error) {
	v, ok := req.GetFields()[field]
	if !ok || strings.TrimSpace(v.GetStringValue()) == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	return v.GetStringValue(), nil
}

func recordField(req *structpb.Struct) (models.Reservation, error) {
	v, ok := req.GetFields()["record"]
	if !ok || v.GetStructValue() == nil {
		return models.Reservation{}, status.Error(codes.InvalidArgument, "record is required")
	}
	data, err := json.Marshal(v.GetStructValue().AsMap())
	if err != nil {
		return models.Reservation{}, status.Error(codes.InvalidArgument, "invalid record")
	}
	var rec models.Reservation
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Reservation{}, status.Error(codes.InvalidArgument, "invalid record")
	}
	return rec, nil
}

// toStruct goes through JSON so responses carry the same field names as the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func nonNil(bookings []models.Reservation) []models.Reservation {
	if bookings == nil {
		return []models.Reservation{}
	}
	return bookings
}
