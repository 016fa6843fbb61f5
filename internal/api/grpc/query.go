package grpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/sqlobserver/sqlobserver/internal/console"
	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/schema"
)

// ErrorDomain identifies this service in errdetails.ErrorInfo.
const ErrorDomain = "sqlobserver"

// Console is the query surface the server exposes.
type Console interface {
	Run(ctx context.Context, raw string) (*console.Result, error)
	Tables(ctx context.Context) ([]schema.TableInfo, error)
}

// QueryServer implements QueryServiceServer.
type QueryServer struct {
	console Console
}

// NewQueryServer creates a new gRPC query server.
func NewQueryServer(c Console) *QueryServer {
	return &QueryServer{console: c}
}

// Run executes the query and returns columns, positional rows and stats.
// Rows are lists in column order because Struct fields are unordered.
func (s *QueryServer) Run(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)
	grpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID))

	result, err := s.console.Run(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	columns := make([]interface{}, len(result.Columns))
	for i, c := range result.Columns {
		columns[i] = c
	}
	rows := make([]interface{}, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make([]interface{}, len(result.Columns))
		for i, c := range result.Columns {
			row[i], _ = rec.Get(c)
		}
		rows = append(rows, row)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"columns":           columns,
		"rows":              rows,
		"record_count":      result.RecordCount,
		"execution_time_ms": result.ElapsedMs,
		"request_id":        requestID,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return out, nil
}

// ListTables returns {"tables": [{"name": ..., "fields": [...]}]}.
func (s *QueryServer) ListTables(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	tables, err := s.console.Tables(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]interface{}, 0, len(tables))
	for _, t := range tables {
		fields := make([]interface{}, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f
		}
		list = append(list, map[string]interface{}{"name": t.Name, "fields": fields})
	}

	out, err := structpb.NewStruct(map[string]interface{}{"tables": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode tables: %v", err)
	}
	return out, nil
}

// toStatus maps an error onto a gRPC status carrying an ErrorInfo with the
// error code and string details.
func toStatus(err error) error {
	var oe *oerrors.ObserverError
	if !errors.As(err, &oe) {
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.Internal
	switch oe.Category {
	case oerrors.ErrCategoryQuery:
		code = codes.InvalidArgument
	case oerrors.ErrCategoryFetch:
		code = codes.Unavailable
	case oerrors.ErrCategoryConfig:
		code = codes.FailedPrecondition
	}

	md := make(map[string]string, len(oe.Details)+1)
	md["category"] = string(oe.Category)
	for k, v := range oe.Details {
		switch x := v.(type) {
		case string:
			md[k] = x
		case []string:
			md[k] = strings.Join(x, ",")
		default:
			md[k] = fmt.Sprint(x)
		}
	}

	st := status.New(code, oe.Message)
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   oe.Code,
		Domain:   ErrorDomain,
		Metadata: md,
	})
	if derr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// ErrorCode returns the error code carried by a status error from this
// service, or "" if there is none.
func ErrorCode(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}

// LoggingInterceptor logs each unary call with its status code and duration.
func LoggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("gRPC %s code=%s duration=%s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
	return resp, err
}
