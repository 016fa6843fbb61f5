package grpc

import (
	"context"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
)

// RemoteResult is a decoded Run response.
type RemoteResult struct {
	Columns         []string
	Rows            [][]interface{}
	RecordCount     int
	ExecutionTimeMs int64
	RequestID       string
}

// Client runs queries against a remote QueryService.
type Client struct {
	conn *grpc.ClientConn
	rpc  *QueryServiceClient
}

// Dial connects to addr without transport security. Extra options are
// appended, so tests can pass a custom dialer.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, rpc: NewQueryServiceClient(conn)}, nil
}

// Run executes query remotely.
func (c *Client) Run(ctx context.Context, query string) (*RemoteResult, error) {
	out, err := c.rpc.Run(ctx, wrapperspb.String(query))
	if err != nil {
		return nil, err
	}
	return DecodeResult(out)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// DecodeResult converts a Run response into a RemoteResult.
func DecodeResult(s *structpb.Struct) (*RemoteResult, error) {
	fields := s.GetFields()
	r := &RemoteResult{
		RecordCount:     int(fields["record_count"].GetNumberValue()),
		ExecutionTimeMs: int64(fields["execution_time_ms"].GetNumberValue()),
		RequestID:       fields["request_id"].GetStringValue(),
	}

	for _, v := range fields["columns"].GetListValue().GetValues() {
		r.Columns = append(r.Columns, v.GetStringValue())
	}
	for i, v := range fields["rows"].GetListValue().GetValues() {
		list := v.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("row %d is not a list", i)
		}
		row := list.AsSlice()
		if len(row) != len(r.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(r.Columns))
		}
		r.Rows = append(r.Rows, row)
	}
	return r, nil
}

// FromStatus turns a status error raised by this service back into an
// ObserverError. Other errors are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		md := info.GetMetadata()
		details := make(map[string]interface{}, len(md))
		for k, v := range md {
			if k != "category" {
				details[k] = v
			}
		}
		oe := oerrors.New(oerrors.ErrorCategory(md["category"]), info.GetReason(), st.Message())
		if len(details) > 0 {
			oe = oe.WithDetails(details)
		}
		return oe
	}
	return err
}
