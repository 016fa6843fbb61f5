package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/sqlobserver/sqlobserver/internal/console"
	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/source"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

func testDataset() types.Dataset {
	return types.Dataset{
		types.NewRecord(
			types.Field{Name: "StudentID", Value: 1.0},
			types.Field{Name: "LastName", Value: "Doe"},
		),
		types.NewRecord(
			types.Field{Name: "StudentID", Value: 2.0},
			types.Field{Name: "LastName", Value: "Roe"},
		),
	}
}

func startServer(t *testing.T, fetcher source.Fetcher) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor))
	RegisterQueryServiceServer(srv, NewQueryServer(console.New(fetcher)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func staticFetcher(ds types.Dataset) source.Fetcher {
	return source.FetcherFunc(func(ctx context.Context) (types.Dataset, error) {
		return ds, nil
	})
}

func TestRun(t *testing.T) {
	client := startServer(t, staticFetcher(testDataset()))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-42")
	result, err := client.Run(ctx, "select LastName, StudentID from students;")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Join(result.Columns, ",") != "StudentID,LastName" {
		t.Errorf("columns = %v", result.Columns)
	}
	if result.RecordCount != 2 || len(result.Rows) != 2 {
		t.Fatalf("record_count=%d rows=%d", result.RecordCount, len(result.Rows))
	}
	if result.Rows[1][0] != 2.0 || result.Rows[1][1] != "Roe" {
		t.Errorf("row 1 = %v", result.Rows[1])
	}
	if result.RequestID != "req-42" {
		t.Errorf("request_id = %q", result.RequestID)
	}
}

func TestRun_ParseFailure(t *testing.T) {
	client := startServer(t, staticFetcher(testDataset()))

	_, err := client.Run(context.Background(), "select * from teachers;")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want InvalidArgument", status.Code(err))
	}
	if ErrorCode(err) != oerrors.CodeUnknownTable {
		t.Errorf("error code = %q, want %s", ErrorCode(err), oerrors.CodeUnknownTable)
	}
}

func TestRun_FetchFailure(t *testing.T) {
	client := startServer(t, source.FetcherFunc(func(ctx context.Context) (types.Dataset, error) {
		return nil, oerrors.FetchFailure("dial", nil)
	}))

	_, err := client.Run(context.Background(), "select * from students;")
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %s, want Unavailable", status.Code(err))
	}
	if ErrorCode(err) != oerrors.CodeFetchFailed {
		t.Errorf("error code = %q", ErrorCode(err))
	}
}

func TestListTables(t *testing.T) {
	client := startServer(t, staticFetcher(testDataset()))

	out, err := client.rpc.ListTables(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	tables := out.GetFields()["tables"].GetListValue().GetValues()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	table := tables[0].GetStructValue().GetFields()
	if table["name"].GetStringValue() != "students" {
		t.Errorf("name = %q", table["name"].GetStringValue())
	}
	if n := len(table["fields"].GetListValue().GetValues()); n != 2 {
		t.Errorf("expected 2 fields, got %d", n)
	}
}

func TestDecodeResult_RejectsRaggedRows(t *testing.T) {
	srv := NewQueryServer(console.New(staticFetcher(testDataset())))
	out, err := srv.Run(context.Background(), wrapperspb.String("select * from students;"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := DecodeResult(out); err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}

	out.GetFields()["columns"].GetListValue().Values = out.GetFields()["columns"].GetListValue().Values[:1]
	if _, err := DecodeResult(out); err == nil {
		t.Error("expected error for rows wider than columns")
	}
}

func TestToStatus_PlainErrors(t *testing.T) {
	if status.Code(toStatus(context.DeadlineExceeded)) != codes.DeadlineExceeded {
		t.Error("deadline should map to DeadlineExceeded")
	}
	if ErrorCode(toStatus(context.Canceled)) != "" {
		t.Error("plain errors carry no error code")
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(toStatus(oerrors.UnknownField("Age", "Major")))
	var oe *oerrors.ObserverError
	if !errors.As(err, &oe) {
		t.Fatalf("expected ObserverError, got %T", err)
	}
	if oe.Code != oerrors.CodeUnknownField || oe.Category != oerrors.ErrCategoryQuery {
		t.Errorf("got %s/%s", oe.Category, oe.Code)
	}
	if oerrors.GetDetail(err, "field") != "Age" {
		t.Errorf("field detail = %q", oerrors.GetDetail(err, "field"))
	}

	plain := status.Error(codes.Unavailable, "down")
	if FromStatus(plain) != plain {
		t.Error("status without ErrorInfo should pass through")
	}
	if FromStatus(nil) != nil {
		t.Error("nil should stay nil")
	}
}
