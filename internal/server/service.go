package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sgte/pdf-splitter/internal/async"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/core"
	"github.com/sgte/pdf-splitter/internal/ingest"
	"github.com/sgte/pdf-splitter/internal/utils"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sgte.splitter.v1.SplitterService"

// Splitter is the processing surface the service exposes.
type Splitter interface {
	ProcessPath(ctx context.Context, path string, force bool) (core.Result, error)
	Probe(ctx context.Context) error
}

// Pinger checks the database.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error
}

// SplitterServer is implemented by SplitterService. Requests and responses are
// google.protobuf.Struct documents.
type SplitterServer interface {
	Split(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SplitDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Probe(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type SplitterService struct {
	splitter Splitter
	ingestor ingest.Ingestor
	queue    async.Queue
	db       Pinger
	health   *health.Server
	logger   *slog.Logger
}

type Option func(*SplitterService)

// WithQueue enables asynchronous requests.
func WithQueue(q async.Queue) Option { return func(s *SplitterService) { s.queue = q } }

func WithIngestor(i ingest.Ingestor) Option { return func(s *SplitterService) { s.ingestor = i } }

func WithDatabase(p Pinger) Option { return func(s *SplitterService) { s.db = p } }

// WithHealth lets Probe update the standard health service.
func WithHealth(h *health.Server) Option { return func(s *SplitterService) { s.health = h } }

func NewSplitterService(sp Splitter, logger *slog.Logger, opts ...Option) *SplitterService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SplitterService{splitter: sp, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Split processes one source PDF. Fields: path (required), force, async.
func (s *SplitterService) Split(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	path := strings.TrimSpace(f["path"].GetStringValue())
	if path == "" {
		s.logger.Error("split request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}
	force := f["force"].GetBoolValue()

	if f["async"].GetBoolValue() {
		if s.queue == nil {
			return nil, common.InvalidArgumentError("async processing is not enabled")
		}
		job := async.Job{Path: path, Force: force, TraceID: common.RunIDFromContext(ctx)}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Error("enqueue failed", "path", path, "error", err)
			return nil, common.InternalErrorf("enqueue: %v", err)
		}
		return utils.ToStruct(map[string]any{"path": path, "queued": true})
	}

	s.logger.Info("split request", "path", path, "force", force)
	res, err := s.splitter.ProcessPath(ctx, path, force)
	if err != nil {
		s.logger.Error("split failed", "path", path, "error", err)
		return nil, common.ToStatus(err)
	}

	resp := map[string]any{
		"path":        path,
		"queued":      false,
		"skipped":     res.Skipped,
		"report_path": res.ReportPath,
	}
	if res.Batch != nil {
		resp["batch"] = utils.BatchToMap(res.Batch)
	}
	if !res.Skipped {
		resp["outcome"] = utils.OutcomeToMap(res.Outcome)
	}
	out, err := utils.ToStruct(resp)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// Probe reports whether the OCR engine and the database are usable.
func (s *SplitterService) Probe(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp := map[string]any{"ocr": "ok", "database": "ok"}
	ok := true

	if err := s.splitter.Probe(ctx); err != nil {
		s.logger.Warn("ocr probe failed", "error", err)
		resp["ocr"] = err.Error()
		ok = false
	}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx, 3*time.Second, s.logger); err != nil {
			resp["database"] = err.Error()
			ok = false
		}
	} else {
		resp["database"] = "disabled"
	}
	resp["ok"] = ok

	if s.health != nil {
		st := healthpb.HealthCheckResponse_SERVING
		if !ok {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(ServiceName, st)
	}
	return utils.ToStruct(resp)
}

// Register installs the service on a gRPC server.
func Register(gs *grpc.Server, svc SplitterServer) {
	gs.RegisterService(&SplitterServiceDesc, svc)
}

func _SplitterService_Split_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SplitterServer).Split(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Split"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SplitterServer).Split(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SplitterService_SplitDirectory_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SplitterServer).SplitDirectory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SplitDirectory"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SplitterServer).SplitDirectory(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SplitterService_Probe_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SplitterServer).Probe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Probe"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SplitterServer).Probe(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var SplitterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SplitterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Split", Handler: _SplitterService_Split_Handler},
		{MethodName: "SplitDirectory", Handler: _SplitterService_SplitDirectory_Handler},
		{MethodName: "Probe", Handler: _SplitterService_Probe_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sgte/splitter/v1/splitter.proto",
}

// SplitterClient calls a remote SplitterService.
type SplitterClient struct {
	cc grpc.ClientConnInterface
}

func NewSplitterClient(cc grpc.ClientConnInterface) *SplitterClient {
	return &SplitterClient{cc: cc}
}

func (c *SplitterClient) Split(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Split", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SplitterClient) SplitDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SplitDirectory", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SplitterClient) Probe(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Probe", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
