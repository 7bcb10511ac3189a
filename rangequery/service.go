// Package rangequery 在线段树之上提供带上下文的区间求和服务，统一接入日志、指标与链路追踪。
package rangequery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wyfcoding/segtree/algorithm"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/metrics"
	"github.com/wyfcoding/segtree/tracing"
	"github.com/wyfcoding/segtree/xerrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opRangeSum = "range_sum"
	opUpdate   = "update"
	opGet      = "get"
	opTotal    = "total"
	opSnapshot = "snapshot"

	resultOK           = "ok"
	resultInvalidInput = "invalid_input"
	resultError        = "error"
)

// Service 包装一棵命名的线段树。
type Service struct {
	name    string
	tree    *algorithm.SegmentTree
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option 配置 Service。
type Option func(*Service)

// WithLogger 指定日志记录器，默认使用 logging.Default()。
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics 指定指标采集器，为 nil 时不采集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer 指定 Tracer，默认使用全局 TracerProvider。
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New 基于 values 构建名为 name 的区间求和服务。
func New(name string, values []int64, opts ...Option) (*Service, error) {
	s := &Service{name: name}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.tracer == nil {
		s.tracer = tracing.Tracer()
	}

	tree, err := algorithm.NewSegmentTree(values)
	if err != nil {
		s.logger.Error("failed to build segment tree", "tree", name, "error", err)
		return nil, err
	}
	s.tree = tree

	if s.metrics != nil {
		s.metrics.TreeSize.WithLabelValues(name).Set(float64(tree.Len()))
	}
	s.logger.Info("segment tree built", "tree", name, "size", tree.Len(), "total", tree.Total())

	return s, nil
}

// Name 返回服务名。
func (s *Service) Name() string {
	return s.name
}

// Len 返回数组长度。
func (s *Service) Len() int {
	return s.tree.Len()
}

// RangeSum 返回闭区间 [start, end] 的和。
func (s *Service) RangeSum(ctx context.Context, start, end int) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "segtree.RangeSum", trace.WithAttributes(
		attribute.String("segtree.name", s.name),
		attribute.Int("segtree.start", start),
		attribute.Int("segtree.end", end),
	))
	defer span.End()

	begin := time.Now()
	sum, err := s.tree.RangeSum(start, end)
	s.finish(ctx, span, opRangeSum, begin, err, "start", start, "end", end, "sum", sum)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("segtree.sum", sum))
	return sum, nil
}

// Update 将下标 index 处的元素设置为 value。
func (s *Service) Update(ctx context.Context, index int, value int64) error {
	ctx, span := s.tracer.Start(ctx, "segtree.Update", trace.WithAttributes(
		attribute.String("segtree.name", s.name),
		attribute.Int("segtree.index", index),
		attribute.Int64("segtree.value", value),
	))
	defer span.End()

	begin := time.Now()
	err := s.tree.Update(index, value)
	s.finish(ctx, span, opUpdate, begin, err, "index", index, "value", value)

	return err
}

// Get 返回下标 index 处的当前值。
func (s *Service) Get(ctx context.Context, index int) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "segtree.Get", trace.WithAttributes(
		attribute.String("segtree.name", s.name),
		attribute.Int("segtree.index", index),
	))
	defer span.End()

	begin := time.Now()
	v, err := s.tree.Get(index)
	s.finish(ctx, span, opGet, begin, err, "index", index)

	return v, err
}

// Total 返回整个数组的和。
func (s *Service) Total(ctx context.Context) int64 {
	ctx, span := s.tracer.Start(ctx, "segtree.Total", trace.WithAttributes(
		attribute.String("segtree.name", s.name),
	))
	defer span.End()

	begin := time.Now()
	total := s.tree.Total()
	s.finish(ctx, span, opTotal, begin, nil, "total", total)
	span.SetAttributes(attribute.Int64("segtree.sum", total))

	return total
}

// Snapshot 返回当前数组的拷贝。
func (s *Service) Snapshot(ctx context.Context) []int64 {
	ctx, span := s.tracer.Start(ctx, "segtree.Snapshot", trace.WithAttributes(
		attribute.String("segtree.name", s.name),
	))
	defer span.End()

	begin := time.Now()
	values := s.tree.Values()
	s.finish(ctx, span, opSnapshot, begin, nil, "size", len(values))

	return values
}

// finish 统一记录一次操作的日志、指标与 span 状态。
// 对 *xerrors.Error 额外附加其映射出的 gRPC/HTTP 状态码，便于上层协议直接透传。
func (s *Service) finish(ctx context.Context, span trace.Span, op string, begin time.Time, err error, args ...any) {
	elapsed := time.Since(begin)
	result := resultOK

	if err == nil {
		s.logger.DebugContext(ctx, "segment tree operation", append([]any{"tree", s.name, "op", op, "duration", elapsed}, args...)...)
		s.metrics.ObserveOperation(s.name, op, result, elapsed)
		return
	}

	attrs := []any{"tree", s.name, "op", op, "error", err}
	if xe, ok := xerrors.FromError(err); ok {
		st := xe.ToGRPCStatus()
		attrs = append(attrs,
			slog.Any("context", xe.Context),
			slog.String("grpc_code", st.Code().String()),
			slog.Int("http_status", xe.HTTPStatus()),
		)
		span.SetAttributes(
			attribute.String("rpc.grpc.status_code", st.Code().String()),
			attribute.Int("http.response.status_code", xe.HTTPStatus()),
		)
	}
	span.RecordError(err)

	if errors.Is(err, algorithm.ErrInvalidInput) {
		result = resultInvalidInput
		s.logger.WarnContext(ctx, "invalid input", attrs...)
		span.SetStatus(codes.Error, "invalid input")
	} else {
		result = resultError
		s.logger.ErrorContext(ctx, "segment tree operation failed", attrs...)
		span.SetStatus(codes.Error, err.Error())
	}

	s.metrics.ObserveOperation(s.name, op, result, elapsed)
}
