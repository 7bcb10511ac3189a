// Command segtree 构建一棵配置中给定的线段树并运行一组演示查询。
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyfcoding/segtree/config"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/metrics"
	"github.com/wyfcoding/segtree/rangequery"
	"github.com/wyfcoding/segtree/tracing"
	"github.com/wyfcoding/segtree/xerrors"
)

func main() {
	confPath := flag.String("conf", "configs/segtree.toml", "path to the TOML config file")
	serve := flag.Bool("serve", false, "keep running and expose metrics until interrupted")
	flag.Parse()

	if err := run(*confPath, *serve); err != nil {
		slog.Error("segtree exited with error", "error", err)
		os.Exit(1)
	}
}

func run(confPath string, serve bool) error {
	var conf config.Config
	if err := config.Load(confPath, &conf); err != nil {
		return xerrors.WrapInternal(err, "load config")
	}

	logging.InitFromConfig(logging.Config{
		Service:    "segtree",
		Module:     conf.SegmentTree.Name,
		Level:      conf.Log.Level,
		File:       conf.Log.File,
		MaxSize:    conf.Log.MaxSize,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAge,
		Compress:   conf.Log.Compress,
	})
	config.PrintWithMask(conf)

	shutdown, err := tracing.InitTracer(conf.Tracing)
	if err != nil {
		return xerrors.WrapInternal(err, "init tracer")
	}
	defer func() { _ = shutdown(context.Background()) }()

	m := metrics.NewMetrics("segtree")
	m.RegisterBuildInfo("segtree", conf.Version)
	if conf.Metrics.Enabled {
		stop := m.ExposeHttp(conf.Metrics.Port, conf.Metrics.Path)
		defer stop()
	}

	holder, err := newTreeHolder(conf.SegmentTree, logging.Default(), rangequery.WithMetrics(m))
	if err != nil {
		return xerrors.Wrap(err, xerrors.ErrInternal, "build segment tree")
	}
	config.RegisterReloadHook(holder.onReload)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runDemo(ctx, holder.Current()); err != nil {
		return err
	}

	if serve {
		logging.Info(ctx, "serving metrics, press Ctrl+C to stop")
		<-ctx.Done()
	}
	return nil
}

// runDemo 查询 [1, 3]，把下标 1 更新为 10，再次查询同一区间。
func runDemo(ctx context.Context, svc *rangequery.Service) error {
	defer logging.LogDuration(ctx, "demo", "tree", svc.Name())()

	end := min(3, svc.Len()-1)
	start := min(1, end)

	sum, err := svc.RangeSum(ctx, start, end)
	if err != nil {
		return err
	}
	logging.Info(ctx, "sum of values in given range", "start", start, "end", end, "sum", sum)

	if err := svc.Update(ctx, start, 10); err != nil {
		return err
	}

	sum, err = svc.RangeSum(ctx, start, end)
	if err != nil {
		return err
	}
	logging.Info(ctx, "updated sum of values in given range", "start", start, "end", end, "sum", sum)

	return nil
}
