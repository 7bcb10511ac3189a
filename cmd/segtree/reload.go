package main

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wyfcoding/segtree/config"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/rangequery"
)

// treeHolder 持有当前生效的区间求和服务，配置热更新时按需重建。
type treeHolder struct {
	svc    atomic.Pointer[rangequery.Service]
	logger *logging.Logger
	opts   []rangequery.Option

	mu      sync.Mutex
	applied config.SegmentTreeConfig
}

func newTreeHolder(conf config.SegmentTreeConfig, logger *logging.Logger, opts ...rangequery.Option) (*treeHolder, error) {
	h := &treeHolder{logger: logger, opts: opts}
	svc, err := rangequery.New(conf.Name, conf.Values, h.options()...)
	if err != nil {
		return nil, err
	}
	h.svc.Store(svc)
	h.applied = config.SegmentTreeConfig{Name: conf.Name, Values: slices.Clone(conf.Values)}
	return h, nil
}

func (h *treeHolder) options() []rangequery.Option {
	return append(slices.Clone(h.opts), rangequery.WithLogger(h.logger))
}

// Current 返回当前服务。
func (h *treeHolder) Current() *rangequery.Service {
	return h.svc.Load()
}

// onReload 在线段树名称或初始数组变化时重建服务；重建失败保留旧服务。
// 其余配置项变化不影响已有的树，运行期的更新也得以保留。
func (h *treeHolder) onReload(c *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := c.SegmentTree
	if next.Name == h.applied.Name && slices.Equal(next.Values, h.applied.Values) {
		h.logger.Info("config reloaded, segment tree unchanged", "tree", next.Name, "log_level", c.Log.Level)
		return
	}

	svc, err := rangequery.New(next.Name, next.Values, h.options()...)
	if err != nil {
		h.logger.Error("rebuild segment tree on reload failed, keeping previous tree",
			"tree", h.applied.Name, "error", err)
		return
	}

	h.svc.Store(svc)
	h.applied = config.SegmentTreeConfig{Name: next.Name, Values: slices.Clone(next.Values)}
	h.logger.Info("segment tree rebuilt from reloaded config", "tree", next.Name, "size", svc.Len())
}
