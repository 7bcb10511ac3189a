package algorithm

import (
	"math/bits"
	"sync"
)

// SegmentTree (线段树) 维护一个定长整数数组上的区间和。
// 节点以隐式二叉树的形式存放在一段连续的切片中：根节点下标为 0，
// 节点 i 的左右子节点分别为 2i+1 和 2i+2。
// 单点更新与区间查询的时间复杂度均为 O(log N)。
// 树独占原始数组的一份拷贝，数组只能通过 Update 修改，从而保证两者始终一致。
type SegmentTree struct {
	values []int64      // 原始数组的拷贝。
	tree   []int64      // 线段树节点值，大小为 2*2^h-1，h = ceil(log2(n))。
	n      int          // 原始数组的逻辑大小。
	mu     sync.RWMutex // 读写锁，Update 独占，查询共享。
}

// NewSegmentTree 根据输入数组构建线段树。
// values 会被拷贝，调用方之后对 values 的修改不会影响树。
// 空数组返回同时匹配 ErrEmptyData 与 ErrInvalidInput 的错误。
func NewSegmentTree(values []int64) (*SegmentTree, error) {
	n := len(values)
	if n == 0 {
		return nil, ErrEmptyData.Derive("segment tree requires at least one element").WithCause(ErrInvalidInput)
	}

	st := &SegmentTree{
		values: append([]int64(nil), values...),
		tree:   make([]int64, treeSize(n)),
		n:      n,
	}
	st.build(0, 0, n-1)

	return st, nil
}

// treeSize 返回容纳 n 个叶子所需的节点数 2*2^h-1，h = ceil(log2(n))。
func treeSize(n int) int {
	h := 0
	if n > 1 {
		h = bits.Len(uint(n - 1))
	}
	return 2*(1<<h) - 1
}

// middle 返回区间 [start, end] 的下取整中点。
func middle(start, end int) int {
	return start + (end-start)/2
}

// build 自底向上递归填充节点 node 对应区间 [start, end] 的和。
func (st *SegmentTree) build(node, start, end int) int64 {
	if start == end {
		st.tree[node] = st.values[start]
		return st.tree[node]
	}

	mid := middle(start, end)
	st.tree[node] = st.build(2*node+1, start, mid) + st.build(2*node+2, mid+1, end)

	return st.tree[node]
}

// Len 返回原始数组的长度。
func (st *SegmentTree) Len() int {
	return st.n
}

// RangeSum 返回闭区间 [start, end] 内元素之和。
// 要求 0 <= start <= end < Len()，否则返回 ErrInvalidInput。
func (st *SegmentTree) RangeSum(start, end int) (int64, error) {
	if start < 0 || end >= st.n || start > end {
		return 0, invalidRange(start, end, st.n)
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.query(0, 0, st.n-1, start, end), nil
}

// query 是 RangeSum 的递归辅助函数。
// node 对应区间 [start, end]，[left, right] 为查询区间。
func (st *SegmentTree) query(node, start, end, left, right int) int64 {
	// 情况1: 当前节点区间完全包含在查询区间内，直接返回节点值。
	if left <= start && end <= right {
		return st.tree[node]
	}

	// 情况2: 完全不重叠，返回求和的单位元 0。
	if end < left || start > right {
		return 0
	}

	// 情况3: 部分重叠，递归左右子树。
	mid := middle(start, end)
	return st.query(2*node+1, start, mid, left, right) +
		st.query(2*node+2, mid+1, end, left, right)
}

// Update 将下标 index 处的元素设置为 value，并沿根到叶子的路径修正节点值。
// index 越界时返回 ErrInvalidInput，不做任何修改。
func (st *SegmentTree) Update(index int, value int64) error {
	if index < 0 || index >= st.n {
		return invalidIndex(index, st.n)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	delta := value - st.values[index]
	st.values[index] = value
	st.update(0, 0, st.n-1, index, delta)

	return nil
}

// update 把 delta 累加到所有区间包含 index 的节点上，只访问一条路径。
func (st *SegmentTree) update(node, start, end, index int, delta int64) {
	st.tree[node] += delta
	if start == end {
		return
	}

	mid := middle(start, end)
	if index <= mid {
		st.update(2*node+1, start, mid, index, delta)
	} else {
		st.update(2*node+2, mid+1, end, index, delta)
	}
}

// Get 返回下标 index 处的当前值。
func (st *SegmentTree) Get(index int) (int64, error) {
	if index < 0 || index >= st.n {
		return 0, invalidIndex(index, st.n)
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.values[index], nil
}

// Total 返回整个数组的和，即根节点的值。
func (st *SegmentTree) Total() int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree[0]
}

// Values 返回当前数组的拷贝。
func (st *SegmentTree) Values() []int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return append([]int64(nil), st.values...)
}
