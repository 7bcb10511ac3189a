package algorithm

import "github.com/wyfcoding/segtree/xerrors"

var (
	// ErrEmptyData 输入数据为空。
	ErrEmptyData = xerrors.ErrEmptyData
	// ErrInvalidInput 下标越界或区间非法。
	ErrInvalidInput = xerrors.ErrInvalidInput
)

func invalidRange(start, end, n int) error {
	return ErrInvalidInput.Derive("range [%d, %d] is not within [0, %d]", start, end, n-1).
		WithContext("start", start).
		WithContext("end", end).
		WithContext("size", n)
}

func invalidIndex(index, n int) error {
	return ErrInvalidInput.Derive("index %d is out of range [0, %d)", index, n).
		WithContext("index", index).
		WithContext("size", n)
}
