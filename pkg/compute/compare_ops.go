package compute

import (
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

type CompareOp[T any] interface {
	operation(left, right *T) bool
}

type equalOp[T comparable] struct {
}

func (e equalOp[T]) operation(left, right *T) bool {
	return *left == *right
}

type equalStrOp struct {
}

func (e equalStrOp) operation(left, right *common.String) bool {
	return left.Equal(right)
}

type equalDateOp struct {
}

func (e equalDateOp) operation(left, right *common.Date) bool {
	return left.Equal(right)
}

type equalDecimalOp struct {
}

func (e equalDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) == 0
}

type notEqualOp[T comparable] struct {
}

func (e notEqualOp[T]) operation(left, right *T) bool {
	return *left != *right
}

type notEqualStrOp struct {
}

func (e notEqualStrOp) operation(left, right *common.String) bool {
	return !left.Equal(right)
}

type notEqualDateOp struct {
}

func (e notEqualDateOp) operation(left, right *common.Date) bool {
	return !left.Equal(right)
}

type notEqualDecimalOp struct {
}

func (e notEqualDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) != 0
}

type lessOp[T int32 | int64 | uint64 | float64] struct {
}

func (e lessOp[T]) operation(left, right *T) bool {
	return *left < *right
}

type lessStrOp struct {
}

func (e lessStrOp) operation(left, right *common.String) bool {
	return util.PointerMemcmp2(left.Data, right.Data, left.Len, right.Len) < 0
}

type lessDateOp struct {
}

func (e lessDateOp) operation(left, right *common.Date) bool {
	return left.Less(right)
}

type lessDecimalOp struct {
}

func (e lessDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) < 0
}

type lessEqualOp[T int32 | int64 | uint64 | float64] struct {
}

func (e lessEqualOp[T]) operation(left, right *T) bool {
	return *left <= *right
}

type lessEqualStrOp struct {
}

func (e lessEqualStrOp) operation(left, right *common.String) bool {
	return util.PointerMemcmp2(left.Data, right.Data, left.Len, right.Len) <= 0
}

type lessEqualDateOp struct {
}

func (e lessEqualDateOp) operation(left, right *common.Date) bool {
	return left.Less(right) || left.Equal(right)
}

type lessEqualDecimalOp struct {
}

func (e lessEqualDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) <= 0
}

type greaterOp[T int32 | int64 | uint64 | float64] struct {
}

func (e greaterOp[T]) operation(left, right *T) bool {
	return *left > *right
}

type greaterStrOp struct {
}

func (e greaterStrOp) operation(left, right *common.String) bool {
	return util.PointerMemcmp2(left.Data, right.Data, left.Len, right.Len) > 0
}

type greaterDateOp struct {
}

func (e greaterDateOp) operation(left, right *common.Date) bool {
	return right.Less(left)
}

type greaterDecimalOp struct {
}

func (e greaterDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) > 0
}

type greaterEqualOp[T int32 | int64 | uint64 | float64] struct {
}

func (e greaterEqualOp[T]) operation(left, right *T) bool {
	return *left >= *right
}

type greaterEqualStrOp struct {
}

func (e greaterEqualStrOp) operation(left, right *common.String) bool {
	return util.PointerMemcmp2(left.Data, right.Data, left.Len, right.Len) >= 0
}

type greaterEqualDateOp struct {
}

func (e greaterEqualDateOp) operation(left, right *common.Date) bool {
	return !left.Less(right)
}

type greaterEqualDecimalOp struct {
}

func (e greaterEqualDecimalOp) operation(left, right *common.Decimal) bool {
	return left.Decimal.Cmp(right.Decimal) >= 0
}
