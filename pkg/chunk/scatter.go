package chunk

import (
	"unsafe"

	"github.com/govalues/decimal"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

// ScatterOp writes a single value into a row at a fixed offset. Varchar
// payloads go to the row heap, the row itself keeps the pointer.
type ScatterOp[T any] interface {
	NullValue() T
	Store(src T, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer)
}

type BoolScatterOp struct {
}

func (scatter BoolScatterOp) NullValue() bool {
	return false
}

func (scatter BoolScatterOp) Store(src bool, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[bool](src, util.PointerAdd(rowLoc, offsetInRow))
}

type Int32ScatterOp struct {
}

func (scatter Int32ScatterOp) NullValue() int32 {
	return 0
}

func (scatter Int32ScatterOp) Store(src int32, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[int32](src, util.PointerAdd(rowLoc, offsetInRow))
}

type Int64ScatterOp struct {
}

func (scatter Int64ScatterOp) NullValue() int64 {
	return 0
}

func (scatter Int64ScatterOp) Store(src int64, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[int64](src, util.PointerAdd(rowLoc, offsetInRow))
}

type Uint64ScatterOp struct {
}

func (scatter Uint64ScatterOp) NullValue() uint64 {
	return 0
}

func (scatter Uint64ScatterOp) Store(src uint64, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[uint64](src, util.PointerAdd(rowLoc, offsetInRow))
}

type Float64ScatterOp struct {
}

func (scatter Float64ScatterOp) NullValue() float64 {
	return 0
}

func (scatter Float64ScatterOp) Store(src float64, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[float64](src, util.PointerAdd(rowLoc, offsetInRow))
}

type StringScatterOp struct {
}

func (scatter StringScatterOp) NullValue() common.String {
	return common.String{Data: nil}
}

func (scatter StringScatterOp) Store(src common.String, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	if src.Length() == 0 {
		util.Store[common.String](common.String{}, util.PointerAdd(rowLoc, offsetInRow))
		return
	}
	if heapLoc == nil || *heapLoc == nil {
		panic("invalid heap location")
	}
	dst := util.PointerToSlice[byte](*heapLoc, src.Length())
	srcSlice := util.PointerToSlice[byte](src.DataPtr(), src.Length())
	copy(dst, srcSlice)
	newS := common.String{
		Data: *heapLoc,
		Len:  src.Length(),
	}
	util.Store[common.String](newS, util.PointerAdd(rowLoc, offsetInRow))
	*heapLoc = util.PointerAdd(*heapLoc, src.Length())
}

type DecimalScatterOp struct {
}

func (scatter DecimalScatterOp) NullValue() common.Decimal {
	return common.Decimal{Decimal: decimal.Zero}
}

func (scatter DecimalScatterOp) Store(src common.Decimal, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[common.Decimal](src, util.PointerAdd(rowLoc, offsetInRow))
}

type DateScatterOp struct {
}

func (scatter DateScatterOp) NullValue() common.Date {
	return common.Date{Year: 1970, Month: 1, Day: 1}
}

func (scatter DateScatterOp) Store(src common.Date, rowLoc unsafe.Pointer, offsetInRow int, heapLoc *unsafe.Pointer) {
	util.Store[common.Date](src, util.PointerAdd(rowLoc, offsetInRow))
}
