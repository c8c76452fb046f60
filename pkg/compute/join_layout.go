package compute

import (
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

// RowLayout describes one serialized hash table row:
//
//	null bitmap | (heap size) | key columns | build columns | hash | seq
//
// All slots are fixed width. Varchar columns store a String header in
// the row and the bytes in the heap region of the owning block.
type RowLayout struct {
	_types          []common.LType
	_flagWidth      int
	_dataWidth      int
	_rowWidth       int
	_heapSizeOffset int
	_offsets        []int
	_allConst       bool
}

func NewRowLayout(types []common.LType) *RowLayout {
	layout := &RowLayout{
		_types:    common.CopyLTypes(types...),
		_allConst: true,
	}

	alignWidth := func() {
		layout._rowWidth = util.AlignValue8(layout._rowWidth)
	}

	layout._flagWidth = util.SizeInBytes(len(types))
	layout._rowWidth = layout._flagWidth
	alignWidth()

	for _, lType := range types {
		pTyp := lType.GetInternalType()
		if !pTyp.IsConstant() {
			layout._allConst = false
		}
	}

	if !layout._allConst {
		layout._heapSizeOffset = layout._rowWidth
		layout._rowWidth += common.Int64Size
		alignWidth()
	}

	for _, lType := range types {
		layout._offsets = append(layout._offsets, layout._rowWidth)
		pTyp := lType.GetInternalType()
		if pTyp.IsConstant() || pTyp == common.VARCHAR {
			layout._rowWidth += pTyp.Size()
		} else {
			panic("usp")
		}
	}
	alignWidth()

	return layout
}

func (layout *RowLayout) CoumnCount() int {
	return len(layout._types)
}

func (layout *RowLayout) Types() []common.LType {
	return common.CopyLTypes(layout._types...)
}

func (layout *RowLayout) Width() int {
	return layout._rowWidth
}

func (layout *RowLayout) Offsets() []int {
	return layout._offsets
}

func (layout *RowLayout) AllConst() bool {
	return layout._allConst
}

func (layout *RowLayout) HeapSizeOffset() int {
	return layout._heapSizeOffset
}
