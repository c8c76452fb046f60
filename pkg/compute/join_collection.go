package compute

import (
	"unsafe"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
	"github.com/vexecdb/vexec/pkg/util"
)

type rowBlock struct {
	_ptr   unsafe.Pointer
	_count int
	_cap   int
}

func (block *rowBlock) rowLoc(layout *RowLayout, idx int) unsafe.Pointer {
	return util.PointerAdd(block._ptr, idx*layout.Width())
}

// RowCollection owns the serialized rows of one hash table. Fixed
// width rows live in blocks from the global block allocator, varchar
// payloads in separate heap regions. Nothing is freed before Close.
type RowCollection struct {
	_layout *RowLayout
	_blocks []*rowBlock
	_heaps  []unsafe.Pointer
	_count  int
}

func NewRowCollection(layout *RowLayout) *RowCollection {
	util.AssertFunc(layout.Width() <= storage.GBlockAlloc.BlockSize())
	return &RowCollection{
		_layout: layout,
	}
}

func (rc *RowCollection) Layout() *RowLayout {
	return rc._layout
}

func (rc *RowCollection) Count() int {
	return rc._count
}

func (rc *RowCollection) rowsPerBlock() int {
	return storage.GBlockAlloc.BlockSize() / rc._layout.Width()
}

// allocateRows reserves cnt row slots and fills locs with their
// addresses.
func (rc *RowCollection) allocateRows(cnt int, locs []unsafe.Pointer) {
	util.AssertFunc(cnt <= len(locs))
	filled := 0
	for filled < cnt {
		var block *rowBlock
		if len(rc._blocks) != 0 {
			block = util.Back(rc._blocks)
		}
		if block == nil || block._count == block._cap {
			block = &rowBlock{
				_ptr: storage.GBlockAlloc.Alloc(),
				_cap: rc.rowsPerBlock(),
			}
			rc._blocks = append(rc._blocks, block)
		}
		next := min(cnt-filled, block._cap-block._count)
		for i := 0; i < next; i++ {
			locs[filled+i] = block.rowLoc(rc._layout, block._count+i)
		}
		block._count += next
		filled += next
	}
	rc._count += cnt
}

// Append serializes the selected rows of the source columns. sources
// must have one entry per layout column.
func (rc *RowCollection) Append(
	sources []*chunk.UnifiedFormat,
	sel *chunk.SelectVector,
	cnt int,
) []unsafe.Pointer {
	util.AssertFunc(len(sources) == rc._layout.CoumnCount())
	if cnt == 0 {
		return nil
	}
	rowLocs := make([]unsafe.Pointer, cnt)
	rc.allocateRows(cnt, rowLocs)

	for i := 0; i < cnt; i++ {
		initRowBitmap(rowLocs[i], rc._layout)
	}

	var heapLocs []unsafe.Pointer
	if !rc._layout.AllConst() {
		heapLocs = rc.buildHeap(sources, sel, cnt, rowLocs)
	}

	for colNo := 0; colNo < len(sources); colNo++ {
		rc.scatterColumn(sources[colNo], colNo, sel, cnt, rowLocs, heapLocs)
	}
	return rowLocs
}

func initRowBitmap(rowLoc unsafe.Pointer, layout *RowLayout) {
	flags := util.PointerToSlice[uint8](rowLoc, layout._flagWidth)
	for j := range flags {
		flags[j] = 0xFF
	}
}

// buildHeap sizes and carves one heap region for the appended rows and
// records the per row heap size in the row header.
func (rc *RowCollection) buildHeap(
	sources []*chunk.UnifiedFormat,
	sel *chunk.SelectVector,
	cnt int,
	rowLocs []unsafe.Pointer,
) []unsafe.Pointer {
	heapSizes := make([]uint64, cnt)
	for colNo, lType := range rc._layout._types {
		if lType.GetInternalType() != common.VARCHAR {
			continue
		}
		strSlice := chunk.GetSliceInPhyFormatUnifiedFormat[common.String](sources[colNo])
		for i := 0; i < cnt; i++ {
			idx := sources[colNo].Sel.GetIndex(sel.GetIndex(i))
			if sources[colNo].Mask.RowIsValid(uint64(idx)) {
				heapSizes[i] += uint64(strSlice[idx].Length())
			}
		}
	}
	total := uint64(0)
	for _, sz := range heapSizes {
		total += sz
	}
	heapLocs := make([]unsafe.Pointer, cnt)
	if total != 0 {
		region := util.CMalloc(int(total))
		rc._heaps = append(rc._heaps, region)
		offset := uint64(0)
		for i := 0; i < cnt; i++ {
			heapLocs[i] = util.PointerAdd(region, int(offset))
			offset += heapSizes[i]
		}
	}
	for i := 0; i < cnt; i++ {
		util.Store[uint64](heapSizes[i],
			util.PointerAdd(rowLocs[i], rc._layout.HeapSizeOffset()))
	}
	return heapLocs
}

func (rc *RowCollection) scatterColumn(
	col *chunk.UnifiedFormat,
	colNo int,
	sel *chunk.SelectVector,
	cnt int,
	rowLocs []unsafe.Pointer,
	heapLocs []unsafe.Pointer,
) {
	offset := rc._layout.Offsets()[colNo]
	flagWidth := rc._layout._flagWidth
	switch rc._layout._types[colNo].GetInternalType() {
	case common.BOOL:
		TemplatedScatter[bool](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.BoolScatterOp{})
	case common.INT32:
		TemplatedScatter[int32](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.Int32ScatterOp{})
	case common.INT64:
		TemplatedScatter[int64](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.Int64ScatterOp{})
	case common.UINT64:
		TemplatedScatter[uint64](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.Uint64ScatterOp{})
	case common.DOUBLE:
		TemplatedScatter[float64](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.Float64ScatterOp{})
	case common.DATE:
		TemplatedScatter[common.Date](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.DateScatterOp{})
	case common.DECIMAL:
		TemplatedScatter[common.Decimal](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.DecimalScatterOp{})
	case common.VARCHAR:
		TemplatedScatter[common.String](col, sel, cnt, colNo, offset, flagWidth, rowLocs, heapLocs, chunk.StringScatterOp{})
	default:
		panic("usp")
	}
}

func TemplatedScatter[T any](
	col *chunk.UnifiedFormat,
	sel *chunk.SelectVector,
	cnt int,
	colNo int,
	offsetInRow int,
	flagWidth int,
	rowLocs []unsafe.Pointer,
	heapLocs []unsafe.Pointer,
	sop chunk.ScatterOp[T],
) {
	data := chunk.GetSliceInPhyFormatUnifiedFormat[T](col)
	if col.Mask.AllValid() {
		for i := 0; i < cnt; i++ {
			idx := col.Sel.GetIndex(sel.GetIndex(i))
			sop.Store(data[idx], rowLocs[i], offsetInRow, heapLocPtr(heapLocs, i))
		}
		return
	}
	for i := 0; i < cnt; i++ {
		idx := col.Sel.GetIndex(sel.GetIndex(i))
		if col.Mask.RowIsValid(uint64(idx)) {
			sop.Store(data[idx], rowLocs[i], offsetInRow, heapLocPtr(heapLocs, i))
		} else {
			sop.Store(sop.NullValue(), rowLocs[i], offsetInRow, heapLocPtr(heapLocs, i))
			rowMask := util.Bitmap{
				Bits: util.PointerToSlice[uint8](rowLocs[i], flagWidth),
			}
			rowMask.SetInvalidUnsafe(uint64(colNo))
		}
	}
}

func heapLocPtr(heapLocs []unsafe.Pointer, i int) *unsafe.Pointer {
	if heapLocs == nil {
		return nil
	}
	return &heapLocs[i]
}

// Merge moves every row of other into rc. other is left empty.
func (rc *RowCollection) Merge(other *RowCollection) {
	util.AssertFunc(rc._layout.Width() == other._layout.Width())
	rc._blocks = append(rc._blocks, other._blocks...)
	rc._heaps = append(rc._heaps, other._heaps...)
	rc._count += other._count
	other._blocks = nil
	other._heaps = nil
	other._count = 0
}

func (rc *RowCollection) Close() {
	for _, block := range rc._blocks {
		storage.GBlockAlloc.Free(block._ptr)
	}
	for _, heap := range rc._heaps {
		util.CFree(heap)
	}
	rc._blocks = nil
	rc._heaps = nil
	rc._count = 0
}

// RowIterator walks every stored row in insertion order.
type RowIterator struct {
	_rc       *RowCollection
	_blockIdx int
	_rowIdx   int
}

func (rc *RowCollection) Iterator() *RowIterator {
	return &RowIterator{
		_rc: rc,
	}
}

// Next fills locs with the next batch of row locations. Returns 0 when
// the collection is exhausted.
func (it *RowIterator) Next(locs []unsafe.Pointer) int {
	cnt := 0
	for cnt < len(locs) && it._blockIdx < len(it._rc._blocks) {
		block := it._rc._blocks[it._blockIdx]
		if it._rowIdx >= block._count {
			it._blockIdx++
			it._rowIdx = 0
			continue
		}
		locs[cnt] = block.rowLoc(it._rc._layout, it._rowIdx)
		it._rowIdx++
		cnt++
	}
	return cnt
}

// Gather reads layout column colNo of the rows addressed by
// rows[sel[i]] into result[resultSel[i]].
func (rc *RowCollection) Gather(
	rows []unsafe.Pointer,
	sel *chunk.SelectVector,
	count int,
	colNo int,
	result *chunk.Vector,
	resultSel *chunk.SelectVector,
) {
	util.AssertFunc(result.PhyFormat().IsFlat())
	offset := rc._layout.Offsets()[colNo]
	flagWidth := rc._layout._flagWidth
	switch rc._layout._types[colNo].GetInternalType() {
	case common.BOOL:
		TemplatedGather[bool](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.INT32:
		TemplatedGather[int32](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.INT64:
		TemplatedGather[int64](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.UINT64:
		TemplatedGather[uint64](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.DOUBLE:
		TemplatedGather[float64](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.DATE:
		TemplatedGather[common.Date](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.DECIMAL:
		TemplatedGather[common.Decimal](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	case common.VARCHAR:
		TemplatedGather[common.String](rows, sel, count, colNo, offset, flagWidth, result, resultSel)
	default:
		panic("usp")
	}
}

func TemplatedGather[T any](
	rows []unsafe.Pointer,
	sel *chunk.SelectVector,
	count int,
	colNo int,
	offsetInRow int,
	flagWidth int,
	result *chunk.Vector,
	resultSel *chunk.SelectVector,
) {
	resSlice := chunk.GetSliceInPhyFormatFlat[T](result)
	for i := 0; i < count; i++ {
		rowLoc := rows[sel.GetIndex(i)]
		resIdx := resultSel.GetIndex(i)
		rowMask := util.Bitmap{
			Bits: util.PointerToSlice[uint8](rowLoc, flagWidth),
		}
		if rowMask.RowIsValidUnsafe(uint64(colNo)) {
			resSlice[resIdx] = util.Load[T](util.PointerAdd(rowLoc, offsetInRow))
		} else {
			chunk.SetNullInPhyFormatFlat(result, uint64(resIdx), true)
		}
	}
}
