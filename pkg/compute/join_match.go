package compute

import (
	"unsafe"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

// Match filters sel down to the probe rows whose key columns satisfy
// every predicate against the serialized row each pointer addresses.
// Rows that fail are appended to noMatch. Returns the match count.
func Match(
	keys *chunk.Chunk,
	keyData []*chunk.UnifiedFormat,
	layout *RowLayout,
	rows *chunk.Vector,
	predicates []ET_SubTyp,
	sel *chunk.SelectVector,
	cnt int,
	noMatch *chunk.SelectVector,
	noMatchCount *int,
) int {
	util.AssertFunc(len(predicates) == keys.ColumnCount())
	matchCount := cnt
	for colNo := 0; colNo < keys.ColumnCount(); colNo++ {
		matchCount = TemplatedMatchOp(
			keys.Data[colNo],
			keyData[colNo],
			layout,
			colNo,
			predicates[colNo],
			rows,
			sel,
			matchCount,
			noMatch,
			noMatchCount,
		)
	}
	return matchCount
}

func TemplatedMatchOp(
	vec *chunk.Vector,
	col *chunk.UnifiedFormat,
	layout *RowLayout,
	colNo int,
	predicate ET_SubTyp,
	rows *chunk.Vector,
	sel *chunk.SelectVector,
	cnt int,
	noMatch *chunk.SelectVector,
	noMatchCount *int,
) int {
	if cnt == 0 {
		return 0
	}
	offset := layout.Offsets()[colNo]
	switch predicate {
	case ET_Equal, ET_In:
		switch layout._types[colNo].GetInternalType() {
		case common.BOOL:
			return TemplatedMatchType[bool](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalOp[bool]{})
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalOp[int64]{})
		case common.UINT64:
			return TemplatedMatchType[uint64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalOp[uint64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, equalStrOp{})
		default:
			panic("usp")
		}
	case ET_NotEqual:
		switch layout._types[colNo].GetInternalType() {
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualOp[int64]{})
		case common.UINT64:
			return TemplatedMatchType[uint64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualOp[uint64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, notEqualStrOp{})
		default:
			panic("usp")
		}
	case ET_Greater:
		switch layout._types[colNo].GetInternalType() {
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterOp[int64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterStrOp{})
		default:
			panic("usp")
		}
	case ET_GreaterEqual:
		switch layout._types[colNo].GetInternalType() {
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualOp[int64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, greaterEqualStrOp{})
		default:
			panic("usp")
		}
	case ET_Less:
		switch layout._types[colNo].GetInternalType() {
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessOp[int64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessStrOp{})
		default:
			panic("usp")
		}
	case ET_LessEqual:
		switch layout._types[colNo].GetInternalType() {
		case common.INT32:
			return TemplatedMatchType[int32](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualOp[int32]{})
		case common.INT64:
			return TemplatedMatchType[int64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualOp[int64]{})
		case common.DOUBLE:
			return TemplatedMatchType[float64](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualOp[float64]{})
		case common.DATE:
			return TemplatedMatchType[common.Date](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualDateOp{})
		case common.DECIMAL:
			return TemplatedMatchType[common.Decimal](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualDecimalOp{})
		case common.VARCHAR:
			return TemplatedMatchType[common.String](col, rows, colNo, offset, layout._flagWidth, sel, cnt, noMatch, noMatchCount, lessEqualStrOp{})
		default:
			panic("usp")
		}
	default:
		panic("usp")
	}
}

// TemplatedMatchType keeps sel[i] when both sides are non null and op
// holds. A null on either side never matches.
func TemplatedMatchType[T any](
	col *chunk.UnifiedFormat,
	rows *chunk.Vector,
	colNo int,
	offsetInRow int,
	flagWidth int,
	sel *chunk.SelectVector,
	cnt int,
	noMatch *chunk.SelectVector,
	noMatchCount *int,
	cmp CompareOp[T],
) int {
	data := chunk.GetSliceInPhyFormatUnifiedFormat[T](col)
	ptrs := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](rows)
	matchCount := 0
	for i := 0; i < cnt; i++ {
		row := sel.GetIndex(i)
		idx := col.Sel.GetIndex(row)
		rowLoc := ptrs[row]

		rowMask := util.Bitmap{
			Bits: util.PointerToSlice[uint8](rowLoc, flagWidth),
		}
		if col.Mask.RowIsValid(uint64(idx)) &&
			rowMask.RowIsValidUnsafe(uint64(colNo)) {
			val := util.Load[T](util.PointerAdd(rowLoc, offsetInRow))
			if cmp.operation(&data[idx], &val) {
				sel.SetIndex(matchCount, row)
				matchCount++
				continue
			}
		}
		if noMatch != nil {
			noMatch.SetIndex(*noMatchCount, row)
			*noMatchCount++
		}
	}
	return matchCount
}
