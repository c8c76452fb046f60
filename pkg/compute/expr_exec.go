package compute

import (
	"fmt"
	"time"

	"github.com/govalues/decimal"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

type ExprState struct {
	_expr       *Expr
	_children   []*ExprState
	_interChunk *chunk.Chunk
}

func NewExprState(expr *Expr) *ExprState {
	ret := &ExprState{
		_expr:       expr,
		_interChunk: &chunk.Chunk{},
	}
	types := make([]common.LType, 0, len(expr.Children))
	for _, child := range expr.Children {
		ret._children = append(ret._children, NewExprState(child))
		types = append(types, child.DataTyp)
	}
	if len(types) != 0 {
		ret._interChunk.Init(types, util.DefaultVectorSize)
	}
	return ret
}

type ExprExecState struct {
	_root *ExprState
	_exec *ExprExec
}

type ExprExec struct {
	_exprs      []*Expr
	_chunk      []*chunk.Chunk
	_execStates []*ExprExecState
}

func NewExprExec(exprs ...*Expr) *ExprExec {
	exec := &ExprExec{}
	for _, expr := range exprs {
		exec.addExpr(expr)
	}
	return exec
}

func (exec *ExprExec) addExpr(expr *Expr) {
	exec._exprs = append(exec._exprs, expr)
	eeState := &ExprExecState{
		_exec: exec,
		_root: NewExprState(expr),
	}
	exec._execStates = append(exec._execStates, eeState)
}

// executeExprs evaluates every bound expression against the input
// chunks. Column references of expression i resolve ColRef.table()
// into data.
func (exec *ExprExec) executeExprs(data []*chunk.Chunk, result *chunk.Chunk) error {
	util.AssertFunc(result.ColumnCount() >= len(exec._exprs))
	for i := 0; i < len(exec._exprs); i++ {
		err := exec.executeExprI(data, i, result.Data[i])
		if err != nil {
			return err
		}
	}
	for _, d := range data {
		if d == nil {
			continue
		}
		result.SetCard(d.Card())
		break
	}
	return nil
}

func (exec *ExprExec) executeExprI(data []*chunk.Chunk, exprId int, result *chunk.Vector) error {
	exec._chunk = data
	cnt := util.DefaultVectorSize
	for _, d := range exec._chunk {
		if d == nil {
			continue
		}
		cnt = d.Card()
		break
	}
	return exec.execute(
		exec._exprs[exprId],
		exec._execStates[exprId]._root,
		nil,
		cnt,
		result,
	)
}

func (exec *ExprExec) execute(expr *Expr, eState *ExprState, sel *chunk.SelectVector, count int, result *chunk.Vector) error {
	if count == 0 {
		return nil
	}
	switch expr.Typ {
	case ET_Column:
		return exec.executeColumnRef(expr, eState, sel, count, result)
	case ET_Const:
		return exec.executeConst(expr, eState, sel, count, result)
	case ET_Cast:
		return exec.executeCast(expr, eState, sel, count, result)
	default:
		panic(fmt.Sprintf("%d", expr.Typ))
	}
}

func (exec *ExprExec) executeColumnRef(expr *Expr, eState *ExprState, sel *chunk.SelectVector, count int, result *chunk.Vector) error {
	data := exec._chunk
	tabId := int(expr.ColRef.table())
	colIdx := int(expr.ColRef.column())
	util.AssertFunc(tabId < len(data))
	if sel != nil {
		result.Slice(data[tabId].Data[colIdx], sel, count)
	} else {
		result.Reference(data[tabId].Data[colIdx])
	}
	return nil
}

func (exec *ExprExec) executeConst(expr *Expr, eState *ExprState, sel *chunk.SelectVector, count int, result *chunk.Vector) error {
	val, err := constToValue(expr)
	if err != nil {
		return err
	}
	result.ReferenceValue(val)
	return nil
}

func (exec *ExprExec) executeCast(expr *Expr, eState *ExprState, sel *chunk.SelectVector, count int, result *chunk.Vector) error {
	child := eState._interChunk.Data[0]
	err := exec.execute(expr.Children[0], eState._children[0], sel, count, child)
	if err != nil {
		return err
	}
	return castExec(child, result, count)
}

func constToValue(expr *Expr) (*chunk.Value, error) {
	val := &chunk.Value{Typ: expr.DataTyp}
	cv := &expr.ConstValue
	switch cv.Type {
	case ConstTypeNull:
		val.IsNull = true
	case ConstTypeBoolean:
		val.Bool = cv.Boolean
	case ConstTypeInteger:
		val.I64 = cv.Integer
	case ConstTypeFloat:
		val.F64 = cv.Float
	case ConstTypeString:
		val.Str = cv.String
	case ConstTypeDecimal:
		val.Str = cv.Decimal
	case ConstTypeDate:
		d, err := parseDate(cv.Date)
		if err != nil {
			return nil, err
		}
		val.I64 = int64(d.Year)
		val.I64_1 = int64(d.Month)
		val.I64_2 = int64(d.Day)
	default:
		panic("usp")
	}
	return val, nil
}

func parseDate(s string) (common.Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return common.Date{}, fmt.Errorf("invalid date %s", s)
	}
	return common.Date{
		Year:  int32(t.Year()),
		Month: int32(t.Month()),
		Day:   int32(t.Day()),
	}, nil
}

// castExec converts src into the type of res element by element. The
// fast paths cover the conversions the binder generates for insert
// values. Null slots stay null.
func castExec(src, res *chunk.Vector, count int) error {
	if src.Typ().Equal(res.Typ()) {
		res.Reference(src)
		return nil
	}
	srcConst := src.PhyFormat().IsConst()
	if srcConst {
		count = 1
		res.SetPhyFormat(chunk.PF_CONST)
	} else {
		src.Flatten(count)
		res.SetPhyFormat(chunk.PF_FLAT)
	}
	res.Mask.ShareWith(src.Mask)
	switch src.Typ().Id {
	case common.LTID_INTEGER:
		srcSlice := chunk.GetSliceInPhyFormatFlat[int32](src)
		switch res.Typ().Id {
		case common.LTID_BIGINT:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[int64](res), count,
				func(v int32) (int64, error) { return int64(v), nil })
		case common.LTID_UBIGINT:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[uint64](res), count,
				func(v int32) (uint64, error) { return uint64(v), nil })
		case common.LTID_DOUBLE:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[float64](res), count,
				func(v int32) (float64, error) { return float64(v), nil })
		case common.LTID_DECIMAL:
			return castLoop2(src, srcSlice, chunk.GetSliceInPhyFormatFlat[common.Decimal](res), count,
				func(v int32) (common.Decimal, error) {
					d, err := decimal.NewFromInt64(int64(v), 0, res.Typ().Scale)
					return common.Decimal{Decimal: d}, err
				})
		default:
			panic("usp")
		}
	case common.LTID_BIGINT:
		srcSlice := chunk.GetSliceInPhyFormatFlat[int64](src)
		switch res.Typ().Id {
		case common.LTID_INTEGER:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[int32](res), count,
				func(v int64) (int32, error) { return int32(v), nil })
		case common.LTID_UBIGINT:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[uint64](res), count,
				func(v int64) (uint64, error) { return uint64(v), nil })
		case common.LTID_DOUBLE:
			castLoop(srcSlice, chunk.GetSliceInPhyFormatFlat[float64](res), count,
				func(v int64) (float64, error) { return float64(v), nil })
		case common.LTID_DECIMAL:
			return castLoop2(src, srcSlice, chunk.GetSliceInPhyFormatFlat[common.Decimal](res), count,
				func(v int64) (common.Decimal, error) {
					d, err := decimal.NewFromInt64(v, 0, res.Typ().Scale)
					return common.Decimal{Decimal: d}, err
				})
		default:
			panic("usp")
		}
	case common.LTID_DOUBLE:
		srcSlice := chunk.GetSliceInPhyFormatFlat[float64](src)
		switch res.Typ().Id {
		case common.LTID_DECIMAL:
			return castLoop2(src, srcSlice, chunk.GetSliceInPhyFormatFlat[common.Decimal](res), count,
				func(v float64) (common.Decimal, error) {
					d, err := decimal.NewFromFloat64(v)
					if err != nil {
						return common.Decimal{}, err
					}
					return common.Decimal{Decimal: d.Rescale(res.Typ().Scale)}, nil
				})
		default:
			panic("usp")
		}
	case common.LTID_VARCHAR:
		srcSlice := chunk.GetSliceInPhyFormatFlat[common.String](src)
		switch res.Typ().Id {
		case common.LTID_DATE:
			return castLoop2(src, srcSlice, chunk.GetSliceInPhyFormatFlat[common.Date](res), count,
				func(v common.String) (common.Date, error) {
					return parseDate(v.String())
				})
		case common.LTID_DECIMAL:
			return castLoop2(src, srcSlice, chunk.GetSliceInPhyFormatFlat[common.Decimal](res), count,
				func(v common.String) (common.Decimal, error) {
					d, err := decimal.ParseExact(v.String(), res.Typ().Scale)
					return common.Decimal{Decimal: d}, err
				})
		default:
			panic("usp")
		}
	default:
		panic("usp")
	}
	return nil
}

func castLoop[S, D any](src []S, dst []D, count int, op func(S) (D, error)) {
	for i := 0; i < count; i++ {
		dst[i], _ = op(src[i])
	}
}

// castLoop2 is the fallible variant. Null slots are skipped so invalid
// text behind a null mask does not fail the whole vector.
func castLoop2[S, D any](srcVec *chunk.Vector, src []S, dst []D, count int, op func(S) (D, error)) error {
	for i := 0; i < count; i++ {
		if !srcVec.Mask.RowIsValid(uint64(i)) {
			continue
		}
		val, err := op(src[i])
		if err != nil {
			return err
		}
		dst[i] = val
	}
	return nil
}
