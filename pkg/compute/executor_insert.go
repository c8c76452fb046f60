package compute

import (
	"fmt"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
	"github.com/vexecdb/vexec/pkg/util"
)

// ValuesScan evaluates bound VALUES rows. Each row is a slice of
// constant (or parameter-cast) expressions produced by the binder.
type ValuesScan struct {
	_types []common.LType
	_rows  [][]*Expr
	_row   int
}

func NewValuesScan(values *Expr) *ValuesScan {
	util.AssertFunc(values.Typ == ET_ValuesList)
	return &ValuesScan{
		_types: values.Types,
		_rows:  values.Values,
	}
}

func (scan *ValuesScan) Types() []common.LType {
	return scan._types
}

func (scan *ValuesScan) GetChunk(output *chunk.Chunk) (SourceResult, error) {
	if scan._row >= len(scan._rows) {
		return SrcResDone, nil
	}
	rowData := &chunk.Chunk{}
	rowData.Init(scan._types, util.DefaultVectorSize)
	tmp := &chunk.Chunk{}
	tmp.SetCard(1)
	for scan._row < len(scan._rows) && output.Card() < output.Cap() {
		rowExec := NewExprExec(scan._rows[scan._row]...)
		err := rowExec.executeExprs(
			[]*chunk.Chunk{tmp, nil, nil},
			rowData)
		if err != nil {
			return SrcResDone, err
		}
		rowData.Flatten()
		output.Append(rowData, nil, rowData.Card())
		rowData.Reset()
		scan._row++
	}
	return SrcResHaveMoreOutput, nil
}

// SelectScan pulls the projected table rows of a bound select and
// runs the projection expressions over them. Width and type
// reconciliation against the insert target happens here, the binder
// leaves the select untouched.
type SelectScan struct {
	_scan  *TableScan
	_exec  *ExprExec
	_types []common.LType

	_scanChunk *chunk.Chunk
}

func NewSelectScan(txn *storage.Txn, bound *BoundInsert) (*SelectScan, error) {
	sel := bound.Select
	if len(bound.ExpectedTypes) != len(sel.Exprs) {
		return nil, fmt.Errorf("table %s has %d columns but %d values were supplied",
			bound.Table,
			len(bound.ExpectedTypes),
			len(sel.Exprs),
		)
	}
	exprs := make([]*Expr, len(sel.Exprs))
	for i, expr := range sel.Exprs {
		cast, err := AddCastToType(expr, bound.ExpectedTypes[i], false)
		if err != nil {
			return nil, err
		}
		exprs[i] = cast
	}
	scanChunk := &chunk.Chunk{}
	scanChunk.Init(sel.Types, util.DefaultVectorSize)
	return &SelectScan{
		_scan:      NewTableScan(txn, sel.TabEnt, sel.ColIds),
		_exec:      NewExprExec(exprs...),
		_types:     common.CopyLTypes(bound.ExpectedTypes...),
		_scanChunk: scanChunk,
	}, nil
}

func (scan *SelectScan) Types() []common.LType {
	return scan._types
}

func (scan *SelectScan) GetChunk(output *chunk.Chunk) (SourceResult, error) {
	scan._scanChunk.Reset()
	res, err := scan._scan.GetChunk(scan._scanChunk)
	if err != nil || res == SrcResDone {
		return res, err
	}
	err = scan._exec.executeExprs(
		[]*chunk.Chunk{scan._scanChunk, nil, nil},
		output)
	if err != nil {
		return SrcResDone, err
	}
	return SrcResHaveMoreOutput, nil
}

// Insert drains its source and appends the rows into the bound table.
type Insert struct {
	_txn    *storage.Txn
	_bound  *BoundInsert
	_source OperatorSource

	_sourceChunk *chunk.Chunk
	_insertChunk *chunk.Chunk
	_count       int
}

func NewInsert(txn *storage.Txn, bound *BoundInsert) *Insert {
	return &Insert{
		_txn:   txn,
		_bound: bound,
	}
}

func (ins *Insert) Init() error {
	if ins._bound.Values != nil {
		ins._source = NewValuesScan(ins._bound.Values)
	} else {
		util.AssertFunc(ins._bound.Select != nil)
		source, err := NewSelectScan(ins._txn, ins._bound)
		if err != nil {
			return err
		}
		ins._source = source
	}
	ins._sourceChunk = &chunk.Chunk{}
	ins._sourceChunk.Init(ins._bound.ExpectedTypes, util.DefaultVectorSize)
	ins._insertChunk = &chunk.Chunk{}
	ins._insertChunk.Init(ins._bound.TabEnt.GetTypes(), util.DefaultVectorSize)
	return nil
}

// insertResolveDefaults widens a supplied-columns chunk to the full
// table width. Supplied columns are referenced in statement order,
// unsupplied columns get their declared default or NULL.
func insertResolveDefaults(
	table *storage.CatalogEntry,
	data *chunk.Chunk,
	columnIndexMap []int,
	result *chunk.Chunk,
) {
	data.Flatten()

	result.Reset()
	result.SetCard(data.Card())

	if len(columnIndexMap) != 0 {
		//columns specified
		for colIdx, colDef := range table.GetColumns() {
			mappedIdx := columnIndexMap[colIdx]
			if mappedIdx == -1 {
				if colDef.HasDefault() {
					result.Data[colIdx].ReferenceValue(colDef.Default)
				} else {
					result.Data[colIdx].ReferenceValue(
						&chunk.Value{Typ: colDef.Type, IsNull: true})
				}
			} else {
				util.AssertFunc(mappedIdx < data.ColumnCount())
				util.AssertFunc(result.Data[colIdx].Typ().Id ==
					data.Data[mappedIdx].Typ().Id)
				result.Data[colIdx].Reference(data.Data[mappedIdx])
			}
		}
	} else {
		//no columns specified
		for i := 0; i < result.ColumnCount(); i++ {
			util.AssertFunc(result.Data[i].Typ().Id ==
				data.Data[i].Typ().Id)
			result.Data[i].Reference(data.Data[i])
		}
	}
}

func (ins *Insert) Exec() (OperatorResult, error) {
	table := ins._bound.TabEnt.GetStorage()
	for {
		ins._sourceChunk.Reset()
		res, err := ins._source.GetChunk(ins._sourceChunk)
		if err != nil {
			return InvalidOpResult, err
		}
		if ins._sourceChunk.Card() == 0 {
			if res == SrcResDone {
				break
			}
			continue
		}

		ins._count += ins._sourceChunk.Card()

		insertResolveDefaults(
			ins._bound.TabEnt,
			ins._sourceChunk,
			ins._bound.ColumnIndexMap,
			ins._insertChunk)

		err = table.Append(ins._txn, ins._insertChunk)
		if err != nil {
			return InvalidOpResult, err
		}
		if res == SrcResDone {
			break
		}
	}
	return Done, nil
}

// Count reports the rows inserted so far.
func (ins *Insert) Count() int {
	return ins._count
}

func (ins *Insert) Close() error {
	return nil
}
