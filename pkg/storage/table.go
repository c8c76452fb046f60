package storage

import (
	"sync"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

// DataTable is an in-memory column store. Rows live in appended chunks.
type DataTable struct {
	_schema  string
	_table   string
	_colDefs []*ColumnDefinition
	_types   []common.LType

	_appendLock sync.Mutex
	_chunks     []*chunk.Chunk
	_totalRows  int
	_indexes    []*Index
}

func NewDataTable(schema, table string, colDefs []*ColumnDefinition) *DataTable {
	dTable := &DataTable{
		_schema:  schema,
		_table:   table,
		_colDefs: colDefs,
	}
	for _, colDef := range colDefs {
		dTable._types = append(dTable._types, colDef.Type)
	}
	return dTable
}

func (table *DataTable) GetTypes() []common.LType {
	return table._types
}

func (table *DataTable) RowCount() int {
	table._appendLock.Lock()
	defer table._appendLock.Unlock()
	return table._totalRows
}

func (table *DataTable) AddIndex(index *Index) {
	table._appendLock.Lock()
	defer table._appendLock.Unlock()
	table._indexes = append(table._indexes, index)
}

func (table *DataTable) Indexes() []*Index {
	return table._indexes
}

// Append copies data into the table. Indexes on the table pick up
// the new rows before the append is visible to scans.
func (table *DataTable) Append(txn *Txn, data *chunk.Chunk) error {
	util.AssertFunc(data.ColumnCount() == len(table._types))
	table._appendLock.Lock()
	defer table._appendLock.Unlock()

	baseRow := table._totalRows
	stored := &chunk.Chunk{}
	stored.Init(table._types, max(util.DefaultVectorSize, data.Card()))
	stored.Append(data, nil, data.Card())

	for _, index := range table._indexes {
		err := index.Insert(stored, baseRow)
		if err != nil {
			return err
		}
	}

	table._chunks = append(table._chunks, stored)
	table._totalRows += stored.Card()
	return nil
}

type TableScanState struct {
	_chunkIdx int
	_colIds   []int
}

func (table *DataTable) InitScan(state *TableScanState, colIds []int) {
	state._chunkIdx = 0
	state._colIds = colIds
}

// Scan fills result with the next stored chunk, projected to the scan's
// column ids. Returns false when the table is exhausted.
func (table *DataTable) Scan(state *TableScanState, result *chunk.Chunk) bool {
	table._appendLock.Lock()
	defer table._appendLock.Unlock()
	if state._chunkIdx >= len(table._chunks) {
		return false
	}
	stored := table._chunks[state._chunkIdx]
	state._chunkIdx++
	if len(state._colIds) != 0 {
		result.ReferenceIndice(stored, state._colIds)
	} else {
		result.Reference(stored)
	}
	return true
}

// FetchRow reads one row by absolute position into result at rowIdx.
func (table *DataTable) FetchRow(row int, colIds []int, result *chunk.Chunk, rowIdx int) bool {
	table._appendLock.Lock()
	defer table._appendLock.Unlock()
	if row < 0 || row >= table._totalRows {
		return false
	}
	base := 0
	for _, stored := range table._chunks {
		if row < base+stored.Card() {
			local := row - base
			if len(colIds) == 0 {
				for i := range stored.Data {
					val := stored.Data[i].GetValue(local)
					result.Data[i].SetValue(rowIdx, val)
				}
			} else {
				for i, colId := range colIds {
					val := stored.Data[colId].GetValue(local)
					result.Data[i].SetValue(rowIdx, val)
				}
			}
			return true
		}
		base += stored.Card()
	}
	return false
}
