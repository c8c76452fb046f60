package compute

import (
	"fmt"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
)

// TableScan pulls the stored chunks of a table, projected to colIds.
type TableScan struct {
	_txn    *storage.Txn
	_tabEnt *storage.CatalogEntry
	_colIds []int
	_state  *storage.TableScanState
}

func NewTableScan(txn *storage.Txn, tabEnt *storage.CatalogEntry, colIds []int) *TableScan {
	return &TableScan{
		_txn:    txn,
		_tabEnt: tabEnt,
		_colIds: colIds,
	}
}

func (scan *TableScan) Types() []common.LType {
	if len(scan._colIds) == 0 {
		return scan._tabEnt.GetTypes()
	}
	all := scan._tabEnt.GetTypes()
	ret := make([]common.LType, 0, len(scan._colIds))
	for _, colId := range scan._colIds {
		ret = append(ret, all[colId])
	}
	return ret
}

func (scan *TableScan) GetChunk(output *chunk.Chunk) (SourceResult, error) {
	if scan._state == nil {
		scan._state = &storage.TableScanState{}
		scan._tabEnt.GetStorage().InitScan(scan._state, scan._colIds)
	}
	if !scan._tabEnt.GetStorage().Scan(scan._state, output) {
		return SrcResDone, nil
	}
	return SrcResHaveMoreOutput, nil
}

// IndexScanRange is one bounded lookup. High is ignored when HighValue
// is nil.
type IndexScanRange struct {
	LowValue  *chunk.Value
	LowTyp    uint8
	HighValue *chunk.Value
	HighTyp   uint8
}

// IndexScan resolves row ids through a table index and fetches the
// projected rows. The index scan state is built lazily on the first
// GetChunk call.
type IndexScan struct {
	_txn    *storage.Txn
	_tabEnt *storage.CatalogEntry
	_index  *storage.Index
	_rng    IndexScanRange
	_colIds []int

	_state  *storage.IndexScanState
	_rowIds []uint64
	_cursor int
	_done   bool
}

func NewIndexScan(
	txn *storage.Txn,
	tabEnt *storage.CatalogEntry,
	index *storage.Index,
	rng IndexScanRange,
	colIds []int,
) *IndexScan {
	return &IndexScan{
		_txn:    txn,
		_tabEnt: tabEnt,
		_index:  index,
		_rng:    rng,
		_colIds: colIds,
	}
}

func (scan *IndexScan) initScan() error {
	if scan._rng.HighValue == nil {
		scan._state = scan._index.InitScanSinglePredicate(
			scan._txn, scan._rng.LowValue, scan._rng.LowTyp)
	} else {
		scan._state = scan._index.InitScanTwoPredicates(
			scan._txn,
			scan._rng.LowValue, scan._rng.LowTyp,
			scan._rng.HighValue, scan._rng.HighTyp)
	}
	table := scan._tabEnt.GetStorage()
	maxCount := table.RowCount()
	if !scan._index.Scan(scan._txn, scan._state, maxCount, &scan._rowIds) {
		return fmt.Errorf("index scan result over %d rows", maxCount)
	}
	return nil
}

func (scan *IndexScan) GetChunk(output *chunk.Chunk) (SourceResult, error) {
	if scan._done {
		return SrcResDone, nil
	}
	if scan._state == nil {
		if err := scan.initScan(); err != nil {
			return SrcResDone, err
		}
	}
	table := scan._tabEnt.GetStorage()
	cnt := 0
	for cnt < output.Cap() && scan._cursor < len(scan._rowIds) {
		if table.FetchRow(int(scan._rowIds[scan._cursor]), scan._colIds, output, cnt) {
			cnt++
		}
		scan._cursor++
	}
	output.SetCard(cnt)
	if cnt == 0 {
		scan._done = true
		return SrcResDone, nil
	}
	return SrcResHaveMoreOutput, nil
}
