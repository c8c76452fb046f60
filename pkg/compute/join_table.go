package compute

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

type JoinHashTable struct {
	_conds []*Expr

	//types of keys in equality comparison
	_equalTypes []common.LType

	_keyTypes []common.LType

	_buildTypes []common.LType

	_predTypes []ET_SubTyp

	_layout *RowLayout

	_joinType LOT_JoinType

	_finalized bool

	//does any of key elements contain NULL
	_hasNull bool

	//next pointer offset in row. shares the slot of the hash value
	_pointerOffset int

	//offset of the row sequence number
	_seqOffset int

	_collection *RowCollection
	_hashMap    []unsafe.Pointer
	_bitmask    uint64

	//row seq -> build row produced a match. probe threads set it, the
	//outer sweep reads it
	_matched []atomic.Bool

	_markInfo *CorrelatedMarkInfo

	_buildLock sync.Mutex
}

func NewJoinHashTable(conds []*Expr,
	buildTypes []common.LType,
	joinTyp LOT_JoinType,
	correlatedCols int) *JoinHashTable {
	ht := &JoinHashTable{
		_conds:      copyExprs(conds...),
		_buildTypes: common.CopyLTypes(buildTypes...),
		_joinType:   joinTyp,
	}
	for _, cond := range conds {
		typ := cond.Children[0].DataTyp
		if cond.SubTyp.IsEquality() {
			util.AssertFunc(len(ht._equalTypes) == len(ht._keyTypes))
			ht._equalTypes = append(ht._equalTypes, typ)
		}
		ht._predTypes = append(ht._predTypes, cond.SubTyp)
		ht._keyTypes = append(ht._keyTypes, typ)
	}
	util.AssertFunc(len(ht._equalTypes) != 0)
	layoutTypes := make([]common.LType, 0)
	layoutTypes = append(layoutTypes, ht._keyTypes...)
	layoutTypes = append(layoutTypes, ht._buildTypes...)
	layoutTypes = append(layoutTypes, common.HashType())
	layoutTypes = append(layoutTypes, common.UbigintType())
	ht._layout = NewRowLayout(layoutTypes)
	offsets := ht._layout.Offsets()

	ht._pointerOffset = offsets[len(offsets)-2]
	ht._seqOffset = offsets[len(offsets)-1]

	ht._collection = NewRowCollection(ht._layout)
	if correlatedCols > 0 {
		util.AssertFunc(joinTyp == LOT_JoinTypeMARK || joinTyp == LOT_JoinTypeAntiMARK)
		ht._markInfo = NewCorrelatedMarkInfo(correlatedCols)
	}
	return ht
}

func (jht *JoinHashTable) Build(keys *chunk.Chunk, payload *chunk.Chunk) {
	util.AssertFunc(!jht._finalized)
	util.AssertFunc(keys.Card() == payload.Card())
	if keys.Card() == 0 {
		return
	}
	if jht._markInfo != nil {
		jht._markInfo.RecordGroups(keys)
	}
	var keyData []*chunk.UnifiedFormat
	var curSel *chunk.SelectVector
	sel := chunk.NewSelectVector(util.DefaultVectorSize)
	addedCnt := jht.prepareKeys(keys,
		&keyData,
		&curSel,
		sel,
		true,
	)
	if addedCnt < keys.Card() {
		jht._hasNull = true
	}
	if addedCnt == 0 {
		return
	}

	//hash keys
	hashValues := chunk.NewVector2(common.HashType(), util.DefaultVectorSize)
	jht.hash(keys, curSel, addedCnt, hashValues)

	//assemble layout columns: keys, build columns, hash, seq
	sourceChunk := &chunk.Chunk{}
	sourceChunk.Init(jht._layout.Types(), util.DefaultVectorSize)
	for i := 0; i < keys.ColumnCount(); i++ {
		sourceChunk.Data[i].Reference(keys.Data[i])
	}
	colOffset := keys.ColumnCount()
	util.AssertFunc(len(jht._buildTypes) == payload.ColumnCount())
	for i := 0; i < payload.ColumnCount(); i++ {
		sourceChunk.Data[colOffset+i].Reference(payload.Data[i])
	}
	colOffset += payload.ColumnCount()
	sourceChunk.Data[colOffset].Reference(hashValues)
	//seq slots are zero until Finalize numbers the rows
	sourceChunk.SetCard(keys.Card())
	if addedCnt < keys.Card() {
		sourceChunk.SliceItself(curSel, addedCnt)
	}

	jht._collection.Append(
		sourceChunk.ToUnifiedFormat(),
		chunk.IncrSelectVectorInPhyFormatFlat(),
		sourceChunk.Card())
}

func (jht *JoinHashTable) hash(
	keys *chunk.Chunk,
	sel *chunk.SelectVector,
	count int,
	hashes *chunk.Vector,
) {
	chunk.HashTypeSwitch(keys.Data[0], hashes, sel, count, sel != nil)
	//combine hash
	for i := 1; i < len(jht._equalTypes); i++ {
		chunk.CombineHashTypeSwitch(hashes, keys.Data[i], sel, count, sel != nil)
	}
}

func (jht *JoinHashTable) prepareKeys(
	keys *chunk.Chunk,
	keyData *[]*chunk.UnifiedFormat,
	curSel **chunk.SelectVector,
	sel *chunk.SelectVector,
	buildSide bool) int {
	*keyData = keys.ToUnifiedFormat()

	//which keys are NULL
	*curSel = chunk.IncrSelectVectorInPhyFormatFlat()

	addedCount := keys.Card()
	for i := 0; i < keys.ColumnCount(); i++ {
		if (*keyData)[i].Mask.AllValid() {
			continue
		}
		addedCount = filterNullValues(
			(*keyData)[i],
			*curSel,
			addedCount,
			sel,
		)
		*curSel = sel
	}
	return addedCount
}

func filterNullValues(
	vdata *chunk.UnifiedFormat,
	sel *chunk.SelectVector,
	count int,
	result *chunk.SelectVector) int {

	res := 0
	for i := 0; i < count; i++ {
		idx := sel.GetIndex(i)
		keyIdx := vdata.Sel.GetIndex(idx)
		if vdata.Mask.RowIsValid(uint64(keyIdx)) {
			result.SetIndex(res, idx)
			res++
		}
	}
	return res
}

// Merge absorbs the rows another thread collected into this table.
// Must happen before Finalize.
func (jht *JoinHashTable) Merge(other *JoinHashTable) {
	util.AssertFunc(!jht._finalized && !other._finalized)
	jht._buildLock.Lock()
	defer jht._buildLock.Unlock()
	jht._collection.Merge(other._collection)
	if other._hasNull {
		jht._hasNull = true
	}
	if jht._markInfo != nil {
		jht._markInfo.Merge(other._markInfo)
	}
}

func pointerTableCap(cnt int) int {
	return max(int(util.NextPowerOfTwo(uint64(cnt*2))), 1024)
}

func (jht *JoinHashTable) InitPointerTable() {
	pCap := pointerTableCap(jht._collection.Count())
	util.AssertFunc(util.IsPowerOfTwo(uint64(pCap)))
	jht._hashMap = make([]unsafe.Pointer, pCap)
	jht._bitmask = uint64(pCap - 1)
}

// Finalize numbers every row, builds the pointer table and links each
// row into its bucket chain. The hash slot of a row becomes the chain
// pointer afterwards.
func (jht *JoinHashTable) Finalize() {
	jht.InitPointerTable()
	hashes := chunk.NewFlatVector(common.HashType(), util.DefaultVectorSize)
	hashSlice := chunk.GetSliceInPhyFormatFlat[uint64](hashes)
	rowLocs := make([]unsafe.Pointer, util.DefaultVectorSize)
	iter := jht._collection.Iterator()
	seq := uint64(0)
	for {
		count := iter.Next(rowLocs)
		if count == 0 {
			break
		}
		for i := 0; i < count; i++ {
			hashSlice[i] = util.Load[uint64](
				util.PointerAdd(rowLocs[i],
					jht._pointerOffset))
			util.Store[uint64](seq,
				util.PointerAdd(rowLocs[i], jht._seqOffset))
			seq++
		}
		jht.InsertHashes(hashes, count, rowLocs)
	}
	jht._matched = make([]atomic.Bool, jht._collection.Count())
	jht._finalized = true
}

func (jht *JoinHashTable) InsertHashes(hashes *chunk.Vector, cnt int, keyLocs []unsafe.Pointer) {
	jht.ApplyBitmask(hashes, cnt)
	hashes.Flatten(cnt)
	util.AssertFunc(hashes.PhyFormat().IsFlat())
	pointers := jht._hashMap
	indices := chunk.GetSliceInPhyFormatFlat[uint64](hashes)
	InsertHashesLoop(pointers, indices, cnt, keyLocs, jht._pointerOffset)
}

func InsertHashesLoop(
	pointers []unsafe.Pointer,
	indices []uint64,
	cnt int,
	keyLocs []unsafe.Pointer,
	pointerOffset int,
) {
	for i := 0; i < cnt; i++ {
		idx := indices[i]
		//save prev into the pointer in the row
		util.Store[unsafe.Pointer](pointers[idx], util.PointerAdd(keyLocs[i], pointerOffset))
		//pointer to current row
		pointers[idx] = keyLocs[i]
		base := keyLocs[i]
		cur := util.Load[unsafe.Pointer](util.PointerAdd(keyLocs[i], pointerOffset))
		if base == cur {
			panic("insert loop in bucket")
		}
	}
}

func (jht *JoinHashTable) ApplyBitmask(hashes *chunk.Vector, cnt int) {
	if hashes.PhyFormat().IsConst() {
		indices := chunk.GetSliceInPhyFormatConst[uint64](hashes)
		indices[0] &= jht._bitmask
	} else {
		hashes.Flatten(cnt)
		indices := chunk.GetSliceInPhyFormatFlat[uint64](hashes)
		for i := 0; i < cnt; i++ {
			indices[i] &= jht._bitmask
		}
	}
}

func (jht *JoinHashTable) ApplyBitmask2(
	hashes *chunk.Vector,
	sel *chunk.SelectVector,
	cnt int,
	pointers *chunk.Vector,
) {
	var data chunk.UnifiedFormat
	hashes.ToUnifiedFormat(cnt, &data)
	hashSlice := chunk.GetSliceInPhyFormatUnifiedFormat[uint64](&data)
	resSlice := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](pointers)
	mainHt := jht._hashMap
	for i := 0; i < cnt; i++ {
		rIdx := sel.GetIndex(i)
		hIdx := data.Sel.GetIndex(rIdx)
		hVal := hashSlice[hIdx]
		bucket := mainHt[hVal&jht._bitmask]
		resSlice[rIdx] = bucket
	}
}

func (jht *JoinHashTable) Probe(keys *chunk.Chunk) *Scan {
	var curSel *chunk.SelectVector
	newScan := jht.initScan(keys, &curSel)
	if newScan._count == 0 {
		return newScan
	}
	hashes := chunk.NewFlatVector(common.HashType(), util.DefaultVectorSize)
	jht.hash(keys, curSel, newScan._count, hashes)

	jht.ApplyBitmask2(hashes, curSel, newScan._count, newScan._pointers)
	newScan.initSelVec(curSel)
	return newScan
}

func (jht *JoinHashTable) initScan(keys *chunk.Chunk, curSel **chunk.SelectVector) *Scan {
	util.AssertFunc(jht._finalized)
	newScan := NewScan(jht)
	if jht._joinType != LOT_JoinTypeInner {
		newScan._foundMatch = make([]bool, util.DefaultVectorSize)
	}

	newScan._count = jht.prepareKeys(
		keys,
		&newScan._keyData,
		curSel,
		newScan._selVec,
		false)
	//probe rows dropped here carried a NULL key
	if newScan._count < keys.Card() {
		newScan.markNullKeyRows(keys.Card(), *curSel, newScan._count)
	}
	return newScan
}

func (jht *JoinHashTable) count() int {
	return jht._collection.Count()
}

func (jht *JoinHashTable) Close() {
	jht._collection.Close()
	jht._hashMap = nil
	jht._matched = nil
}

// FullOuterScanState walks the collection once to surface build rows
// no probe row matched.
type FullOuterScanState struct {
	_iter    *RowIterator
	_rowLocs []unsafe.Pointer
	_done    bool
}

func NewFullOuterScanState(jht *JoinHashTable) *FullOuterScanState {
	return &FullOuterScanState{
		_iter:    jht._collection.Iterator(),
		_rowLocs: make([]unsafe.Pointer, util.DefaultVectorSize),
	}
}

// ScanFullOuter fills result with the next batch of unmatched build
// rows. The probe side columns come out as NULL constants. Returns the
// number of rows produced, 0 at the end.
func (jht *JoinHashTable) ScanFullOuter(
	state *FullOuterScanState,
	result *chunk.Chunk,
	probeColumnCount int,
) int {
	util.AssertFunc(jht._joinType == LOT_JoinTypeOUTER)
	util.AssertFunc(jht._finalized)
	if state._done {
		return 0
	}
	found := 0
	foundLocs := make([]unsafe.Pointer, util.DefaultVectorSize)
	for found == 0 {
		cnt := state._iter.Next(state._rowLocs)
		if cnt == 0 {
			state._done = true
			break
		}
		for i := 0; i < cnt; i++ {
			seq := util.Load[uint64](
				util.PointerAdd(state._rowLocs[i], jht._seqOffset))
			if !jht._matched[seq].Load() {
				foundLocs[found] = state._rowLocs[i]
				found++
			}
		}
	}
	if found == 0 {
		return 0
	}

	result.Reset()
	for i := 0; i < probeColumnCount; i++ {
		vec := result.Data[i]
		vec.SetPhyFormat(chunk.PF_CONST)
		chunk.SetNullInPhyFormatConst(vec, true)
	}
	sel := chunk.IncrSelectVectorInPhyFormatFlat()
	for i := 0; i < len(jht._buildTypes); i++ {
		vec := result.Data[probeColumnCount+i]
		jht._collection.Gather(
			foundLocs,
			sel,
			found,
			i+len(jht._keyTypes),
			vec,
			sel,
		)
	}
	result.SetCard(found)
	return found
}
