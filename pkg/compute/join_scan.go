package compute

import (
	"unsafe"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

type Scan struct {
	_keyData    []*chunk.UnifiedFormat
	_pointers   *chunk.Vector
	_count      int
	_selVec     *chunk.SelectVector
	_foundMatch []bool
	//probe rows whose key held a NULL. they never match but MARK
	//turns them into NULL instead of FALSE
	_keyNull []bool
	_ht      *JoinHashTable
	_finished bool
}

func NewScan(ht *JoinHashTable) *Scan {
	return &Scan{
		_pointers: chunk.NewFlatVector(common.PointerType(), util.DefaultVectorSize),
		_selVec:   chunk.NewSelectVector(util.DefaultVectorSize),
		_ht:       ht,
	}
}

func (scan *Scan) initSelVec(curSel *chunk.SelectVector) {
	nonEmptyCnt := 0
	ptrs := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers)
	cnt := scan._count
	for i := 0; i < cnt; i++ {
		idx := curSel.GetIndex(i)
		if ptrs[idx] != nil {
			scan._selVec.SetIndex(nonEmptyCnt, idx)
			nonEmptyCnt++
		}
	}
	scan._count = nonEmptyCnt
}

// markNullKeyRows flags the probe rows prepareKeys filtered out.
func (scan *Scan) markNullKeyRows(card int, curSel *chunk.SelectVector, cnt int) {
	scan._keyNull = make([]bool, card)
	for i := range scan._keyNull {
		scan._keyNull[i] = true
	}
	for i := 0; i < cnt; i++ {
		scan._keyNull[curSel.GetIndex(i)] = false
	}
}

func (scan *Scan) rowIsNullKey(idx int) bool {
	return scan._keyNull != nil && scan._keyNull[idx]
}

func (scan *Scan) Next(keys, left, result *chunk.Chunk) {
	if scan._finished {
		return
	}
	switch scan._ht._joinType {
	case LOT_JoinTypeInner:
		scan.NextInnerJoin(keys, left, result)
	case LOT_JoinTypeMARK, LOT_JoinTypeAntiMARK:
		scan.NextMarkJoin(keys, left, result)
	case LOT_JoinTypeSEMI:
		scan.NextSemiJoin(keys, left, result)
	case LOT_JoinTypeANTI:
		scan.NextAntiJoin(keys, left, result)
	case LOT_JoinTypeLeft, LOT_JoinTypeOUTER:
		scan.NextLeftJoin(keys, left, result)
	case LOT_JoinTypeSINGLE:
		scan.NextSingleJoin(keys, left, result)
	default:
		panic("Unknown join type")
	}
}

func (scan *Scan) NextLeftJoin(keys, left, result *chunk.Chunk) {
	scan.NextInnerJoin(keys, left, result)
	if result.Card() == 0 {
		remainingCount := 0
		sel := chunk.NewSelectVector(util.DefaultVectorSize)
		for i := 0; i < left.Card(); i++ {
			if !scan._foundMatch[i] {
				sel.SetIndex(remainingCount, i)
				remainingCount++
			}
		}
		if remainingCount > 0 {
			result.Slice(left, sel, remainingCount, 0)
			for i := left.ColumnCount(); i < result.ColumnCount(); i++ {
				vec := result.Data[i]
				vec.SetPhyFormat(chunk.PF_CONST)
				chunk.SetNullInPhyFormatConst(vec, true)
			}
		}
		scan._finished = true
	}
}

func (scan *Scan) NextAntiJoin(keys, left, result *chunk.Chunk) {
	//any NULL key on the build side poisons NOT IN: nothing qualifies
	if scan._ht._hasNull {
		scan._finished = true
		return
	}
	scan.ScanKeyMatches(keys)
	scan.NextSemiOrAntiJoin(keys, left, result, false)
	scan._finished = true
}

func (scan *Scan) NextSemiJoin(keys, left, result *chunk.Chunk) {
	scan.ScanKeyMatches(keys)
	scan.NextSemiOrAntiJoin(keys, left, result, true)
	scan._finished = true
}

func (scan *Scan) NextSemiOrAntiJoin(keys, left, result *chunk.Chunk, Match bool) {
	util.AssertFunc(left.ColumnCount() == result.ColumnCount())
	util.AssertFunc(keys.Card() == left.Card())

	sel := chunk.NewSelectVector(util.DefaultVectorSize)
	resultCount := 0
	for i := 0; i < keys.Card(); i++ {
		if scan.rowIsNullKey(i) {
			//NULL key rows match nothing and, for ANTI, compare
			//UNKNOWN against every build row
			continue
		}
		if scan._foundMatch[i] == Match {
			sel.SetIndex(resultCount, i)
			resultCount++
		}
	}

	if resultCount > 0 {
		result.Slice(left, sel, resultCount, 0)
	} else {
		util.AssertFunc(result.Card() == 0)
	}
}

func (scan *Scan) NextMarkJoin(keys, left, result *chunk.Chunk) {
	util.AssertFunc(util.Back(result.Data).Typ().Id == common.LTID_BOOLEAN)
	scan.ScanKeyMatches(keys)
	scan.constructMarkJoinResult(keys, left, result)
	scan._finished = true
}

// constructMarkJoinResult fills the trailing mark column. TRUE on a
// match. On a miss: NULL when the probe key is NULL or the probe side
// saw a NULL build key, FALSE otherwise. AntiMARK flips TRUE/FALSE and
// keeps NULL. With correlated columns the NULL decision is taken per
// group instead of globally.
func (scan *Scan) constructMarkJoinResult(keys, left, result *chunk.Chunk) {
	result.SetCard(left.Card())
	for i := 0; i < left.ColumnCount(); i++ {
		result.Data[i].Reference(left.Data[i])
	}

	antiMark := scan._ht._joinType == LOT_JoinTypeAntiMARK
	markVec := util.Back(result.Data)
	markVec.SetPhyFormat(chunk.PF_FLAT)
	markSlice := chunk.GetSliceInPhyFormatFlat[bool](markVec)
	markMask := chunk.GetMaskInPhyFormatFlat(markVec)

	info := scan._ht._markInfo
	for i := 0; i < left.Card(); i++ {
		found := scan._foundMatch != nil && scan._foundMatch[i]
		markSlice[i] = found != antiMark
		if found {
			continue
		}
		if info != nil {
			countStar, count := info.Lookup(keys, i)
			if countStar == 0 {
				//empty group compares against nothing
				markSlice[i] = antiMark
				continue
			}
			if scan.rowIsNullKey(i) || count < countStar {
				markMask.SetInvalid(uint64(i))
			}
			continue
		}
		if scan.rowIsNullKey(i) || scan._ht._hasNull {
			markMask.SetInvalid(uint64(i))
		}
	}
}

func (scan *Scan) ScanKeyMatches(keys *chunk.Chunk) {
	matchSel := chunk.NewSelectVector(util.DefaultVectorSize)
	noMatchSel := chunk.NewSelectVector(util.DefaultVectorSize)
	for scan._count > 0 {
		matchCount := scan.resolvePredicates(keys, matchSel, noMatchSel)
		noMatchCount := scan._count - matchCount

		for i := 0; i < matchCount; i++ {
			scan._foundMatch[matchSel.GetIndex(i)] = true
		}
		scan.markBuildMatches(matchSel, matchCount)

		scan.advancePointers(noMatchSel, noMatchCount)
	}
}

func (scan *Scan) NextInnerJoin(keys, left, result *chunk.Chunk) {
	util.AssertFunc(result.ColumnCount() ==
		left.ColumnCount()+len(scan._ht._buildTypes))
	if scan._count == 0 {
		return
	}
	resVec := chunk.NewSelectVector(util.DefaultVectorSize)
	resCnt := scan.InnerJoin(keys, resVec)
	if resCnt > 0 {
		//left part result
		result.Slice(left, resVec, resCnt, 0)
		//right part result
		for i := 0; i < len(scan._ht._buildTypes); i++ {
			vec := result.Data[left.ColumnCount()+i]
			util.AssertFunc(vec.Typ().Equal(scan._ht._buildTypes[i]))
			scan.gatherResult2(
				vec,
				resVec,
				resCnt,
				i+len(scan._ht._keyTypes))
		}
		scan.advancePointers2()
	}
}

// NextSingleJoin emits exactly one row per probe row: the first match,
// or NULL padding when there is none.
func (scan *Scan) NextSingleJoin(keys, left, result *chunk.Chunk) {
	util.AssertFunc(result.ColumnCount() ==
		left.ColumnCount()+len(scan._ht._buildTypes))
	matchSel := chunk.NewSelectVector(util.DefaultVectorSize)
	noMatchSel := chunk.NewSelectVector(util.DefaultVectorSize)

	//row locations of the first match per probe row
	firstMatch := make([]unsafe.Pointer, left.Card())
	ptrs := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers)
	for scan._count > 0 {
		matchCount := scan.resolvePredicates(keys, matchSel, noMatchSel)
		noMatchCount := scan._count - matchCount
		for i := 0; i < matchCount; i++ {
			idx := matchSel.GetIndex(i)
			if !scan._foundMatch[idx] {
				scan._foundMatch[idx] = true
				firstMatch[idx] = ptrs[idx]
			}
		}
		scan.markBuildMatches(matchSel, matchCount)
		scan.advancePointers(noMatchSel, noMatchCount)
	}

	result.SetCard(left.Card())
	for i := 0; i < left.ColumnCount(); i++ {
		result.Data[i].Reference(left.Data[i])
	}
	copy(ptrs, firstMatch)
	matchedSel := chunk.NewSelectVector(util.DefaultVectorSize)
	matchedCnt := 0
	for row := 0; row < left.Card(); row++ {
		if firstMatch[row] != nil {
			matchedSel.SetIndex(matchedCnt, row)
			matchedCnt++
		}
	}
	for i := 0; i < len(scan._ht._buildTypes); i++ {
		vec := result.Data[left.ColumnCount()+i]
		for row := 0; row < left.Card(); row++ {
			if firstMatch[row] == nil {
				chunk.SetNullInPhyFormatFlat(vec, uint64(row), true)
			}
		}
		scan._ht._collection.Gather(
			chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers),
			matchedSel,
			matchedCnt,
			i+len(scan._ht._keyTypes),
			vec,
			matchedSel,
		)
	}
	scan._finished = true
}

func (scan *Scan) gatherResult(
	result *chunk.Vector,
	resVec *chunk.SelectVector,
	selVec *chunk.SelectVector,
	cnt int,
	colNo int,
) {
	scan._ht._collection.Gather(
		chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers),
		selVec,
		cnt,
		colNo,
		result,
		resVec,
	)
}

func (scan *Scan) gatherResult2(
	result *chunk.Vector,
	selVec *chunk.SelectVector,
	cnt int,
	colIdx int,
) {
	resVec := chunk.IncrSelectVectorInPhyFormatFlat()
	scan.gatherResult(result, resVec, selVec, cnt, colIdx)
}

func (scan *Scan) InnerJoin(keys *chunk.Chunk, resVec *chunk.SelectVector) int {
	for {
		resCnt := scan.resolvePredicates(
			keys,
			resVec,
			nil,
		)
		if len(scan._foundMatch) != 0 {
			for i := 0; i < resCnt; i++ {
				idx := resVec.GetIndex(i)
				scan._foundMatch[idx] = true
			}
		}
		scan.markBuildMatches(resVec, resCnt)
		if resCnt > 0 {
			return resCnt
		}

		scan.advancePointers2()
		if scan._count == 0 {
			return 0
		}
	}
}

// markBuildMatches records matched build rows for the outer sweep.
func (scan *Scan) markBuildMatches(matchSel *chunk.SelectVector, matchCount int) {
	if scan._ht._joinType != LOT_JoinTypeOUTER {
		return
	}
	ptrs := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers)
	for i := 0; i < matchCount; i++ {
		idx := matchSel.GetIndex(i)
		seq := util.Load[uint64](
			util.PointerAdd(ptrs[idx], scan._ht._seqOffset))
		scan._ht._matched[seq].Store(true)
	}
}

func (scan *Scan) advancePointers2() {
	scan.advancePointers(scan._selVec, scan._count)
}

func (scan *Scan) advancePointers(sel *chunk.SelectVector, cnt int) {
	newCnt := 0
	ptrs := chunk.GetSliceInPhyFormatFlat[unsafe.Pointer](scan._pointers)

	for i := 0; i < cnt; i++ {
		idx := sel.GetIndex(i)
		temp := util.PointerAdd(ptrs[idx], scan._ht._pointerOffset)
		ptrs[idx] = util.Load[unsafe.Pointer](temp)
		if ptrs[idx] != nil {
			scan._selVec.SetIndex(newCnt, idx)
			newCnt++
		}
	}

	scan._count = newCnt
}

func (scan *Scan) resolvePredicates(
	keys *chunk.Chunk,
	matchSel *chunk.SelectVector,
	noMatchSel *chunk.SelectVector,
) int {
	for i := 0; i < scan._count; i++ {
		matchSel.SetIndex(i, scan._selVec.GetIndex(i))
	}
	noMatchCount := 0
	return Match(
		keys,
		scan._keyData,
		scan._ht._layout,
		scan._pointers,
		scan._ht._predTypes,
		matchSel,
		scan._count,
		noMatchSel,
		&noMatchCount,
	)
}
