package storage

import (
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/tidwall/btree"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

const (
	IndexTypeInvalid uint8 = 0
	IndexTypeBPlus   uint8 = 2
)

const (
	IndexConstraintTypeNone    uint8 = 0
	IndexConstraintTypeUnique  uint8 = 1
	IndexConstraintTypePrimary uint8 = 2
)

const (
	ExprTypeInvalid              uint8 = 0
	ExprTypeEqual                uint8 = 1
	ExprTypeGreaterThanOrEqualTo uint8 = 2
	ExprTypeGreaterThan          uint8 = 3
	ExprTypeLessThanOrEqualTo    uint8 = 4
	ExprTypeLessThan             uint8 = 5
)

type IndexScanState struct {
	_values   [2]*chunk.Value
	_exprTyps [2]uint8
}

type Index struct {
	_typ            uint8
	_columnIds      []int
	_types          []common.PhyType
	_logicalTypes   []common.LType
	_constraintType uint8
	_lock           sync.Mutex
	_btree          *btree.BTreeG[*IndexKey]
}

type IndexKey struct {
	_data unsafe.Pointer
	_len  uint32
	_val  uint64
}

func (k *IndexKey) Empty() bool {
	return k._len == 0
}

func IndexKeyLess(a, b *IndexKey) bool {
	if a._len == 0 && b._len == 0 {
		return false
	} else if a._len == 0 {
		return false
	} else if b._len == 0 {
		return true
	}
	return util.PointerMemcmp2(a._data, b._data, int(a._len), int(b._len)) < 0
}

func NewIndex(
	typ uint8,
	columnIds []int,
	lTyps []common.LType,
	constraintTyp uint8,
) *Index {
	util.AssertFunc(typ == IndexTypeBPlus)
	ret := &Index{
		_typ:            typ,
		_columnIds:      columnIds,
		_logicalTypes:   lTyps,
		_constraintType: constraintTyp,
		_btree:          btree.NewBTreeG[*IndexKey](IndexKeyLess),
	}
	for _, lTyp := range ret._logicalTypes {
		ret._types = append(ret._types, lTyp.GetInternalType())
	}
	return ret
}

func (idx *Index) IsPrimary() bool {
	return idx._constraintType == IndexConstraintTypePrimary
}

func (idx *Index) InitScanSinglePredicate(
	txn *Txn,
	value *chunk.Value,
	exprTyp uint8,
) *IndexScanState {
	ret := &IndexScanState{}
	ret._values[0] = value
	ret._exprTyps[0] = exprTyp
	ret._values[1] = &chunk.Value{IsNull: true}
	return ret
}

func (idx *Index) InitScanTwoPredicates(
	txn *Txn,
	lowValue *chunk.Value,
	lowExprTyp uint8,
	highValue *chunk.Value,
	highExprTyp uint8,
) *IndexScanState {
	ret := &IndexScanState{}
	ret._values[0] = lowValue
	ret._values[1] = highValue
	ret._exprTyps[0] = lowExprTyp
	ret._exprTyps[1] = highExprTyp
	return ret
}

// Scan collects row ids matching the scan predicates in row order.
// Returns false when more than maxCount rows matched.
func (idx *Index) Scan(
	txn *Txn,
	state *IndexScanState,
	maxCount int,
	resultIds *[]uint64,
) bool {
	var rowIds []uint64
	var success bool
	util.AssertFunc(state._values[0].Typ.GetInternalType() == idx._types[0])
	key := CreateKey(idx._types[0], state._values[0])

	idx._lock.Lock()
	if state._values[1].IsNull {
		switch state._exprTyps[0] {
		case ExprTypeEqual:
			success = idx.SearchEqual(key, maxCount, &rowIds)
		case ExprTypeGreaterThanOrEqualTo:
			success = idx.SearchGreater(key, true, maxCount, &rowIds)
		case ExprTypeGreaterThan:
			success = idx.SearchGreater(key, false, maxCount, &rowIds)
		case ExprTypeLessThanOrEqualTo:
			success = idx.SearchLess(key, true, maxCount, &rowIds)
		case ExprTypeLessThan:
			success = idx.SearchLess(key, false, maxCount, &rowIds)
		default:
			panic("usp")
		}
	} else {
		util.AssertFunc(state._values[1].Typ.GetInternalType() == idx._types[0])
		upKey := CreateKey(idx._types[0], state._values[1])
		leftInclusive := state._exprTyps[0] == ExprTypeGreaterThanOrEqualTo
		rightInclusive := state._exprTyps[1] == ExprTypeLessThanOrEqualTo
		success = idx.SearchCloseRange(
			key,
			upKey,
			leftInclusive,
			rightInclusive,
			maxCount,
			&rowIds,
		)
	}
	idx._lock.Unlock()

	if !success {
		return false
	}

	if len(rowIds) == 0 {
		return true
	}

	slices.Sort(rowIds)
	*resultIds = append(*resultIds, rowIds[0])
	for i := 1; i < len(rowIds); i++ {
		if rowIds[i] != rowIds[i-1] {
			*resultIds = append(*resultIds, rowIds[i])
		}
	}
	return true
}

func (idx *Index) SearchEqual(
	key *IndexKey,
	maxCount int,
	resultIds *[]uint64) bool {
	item, has := idx._btree.Get(key)
	if has {
		*resultIds = append(*resultIds, item._val)
	}
	return true
}

func (idx *Index) SearchGreater(
	key *IndexKey,
	inclusive bool,
	maxCount int,
	resultIds *[]uint64) bool {
	cnt := 0
	idx._btree.Ascend(key, func(item *IndexKey) bool {
		if cnt >= maxCount {
			return false
		}
		if !inclusive &&
			!IndexKeyLess(key, item) &&
			!IndexKeyLess(item, key) {
			return true
		}
		*resultIds = append(*resultIds, item._val)
		cnt++
		return true
	})
	return cnt < maxCount
}

func (idx *Index) SearchLess(
	key *IndexKey,
	inclusive bool,
	maxCount int,
	resultIds *[]uint64) bool {
	cnt := 0
	idx._btree.Descend(key, func(item *IndexKey) bool {
		if cnt >= maxCount {
			return false
		}
		if !inclusive &&
			!IndexKeyLess(key, item) &&
			!IndexKeyLess(item, key) {
			return true
		}
		*resultIds = append(*resultIds, item._val)
		cnt++
		return true
	})
	slices.Reverse(*resultIds)
	return cnt < maxCount
}

func (idx *Index) SearchCloseRange(
	key *IndexKey,
	upKey *IndexKey,
	leftInclusive bool,
	rightInclusive bool,
	maxCount int,
	resultIds *[]uint64) bool {
	cnt := 0
	idx._btree.Ascend(key, func(item *IndexKey) bool {
		if cnt >= maxCount {
			return false
		}
		if !leftInclusive &&
			!IndexKeyLess(key, item) &&
			!IndexKeyLess(item, key) {
			return true
		}
		if !IndexKeyLess(item, upKey) {
			if rightInclusive && !IndexKeyLess(upKey, item) {
				*resultIds = append(*resultIds, item._val)
				cnt++
			}
			return false
		}
		*resultIds = append(*resultIds, item._val)
		cnt++
		return true
	})
	return cnt < maxCount
}

// Insert adds the index columns of entries under sequential row ids
// starting at baseRow. Fails on a duplicate key, undoing earlier rows.
func (idx *Index) Insert(entries *chunk.Chunk, baseRow int) error {
	idx._lock.Lock()
	defer idx._lock.Unlock()

	temp := &chunk.Chunk{}
	temp.Init(idx._logicalTypes, util.DefaultVectorSize)
	for i, colIdx := range idx._columnIds {
		temp.Data[i].Reference(entries.Data[colIdx])
	}
	temp.SetCard(entries.Card())

	keys := make([]*IndexKey, temp.Card())
	for i := 0; i < temp.Card(); i++ {
		keys[i] = &IndexKey{}
	}
	idx.GenerateKeys(temp, keys)

	failedIndex := -1
	for i := 0; i < temp.Card(); i++ {
		if keys[i].Empty() {
			continue
		}
		keys[i]._val = uint64(baseRow + i)
		_, has := idx._btree.Set(keys[i])
		if has {
			failedIndex = i
			break
		}
	}

	if failedIndex != -1 {
		for i := 0; i < failedIndex; i++ {
			if keys[i].Empty() {
				continue
			}
			idx._btree.Delete(keys[i])
		}
		return fmt.Errorf("duplicate key")
	}
	return nil
}

func (idx *Index) GenerateKeys(
	input *chunk.Chunk,
	keys []*IndexKey,
) {
	switch input.Data[0].Typ().GetInternalType() {
	case common.INT32:
		TemplatedGenerateKeys[int32](
			input.Data[0],
			input.Card(),
			keys, util.Int32Encoder{})
	case common.INT64:
		TemplatedGenerateKeys[int64](
			input.Data[0],
			input.Card(),
			keys, util.Int64Encoder{})
	case common.UINT64:
		TemplatedGenerateKeys[uint64](
			input.Data[0],
			input.Card(),
			keys, util.Uint64Encoder{})
	case common.VARCHAR:
		GenerateStringKeys(
			input.Data[0],
			input.Card(),
			keys,
		)
	default:
		panic("usp")
	}
}

func TemplatedGenerateKeys[T any](
	input *chunk.Vector,
	count int,
	keys []*IndexKey,
	enc util.Encoder[T],
) {
	var idata chunk.UnifiedFormat
	input.ToUnifiedFormat(count, &idata)

	util.AssertFunc(len(keys) >= count)
	inputData := chunk.GetSliceInPhyFormatUnifiedFormat[T](&idata)
	for i := 0; i < count; i++ {
		idx := idata.Sel.GetIndex(i)
		if idata.Mask.RowIsValid(uint64(idx)) {
			CreateIndexKey(input.Typ(), keys[i], &inputData[idx], enc)
		} else {
			keys[i] = &IndexKey{}
		}
	}
}

func GenerateStringKeys(
	input *chunk.Vector,
	count int,
	keys []*IndexKey,
) {
	var idata chunk.UnifiedFormat
	input.ToUnifiedFormat(count, &idata)

	util.AssertFunc(len(keys) >= count)
	inputData := chunk.GetSliceInPhyFormatUnifiedFormat[common.String](&idata)
	for i := 0; i < count; i++ {
		idx := idata.Sel.GetIndex(i)
		if idata.Mask.RowIsValid(uint64(idx)) {
			CreateStringIndexKey(input.Typ(), keys[i], &inputData[idx])
		} else {
			keys[i] = &IndexKey{}
		}
	}
}

func CreateIndexKey[T any](
	typ common.LType,
	key *IndexKey,
	val *T,
	enc util.Encoder[T],
) {
	sz := typ.GetInternalType().Size()
	dst := util.CMalloc(sz)
	enc.EncodeData(dst, val)
	key._data = dst
	key._len = uint32(sz)
}

func CreateStringIndexKey(
	typ common.LType,
	key *IndexKey,
	value *common.String,
) {
	l := value.Length() + 1
	dst := util.CMalloc(l)
	util.PointerCopy(dst, value.DataPtr(), l-1)

	data := util.PointerToSlice[byte](dst, l)
	data[l-1] = 0
	key._data = dst
	key._len = uint32(l)
}

func CreateKey(
	pType common.PhyType,
	value *chunk.Value) *IndexKey {
	util.AssertFunc(pType == value.Typ.GetInternalType())
	key := &IndexKey{}
	switch pType {
	case common.INT32:
		val32 := int32(value.I64)
		CreateIndexKey(value.Typ, key, &val32, util.Int32Encoder{})
	case common.INT64:
		val64 := value.I64
		CreateIndexKey(value.Typ, key, &val64, util.Int64Encoder{})
	case common.UINT64:
		valU64 := uint64(value.I64)
		CreateIndexKey(value.Typ, key, &valU64, util.Uint64Encoder{})
	case common.VARCHAR:
		str := common.NewString(value.Str)
		CreateStringIndexKey(value.Typ, key, &str)
	default:
		panic("usp")
	}
	return key
}
