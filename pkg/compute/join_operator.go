package compute

import (
	"sync"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

type HashJoinStage int

const (
	HJS_INIT HashJoinStage = iota
	HJS_BUILD
	HJS_FINALIZE
	HJS_PROBE
	HJS_DONE
)

// HashJoinGlobalState is shared by every build producer.
type HashJoinGlobalState struct {
	_ht            *JoinHashTable
	_fullOuterScan *FullOuterScanState
	_lock          sync.Mutex
}

// HashJoinLocalState collects build rows privately. CombineLocal moves
// them into the global table.
type HashJoinLocalState struct {
	_ht         *JoinHashTable
	_joinKeys   *chunk.Chunk
	_buildChunk *chunk.Chunk
	_buildExec  *ExprExec
}

type HashJoin struct {
	_conds []*Expr

	_joinType LOT_JoinType

	_correlatedCols int

	//build side columns kept as payload. empty keeps all of them.
	_buildProjMap []int

	//types of the keys. the type of left part in the join on condition expr.
	_keyTypes []common.LType

	//types of right children of join.
	_buildTypes []common.LType

	//types of the probe child output
	_probeTypes []common.LType

	//types of the output chunk in Scan.Next
	_scanNextTyps []common.LType

	//colIdx of the left(right) children in the output chunk in Scan.Next
	_leftIndice  []int
	_rightIndice []int
	_markIndex   int

	_hjs    HashJoinStage
	_global *HashJoinGlobalState

	_probExec *ExprExec
	_joinKeys *chunk.Chunk

	//probe state kept across GetNext calls
	_scan        *Scan
	_leftChunk   *chunk.Chunk
	_probeSource OperatorSource

	_cachedChunk *chunk.Chunk
	_conf        *util.Config
}

func NewHashJoin(
	conds []*Expr,
	probeTypes []common.LType,
	buildSideTypes []common.LType,
	buildProjMap []int,
	joinTyp LOT_JoinType,
	correlatedCols int,
	conf *util.Config,
) *HashJoin {
	if conf == nil {
		conf = util.DefaultConfig()
	}
	hj := new(HashJoin)
	hj._hjs = HJS_INIT
	hj._joinType = joinTyp
	hj._correlatedCols = correlatedCols
	hj._conds = copyExprs(conds...)
	hj._conf = conf
	hj._probeTypes = common.CopyLTypes(probeTypes...)
	hj._buildProjMap = buildProjMap
	for _, cond := range conds {
		hj._keyTypes = append(hj._keyTypes, cond.Children[0].DataTyp)
	}

	for i, typ := range probeTypes {
		hj._scanNextTyps = append(hj._scanNextTyps, typ)
		hj._leftIndice = append(hj._leftIndice, i)
	}

	//when a projection map is set, only the mapped build columns
	//become payload
	payloadTypes := buildSideTypes
	if len(buildProjMap) != 0 {
		payloadTypes = make([]common.LType, 0, len(buildProjMap))
		for _, colIdx := range buildProjMap {
			payloadTypes = append(payloadTypes, buildSideTypes[colIdx])
		}
	}

	if projectsBuildSide(joinTyp) {
		rightIdxOffset := len(hj._scanNextTyps)
		for i, typ := range payloadTypes {
			hj._buildTypes = append(hj._buildTypes, typ)
			hj._scanNextTyps = append(hj._scanNextTyps, typ)
			hj._rightIndice = append(hj._rightIndice, rightIdxOffset+i)
		}
	}

	if joinTyp == LOT_JoinTypeMARK || joinTyp == LOT_JoinTypeAntiMARK {
		hj._scanNextTyps = append(hj._scanNextTyps, common.BooleanType())
		hj._markIndex = len(hj._scanNextTyps) - 1
	}

	hj._global = &HashJoinGlobalState{
		_ht: NewJoinHashTable(conds, hj._buildTypes, joinTyp, correlatedCols),
	}

	hj._probExec = &ExprExec{}
	for _, cond := range hj._conds {
		hj._probExec.addExpr(cond.Children[0])
	}
	hj._joinKeys = &chunk.Chunk{}
	hj._joinKeys.Init(hj._keyTypes, util.DefaultVectorSize)

	hj._cachedChunk = &chunk.Chunk{}
	hj._cachedChunk.Init(hj._scanNextTyps, util.DefaultVectorSize)
	return hj
}

// SEMI, ANTI and the mark joins emit no build side columns.
func projectsBuildSide(joinTyp LOT_JoinType) bool {
	switch joinTyp {
	case LOT_JoinTypeSEMI, LOT_JoinTypeANTI,
		LOT_JoinTypeMARK, LOT_JoinTypeAntiMARK:
		return false
	default:
		return true
	}
}

func (hj *HashJoin) SetProbeSource(src OperatorSource) {
	hj._probeSource = src
}

func (hj *HashJoin) ScanTypes() []common.LType {
	return common.CopyLTypes(hj._scanNextTyps...)
}

// NewLocalState makes a producer private sink state.
func (hj *HashJoin) NewLocalState() *HashJoinLocalState {
	local := &HashJoinLocalState{
		_ht: NewJoinHashTable(hj._conds, hj._buildTypes,
			hj._joinType, hj._correlatedCols),
	}
	local._joinKeys = &chunk.Chunk{}
	local._joinKeys.Init(hj._keyTypes, util.DefaultVectorSize)
	local._buildChunk = &chunk.Chunk{}
	local._buildChunk.Init(hj._buildTypes, util.DefaultVectorSize)
	local._buildExec = &ExprExec{}
	for _, cond := range hj._conds {
		local._buildExec.addExpr(cond.Children[1])
	}
	return local
}

// Sink serializes one build side chunk into the local collection.
func (hj *HashJoin) Sink(local *HashJoinLocalState, input *chunk.Chunk) (SinkResult, error) {
	if hj._hjs == HJS_INIT {
		hj._hjs = HJS_BUILD
	}
	util.AssertFunc(hj._hjs == HJS_BUILD)
	local._joinKeys.Reset()
	err := local._buildExec.executeExprs([]*chunk.Chunk{nil, input, nil},
		local._joinKeys)
	if err != nil {
		return SinkResNeedMoreInput, err
	}

	if len(hj._buildTypes) == 0 {
		local._buildChunk.SetCard(input.Card())
		local._ht.Build(local._joinKeys, local._buildChunk)
	} else if len(hj._buildProjMap) != 0 {
		//alias the projected payload columns, no copy
		local._buildChunk.ReferenceIndice(input, hj._buildProjMap)
		local._ht.Build(local._joinKeys, local._buildChunk)
	} else {
		local._ht.Build(local._joinKeys, input)
	}
	return SinkResNeedMoreInput, nil
}

// CombineLocal merges a producer local collection into the shared table.
func (hj *HashJoin) CombineLocal(local *HashJoinLocalState) {
	hj._global._lock.Lock()
	defer hj._global._lock.Unlock()
	hj._global._ht.Merge(local._ht)
}

// Finalize freezes the table. Build is over, probing may start.
func (hj *HashJoin) Finalize() {
	util.AssertFunc(hj._hjs == HJS_BUILD || hj._hjs == HJS_INIT)
	hj._hjs = HJS_FINALIZE
	hj._global._ht.Finalize()
	if hj._joinType == LOT_JoinTypeOUTER {
		hj._global._fullOuterScan = NewFullOuterScanState(hj._global._ht)
	}
	hj._hjs = HJS_PROBE
}

func (hj *HashJoin) lowWatermark() int {
	return int(hj._conf.JoinCache.LowWatermark * float64(util.DefaultVectorSize))
}

func (hj *HashJoin) highWatermark() int {
	return int(hj._conf.JoinCache.HighWatermark * float64(util.DefaultVectorSize))
}

// GetNext produces the next probe result batch into output. output must
// be initialized with ScanTypes. Returns Done at end of stream.
func (hj *HashJoin) GetNext(output *chunk.Chunk) (OperatorResult, error) {
	util.AssertFunc(hj._hjs == HJS_PROBE)
	util.AssertFunc(hj._probeSource != nil)
	ht := hj._global._ht

	if ht.count() == 0 {
		return hj.emptyBuildSide(output)
	}

	for {
		//drain the running scan cursor first
		if hj._scan != nil {
			next := &chunk.Chunk{}
			next.Init(hj._scanNextTyps, util.DefaultVectorSize)
			hj._scan.Next(hj._joinKeys, hj._leftChunk, next)
			if next.Card() > 0 {
				res := hj.deliver(next, output)
				if res != InvalidOpResult {
					return res, nil
				}
				continue
			}
			hj._scan = nil
			hj._leftChunk = nil
		}

		leftChunk := &chunk.Chunk{}
		leftChunk.Init(hj._probeTypes, util.DefaultVectorSize)
		srcRes, err := hj._probeSource.GetChunk(leftChunk)
		if err != nil {
			return InvalidOpResult, err
		}
		if srcRes == SrcResDone {
			return hj.finishProbe(output)
		}
		if leftChunk.Card() == 0 {
			continue
		}

		hj._joinKeys.Reset()
		err = hj._probExec.executeExprs([]*chunk.Chunk{leftChunk, nil, nil},
			hj._joinKeys)
		if err != nil {
			return InvalidOpResult, err
		}
		hj._scan = ht.Probe(hj._joinKeys)
		hj._leftChunk = leftChunk
	}
}

// deliver routes a scan result through the chunk cache. Small batches
// pile up in the cache, anything else goes straight out. Returns
// InvalidOpResult when nothing is ready yet.
func (hj *HashJoin) deliver(next *chunk.Chunk, output *chunk.Chunk) OperatorResult {
	if next.Card() >= hj.lowWatermark() {
		output.Reference(next)
		return haveMoreOutput
	}
	//Append's copy kernel resolves dict and const sources itself
	hj._cachedChunk.Append(next, nil, next.Card())
	if hj._cachedChunk.Card() > hj.highWatermark() {
		output.Reference(hj._cachedChunk)
		hj._cachedChunk = &chunk.Chunk{}
		hj._cachedChunk.Init(hj._scanNextTyps, util.DefaultVectorSize)
		return haveMoreOutput
	}
	return InvalidOpResult
}

// finishProbe flushes the cache and, for outer joins, emits the build
// rows nothing matched.
func (hj *HashJoin) finishProbe(output *chunk.Chunk) (OperatorResult, error) {
	if hj._cachedChunk.Card() > 0 {
		output.Reference(hj._cachedChunk)
		hj._cachedChunk = &chunk.Chunk{}
		hj._cachedChunk.Init(hj._scanNextTyps, util.DefaultVectorSize)
		return haveMoreOutput, nil
	}
	if hj._global._fullOuterScan != nil {
		found := hj._global._ht.ScanFullOuter(
			hj._global._fullOuterScan,
			output,
			len(hj._probeTypes),
		)
		if found > 0 {
			return haveMoreOutput, nil
		}
	}
	hj._hjs = HJS_DONE
	return Done, nil
}

// emptyBuildSide handles probing a table that kept no rows. The join
// type decides between ending the stream and passing probe rows
// through with padding.
func (hj *HashJoin) emptyBuildSide(output *chunk.Chunk) (OperatorResult, error) {
	switch hj._joinType {
	case LOT_JoinTypeInner, LOT_JoinTypeSEMI:
		hj._hjs = HJS_DONE
		return Done, nil
	case LOT_JoinTypeANTI:
		if hj._global._ht._hasNull {
			//NOT IN against NULL only build keys matches nothing
			hj._hjs = HJS_DONE
			return Done, nil
		}
	}
	leftChunk := &chunk.Chunk{}
	leftChunk.Init(hj._probeTypes, util.DefaultVectorSize)
	srcRes, err := hj._probeSource.GetChunk(leftChunk)
	if err != nil {
		return InvalidOpResult, err
	}
	if srcRes == SrcResDone {
		hj._hjs = HJS_DONE
		return Done, nil
	}
	ConstructEmptyJoinResult(
		hj._joinType,
		hj._global._ht._hasNull,
		leftChunk,
		output,
	)
	return haveMoreOutput, nil
}

// ConstructEmptyJoinResult fills output for probe rows that met an
// empty build side.
func ConstructEmptyJoinResult(
	joinTyp LOT_JoinType,
	hasNull bool,
	left *chunk.Chunk,
	result *chunk.Chunk,
) {
	switch joinTyp {
	case LOT_JoinTypeANTI:
		result.Reference(left)
	case LOT_JoinTypeLeft, LOT_JoinTypeOUTER, LOT_JoinTypeSINGLE:
		result.SetCard(left.Card())
		for i := 0; i < left.ColumnCount(); i++ {
			result.Data[i].Reference(left.Data[i])
		}
		for i := left.ColumnCount(); i < result.ColumnCount(); i++ {
			vec := result.Data[i]
			vec.SetPhyFormat(chunk.PF_CONST)
			chunk.SetNullInPhyFormatConst(vec, true)
		}
	case LOT_JoinTypeMARK, LOT_JoinTypeAntiMARK:
		result.SetCard(left.Card())
		for i := 0; i < left.ColumnCount(); i++ {
			result.Data[i].Reference(left.Data[i])
		}
		markVec := util.Back(result.Data)
		markVec.SetPhyFormat(chunk.PF_CONST)
		if hasNull {
			//the build side held rows, every key was NULL
			chunk.SetNullInPhyFormatConst(markVec, true)
		} else {
			markSlice := chunk.GetSliceInPhyFormatConst[bool](markVec)
			markSlice[0] = joinTyp == LOT_JoinTypeAntiMARK
		}
	default:
		panic("usp")
	}
}
