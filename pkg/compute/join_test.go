package compute

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

// makeChunk fills a chunk row wise. nil cells become NULL.
func makeChunk(types []common.LType, rows ...[]any) *chunk.Chunk {
	ret := &chunk.Chunk{}
	ret.Init(types, util.DefaultVectorSize)
	for r, row := range rows {
		for c, cell := range row {
			val := &chunk.Value{Typ: types[c]}
			switch v := cell.(type) {
			case nil:
				val.IsNull = true
			case int:
				val.I64 = int64(v)
			case int64:
				val.I64 = v
			case float64:
				val.F64 = v
			case string:
				val.Str = v
			case bool:
				val.Bool = v
			default:
				panic("usp")
			}
			ret.Data[c].SetValue(r, val)
		}
	}
	ret.SetCard(len(rows))
	return ret
}

type chunkSource struct {
	chunks []*chunk.Chunk
	idx    int
}

func (src *chunkSource) GetChunk(output *chunk.Chunk) (SourceResult, error) {
	if src.idx >= len(src.chunks) {
		return SrcResDone, nil
	}
	output.Reference(src.chunks[src.idx])
	src.idx++
	return SrcResHaveMoreOutput, nil
}

func colRef(tbl, col uint64, typ common.LType) *Expr {
	return &Expr{
		Typ:     ET_Column,
		DataTyp: typ,
		ColRef:  ColumnBind{tbl, col},
	}
}

// eqCond compares probe column probeCol with build column buildCol.
func eqCond(typ common.LType, probeCol, buildCol uint64) *Expr {
	return &Expr{
		Typ:     ET_Func,
		SubTyp:  ET_Equal,
		DataTyp: common.BooleanType(),
		Children: []*Expr{
			colRef(0, probeCol, typ),
			colRef(1, buildCol, typ),
		},
	}
}

type joinCase struct {
	joinTyp        LOT_JoinType
	conds          []*Expr
	probeTypes     []common.LType
	buildTypes     []common.LType
	buildProjMap   []int
	buildChunks    []*chunk.Chunk
	probeChunks    []*chunk.Chunk
	correlatedCols int
	conf           *util.Config
}

func runJoin(t *testing.T, jc joinCase) []*chunk.Chunk {
	hj := NewHashJoin(jc.conds, jc.probeTypes, jc.buildTypes,
		jc.buildProjMap, jc.joinTyp, jc.correlatedCols, jc.conf)
	local := hj.NewLocalState()
	for _, bc := range jc.buildChunks {
		_, err := hj.Sink(local, bc)
		require.NoError(t, err)
	}
	hj.CombineLocal(local)
	hj.Finalize()
	hj.SetProbeSource(&chunkSource{chunks: jc.probeChunks})

	var outs []*chunk.Chunk
	for {
		out := &chunk.Chunk{}
		out.Init(hj.ScanTypes(), util.DefaultVectorSize)
		res, err := hj.GetNext(out)
		require.NoError(t, err)
		if out.Card() > 0 {
			outs = append(outs, out)
		}
		if res == Done {
			break
		}
	}
	return outs
}

// rowStrings renders every output row for order independent comparison.
func rowStrings(outs []*chunk.Chunk) []string {
	var rows []string
	for _, out := range outs {
		for i := 0; i < out.Card(); i++ {
			row := ""
			for c := 0; c < out.ColumnCount(); c++ {
				val := out.Data[c].GetValue(i)
				if c > 0 {
					row += "|"
				}
				row += val.String()
			}
			rows = append(rows, row)
		}
	}
	sort.Strings(rows)
	return rows
}

func totalCard(outs []*chunk.Chunk) int {
	cnt := 0
	for _, out := range outs {
		cnt += out.Card()
	}
	return cnt
}

var (
	i32     = common.IntegerType()
	vc      = common.VarcharType()
	i32Pair = []common.LType{common.IntegerType(), common.VarcharType()}
)

func Test_innerJoin(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeInner,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
			[]any{2, "b2"},
			[]any{2, "b2x"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
			[]any{5, "p5"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|1|b1",
		"2|p2|2|b2",
		"2|p2|2|b2x",
	}, rowStrings(outs))
}

// the projection map drops build columns from the payload while the
// key expressions still see the full build chunk.
func Test_innerJoinBuildProjection(t *testing.T) {
	buildTypes := []common.LType{i32, vc, i32}
	outs := runJoin(t, joinCase{
		joinTyp:      LOT_JoinTypeInner,
		conds:        []*Expr{eqCond(i32, 0, 0)},
		probeTypes:   i32Pair,
		buildTypes:   buildTypes,
		buildProjMap: []int{2},
		buildChunks: []*chunk.Chunk{makeChunk(buildTypes,
			[]any{1, "b1", 10},
			[]any{2, "b2", 20},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{2, "p2"},
		)},
	})
	assert.Equal(t, []string{"2|p2|20"}, rowStrings(outs))
}

func Test_innerJoinBatchingInvariance(t *testing.T) {
	build := [][]any{}
	probe := [][]any{}
	for i := 0; i < 300; i++ {
		build = append(build, []any{i % 50, fmt.Sprintf("b%d", i)})
		probe = append(probe, []any{i % 70, fmt.Sprintf("p%d", i)})
	}

	oneShot := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeInner,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair, build...)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair, probe...)},
	})

	split := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeInner,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{
			makeChunk(i32Pair, build[:97]...),
			makeChunk(i32Pair, build[97:211]...),
			makeChunk(i32Pair, build[211:]...),
		},
		probeChunks: []*chunk.Chunk{
			makeChunk(i32Pair, probe[:33]...),
			makeChunk(i32Pair, probe[33:250]...),
			makeChunk(i32Pair, probe[250:]...),
		},
	})
	assert.Equal(t, rowStrings(oneShot), rowStrings(split))
}

func Test_semiAntiPartition(t *testing.T) {
	build := makeChunk(i32Pair,
		[]any{1, "b1"},
		[]any{3, "b3"},
	)
	probeRows := [][]any{
		{1, "p1"}, {2, "p2"}, {3, "p3"}, {4, "p4"},
	}
	semi := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeSEMI,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{build},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair, probeRows...)},
	})
	anti := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeANTI,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair, []any{1, "b1"}, []any{3, "b3"})},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair, probeRows...)},
	})
	assert.Equal(t, []string{"1|p1", "3|p3"}, rowStrings(semi))
	assert.Equal(t, []string{"2|p2", "4|p4"}, rowStrings(anti))
	assert.Equal(t, len(probeRows), totalCard(semi)+totalCard(anti))
}

func Test_antiJoinNullBuildKey(t *testing.T) {
	//NOT IN against a build side holding a NULL key matches nothing
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeANTI,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
			[]any{nil, "bnull"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
		)},
	})
	assert.Equal(t, 0, totalCard(outs))
}

func Test_semiAntiNullProbeKey(t *testing.T) {
	build := [][]any{{1, "b1"}}
	probe := [][]any{
		{1, "p1"}, {nil, "pnull"}, {2, "p2"},
	}
	semi := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeSEMI,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair, build...)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair, probe...)},
	})
	anti := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeANTI,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair, build...)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair, probe...)},
	})
	//a NULL probe key is neither IN nor NOT IN
	assert.Equal(t, []string{"1|p1"}, rowStrings(semi))
	assert.Equal(t, []string{"2|p2"}, rowStrings(anti))
}

func Test_leftJoin(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeLeft,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|1|b1",
		"2|p2|NULL|NULL",
	}, rowStrings(outs))
}

func Test_outerJoinFullOuterSweep(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeOUTER,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
			[]any{9, "b9"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|1|b1",
		"2|p2|NULL|NULL",
		"NULL|NULL|9|b9",
	}, rowStrings(outs))
}

func Test_outerJoinNoUnmatchedBuildRows(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeOUTER,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{1, "p1x"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1x|1|b1",
		"1|p1|1|b1",
	}, rowStrings(outs))
}

func Test_markJoin(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeMARK,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
			[]any{nil, "pnull"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|true",
		"2|p2|false",
		"NULL|pnull|NULL",
	}, rowStrings(outs))
}

func Test_markJoinNullBuildKey(t *testing.T) {
	//a NULL build key turns every miss into NULL
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeMARK,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
			[]any{nil, "bnull"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|true",
		"2|p2|NULL",
	}, rowStrings(outs))
}

func Test_antiMarkJoin(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeAntiMARK,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
			[]any{nil, "pnull"},
		)},
	})
	assert.Equal(t, []string{
		"1|p1|false",
		"2|p2|true",
		"NULL|pnull|NULL",
	}, rowStrings(outs))
}

func Test_singleJoin(t *testing.T) {
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeSINGLE,
		conds:      []*Expr{eqCond(i32, 0, 0)},
		probeTypes: i32Pair,
		buildTypes: i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "b1"},
			[]any{1, "b1x"},
			[]any{3, "b3"},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
			[]any{3, "p3"},
		)},
	})
	//exactly one output row per probe row
	assert.Equal(t, 3, totalCard(outs))
	rows := rowStrings(outs)
	assert.Contains(t, []string{"1|p1|1|b1", "1|p1|1|b1x"}, rows[0])
	assert.Equal(t, "2|p2|NULL|NULL", rows[1])
	assert.Equal(t, "3|p3|3|b3", rows[2])
}

func Test_emptyBuildSide(t *testing.T) {
	probe := func() []*chunk.Chunk {
		return []*chunk.Chunk{makeChunk(i32Pair,
			[]any{1, "p1"},
			[]any{2, "p2"},
		)}
	}
	base := func(joinTyp LOT_JoinType) joinCase {
		return joinCase{
			joinTyp:     joinTyp,
			conds:       []*Expr{eqCond(i32, 0, 0)},
			probeTypes:  i32Pair,
			buildTypes:  i32Pair,
			probeChunks: probe(),
		}
	}

	t.Run("inner ends immediately", func(t *testing.T) {
		outs := runJoin(t, base(LOT_JoinTypeInner))
		assert.Equal(t, 0, totalCard(outs))
	})
	t.Run("semi ends immediately", func(t *testing.T) {
		outs := runJoin(t, base(LOT_JoinTypeSEMI))
		assert.Equal(t, 0, totalCard(outs))
	})
	t.Run("anti passes probe through", func(t *testing.T) {
		outs := runJoin(t, base(LOT_JoinTypeANTI))
		assert.Equal(t, []string{"1|p1", "2|p2"}, rowStrings(outs))
	})
	t.Run("anti with null only build keys emits nothing", func(t *testing.T) {
		jc := base(LOT_JoinTypeANTI)
		jc.buildChunks = []*chunk.Chunk{makeChunk(i32Pair,
			[]any{nil, "bnull"},
		)}
		outs := runJoin(t, jc)
		assert.Equal(t, 0, totalCard(outs))
	})
	t.Run("left pads with NULL", func(t *testing.T) {
		outs := runJoin(t, base(LOT_JoinTypeLeft))
		assert.Equal(t, []string{
			"1|p1|NULL|NULL",
			"2|p2|NULL|NULL",
		}, rowStrings(outs))
	})
	t.Run("mark is false", func(t *testing.T) {
		outs := runJoin(t, base(LOT_JoinTypeMARK))
		assert.Equal(t, []string{
			"1|p1|false",
			"2|p2|false",
		}, rowStrings(outs))
	})
	t.Run("mark goes NULL when build had null only keys", func(t *testing.T) {
		jc := base(LOT_JoinTypeMARK)
		jc.buildChunks = []*chunk.Chunk{makeChunk(i32Pair,
			[]any{nil, "bnull"},
		)}
		outs := runJoin(t, jc)
		assert.Equal(t, []string{
			"1|p1|NULL",
			"2|p2|NULL",
		}, rowStrings(outs))
	})
}

func Test_correlatedMarkJoin(t *testing.T) {
	//keys: (correlated group, value)
	conds := []*Expr{
		eqCond(i32, 0, 0),
		eqCond(i32, 1, 1),
	}
	probeTypes := []common.LType{i32, i32, vc}
	buildTypes := []common.LType{i32, i32}
	outs := runJoin(t, joinCase{
		joinTyp:    LOT_JoinTypeMARK,
		conds:      conds,
		probeTypes: probeTypes,
		buildTypes: buildTypes,
		buildChunks: []*chunk.Chunk{makeChunk(buildTypes,
			[]any{10, 1},
			[]any{10, nil},
			[]any{20, 2},
		)},
		probeChunks: []*chunk.Chunk{makeChunk(probeTypes,
			//group 10 holds a NULL key: miss goes NULL
			[]any{10, 1, "hit"},
			[]any{10, 9, "missWithNullInGroup"},
			//group 20 is NULL free: miss stays false
			[]any{20, 9, "cleanMiss"},
			//group 30 is empty: false even for a NULL probe key
			[]any{30, nil, "emptyGroup"},
		)},
		correlatedCols: 1,
	})
	assert.Equal(t, []string{
		"10|1|hit|true",
		"10|9|missWithNullInGroup|NULL",
		"20|9|cleanMiss|false",
		"30|NULL|emptyGroup|false",
	}, rowStrings(outs))
}

// group encodings must keep fields apart even when varchar values
// contain the encoder's own control bytes.
func Test_correlatedGroupKeySentinelBytes(t *testing.T) {
	types := []common.LType{vc, i32}
	info := NewCorrelatedMarkInfo(1)
	info.RecordGroups(makeChunk(types,
		[]any{"\x01", 1},
		[]any{nil, nil},
	))

	//a varchar equal to a sentinel byte is not the NULL group
	star, cnt := info.Lookup(makeChunk(types, []any{"\x01", 7}), 0)
	assert.Equal(t, uint64(1), star)
	assert.Equal(t, uint64(1), cnt)
	star, cnt = info.Lookup(makeChunk(types, []any{nil, 7}), 0)
	assert.Equal(t, uint64(1), star)
	assert.Equal(t, uint64(0), cnt)
}

func Test_correlatedGroupKeyFieldBoundaries(t *testing.T) {
	types := []common.LType{vc, vc, i32}
	info := NewCorrelatedMarkInfo(2)
	info.RecordGroups(makeChunk(types,
		[]any{"a\x00b", "", 1},
	))

	//shifting bytes across the field boundary is a different group
	star, _ := info.Lookup(makeChunk(types, []any{"a", "b\x00", 7}), 0)
	assert.Equal(t, uint64(0), star)
	star, cnt := info.Lookup(makeChunk(types, []any{"a\x00b", "", 7}), 0)
	assert.Equal(t, uint64(1), star)
	assert.Equal(t, uint64(1), cnt)
}

func Test_concurrentBuild(t *testing.T) {
	const producers = 4
	const rowsPerProducer = 100

	hj := NewHashJoin([]*Expr{eqCond(i32, 0, 0)},
		i32Pair, i32Pair, nil, LOT_JoinTypeInner, 0, nil)

	eg := errgroup.Group{}
	for p := 0; p < producers; p++ {
		p := p
		eg.Go(func() error {
			local := hj.NewLocalState()
			rows := [][]any{}
			for i := 0; i < rowsPerProducer; i++ {
				key := p*rowsPerProducer + i
				rows = append(rows, []any{key % 100, fmt.Sprintf("b%d", key)})
			}
			if _, err := hj.Sink(local, makeChunk(i32Pair, rows...)); err != nil {
				return err
			}
			hj.CombineLocal(local)
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	hj.Finalize()

	hj.SetProbeSource(&chunkSource{chunks: []*chunk.Chunk{
		makeChunk(i32Pair, []any{7, "p7"}, []any{123, "p123"}),
	}})
	var outs []*chunk.Chunk
	for {
		out := &chunk.Chunk{}
		out.Init(hj.ScanTypes(), util.DefaultVectorSize)
		res, err := hj.GetNext(out)
		require.NoError(t, err)
		if out.Card() > 0 {
			outs = append(outs, out)
		}
		if res == Done {
			break
		}
	}
	//key 7 appears once per producer, key 123 never
	assert.Equal(t, producers, totalCard(outs))
	for _, row := range rowStrings(outs) {
		assert.Contains(t, row, "7|p7|7|")
	}
}

func Test_chunkCacheWatermarks(t *testing.T) {
	conf := util.DefaultConfig()
	//cache everything, flush after ~1% of the vector size
	conf.JoinCache.LowWatermark = 1.0
	conf.JoinCache.HighWatermark = 0.01

	build := [][]any{}
	for i := 0; i < 100; i++ {
		build = append(build, []any{i, fmt.Sprintf("b%d", i)})
	}
	var probeChunks []*chunk.Chunk
	for i := 0; i < 100; i++ {
		probeChunks = append(probeChunks,
			makeChunk(i32Pair, []any{i, fmt.Sprintf("p%d", i)}))
	}
	outs := runJoin(t, joinCase{
		joinTyp:     LOT_JoinTypeInner,
		conds:       []*Expr{eqCond(i32, 0, 0)},
		probeTypes:  i32Pair,
		buildTypes:  i32Pair,
		buildChunks: []*chunk.Chunk{makeChunk(i32Pair, build...)},
		probeChunks: probeChunks,
		conf:        conf,
	})
	assert.Equal(t, 100, totalCard(outs))
	//single row scan results were batched up before delivery
	assert.Less(t, len(outs), 100)
	for _, out := range outs[:len(outs)-1] {
		assert.Greater(t, out.Card(), 1)
	}
}
