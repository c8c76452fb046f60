package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

func Test_vectorSetGet(t *testing.T) {
	vec := NewFlatVector(common.IntegerType(), util.DefaultVectorSize)
	vec.SetValue(0, &Value{Typ: common.IntegerType(), I64: 42})
	vec.SetValue(1, &Value{Typ: common.IntegerType(), IsNull: true})
	vec.SetValue(2, &Value{Typ: common.IntegerType(), I64: -7})

	assert.Equal(t, int64(42), vec.GetValue(0).I64)
	assert.True(t, vec.GetValue(1).IsNull)
	assert.Equal(t, int64(-7), vec.GetValue(2).I64)
}

func Test_vectorVarchar(t *testing.T) {
	vec := NewFlatVector(common.VarcharType(), util.DefaultVectorSize)
	vec.SetValue(0, &Value{Typ: common.VarcharType(), Str: "hello"})
	vec.SetValue(1, &Value{Typ: common.VarcharType(), Str: ""})
	vec.SetValue(2, &Value{Typ: common.VarcharType(),
		Str: "a somewhat longer string that will not fit inline"})

	assert.Equal(t, "hello", vec.GetValue(0).Str)
	assert.Equal(t, "", vec.GetValue(1).Str)
	assert.Equal(t,
		"a somewhat longer string that will not fit inline",
		vec.GetValue(2).Str)
}

func Test_constVector(t *testing.T) {
	vec := NewFlatVector(common.BigintType(), util.DefaultVectorSize)
	vec.ReferenceValue(&Value{Typ: common.BigintType(), I64: 99})
	require.True(t, vec.PhyFormat().IsConst())
	//every row reads the same slot
	assert.Equal(t, int64(99), vec.GetValue(0).I64)
	assert.Equal(t, int64(99), vec.GetValue(500).I64)

	SetNullInPhyFormatConst(vec, true)
	assert.True(t, vec.GetValue(123).IsNull)
}

func Test_dictVector(t *testing.T) {
	base := NewFlatVector(common.IntegerType(), util.DefaultVectorSize)
	for i := 0; i < 4; i++ {
		base.SetValue(i, &Value{Typ: common.IntegerType(), I64: int64(i * 10)})
	}
	sel := NewSelectVector(2)
	sel.SetIndex(0, 3)
	sel.SetIndex(1, 1)

	dict := &Vector{_Typ: common.IntegerType(), Mask: &util.Bitmap{}}
	dict.Slice(base, sel, 2)
	require.True(t, dict.PhyFormat().IsDict())
	assert.Equal(t, int64(30), dict.GetValue(0).I64)
	assert.Equal(t, int64(10), dict.GetValue(1).I64)
}

func Test_unifiedFormatDict(t *testing.T) {
	base := NewFlatVector(common.IntegerType(), util.DefaultVectorSize)
	base.SetValue(0, &Value{Typ: common.IntegerType(), I64: 5})
	base.SetValue(1, &Value{Typ: common.IntegerType(), IsNull: true})
	base.SetValue(2, &Value{Typ: common.IntegerType(), I64: 6})

	sel := NewSelectVector(3)
	sel.SetIndex(0, 2)
	sel.SetIndex(1, 0)
	sel.SetIndex(2, 1)
	dict := &Vector{_Typ: common.IntegerType(), Mask: &util.Bitmap{}}
	dict.Slice(base, sel, 3)

	uf := &UnifiedFormat{}
	dict.ToUnifiedFormat(3, uf)
	data := GetSliceInPhyFormatUnifiedFormat[int32](uf)
	assert.Equal(t, int32(6), data[uf.Sel.GetIndex(0)])
	assert.Equal(t, int32(5), data[uf.Sel.GetIndex(1)])
	assert.False(t, uf.Mask.RowIsValid(uint64(uf.Sel.GetIndex(2))))
}

func Test_chunkAppend(t *testing.T) {
	types := []common.LType{common.IntegerType(), common.VarcharType()}
	dst := &Chunk{}
	dst.Init(types, util.DefaultVectorSize)

	src := &Chunk{}
	src.Init(types, util.DefaultVectorSize)
	src.Data[0].SetValue(0, &Value{Typ: types[0], I64: 1})
	src.Data[1].SetValue(0, &Value{Typ: types[1], Str: "one"})
	src.Data[0].SetValue(1, &Value{Typ: types[0], IsNull: true})
	src.Data[1].SetValue(1, &Value{Typ: types[1], Str: "two"})
	src.SetCard(2)

	dst.Append(src, nil, src.Card())
	dst.Append(src, nil, src.Card())
	require.Equal(t, 4, dst.Card())
	assert.Equal(t, int64(1), dst.Data[0].GetValue(2).I64)
	assert.True(t, dst.Data[0].GetValue(3).IsNull)
	assert.Equal(t, "two", dst.Data[1].GetValue(3).Str)
}

// join probes slice their results, so the append path must take dict
// formatted sources as they come.
func Test_chunkAppendDictSource(t *testing.T) {
	types := []common.LType{common.IntegerType(), common.VarcharType()}
	src := &Chunk{}
	src.Init(types, util.DefaultVectorSize)
	src.Data[0].SetValue(0, &Value{Typ: types[0], I64: 10})
	src.Data[1].SetValue(0, &Value{Typ: types[1], Str: "ten"})
	src.Data[0].SetValue(1, &Value{Typ: types[0], I64: 20})
	src.Data[1].SetValue(1, &Value{Typ: types[1], Str: "twenty"})
	src.SetCard(2)

	sel := NewSelectVector(2)
	sel.SetIndex(0, 1)
	sel.SetIndex(1, 0)
	sliced := &Chunk{}
	sliced.Init(types, util.DefaultVectorSize)
	sliced.Slice(src, sel, 2, 0)
	require.True(t, sliced.Data[0].PhyFormat().IsDict())

	dst := &Chunk{}
	dst.Init(types, util.DefaultVectorSize)
	dst.Append(sliced, nil, sliced.Card())
	require.Equal(t, 2, dst.Card())
	assert.Equal(t, int64(20), dst.Data[0].GetValue(0).I64)
	assert.Equal(t, "twenty", dst.Data[1].GetValue(0).Str)
	assert.Equal(t, int64(10), dst.Data[0].GetValue(1).I64)
	assert.Equal(t, "ten", dst.Data[1].GetValue(1).Str)
}

func Test_chunkSlice(t *testing.T) {
	types := []common.LType{common.IntegerType()}
	src := &Chunk{}
	src.Init(types, util.DefaultVectorSize)
	for i := 0; i < 5; i++ {
		src.Data[0].SetValue(i, &Value{Typ: types[0], I64: int64(i)})
	}
	src.SetCard(5)

	sel := NewSelectVector(2)
	sel.SetIndex(0, 4)
	sel.SetIndex(1, 0)
	dst := &Chunk{}
	dst.Init(types, util.DefaultVectorSize)
	dst.Slice(src, sel, 2, 0)
	require.Equal(t, 2, dst.Card())
	assert.Equal(t, int64(4), dst.Data[0].GetValue(0).I64)
	assert.Equal(t, int64(0), dst.Data[0].GetValue(1).I64)
}

func Test_flattenConst(t *testing.T) {
	vec := NewFlatVector(common.IntegerType(), util.DefaultVectorSize)
	vec.ReferenceValue(&Value{Typ: common.IntegerType(), I64: 8})
	vec.Flatten(4)
	require.True(t, vec.PhyFormat().IsFlat())
	for i := 0; i < 4; i++ {
		assert.Equal(t, int64(8), vec.GetValue(i).I64)
	}
}

func Test_chunkHashDeterministic(t *testing.T) {
	types := []common.LType{common.IntegerType()}
	mk := func() *Chunk {
		c := &Chunk{}
		c.Init(types, util.DefaultVectorSize)
		for i := 0; i < 10; i++ {
			c.Data[0].SetValue(i, &Value{Typ: types[0], I64: int64(i % 3)})
		}
		c.SetCard(10)
		return c
	}
	h1 := NewFlatVector(common.HashType(), util.DefaultVectorSize)
	h2 := NewFlatVector(common.HashType(), util.DefaultVectorSize)
	mk().Hash(h1)
	mk().Hash(h2)

	s1 := GetSliceInPhyFormatFlat[uint64](h1)
	s2 := GetSliceInPhyFormatFlat[uint64](h2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, s1[i], s2[i])
	}
	//equal keys hash equal
	assert.Equal(t, s1[0], s1[3])
	assert.NotEqual(t, s1[0], s1[1])
}
