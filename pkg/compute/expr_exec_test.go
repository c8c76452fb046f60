package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

func castExpr(child *Expr, typ common.LType) *Expr {
	return &Expr{
		Typ:      ET_Cast,
		DataTyp:  typ,
		Children: []*Expr{child},
	}
}

func constInt(v int64) *Expr {
	return &Expr{
		Typ:     ET_Const,
		DataTyp: common.IntegerType(),
		ConstValue: ConstValue{
			Type:    ConstTypeInteger,
			Integer: v,
		},
	}
}

func constStr(s string) *Expr {
	return &Expr{
		Typ:     ET_Const,
		DataTyp: common.VarcharType(),
		ConstValue: ConstValue{
			Type:   ConstTypeString,
			String: s,
		},
	}
}

func evalExprs(t *testing.T, input *chunk.Chunk, types []common.LType, exprs ...*Expr) *chunk.Chunk {
	result := &chunk.Chunk{}
	result.Init(types, util.DefaultVectorSize)
	exec := NewExprExec(exprs...)
	require.NoError(t, exec.executeExprs([]*chunk.Chunk{input, nil, nil}, result))
	return result
}

func Test_executeColumnRef(t *testing.T) {
	types := []common.LType{common.IntegerType(), common.VarcharType()}
	input := makeChunk(types,
		[]any{1, "a"},
		[]any{nil, "b"},
	)
	out := evalExprs(t, input,
		[]common.LType{common.VarcharType(), common.IntegerType()},
		colRef(0, 1, common.VarcharType()),
		colRef(0, 0, common.IntegerType()),
	)
	require.Equal(t, 2, out.Card())
	assert.Equal(t, "a", out.Data[0].GetValue(0).Str)
	assert.Equal(t, "b", out.Data[0].GetValue(1).Str)
	assert.Equal(t, int64(1), out.Data[1].GetValue(0).I64)
	assert.True(t, out.Data[1].GetValue(1).IsNull)
}

func Test_executeConst(t *testing.T) {
	input := makeChunk([]common.LType{common.IntegerType()},
		[]any{0}, []any{0}, []any{0})
	out := evalExprs(t, input,
		[]common.LType{common.IntegerType(), common.VarcharType()},
		constInt(11),
		constStr("k"),
	)
	require.Equal(t, 3, out.Card())
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(11), out.Data[0].GetValue(i).I64)
		assert.Equal(t, "k", out.Data[1].GetValue(i).Str)
	}
}

func Test_castIntWidening(t *testing.T) {
	types := []common.LType{common.IntegerType()}
	input := makeChunk(types, []any{1}, []any{nil}, []any{-3})
	out := evalExprs(t, input,
		[]common.LType{common.BigintType()},
		castExpr(colRef(0, 0, common.IntegerType()), common.BigintType()),
	)
	require.Equal(t, 3, out.Card())
	assert.Equal(t, int64(1), out.Data[0].GetValue(0).I64)
	assert.True(t, out.Data[0].GetValue(1).IsNull)
	assert.Equal(t, int64(-3), out.Data[0].GetValue(2).I64)
}

func Test_castIntToDouble(t *testing.T) {
	types := []common.LType{common.IntegerType()}
	input := makeChunk(types, []any{2}, []any{5})
	out := evalExprs(t, input,
		[]common.LType{common.DoubleType()},
		castExpr(colRef(0, 0, common.IntegerType()), common.DoubleType()),
	)
	assert.Equal(t, 2.0, out.Data[0].GetValue(0).F64)
	assert.Equal(t, 5.0, out.Data[0].GetValue(1).F64)
}

func Test_castStringToDate(t *testing.T) {
	types := []common.LType{common.VarcharType()}
	input := makeChunk(types, []any{"2024-03-05"}, []any{nil})
	out := evalExprs(t, input,
		[]common.LType{common.DateType()},
		castExpr(colRef(0, 0, common.VarcharType()), common.DateType()),
	)
	assert.Equal(t, "2024-03-05", out.Data[0].GetValue(0).String())
	assert.True(t, out.Data[0].GetValue(1).IsNull)
}

func Test_castBadDateFails(t *testing.T) {
	types := []common.LType{common.VarcharType()}
	input := makeChunk(types, []any{"not a date"})
	result := &chunk.Chunk{}
	result.Init([]common.LType{common.DateType()}, util.DefaultVectorSize)
	exec := NewExprExec(
		castExpr(colRef(0, 0, common.VarcharType()), common.DateType()))
	err := exec.executeExprs([]*chunk.Chunk{input, nil, nil}, result)
	assert.Error(t, err)
}

func Test_castStringToDecimal(t *testing.T) {
	types := []common.LType{common.VarcharType()}
	input := makeChunk(types, []any{"12.34"})
	out := evalExprs(t, input,
		[]common.LType{common.DecimalType(10, 2)},
		castExpr(colRef(0, 0, common.VarcharType()), common.DecimalType(10, 2)),
	)
	assert.Equal(t, "12.34", out.Data[0].GetValue(0).String())
}

func Test_castConstStaysConst(t *testing.T) {
	input := makeChunk([]common.LType{common.IntegerType()},
		[]any{0}, []any{0})
	out := evalExprs(t, input,
		[]common.LType{common.BigintType()},
		castExpr(constInt(9), common.BigintType()),
	)
	require.Equal(t, 2, out.Card())
	assert.True(t, out.Data[0].PhyFormat().IsConst())
	assert.Equal(t, int64(9), out.Data[0].GetValue(1).I64)
}
