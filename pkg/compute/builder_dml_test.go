package compute

import (
	"fmt"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
	"github.com/vexecdb/vexec/pkg/util"
)

func newTestTxn(t *testing.T) *storage.Txn {
	storage.GCatalog = storage.NewCatalog()
	txn, err := storage.GTxnMgr.NewTxn("test")
	require.NoError(t, err)
	t.Cleanup(func() { storage.GTxnMgr.Rollback(txn) })
	require.NoError(t, storage.GCatalog.Init(txn))
	return txn
}

func createTestTable(
	t *testing.T,
	txn *storage.Txn,
	name string,
	colDefs []*storage.ColumnDefinition,
) *storage.CatalogEntry {
	info := storage.NewDataTableInfo("public", name, colDefs)
	ent, err := storage.GCatalog.CreateTable(txn, info)
	require.NoError(t, err)
	return ent
}

func threeColTable(t *testing.T, txn *storage.Txn, name string) *storage.CatalogEntry {
	return createTestTable(t, txn, name, []*storage.ColumnDefinition{
		{Name: "a", Type: common.IntegerType()},
		{Name: "b", Type: common.VarcharType()},
		{Name: "c", Type: common.IntegerType(),
			Default: &chunk.Value{Typ: common.IntegerType(), I64: 7}},
	})
}

func parseInsertStmt(t *testing.T, sql string) *pg_query.InsertStmt {
	parsed, err := pg_query.Parse(sql)
	require.NoError(t, err)
	require.Len(t, parsed.Stmts, 1)
	stmt := parsed.Stmts[0].GetStmt().GetInsertStmt()
	require.NotNil(t, stmt)
	return stmt
}

func bindInsertSQL(txn *storage.Txn, t *testing.T, sql string) (*BoundInsert, error) {
	return NewBuilder(txn).BindInsert(txn, parseInsertStmt(t, sql))
}

func Test_bindInsertColumnIndexMap(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")

	bound, err := bindInsertSQL(txn, t,
		`insert into t1(c, a) values (1, 2)`)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0}, bound.NamedColumnMap)
	assert.Equal(t, []int{1, -1, 0}, bound.ColumnIndexMap)
	require.Len(t, bound.ExpectedTypes, 2)
	assert.Equal(t, common.LTID_INTEGER, bound.ExpectedTypes[0].Id)
	assert.Equal(t, common.LTID_INTEGER, bound.ExpectedTypes[1].Id)
	require.NotNil(t, bound.Values)
	assert.Equal(t, ET_ValuesList, bound.Values.Typ)
}

func Test_bindInsertNoColumnList(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")

	bound, err := bindInsertSQL(txn, t,
		`insert into t1 values (1, 'x', 3)`)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, bound.NamedColumnMap)
	assert.Empty(t, bound.ColumnIndexMap)
	assert.Len(t, bound.ExpectedTypes, 3)
}

func Test_bindInsertErrors(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "unknown table",
			sql:  `insert into nosuch values (1)`,
			want: "no table nosuch in schema 'public'",
		},
		{
			name: "unknown column",
			sql:  `insert into t1(x) values (1)`,
			want: "table t1 has no column named x",
		},
		{
			name: "duplicate column",
			sql:  `insert into t1(a, a) values (1, 2)`,
			want: "duplicate column name a in INSERT",
		},
		{
			name: "too many values",
			sql:  `insert into t1 values (1, 'x', 3, 4)`,
			want: "table t1 has 3 columns but 4 values were supplied",
		},
		{
			name: "too few values",
			sql:  `insert into t1 values (1)`,
			want: "table t1 has 3 columns but 1 values were supplied",
		},
		{
			name: "wide row after the first",
			sql:  `insert into t1 values (1, 'x', 3), (1, 'x', 3, 4)`,
			want: "table t1 has 3 columns but 4 values were supplied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bindInsertSQL(txn, t, tt.sql)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func Test_bindInsertRaggedValuesRow(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")

	_, err := bindInsertSQL(txn, t,
		`insert into t1(a, b) values (1, 'x'), (2)`)
	assert.EqualError(t, err, "table t1 has 2 columns but 1 values were supplied")
}

// scanAll pulls every stored row of a table through a TableScan.
func scanAll(t *testing.T, txn *storage.Txn, ent *storage.CatalogEntry) []string {
	scan := NewTableScan(txn, ent, nil)
	var rows []string
	for {
		out := &chunk.Chunk{}
		out.Init(ent.GetTypes(), util.DefaultVectorSize)
		res, err := scan.GetChunk(out)
		require.NoError(t, err)
		if res == SrcResDone {
			break
		}
		for i := 0; i < out.Card(); i++ {
			row := ""
			for c := 0; c < out.ColumnCount(); c++ {
				if c > 0 {
					row += "|"
				}
				row += out.Data[c].GetValue(i).String()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func execInsertSQL(t *testing.T, txn *storage.Txn, sql string) int {
	bound, err := bindInsertSQL(txn, t, sql)
	require.NoError(t, err)
	ins := NewInsert(txn, bound)
	require.NoError(t, ins.Init())
	defer ins.Close()
	res, err := ins.Exec()
	require.NoError(t, err)
	require.Equal(t, Done, res)
	return ins.Count()
}

func Test_insertValues(t *testing.T) {
	txn := newTestTxn(t)
	ent := threeColTable(t, txn, "t1")

	cnt := execInsertSQL(t, txn,
		`insert into t1 values (1, 'x', 10), (2, 'y', 20)`)
	assert.Equal(t, 2, cnt)
	assert.Equal(t, []string{"1|x|10", "2|y|20"}, scanAll(t, txn, ent))
}

func Test_insertAppliesDefaults(t *testing.T) {
	txn := newTestTxn(t)
	ent := threeColTable(t, txn, "t1")

	cnt := execInsertSQL(t, txn,
		`insert into t1(b, a) values ('x', 1), ('y', 2)`)
	assert.Equal(t, 2, cnt)
	//column c falls back to its declared default
	assert.Equal(t, []string{"1|x|7", "2|y|7"}, scanAll(t, txn, ent))
}

func Test_insertNullsUnsuppliedWithoutDefault(t *testing.T) {
	txn := newTestTxn(t)
	ent := createTestTable(t, txn, "t2", []*storage.ColumnDefinition{
		{Name: "a", Type: common.IntegerType()},
		{Name: "b", Type: common.VarcharType()},
	})

	cnt := execInsertSQL(t, txn, `insert into t2(a) values (5)`)
	assert.Equal(t, 1, cnt)
	assert.Equal(t, []string{"5|NULL"}, scanAll(t, txn, ent))
}

func Test_insertNullLiteral(t *testing.T) {
	txn := newTestTxn(t)
	ent := threeColTable(t, txn, "t1")

	cnt := execInsertSQL(t, txn,
		`insert into t1 values (1, null, 3)`)
	assert.Equal(t, 1, cnt)
	assert.Equal(t, []string{"1|NULL|3"}, scanAll(t, txn, ent))
}

func Test_insertStringLiteralTyping(t *testing.T) {
	txn := newTestTxn(t)
	ent := createTestTable(t, txn, "typed", []*storage.ColumnDefinition{
		{Name: "d", Type: common.DateType()},
		{Name: "n", Type: common.DecimalType(10, 2)},
	})

	cnt := execInsertSQL(t, txn,
		`insert into typed values ('2024-03-05', '12.34')`)
	assert.Equal(t, 1, cnt)
	assert.Equal(t, []string{"2024-03-05|12.34"}, scanAll(t, txn, ent))
}

func Test_insertManyRows(t *testing.T) {
	txn := newTestTxn(t)
	ent := createTestTable(t, txn, "many", []*storage.ColumnDefinition{
		{Name: "a", Type: common.IntegerType()},
	})

	sql := `insert into many values (0)`
	for i := 1; i < 500; i++ {
		sql += fmt.Sprintf(", (%d)", i)
	}
	cnt := execInsertSQL(t, txn, sql)
	assert.Equal(t, 500, cnt)
	assert.Equal(t, 500, ent.GetStorage().RowCount())
}

func Test_insertFromSelect(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")
	dst := threeColTable(t, txn, "t1copy")

	execInsertSQL(t, txn,
		`insert into t1 values (1, 'x', 10), (2, 'y', 20)`)
	cnt := execInsertSQL(t, txn, `insert into t1copy select * from t1`)
	assert.Equal(t, 2, cnt)
	assert.Equal(t, []string{"1|x|10", "2|y|20"}, scanAll(t, txn, dst))
}

func Test_insertFromSelectProjection(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")
	dst := createTestTable(t, txn, "narrow", []*storage.ColumnDefinition{
		{Name: "b", Type: common.VarcharType()},
		{Name: "a", Type: common.IntegerType()},
	})

	execInsertSQL(t, txn,
		`insert into t1 values (1, 'x', 10), (2, 'y', 20)`)
	cnt := execInsertSQL(t, txn, `insert into narrow select b, a from t1`)
	assert.Equal(t, 2, cnt)
	assert.Equal(t, []string{"x|1", "y|2"}, scanAll(t, txn, dst))
}

func Test_insertFromSelectUnknownColumn(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")
	threeColTable(t, txn, "t1copy")

	_, err := bindInsertSQL(txn, t, `insert into t1copy select zz from t1`)
	assert.EqualError(t, err, "table t1 has no column named zz")
}

// the binder leaves select reconciliation alone; the width mismatch
// shows up when the insert source is built.
func Test_insertFromSelectWidthMismatch(t *testing.T) {
	txn := newTestTxn(t)
	threeColTable(t, txn, "t1")
	createTestTable(t, txn, "narrow", []*storage.ColumnDefinition{
		{Name: "a", Type: common.IntegerType()},
	})

	bound, err := bindInsertSQL(txn, t, `insert into narrow select a, b from t1`)
	require.NoError(t, err)
	ins := NewInsert(txn, bound)
	assert.EqualError(t, ins.Init(),
		"table narrow has 1 columns but 2 values were supplied")
}

func Test_insertResolveDefaultsDirect(t *testing.T) {
	txn := newTestTxn(t)
	ent := threeColTable(t, txn, "t1")

	types := []common.LType{common.VarcharType(), common.IntegerType()}
	data := makeChunk(types,
		[]any{"x", 1},
		[]any{"y", 2},
	)
	result := &chunk.Chunk{}
	result.Init(ent.GetTypes(), util.DefaultVectorSize)

	//statement order (b, a), table order (a, b, c)
	insertResolveDefaults(ent, data, []int{1, 0, -1}, result)
	require.Equal(t, 2, result.Card())
	assert.Equal(t, int64(1), result.Data[0].GetValue(0).I64)
	assert.Equal(t, "x", result.Data[1].GetValue(0).Str)
	assert.Equal(t, int64(7), result.Data[2].GetValue(0).I64)
	assert.Equal(t, int64(7), result.Data[2].GetValue(1).I64)
}

func Test_indexScan(t *testing.T) {
	txn := newTestTxn(t)
	ent := createTestTable(t, txn, "idxed", []*storage.ColumnDefinition{
		{Name: "a", Type: common.IntegerType()},
		{Name: "b", Type: common.VarcharType()},
	})
	index := storage.NewIndex(
		storage.IndexTypeBPlus,
		[]int{0},
		[]common.LType{common.IntegerType()},
		storage.IndexConstraintTypeNone,
	)
	ent.GetStorage().AddIndex(index)

	execInsertSQL(t, txn,
		`insert into idxed values (5, 'e'), (1, 'a'), (3, 'c'), (9, 'i'), (4, 'd')`)

	t.Run("closed range", func(t *testing.T) {
		scan := NewIndexScan(txn, ent, index, IndexScanRange{
			LowValue:  &chunk.Value{Typ: common.IntegerType(), I64: 3},
			LowTyp:    storage.ExprTypeGreaterThanOrEqualTo,
			HighValue: &chunk.Value{Typ: common.IntegerType(), I64: 5},
			HighTyp:   storage.ExprTypeLessThanOrEqualTo,
		}, nil)
		//row ids come out in table order, not key order
		assert.Equal(t, []string{"5|e", "3|c", "4|d"}, drainSource(t, scan, ent.GetTypes()))
	})
	t.Run("equal", func(t *testing.T) {
		scan := NewIndexScan(txn, ent, index, IndexScanRange{
			LowValue: &chunk.Value{Typ: common.IntegerType(), I64: 9},
			LowTyp:   storage.ExprTypeEqual,
		}, nil)
		assert.Equal(t, []string{"9|i"}, drainSource(t, scan, ent.GetTypes()))
	})
	t.Run("no match", func(t *testing.T) {
		scan := NewIndexScan(txn, ent, index, IndexScanRange{
			LowValue: &chunk.Value{Typ: common.IntegerType(), I64: 42},
			LowTyp:   storage.ExprTypeEqual,
		}, nil)
		assert.Empty(t, drainSource(t, scan, ent.GetTypes()))
	})
}

func drainSource(t *testing.T, src OperatorSource, types []common.LType) []string {
	var rows []string
	for {
		out := &chunk.Chunk{}
		out.Init(types, util.DefaultVectorSize)
		res, err := src.GetChunk(out)
		require.NoError(t, err)
		for i := 0; i < out.Card(); i++ {
			row := ""
			for c := 0; c < out.ColumnCount(); c++ {
				if c > 0 {
					row += "|"
				}
				row += out.Data[c].GetValue(i).String()
			}
			rows = append(rows, row)
		}
		if res == SrcResDone {
			break
		}
	}
	return rows
}
