package compute

import (
	"fmt"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
)

// BoundInsert is the binder output for INSERT. Exactly one of Values
// and Select is set when the statement carries rows.
type BoundInsert struct {
	Schema string
	Table  string
	TabEnt *storage.CatalogEntry

	//types of the supplied columns, in statement order
	ExpectedTypes []common.LType

	//statement column seq no -> column idx in table
	NamedColumnMap []int

	//table column idx -> statement column seq no, -1 when unsupplied
	ColumnIndexMap []int

	Values *Expr
	Select *BoundSelect
}

func (b *Builder) BindInsert(
	txn *storage.Txn,
	stmt *pg_query.InsertStmt) (*BoundInsert, error) {
	schema := stmt.GetRelation().GetSchemaname()
	if schema == "" {
		schema = "public"
	}
	name := stmt.GetRelation().GetRelname()

	//step 0: get table
	tabEnt := storage.GCatalog.GetEntry(
		txn,
		storage.CatalogTypeTable,
		schema,
		name,
	)
	if tabEnt == nil {
		return nil, fmt.Errorf("no table %s in schema '%s'",
			name, schema)
	}
	insert := &BoundInsert{
		Schema: schema,
		Table:  name,
		TabEnt: tabEnt,
	}

	//step 1: process columns
	//column seq no -> column idx in table
	namedColumnMap := make([]int, 0)
	cols := stmt.Cols
	if len(cols) != 0 {
		getNameFun := func(col *pg_query.Node) string {
			resTar := col.GetResTarget()
			if resTar != nil {
				return resTar.GetName()
			}
			str := col.GetString_()
			if str != nil {
				return str.GetSval()
			}
			panic("usp")
		}
		//insert into specified columns
		//column name in stmt -> column seq no in stmt
		columnNameMap := make(map[string]int)
		for i, col := range cols {
			colName := strings.ToLower(getNameFun(col))
			if _, has := columnNameMap[colName]; has {
				return nil, fmt.Errorf("duplicate column name %s in INSERT", colName)
			}
			columnNameMap[colName] = i
			colIdx := tabEnt.GetColumnIndex(colName)
			if colIdx == -1 {
				return nil, fmt.Errorf("table %s has no column named %s",
					name, colName)
			}
			colDef := tabEnt.GetColumns()[colIdx]
			insert.ExpectedTypes = append(insert.ExpectedTypes, colDef.Type)
			namedColumnMap = append(namedColumnMap, colIdx)
		}
		for _, colDef := range tabEnt.GetColumns() {
			if seqNo, has := columnNameMap[colDef.Name]; !has {
				insert.ColumnIndexMap = append(insert.ColumnIndexMap, -1)
			} else {
				insert.ColumnIndexMap = append(insert.ColumnIndexMap, seqNo)
			}
		}
	} else {
		//no specified columns
		for i, colDef := range tabEnt.GetColumns() {
			namedColumnMap = append(namedColumnMap, i)
			insert.ExpectedTypes = append(insert.ExpectedTypes,
				colDef.Type)
		}
	}
	insert.NamedColumnMap = namedColumnMap

	subSelect := stmt.GetSelectStmt().GetSelectStmt()
	if subSelect == nil {
		return insert, nil
	}

	expectedColumns := len(namedColumnMap)

	//step 2: values list
	if len(subSelect.ValuesLists) != 0 {
		expectedTypes := make([]common.LType, expectedColumns)
		expectedNames := make([]string, expectedColumns)

		for _, valuesList := range subSelect.ValuesLists {
			resultColumns := len(valuesList.GetList().GetItems())
			if expectedColumns != resultColumns {
				return nil, fmt.Errorf("table %s has %d columns but %d values were supplied",
					name,
					expectedColumns,
					resultColumns,
				)
			}
		}

		for colIdx := 0; colIdx < expectedColumns; colIdx++ {
			tableColIdx := namedColumnMap[colIdx]
			colDef := tabEnt.GetColumns()[tableColIdx]
			expectedTypes[colIdx] = colDef.Type
			expectedNames[colIdx] = colDef.Name
		}

		subBuilder := NewBuilder(txn)
		subBuilder.tag = b.tag
		subBuilder.rootCtx.parent = b.rootCtx
		subBuilder.expectedTypes = expectedTypes
		subBuilder.expectedNames = expectedNames
		values, err := subBuilder.buildValuesLists(
			subSelect.ValuesLists, subBuilder.rootCtx, 0)
		if err != nil {
			return nil, err
		}
		b.tag = subBuilder.tag
		insert.Values = values
		return insert, nil
	}

	//step 3: insert ... select
	subBuilder := NewBuilder(txn)
	subBuilder.tag = b.tag
	subBuilder.rootCtx.parent = b.rootCtx
	boundSelect, err := subBuilder.buildSelect(subSelect, subBuilder.rootCtx, 0)
	if err != nil {
		return nil, err
	}
	b.tag = subBuilder.tag
	//column count and type reconciliation against the target table
	//happens when the insert source is built, not here
	insert.Select = boundSelect
	return insert, nil
}

func (b *Builder) buildValuesLists(
	lists []*pg_query.Node,
	ctx *BindContext,
	depth int) (*Expr, error) {
	var err error
	resultTypes := b.expectedTypes
	resultNames := b.expectedNames
	resultValues := make([][]*Expr, 0)
	var retExpr *Expr
	for _, exprList := range lists {
		items := exprList.GetList().GetItems()
		if len(resultNames) == 0 {
			for i := 0; i < len(items); i++ {
				resultNames = append(resultNames, fmt.Sprintf("col%d", i))
			}
		}
		if len(items) != len(resultTypes) {
			return nil, fmt.Errorf("values list has %d entries, expected %d",
				len(items), len(resultTypes))
		}
		list := make([]*Expr, 0)
		for valIdx, value := range items {
			retExpr, err = b.bindValueExpr(ctx, value, depth)
			if err != nil {
				return nil, err
			}
			retExpr, err = AddCastToType(retExpr, resultTypes[valIdx], false)
			if err != nil {
				return nil, err
			}
			list = append(list, retExpr)
		}
		resultValues = append(resultValues, list)
	}

	alias := "valueslist"
	bind := &Binding{
		typ:     BT_TABLE,
		alias:   alias,
		index:   uint64(b.GetTag()),
		typs:    common.CopyLTypes(resultTypes...),
		names:   resultNames,
		nameMap: make(map[string]int),
	}
	for idx, colName := range bind.names {
		bind.nameMap[colName] = idx
	}
	err = ctx.AddBinding(alias, bind)
	if err != nil {
		return nil, err
	}

	return &Expr{
		Typ:         ET_ValuesList,
		Index:       bind.index,
		Table:       alias,
		Alias:       alias,
		Types:       resultTypes,
		Names:       resultNames,
		Values:      resultValues,
		ColName2Idx: bind.nameMap,
	}, err
}

// bindValueExpr is the restricted binder for VALUES rows: constants,
// parameter placeholders and explicit casts only.
func (b *Builder) bindValueExpr(
	ctx *BindContext,
	value *pg_query.Node,
	depth int) (*Expr, error) {
	if aConst := value.GetAConst(); aConst != nil {
		return bindConst(aConst)
	}
	if param := value.GetParamRef(); param != nil {
		return &Expr{
			Typ:        ET_Param,
			DataTyp:    common.Null(),
			ParamIndex: int(param.GetNumber()),
		}, nil
	}
	if cast := value.GetTypeCast(); cast != nil {
		child, err := b.bindValueExpr(ctx, cast.GetArg(), depth)
		if err != nil {
			return nil, err
		}
		targetTyp, err := bindTypeName(cast.GetTypeName())
		if err != nil {
			return nil, err
		}
		return AddCastToType(child, targetTyp, false)
	}
	return nil, fmt.Errorf("unsupported expression in VALUES")
}

func bindConst(aConst *pg_query.A_Const) (*Expr, error) {
	ret := &Expr{
		Typ: ET_Const,
	}
	switch {
	case aConst.GetIsnull():
		ret.DataTyp = common.Null()
		ret.ConstValue = ConstValue{Type: ConstTypeNull}
	case aConst.GetIval() != nil:
		ival := aConst.GetIval().GetIval()
		ret.DataTyp = common.IntegerType()
		ret.ConstValue = ConstValue{
			Type:    ConstTypeInteger,
			Integer: int64(ival),
		}
	case aConst.GetFval() != nil:
		fval := aConst.GetFval().GetFval()
		f, err := strconv.ParseFloat(fval, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric literal %s", fval)
		}
		ret.DataTyp = common.DoubleType()
		ret.ConstValue = ConstValue{
			Type:  ConstTypeFloat,
			Float: f,
		}
	case aConst.GetSval() != nil:
		ret.DataTyp = common.VarcharType()
		ret.ConstValue = ConstValue{
			Type:   ConstTypeString,
			String: aConst.GetSval().GetSval(),
		}
	case aConst.GetBoolval() != nil:
		ret.DataTyp = common.BooleanType()
		ret.ConstValue = ConstValue{
			Type:    ConstTypeBoolean,
			Boolean: aConst.GetBoolval().GetBoolval(),
		}
	default:
		return nil, fmt.Errorf("unsupported constant")
	}
	return ret, nil
}

func bindTypeName(typName *pg_query.TypeName) (common.LType, error) {
	names := typName.GetNames()
	if len(names) == 0 {
		return common.Null(), fmt.Errorf("empty type name")
	}
	base := names[len(names)-1].GetString_().GetSval()
	switch base {
	case "int4", "int", "integer":
		return common.IntegerType(), nil
	case "int8", "bigint":
		return common.BigintType(), nil
	case "float8", "double precision":
		return common.DoubleType(), nil
	case "varchar", "text", "bpchar":
		return common.VarcharType(), nil
	case "date":
		return common.DateType(), nil
	case "bool", "boolean":
		return common.BooleanType(), nil
	case "numeric", "decimal":
		width, scale := 18, 2
		mods := typName.GetTypmods()
		if len(mods) == 2 {
			width = int(mods[0].GetAConst().GetIval().GetIval())
			scale = int(mods[1].GetAConst().GetIval().GetIval())
		}
		return common.DecimalType(width, scale), nil
	default:
		return common.Null(), fmt.Errorf("unsupported type %s", base)
	}
}

// AddCastToType wraps expr so it yields typ. Constants and parameters
// adopt the target type in place.
func AddCastToType(expr *Expr, typ common.LType, tryCast bool) (*Expr, error) {
	if expr.DataTyp.Equal(typ) {
		return expr, nil
	}
	switch expr.Typ {
	case ET_Param:
		expr.DataTyp = typ
		return expr, nil
	case ET_Const:
		if expr.ConstValue.Type == ConstTypeNull {
			expr.DataTyp = typ
			return expr, nil
		}
		//string literals retype directly when the target parses them
		if expr.ConstValue.Type == ConstTypeString {
			switch typ.Id {
			case common.LTID_DATE:
				expr.DataTyp = typ
				expr.ConstValue = ConstValue{
					Type: ConstTypeDate,
					Date: expr.ConstValue.String,
				}
				return expr, nil
			case common.LTID_DECIMAL:
				expr.DataTyp = typ
				expr.ConstValue = ConstValue{
					Type:    ConstTypeDecimal,
					Decimal: expr.ConstValue.String,
				}
				return expr, nil
			case common.LTID_VARCHAR:
				expr.DataTyp = typ
				return expr, nil
			}
		}
	}
	return &Expr{
		Typ:      ET_Cast,
		DataTyp:  typ,
		Children: []*Expr{expr},
	}, nil
}
