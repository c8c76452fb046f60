package compute

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
)

// BoundSelect is the restricted projection-over-one-table select the
// insert binder accepts as a row source.
type BoundSelect struct {
	TabEnt *storage.CatalogEntry
	Index  uint64

	//projected table column ids, statement order
	ColIds []int
	Types  []common.LType
	Exprs  []*Expr
}

func (b *Builder) buildSelect(
	sel *pg_query.SelectStmt,
	ctx *BindContext,
	depth int) (*BoundSelect, error) {
	from := sel.GetFromClause()
	if len(from) != 1 || from[0].GetRangeVar() == nil {
		return nil, fmt.Errorf("unsupported FROM clause")
	}
	rangeVar := from[0].GetRangeVar()
	schema := rangeVar.GetSchemaname()
	if schema == "" {
		schema = "public"
	}
	name := rangeVar.GetRelname()
	tabEnt := storage.GCatalog.GetEntry(
		b.txn, storage.CatalogTypeTable, schema, name)
	if tabEnt == nil {
		return nil, fmt.Errorf("no table %s in schema '%s'", name, schema)
	}

	ret := &BoundSelect{
		TabEnt: tabEnt,
		Index:  uint64(b.GetTag()),
	}

	bind := &Binding{
		typ:     BT_TABLE,
		alias:   name,
		index:   ret.Index,
		typs:    tabEnt.GetTypes(),
		nameMap: make(map[string]int),
	}
	for i, colDef := range tabEnt.GetColumns() {
		bind.names = append(bind.names, colDef.Name)
		bind.nameMap[colDef.Name] = i
	}
	if err := ctx.AddBinding(name, bind); err != nil {
		return nil, err
	}

	addColumn := func(colIdx int) {
		colDef := tabEnt.GetColumns()[colIdx]
		ret.ColIds = append(ret.ColIds, colIdx)
		ret.Types = append(ret.Types, colDef.Type)
		ret.Exprs = append(ret.Exprs, &Expr{
			Typ:     ET_Column,
			DataTyp: colDef.Type,
			Table:   name,
			Name:    colDef.Name,
			ColRef:  ColumnBind{0, uint64(len(ret.ColIds) - 1)},
		})
	}

	for _, target := range sel.GetTargetList() {
		resTarget := target.GetResTarget()
		if resTarget == nil {
			return nil, fmt.Errorf("unsupported select target")
		}
		colRef := resTarget.GetVal().GetColumnRef()
		if colRef == nil {
			return nil, fmt.Errorf("unsupported select target")
		}
		fields := colRef.GetFields()
		last := fields[len(fields)-1]
		if last.GetAStar() != nil {
			for i := range tabEnt.GetColumns() {
				addColumn(i)
			}
			continue
		}
		colName := strings.ToLower(last.GetString_().GetSval())
		colIdx := tabEnt.GetColumnIndex(colName)
		if colIdx == -1 {
			return nil, fmt.Errorf("table %s has no column named %s",
				name, colName)
		}
		addColumn(colIdx)
	}
	if len(ret.Exprs) == 0 {
		return nil, fmt.Errorf("select in INSERT must have a projection list")
	}
	return ret, nil
}
