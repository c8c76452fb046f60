package compute

import (
	"fmt"

	"github.com/huandu/go-clone"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
)

type ET int

const (
	ET_Column ET = iota //column
	ET_ValuesList
	ET_Func
	ET_Const
	ET_Param
	ET_Cast
	ET_Orderby
	ET_List
)

type ET_SubTyp int

const (
	ET_Invalid ET_SubTyp = iota
	ET_Equal
	ET_NotEqual
	ET_Greater
	ET_GreaterEqual
	ET_Less
	ET_LessEqual
	ET_In
	ET_NotIn
)

func (et ET_SubTyp) String() string {
	switch et {
	case ET_Equal:
		return "="
	case ET_NotEqual:
		return "<>"
	case ET_Greater:
		return ">"
	case ET_GreaterEqual:
		return ">="
	case ET_Less:
		return "<"
	case ET_LessEqual:
		return "<="
	case ET_In:
		return "in"
	case ET_NotIn:
		return "not in"
	default:
		return fmt.Sprintf("ET_SubTyp(%d)", int(et))
	}
}

// IsEquality reports whether the predicate can anchor a hash table probe.
func (et ET_SubTyp) IsEquality() bool {
	return et == ET_Equal || et == ET_In
}

type ConstType int

const (
	ConstTypeInvalid ConstType = iota
	ConstTypeInteger
	ConstTypeFloat
	ConstTypeString
	ConstTypeBoolean
	ConstTypeDecimal
	ConstTypeDate
	ConstTypeNull
)

type ConstValue struct {
	Type    ConstType
	Integer int64
	Float   float64
	String  string
	Boolean bool
	Decimal string
	Date    string
}

// ColumnBind is (relation tag, column position).
type ColumnBind [2]uint64

func (bind ColumnBind) table() uint64 {
	return bind[0]
}

func (bind ColumnBind) column() uint64 {
	return bind[1]
}

type Expr struct {
	Typ     ET
	SubTyp  ET_SubTyp
	DataTyp common.LType

	Children []*Expr

	Index      uint64
	Database   string
	Table      string     // table
	Name       string     // column
	ColRef     ColumnBind // relationTag, columnPos
	Depth      int        // > 0, correlated column
	Alias      string
	ConstValue ConstValue

	//for params in insert ... values
	ParamIndex int

	//for insert ... values
	Types       []common.LType
	Names       []string
	Values      [][]*Expr
	ColName2Idx map[string]int
	TabEnt      *storage.CatalogEntry
}

func (e *Expr) String() string {
	switch e.Typ {
	case ET_Column:
		return fmt.Sprintf("%s.%s", e.Table, e.Name)
	case ET_Const:
		switch e.ConstValue.Type {
		case ConstTypeInteger:
			return fmt.Sprintf("%d", e.ConstValue.Integer)
		case ConstTypeFloat:
			return fmt.Sprintf("%g", e.ConstValue.Float)
		case ConstTypeString:
			return e.ConstValue.String
		case ConstTypeBoolean:
			return fmt.Sprintf("%v", e.ConstValue.Boolean)
		case ConstTypeDecimal:
			return e.ConstValue.Decimal
		case ConstTypeDate:
			return e.ConstValue.Date
		case ConstTypeNull:
			return "NULL"
		}
	case ET_Param:
		return fmt.Sprintf("$%d", e.ParamIndex)
	case ET_Cast:
		return fmt.Sprintf("cast(%s as %s)", e.Children[0], e.DataTyp)
	case ET_Func:
		if len(e.Children) == 2 {
			return fmt.Sprintf("%s %s %s", e.Children[0], e.SubTyp, e.Children[1])
		}
	}
	return fmt.Sprintf("expr(%d)", int(e.Typ))
}

func copyExpr(expr *Expr) *Expr {
	return clone.Clone(expr).(*Expr)
}

func copyExprs(exprs ...*Expr) []*Expr {
	ret := make([]*Expr, 0, len(exprs))
	for _, expr := range exprs {
		ret = append(ret, copyExpr(expr))
	}
	return ret
}
