package chunk

import (
	"fmt"

	"github.com/vexecdb/vexec/pkg/common"
)

// Value is the boxed, row-wise view of a single vector slot. Used on
// slow paths only (printing, catalog defaults, tests).
type Value struct {
	Typ    common.LType
	IsNull bool
	Bool   bool
	I64    int64
	I64_1  int64
	I64_2  int64
	F64    float64
	Str    string
}

func (val *Value) String() string {
	if val.IsNull {
		return "NULL"
	}
	switch val.Typ.Id {
	case common.LTID_BOOLEAN:
		return fmt.Sprintf("%v", val.Bool)
	case common.LTID_INTEGER, common.LTID_BIGINT, common.LTID_UBIGINT:
		return fmt.Sprintf("%d", val.I64)
	case common.LTID_DOUBLE:
		return fmt.Sprintf("%g", val.F64)
	case common.LTID_VARCHAR:
		return val.Str
	case common.LTID_DATE:
		return fmt.Sprintf("%04d-%02d-%02d", val.I64, val.I64_1, val.I64_2)
	case common.LTID_DECIMAL:
		if val.Str != "" {
			return val.Str
		}
		return fmt.Sprintf("%d.%d", val.I64, val.I64_1)
	default:
		panic("usp")
	}
}
