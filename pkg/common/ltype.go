package common

import (
	"fmt"

	"github.com/huandu/go-clone"
)

type LType struct {
	Id    LTypeId
	PTyp  PhyType
	Width int
	Scale int
}

func MakeLType(id LTypeId) LType {
	ret := LType{Id: id}
	ret.PTyp = ret.GetInternalType()
	return ret
}

func Null() LType {
	return MakeLType(LTID_NULL)
}

func BooleanType() LType {
	return MakeLType(LTID_BOOLEAN)
}

func IntegerType() LType {
	return MakeLType(LTID_INTEGER)
}

func BigintType() LType {
	return MakeLType(LTID_BIGINT)
}

func UbigintType() LType {
	return MakeLType(LTID_UBIGINT)
}

func HashType() LType {
	return MakeLType(LTID_UBIGINT)
}

func DoubleType() LType {
	return MakeLType(LTID_DOUBLE)
}

func VarcharType() LType {
	return MakeLType(LTID_VARCHAR)
}

func DateType() LType {
	return MakeLType(LTID_DATE)
}

func PointerType() LType {
	return MakeLType(LTID_POINTER)
}

func DecimalType(width, scale int) LType {
	ret := MakeLType(LTID_DECIMAL)
	ret.Width = width
	ret.Scale = scale
	return ret
}

func (lt LType) GetInternalType() PhyType {
	switch lt.Id {
	case LTID_BOOLEAN:
		return BOOL
	case LTID_INTEGER:
		return INT32
	case LTID_BIGINT:
		return INT64
	case LTID_UBIGINT:
		return UINT64
	case LTID_DOUBLE:
		return DOUBLE
	case LTID_VARCHAR:
		return VARCHAR
	case LTID_DATE:
		return DATE
	case LTID_DECIMAL:
		return DECIMAL
	case LTID_POINTER:
		return POINTER
	case LTID_NULL, LTID_INVALID:
		return UNKNOWN
	default:
		panic(fmt.Sprintf("usp %v", lt.Id))
	}
}

func (lt LType) Equal(o LType) bool {
	if lt.Id != o.Id {
		return false
	}
	if lt.Id == LTID_DECIMAL {
		return lt.Width == o.Width && lt.Scale == o.Scale
	}
	return true
}

func (lt LType) IsNumeric() bool {
	switch lt.Id {
	case LTID_INTEGER, LTID_BIGINT, LTID_UBIGINT,
		LTID_DOUBLE, LTID_DECIMAL:
		return true
	}
	return false
}

func (lt LType) String() string {
	if lt.Id == LTID_DECIMAL {
		return fmt.Sprintf("DECIMAL(%d,%d)", lt.Width, lt.Scale)
	}
	return lt.Id.String()
}

func CopyLTypes(typs ...LType) []LType {
	return clone.Clone(typs).([]LType)
}
