package common

import (
	"fmt"
	"unsafe"
)

const (
	BoolSize    = int(unsafe.Sizeof(true))
	Int32Size   = int(unsafe.Sizeof(int32(0)))
	Int64Size   = int(unsafe.Sizeof(int64(0)))
	Float64Size = int(unsafe.Sizeof(float64(0)))
	VarcharSize = int(unsafe.Sizeof(String{}))
	DateSize    = int(unsafe.Sizeof(Date{}))
	DecimalSize = int(unsafe.Sizeof(Decimal{}))
	PointerSize = int(unsafe.Sizeof(unsafe.Pointer(nil)))
)

type LTypeId int

const (
	LTID_INVALID LTypeId = 0
	LTID_NULL    LTypeId = 1
	LTID_BOOLEAN LTypeId = 10
	LTID_INTEGER LTypeId = 13
	LTID_BIGINT  LTypeId = 14
	LTID_DATE    LTypeId = 15
	LTID_DECIMAL LTypeId = 21
	LTID_DOUBLE  LTypeId = 23
	LTID_VARCHAR LTypeId = 25
	LTID_UBIGINT LTypeId = 31
	LTID_POINTER LTypeId = 51
)

var lTypeIdToStr = map[LTypeId]string{
	LTID_INVALID: "LTID_INVALID",
	LTID_NULL:    "LTID_NULL",
	LTID_BOOLEAN: "LTID_BOOLEAN",
	LTID_INTEGER: "LTID_INTEGER",
	LTID_BIGINT:  "LTID_BIGINT",
	LTID_DATE:    "LTID_DATE",
	LTID_DECIMAL: "LTID_DECIMAL",
	LTID_DOUBLE:  "LTID_DOUBLE",
	LTID_VARCHAR: "LTID_VARCHAR",
	LTID_UBIGINT: "LTID_UBIGINT",
	LTID_POINTER: "LTID_POINTER",
}

func (id LTypeId) String() string {
	if s, has := lTypeIdToStr[id]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", id))
}

type PhyType int

const (
	NA      PhyType = 0
	BOOL    PhyType = 1
	INT32   PhyType = 7
	UINT64  PhyType = 8
	INT64   PhyType = 9
	DOUBLE  PhyType = 12
	VARCHAR PhyType = 200
	UNKNOWN PhyType = 205
	DATE    PhyType = 207
	POINTER PhyType = 208
	DECIMAL PhyType = 209

	INVALID PhyType = 255
)

var pTypeToStr = map[PhyType]string{
	NA:      "NA",
	BOOL:    "BOOL",
	INT32:   "INT32",
	UINT64:  "UINT64",
	INT64:   "INT64",
	DOUBLE:  "DOUBLE",
	VARCHAR: "VARCHAR",
	UNKNOWN: "UNKNOWN",
	DATE:    "DATE",
	POINTER: "POINTER",
	DECIMAL: "DECIMAL",
	INVALID: "INVALID",
}

func (pt PhyType) String() string {
	if s, has := pTypeToStr[pt]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", pt))
}

func (pt PhyType) Size() int {
	switch pt {
	case BOOL:
		return BoolSize
	case INT32:
		return Int32Size
	case INT64, UINT64:
		return Int64Size
	case DOUBLE:
		return Float64Size
	case VARCHAR:
		return VarcharSize
	case DATE:
		return DateSize
	case POINTER:
		return PointerSize
	case DECIMAL:
		return DecimalSize
	case UNKNOWN:
		return 0
	default:
		panic("usp")
	}
}

func (pt PhyType) IsConstant() bool {
	return pt >= BOOL && pt <= DOUBLE ||
		pt == DATE ||
		pt == POINTER ||
		pt == DECIMAL
}

func (pt PhyType) IsVarchar() bool {
	return pt == VARCHAR
}
