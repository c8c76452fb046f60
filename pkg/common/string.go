package common

import (
	"bytes"
	"unsafe"

	"github.com/vexecdb/vexec/pkg/util"
)

// String is the in-vector representation of a varchar: a pointer to
// bytes owned elsewhere plus a length. Copying the struct aliases the
// underlying bytes.
type String struct {
	Len  int
	Data unsafe.Pointer
}

// NewString copies a Go string into C memory. The caller owns the bytes.
func NewString(src string) String {
	ptr := util.CMalloc(len(src))
	dst := util.PointerToSlice[byte](ptr, len(src))
	copy(dst, src)
	return String{Data: ptr, Len: len(src)}
}

func (s *String) DataSlice() []byte {
	return util.PointerToSlice[byte](s.Data, s.Len)
}

func (s *String) DataPtr() unsafe.Pointer {
	return s.Data
}

func (s *String) String() string {
	return string(s.DataSlice())
}

func (s *String) Length() int {
	return s.Len
}

func (s *String) Equal(o *String) bool {
	if s.Len != o.Len {
		return false
	}
	return bytes.Equal(s.DataSlice(), o.DataSlice())
}

func (s *String) Less(o *String) bool {
	return bytes.Compare(s.DataSlice(), o.DataSlice()) < 0
}
