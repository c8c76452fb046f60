package util

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

func HashBytes(ptr unsafe.Pointer, len uint64) uint64 {
	return xxhash.Sum64(PointerToSlice[byte](ptr, int(len)))
}
