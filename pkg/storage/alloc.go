package storage

import (
	"unsafe"

	"github.com/vexecdb/vexec/pkg/util"
)

// BlockAllocator hands out fixed size raw blocks for row storage.
type BlockAllocator struct {
	_blockSize int
}

func NewBlockAllocator(blockSize int) *BlockAllocator {
	util.AssertFunc(blockSize > 0)
	return &BlockAllocator{
		_blockSize: blockSize,
	}
}

func (alloc *BlockAllocator) BlockSize() int {
	return alloc._blockSize
}

func (alloc *BlockAllocator) Alloc() unsafe.Pointer {
	ptr := util.CMalloc(alloc._blockSize)
	util.CMemset(ptr, 0, alloc._blockSize)
	return ptr
}

func (alloc *BlockAllocator) Free(ptr unsafe.Pointer) {
	if ptr != nil {
		util.CFree(ptr)
	}
}

var GBlockAlloc = NewBlockAllocator(256 * 1024)
