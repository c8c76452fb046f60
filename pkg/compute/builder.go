package compute

import (
	"fmt"

	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/storage"
)

type BindingType int

const (
	BT_TABLE BindingType = iota
	BT_DUMMY
)

type Binding struct {
	typ     BindingType
	alias   string
	index   uint64
	typs    []common.LType
	names   []string
	nameMap map[string]int
}

type BindContext struct {
	parent   *BindContext
	bindings map[string]*Binding
}

func NewBindContext(parent *BindContext) *BindContext {
	return &BindContext{
		parent:   parent,
		bindings: make(map[string]*Binding),
	}
}

func (ctx *BindContext) AddBinding(alias string, bind *Binding) error {
	if _, has := ctx.bindings[alias]; has {
		return fmt.Errorf("duplicate alias %s", alias)
	}
	ctx.bindings[alias] = bind
	return nil
}

func (ctx *BindContext) GetBinding(alias string) *Binding {
	for cur := ctx; cur != nil; cur = cur.parent {
		if bind, has := cur.bindings[alias]; has {
			return bind
		}
	}
	return nil
}

type Builder struct {
	txn     *storage.Txn
	tag     int
	rootCtx *BindContext

	//types and names the surrounding insert expects from a values list
	expectedTypes []common.LType
	expectedNames []string
}

func NewBuilder(txn *storage.Txn) *Builder {
	return &Builder{
		txn:     txn,
		rootCtx: NewBindContext(nil),
	}
}

func (b *Builder) GetTag() int {
	b.tag++
	return b.tag
}
