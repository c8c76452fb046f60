package storage

import (
	"fmt"
	"sync"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/util"
)

const (
	CatalogTypeInvalid uint8 = 0
	CatalogTypeTable   uint8 = 1
	CatalogTypeSchema  uint8 = 2
)

type ColumnDefinition struct {
	Name    string
	Type    common.LType
	Default *chunk.Value
}

func (colDef *ColumnDefinition) HasDefault() bool {
	return colDef.Default != nil
}

type DataTableInfo struct {
	_schema  string
	_table   string
	_colDefs []*ColumnDefinition
}

func NewDataTableInfo(schema, table string, colDefs []*ColumnDefinition) *DataTableInfo {
	return &DataTableInfo{
		_schema:  schema,
		_table:   table,
		_colDefs: colDefs,
	}
}

type Catalog struct {
	_writeLock sync.Mutex
	_schemas   map[string]*CatalogEntry
}

type CatalogEntryLookup struct {
	_schema *CatalogEntry
	_entry  *CatalogEntry
}

func (lookup *CatalogEntryLookup) Found() bool {
	return lookup._entry != nil
}

func NewCatalog() *Catalog {
	return &Catalog{
		_schemas: make(map[string]*CatalogEntry),
	}
}

func (cat *Catalog) Init(txn *Txn) error {
	_, err := cat.CreateSchema(txn, "public")
	return err
}

func (cat *Catalog) CreateSchema(txn *Txn, schema string) (*CatalogEntry, error) {
	cat._writeLock.Lock()
	defer cat._writeLock.Unlock()
	if _, has := cat._schemas[schema]; has {
		return nil, fmt.Errorf("schema %s already exists", schema)
	}
	ent := &CatalogEntry{
		_typ:     CatalogTypeSchema,
		_name:    schema,
		_catalog: cat,
		_tables:  make(map[string]*CatalogEntry),
	}
	cat._schemas[schema] = ent
	return ent, nil
}

func (cat *Catalog) CreateTable(txn *Txn,
	info *DataTableInfo,
) (*CatalogEntry, error) {
	schEnt := cat.GetSchema(txn, info._schema)
	if schEnt == nil {
		return nil, fmt.Errorf("no schema %s", info._schema)
	}
	return schEnt.CreateTable(txn, info)
}

func (cat *Catalog) GetSchema(txn *Txn, schema string) *CatalogEntry {
	cat._writeLock.Lock()
	defer cat._writeLock.Unlock()
	return cat._schemas[schema]
}

func (cat *Catalog) GetEntry(
	txn *Txn,
	typ uint8,
	schema string, name string) *CatalogEntry {
	ret := cat.LookupEntry(txn, typ, schema, name)
	return ret._entry
}

func (cat *Catalog) LookupEntry(
	txn *Txn,
	typ uint8,
	schema string,
	name string) *CatalogEntryLookup {
	schEnt := cat.GetSchema(txn, schema)
	if schEnt == nil {
		return &CatalogEntryLookup{}
	}
	ent := schEnt.GetEntry(txn, typ, name)
	if ent == nil {
		return &CatalogEntryLookup{
			_schema: schEnt,
		}
	}
	return &CatalogEntryLookup{
		_schema: schEnt,
		_entry:  ent,
	}
}

type CatalogEntry struct {
	_typ  uint8
	_name string

	//for schema entry
	_catalog *Catalog
	_tables  map[string]*CatalogEntry

	//for table entry
	_schema  *CatalogEntry
	_schName string
	_storage *DataTable
	_colDefs []*ColumnDefinition
}

func (ent *CatalogEntry) Name() string {
	return ent._name
}

func (ent *CatalogEntry) GetStorage() *DataTable {
	return ent._storage
}

func (ent *CatalogEntry) GetColumns() []*ColumnDefinition {
	return ent._colDefs
}

func (ent *CatalogEntry) ColumnCount() int {
	return len(ent._colDefs)
}

// GetColumnIndex returns the position of the named column, or -1.
func (ent *CatalogEntry) GetColumnIndex(name string) int {
	for i, colDef := range ent._colDefs {
		if colDef.Name == name {
			return i
		}
	}
	return -1
}

func (ent *CatalogEntry) GetTypes() []common.LType {
	types := make([]common.LType, 0, len(ent._colDefs))
	for _, colDef := range ent._colDefs {
		types = append(types, colDef.Type)
	}
	return types
}

func (ent *CatalogEntry) CreateTable(
	txn *Txn,
	info *DataTableInfo) (*CatalogEntry, error) {
	util.AssertFunc(ent._typ == CatalogTypeSchema)
	ent._catalog._writeLock.Lock()
	defer ent._catalog._writeLock.Unlock()
	if _, has := ent._tables[info._table]; has {
		return nil, fmt.Errorf("entry with name %s already exists", info._table)
	}
	tabEnt := &CatalogEntry{
		_typ:     CatalogTypeTable,
		_name:    info._table,
		_schema:  ent,
		_schName: ent._name,
		_colDefs: info._colDefs,
	}
	tabEnt._storage = NewDataTable(info._schema, info._table, info._colDefs)
	ent._tables[info._table] = tabEnt
	return tabEnt, nil
}

func (ent *CatalogEntry) GetEntry(txn *Txn, typ uint8, name string) *CatalogEntry {
	util.AssertFunc(ent._typ == CatalogTypeSchema)
	switch typ {
	case CatalogTypeTable:
		return ent._tables[name]
	default:
		panic("usp")
	}
}

var GCatalog = NewCatalog()
