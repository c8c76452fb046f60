package main

import (
	"fmt"
	"os"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vexecdb/vexec/pkg/chunk"
	"github.com/vexecdb/vexec/pkg/common"
	"github.com/vexecdb/vexec/pkg/compute"
	"github.com/vexecdb/vexec/pkg/storage"
	"github.com/vexecdb/vexec/pkg/util"
)

var (
	cfgPath string
	runCfg  *util.Config
)

func loadConfig() {
	runCfg = util.DefaultConfig()
	if cfgPath == "" {
		return
	}
	if !util.FileIsValid(cfgPath) {
		util.Error("config file does not exist",
			zap.String("fpath", cfgPath))
		os.Exit(1)
	}
	conf, err := util.LoadConfig(cfgPath)
	if err != nil {
		util.Error("load config file failed",
			zap.String("fpath", cfgPath),
			zap.Error(err))
		os.Exit(1)
	}
	runCfg = conf
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "vexec",
		Short: "vectorized hash join executor and insert binder",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig()
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"path to a vexec.toml config file")
	rootCmd.AddCommand(bindCmd(), demoCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// seedCatalog creates the demo tables inside the global catalog.
func seedCatalog(txn *storage.Txn) error {
	if err := storage.GCatalog.Init(txn); err != nil {
		return err
	}
	customers := storage.NewDataTableInfo("public", "customers",
		[]*storage.ColumnDefinition{
			{Name: "id", Type: common.IntegerType()},
			{Name: "name", Type: common.VarcharType()},
			{Name: "tier", Type: common.IntegerType(),
				Default: &chunk.Value{Typ: common.IntegerType(), I64: 1}},
		})
	if _, err := storage.GCatalog.CreateTable(txn, customers); err != nil {
		return err
	}
	orders := storage.NewDataTableInfo("public", "orders",
		[]*storage.ColumnDefinition{
			{Name: "id", Type: common.IntegerType()},
			{Name: "cust_id", Type: common.IntegerType()},
			{Name: "amount", Type: common.DoubleType()},
		})
	if _, err := storage.GCatalog.CreateTable(txn, orders); err != nil {
		return err
	}
	return nil
}

func parseInsert(sql string) (*pg_query.InsertStmt, error) {
	parsed, err := pg_query.Parse(sql)
	if err != nil {
		return nil, err
	}
	if len(parsed.Stmts) != 1 {
		return nil, fmt.Errorf("expected exactly one statement")
	}
	insert := parsed.Stmts[0].GetStmt().GetInsertStmt()
	if insert == nil {
		return nil, fmt.Errorf("not an INSERT statement")
	}
	return insert, nil
}

func runInsert(txn *storage.Txn, sql string) (int, error) {
	stmt, err := parseInsert(sql)
	if err != nil {
		return 0, err
	}
	bound, err := compute.NewBuilder(txn).BindInsert(txn, stmt)
	if err != nil {
		return 0, err
	}
	ins := compute.NewInsert(txn, bound)
	if err = ins.Init(); err != nil {
		return 0, err
	}
	defer ins.Close()
	if _, err = ins.Exec(); err != nil {
		return 0, err
	}
	return ins.Count(), nil
}

// bindCmd parses and binds an INSERT without executing it.
func bindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bind <sql>",
		Short: "bind an INSERT statement against the demo catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txn, err := storage.GTxnMgr.NewTxn("bind")
			if err != nil {
				return err
			}
			defer storage.GTxnMgr.Rollback(txn)
			if err = seedCatalog(txn); err != nil {
				return err
			}
			stmt, err := parseInsert(args[0])
			if err != nil {
				return err
			}
			bound, err := compute.NewBuilder(txn).BindInsert(txn, stmt)
			if err != nil {
				return err
			}
			typs := make([]string, 0, len(bound.ExpectedTypes))
			for _, typ := range bound.ExpectedTypes {
				typs = append(typs, typ.String())
			}
			util.Info("bound insert",
				zap.String("schema", bound.Schema),
				zap.String("table", bound.Table),
				zap.String("expectedTypes", strings.Join(typs, ",")),
				zap.Ints("columnIndexMap", bound.ColumnIndexMap),
				zap.Bool("valuesList", bound.Values != nil),
			)
			return nil
		},
	}
}

// demoCmd seeds two tables, inserts rows through the binder, then
// joins them with the hash join operator and prints the result.
func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run an insert + hash join round trip on the demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			txn, err := storage.GTxnMgr.NewTxn("demo")
			if err != nil {
				return err
			}
			defer storage.GTxnMgr.Commit(txn)
			if err = seedCatalog(txn); err != nil {
				return err
			}
			inserts := []string{
				`insert into customers(id, name) values (1, 'alice'), (2, 'bob'), (3, 'carol')`,
				`insert into orders values (10, 1, 25.5), (11, 1, 13.0), (12, 3, 7.25), (13, 7, 99.0)`,
			}
			for _, sql := range inserts {
				cnt, err := runInsert(txn, sql)
				if err != nil {
					return err
				}
				util.Info("inserted rows", zap.Int("count", cnt))
			}
			return runDemoJoin(txn)
		},
	}
}

func runDemoJoin(txn *storage.Txn) error {
	ordersEnt := storage.GCatalog.GetEntry(txn,
		storage.CatalogTypeTable, "public", "orders")
	customersEnt := storage.GCatalog.GetEntry(txn,
		storage.CatalogTypeTable, "public", "customers")

	// orders.cust_id = customers.id
	cond := &compute.Expr{
		Typ:     compute.ET_Func,
		SubTyp:  compute.ET_Equal,
		DataTyp: common.BooleanType(),
		Children: []*compute.Expr{
			{
				Typ:     compute.ET_Column,
				DataTyp: common.IntegerType(),
				Table:   "orders",
				Name:    "cust_id",
				ColRef:  compute.ColumnBind{0, 1},
			},
			{
				Typ:     compute.ET_Column,
				DataTyp: common.IntegerType(),
				Table:   "customers",
				Name:    "id",
				ColRef:  compute.ColumnBind{1, 0},
			},
		},
	}
	//project customers.tier away from the build payload
	join := compute.NewHashJoin(
		[]*compute.Expr{cond},
		ordersEnt.GetTypes(),
		customersEnt.GetTypes(),
		[]int{0, 1},
		compute.LOT_JoinTypeInner,
		0,
		runCfg,
	)

	local := join.NewLocalState()
	buildScan := compute.NewTableScan(txn, customersEnt, nil)
	buildChunk := &chunk.Chunk{}
	buildChunk.Init(customersEnt.GetTypes(), util.DefaultVectorSize)
	for {
		buildChunk.Reset()
		res, err := buildScan.GetChunk(buildChunk)
		if err != nil {
			return err
		}
		if res == compute.SrcResDone {
			break
		}
		if _, err = join.Sink(local, buildChunk); err != nil {
			return err
		}
	}
	join.CombineLocal(local)
	join.Finalize()

	join.SetProbeSource(compute.NewTableScan(txn, ordersEnt, nil))
	output := &chunk.Chunk{}
	output.Init(join.ScanTypes(), util.DefaultVectorSize)
	rows := 0
	for {
		output.Reset()
		res, err := join.GetNext(output)
		if err != nil {
			return err
		}
		if output.Card() > 0 {
			rows += output.Card()
			if runCfg.Debug.PrintChunk {
				output.Print()
			}
		}
		if res == compute.Done {
			break
		}
	}
	util.Info("join produced rows", zap.Int("count", rows))
	return nil
}
