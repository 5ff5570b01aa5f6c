// Command coredb is a thin CLI demonstrating the engine end to end: it
// builds a VALUES source, optionally pushes it through a Filter, and drains the
// result into an Arrow-style IPC stream on stdout, all scheduled through
// sched.Pool/QueryHandle exactly as a real query plan would be. Grounded
// on the teacher's own cmd/sneller/main.go flag-driven entry point
// (flag, context, log), trimmed to this engine's scope: there is no
// parser/planner here (out of scope per spec.md §1), so the "query" is
// built directly as a Chain of exec.Operators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/coredbio/coredb/array"
	"github.com/coredbio/coredb/config"
	"github.com/coredbio/coredb/exec"
	"github.com/coredbio/coredb/ipcformat"
	"github.com/coredbio/coredb/physicalexpr"
	"github.com/coredbio/coredb/sched"
)

func main() {
	rows := flag.Int("rows", 16, "number of demo rows to generate")
	workers := flag.Int("workers", 0, "scheduler worker count (0 = CPU count)")
	threshold := flag.Int64("gt", -1, "keep only rows where the demo column is greater than this value")
	flag.Parse()

	cfg := config.Default()
	if *workers > 0 {
		cfg.Workers = *workers
	}

	if err := run(*rows, *threshold, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(rows int, gt int64, cfg *config.Config) error {
	batch := demoBatch(rows)
	src := &exec.Values{Batch: batch}

	stages := []exec.Operator{src}
	states := []any{src.NewPartitionState()}
	if gt >= 0 {
		f := &exec.Filter{Predicate: &physicalexpr.BinaryOp{
			Op:    ">",
			Left:  &physicalexpr.Column{Index: 0, Typ: array.DataType{ID: array.Int64}},
			Right: &physicalexpr.Literal{Value: array.Int64Scalar(gt)},
			Out:   array.DataType{ID: array.Boolean},
		}}
		stages = append(stages, f)
		states = append(states, f.NewPartitionState())
	}

	w := ipcformat.NewWriter(os.Stdout, ipcformat.SchemaOf(batch, []string{"n"}))
	var rowsOut int64
	chain := &sched.Chain{
		Stages: stages,
		States: states,
		Results: func(b *array.Batch) {
			rowsOut += int64(b.NumRows)
			if err := w.WriteBatch(b); err != nil {
				log.Printf("coredb: write batch: %v", err)
			}
		},
	}

	pool := sched.NewPool(cfg.Workers)
	h := sched.NewQueryHandle(pool, []*sched.Chain{chain})
	if err := h.Run(context.Background()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "coredb: emitted %d rows\n", rowsOut)
	return nil
}

func demoBatch(n int) *array.Batch {
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	col := &array.Array{
		Type:     array.DataType{ID: array.Int64},
		Storage:  &array.Int64Storage{Values: vals},
		Validity: array.NewBitmapAllValid(n),
	}
	return array.NewBatch([]*array.Array{col}, n)
}
