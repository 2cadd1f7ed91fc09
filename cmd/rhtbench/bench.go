package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unsafe"

	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/longpractice/Relativistic-Hash-Table/rht"
)

type benchElement struct {
	hdr rht.NodeHeader
	key int
}

var benchElementHdrOffset = unsafe.Offsetof(benchElement{}.hdr)

func benchElementOf(n *rht.NodeHeader) *benchElement {
	return rht.EntryOf[benchElement](n, benchElementHdrOffset)
}

func benchElementEq(a, b *rht.NodeHeader) bool {
	return benchElementOf(a).key == benchElementOf(b).key
}

type benchOptions struct {
	nrPersistent int
	nrChurn      int
	rounds       int
}

func parseBenchFlags(args []string) (benchOptions, error) {
	flagSet := flag.NewFlagSet("bench", flag.ContinueOnError)
	persistent := flagSet.Int("persistent", 888, "number of entries kept across every round")
	churn := flagSet.Int("churn", 8888, "number of entries inserted and detached per round")
	rounds := flagSet.Int("rounds", 3, "number of expand/shrink churn rounds")

	if err := flagSet.Parse(args); err != nil {
		return benchOptions{}, err
	}
	return benchOptions{nrPersistent: *persistent, nrChurn: *churn, rounds: *rounds}, nil
}

type roundTiming struct {
	round      int
	inserts    time.Duration
	detaches   time.Duration
	expand     time.Duration
	shrink     time.Duration
	bucketsEnd int
	sizeEnd    int
}

// benchCommand runs the expand/shrink churn loop: a persistent core of
// entries survives every round while a much larger transient population
// is inserted then fully detached, forcing repeated Expand2x/Shrink2x,
// and prints a per-round timing table.
func benchCommand(args []string) error {
	opts, err := parseBenchFlags(args)
	if err != nil {
		return err
	}

	tbl := rht.NewDefault()
	persistent := make([]benchElement, opts.nrPersistent)
	for i := range persistent {
		persistent[i].key = -(i + 1)
		tbl.InsertNoDup(&persistent[i].hdr, benchHash(persistent[i].key))
	}

	timings := make([]roundTiming, 0, opts.rounds)
	for round := 0; round < opts.rounds; round++ {
		var rt roundTiming
		rt.round = round + 1

		churn := make([]benchElement, opts.nrChurn)
		start := time.Now()
		for i := range churn {
			churn[i].key = round*opts.nrChurn + i
			tbl.TryInsert(&churn[i].hdr, benchHash(churn[i].key), benchElementEq)
		}
		rt.inserts = time.Since(start)

		start = time.Now()
		tbl.Expand2x()
		rt.expand = time.Since(start)

		start = time.Now()
		for i := range churn {
			tbl.TryDetachAndSynchronize(benchHash(churn[i].key), func(n *rht.NodeHeader) bool {
				return benchElementOf(n).key == churn[i].key
			})
		}
		rt.detaches = time.Since(start)

		start = time.Now()
		tbl.Shrink2x()
		rt.shrink = time.Since(start)

		rt.bucketsEnd = tbl.NumBuckets()
		rt.sizeEnd = tbl.Len()
		timings = append(timings, rt)
	}

	for i := range persistent {
		if tbl.Find(benchHash(persistent[i].key), func(n *rht.NodeHeader) bool {
			return benchElementOf(n).key == persistent[i].key
		}) == nil {
			return fmt.Errorf("persistent entry %d lost during churn", persistent[i].key)
		}
	}

	renderBenchReport(timings)
	return nil
}

func benchHash(k int) uint64 {
	h := uint64(k)
	h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
	h = (h ^ (h >> 27)) * 0x94d049bb133111eb
	return h ^ (h >> 31)
}

func renderBenchReport(timings []roundTiming) {
	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader([]string{"round", "insert", "expand", "detach", "shrink", "buckets", "size"})

	var totalRounds int
	rows := make([][]string, 0, len(timings))
	for _, rt := range timings {
		totalRounds++
		rows = append(rows, []string{
			strconv.Itoa(rt.round),
			rt.inserts.String(),
			rt.expand.String(),
			rt.detaches.String(),
			rt.shrink.String(),
			strconv.Itoa(rt.bucketsEnd),
			strconv.Itoa(rt.sizeEnd),
		})
	}
	w.AppendBulk(rows)
	w.SetFooter([]string{"rounds", strconv.Itoa(totalRounds), "", "", "", "", ""})
	w.Render()
}
