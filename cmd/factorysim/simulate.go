package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"factorysim.ai/internal/config"
	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/world"
)

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var (
		ticks   int
		journal bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step the yard headless for a number of ticks and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if ticks <= 0 {
				return fmt.Errorf("--ticks must be positive")
			}
			res, err := runSimulate(cfg, ticks, journal)
			if err != nil {
				return err
			}
			res.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 1200, "number of ticks to step")
	cmd.Flags().BoolVar(&journal, "journal", false, "write the tick journal under <data>/runs/<run id>")
	return cmd
}

type simResult struct {
	runID  string
	runDir string
	ticks  uint64
	digest string
	w      *world.World
	counts map[events.Type]int
}

func runSimulate(cfg config.Config, ticks int, journal bool) (*simResult, error) {
	log := newLogger(cfg, os.Stderr)
	y, err := loadYard(cfg, log)
	if err != nil {
		return nil, err
	}
	res := &simResult{runID: uuid.NewString(), counts: map[events.Type]int{}}
	w, err := y.newWorld("", res.runID, world.NewMemorySaver(nil), nil, log)
	if err != nil {
		return nil, err
	}
	counter := &eventCounter{counts: res.counts}
	w.SetEventIndex(counter)
	if journal {
		res.runDir = cfg.RunDir(res.runID)
		tl := persistlog.NewTickLogger(res.runDir)
		al := persistlog.NewAuditLogger(res.runDir)
		defer tl.Close()
		defer al.Close()
		w.SetTickLogger(tl)
		w.SetAuditLogger(al)
	}
	for i := 0; i < ticks; i++ {
		_, res.digest = w.StepOnce(nil)
	}
	res.ticks = w.CurrentTick()
	res.w = w
	return res, nil
}

type eventCounter struct {
	counts map[events.Type]int
}

func (c *eventCounter) WriteEvents(_ string, evs []events.Event) {
	for _, e := range evs {
		c.counts[e.Type]++
	}
}

func (r *simResult) print(out io.Writer) {
	fmt.Fprintf(out, "run %s: %d ticks, digest %s\n", r.runID, r.ticks, r.digest)
	if r.runDir != "" {
		fmt.Fprintf(out, "journal: %s\n", r.runDir)
	}

	fac := tablewriter.NewTable(out,
		tablewriter.WithHeader([]string{"Facility", "Kind", "Level", "Produced", "Queue", "Status"}),
	)
	for _, f := range r.w.Facilities() {
		st := f.State()
		status := "ok"
		if err := f.Err(); err != nil {
			status = err.Error()
		}
		fac.Append([]string{
			string(st.ID),
			st.Kind,
			fmt.Sprintf("%d", st.Level),
			fmt.Sprintf("%d", st.Produced),
			fmt.Sprintf("%d/%d", f.Queue().Len(), f.Runtime().Capacity),
			status,
		})
	}
	fac.Render()

	pools := r.w.Pools().Stats()
	kinds := make([]string, 0, len(pools))
	for k := range pools {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	pt := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Pool", "Size", "Active"}))
	for _, k := range kinds {
		pt.Append([]string{k, fmt.Sprintf("%d", pools[k][0]), fmt.Sprintf("%d", pools[k][1])})
	}
	pt.Render()

	printEventCounts(out, r.counts)
}

func printEventCounts(out io.Writer, counts map[events.Type]int) {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	t := tablewriter.NewTable(out, tablewriter.WithHeader([]string{"Event", "Count"}))
	for _, typ := range types {
		t.Append([]string{typ, fmt.Sprintf("%d", counts[events.Type(typ)])})
	}
	t.Render()
}
