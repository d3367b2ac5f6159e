package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"factorysim.ai/internal/config"
	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/world"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "replay <run dir>",
		Short: "Re-run a recorded journal and check every tick digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			rep, err := runReplay(cfg, args[0], verify)
			if err != nil {
				return err
			}
			rep.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "rebuild the world and compare digests; otherwise only count events")
	return cmd
}

var errDigestMismatch = errors.New("digest mismatch")

type replayReport struct {
	runID    string
	worldID  string
	ticks    int
	inputs   int
	verified bool
	counts   map[events.Type]int
}

// runReplay reads the journal in runDir. With verify set, the world is rebuilt from the layout and
// the facility states of the start header, stepped with the recorded inputs, and each digest is
// compared with the recorded one.
func runReplay(cfg config.Config, runDir string, verify bool) (*replayReport, error) {
	log := newLogger(cfg, os.Stderr)
	rep := &replayReport{counts: map[events.Type]int{}, verified: verify}

	var (
		w    *world.World
		next uint64
	)
	err := persistlog.ReadTicks(runDir, func(e world.TickLogEntry) error {
		for _, ev := range e.Events {
			rep.counts[ev.Type]++
		}
		rep.ticks++
		rep.inputs += len(e.Inputs)
		if e.Start != nil {
			rep.runID = e.RunID
			rep.worldID = e.Start.WorldID
		}
		if !verify {
			return nil
		}

		if w == nil {
			if e.Start == nil {
				return fmt.Errorf("tick %d: journal does not begin with a start header", e.Tick)
			}
			y, err := loadYard(cfg, log)
			if err != nil {
				return err
			}
			w, err = y.newWorld(e.Start.WorldID, e.RunID, world.NewMemorySaver(e.Start.Facilities), nil, log)
			if err != nil {
				return err
			}
			next = e.Tick
		}
		if e.Tick != next {
			return fmt.Errorf("journal gap: expected tick %d, got %d", next, e.Tick)
		}
		inputs := make([]world.InputEnvelope, 0, len(e.Inputs))
		for _, in := range e.Inputs {
			inputs = append(inputs, world.InputEnvelope{AgentID: in.AgentID, Input: in.Input})
		}
		tick, digest := w.StepOnce(inputs)
		if digest != e.Digest {
			return fmt.Errorf("%w at tick %d: recorded %s, replayed %s", errDigestMismatch, tick, e.Digest, digest)
		}
		next++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *replayReport) print(out io.Writer) {
	fmt.Fprintf(out, "run %s world %s: %d ticks, %d inputs\n", r.runID, r.worldID, r.ticks, r.inputs)
	if r.verified {
		fmt.Fprintln(out, "all digests match")
	}
	printEventCounts(out, r.counts)
}
