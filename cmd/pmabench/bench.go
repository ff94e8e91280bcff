package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/packedmap"
)

type benchFlags struct {
	mapFlags
	workers int
	finds   int
}

func newBenchCmd() *cobra.Command {
	var f benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert a workload concurrently, then look every key up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), &f)
		},
	}

	f.register(cmd.Flags(), 10000)
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 4, "number of concurrent goroutines")
	cmd.Flags().IntVar(&f.finds, "finds", 1, "lookup passes over the workload")
	return cmd
}

// phase runs op over keys split across workers and returns the elapsed time.
func phase(ctx context.Context, workers int, keys []int, op func(context.Context, int) error) (time.Duration, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			for i := w; i < len(keys); i += workers {
				if err := op(gctx, keys[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return time.Since(start), err
}

func rate(n int, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return humanize.SIWithDigits(float64(n)/d.Seconds(), 2, "op/s")
}

func runBench(ctx context.Context, out io.Writer, f *benchFlags) error {
	if f.workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", f.workers)
	}

	keys, err := f.workload()
	if err != nil {
		return err
	}

	metrics := &packedmap.BasicMetricsCollector{}
	m, err := f.open(packedmap.WithMetricsCollector(metrics))
	if err != nil {
		return err
	}
	defer m.Close()

	l := m.Layout()
	fmt.Fprintf(out, "layout: %s cells, %s active, %d leaves of %d, %s reserved\n",
		humanize.Comma(int64(l.Cells)), humanize.Comma(int64(l.ActiveSize)),
		l.Leaves, l.BlockSize, humanize.IBytes(uint64(m.Stats().ReservedBytes)))

	addTime, err := phase(ctx, f.workers, keys, func(ctx context.Context, k int) error {
		_, err := m.Add(ctx, k, k)
		return err
	})
	if err != nil {
		return fmt.Errorf("add phase: %w", err)
	}
	fmt.Fprintf(out, "add:    %s keys in %s (%s)\n",
		humanize.Comma(int64(len(keys))), addTime.Round(time.Microsecond), rate(len(keys), addTime))

	for pass := range f.finds {
		findTime, err := phase(ctx, f.workers, keys, func(ctx context.Context, k int) error {
			v, ok, err := m.Find(ctx, k)
			if err != nil {
				return err
			}
			if !ok || v != k {
				return fmt.Errorf("key %d: got (%d, %v)", k, v, ok)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("find pass %d: %w", pass, err)
		}
		fmt.Fprintf(out, "find:   pass %d in %s (%s)\n", pass, findTime.Round(time.Microsecond), rate(len(keys), findTime))
	}

	if err := m.Validate(); err != nil {
		return err
	}

	s := m.Stats()
	ms := metrics.GetStats()
	fmt.Fprintf(out, "keys:   %s stored, %s inserts, %s updates\n",
		humanize.Comma(int64(s.Keys)), humanize.Comma(s.Inserts), humanize.Comma(s.Updates))
	fmt.Fprintf(out, "moves:  %s rebalances, %s cells moved, %s cells per window\n",
		humanize.Comma(s.Rebalances), humanize.Comma(s.Moves),
		humanize.Comma(avgPerWindow(ms.RebalanceCells, ms.RebalanceCount)))
	fmt.Fprintf(out, "races:  %s restarts, %s stale reads\n",
		humanize.Comma(s.Restarts), humanize.Comma(s.StaleReads))
	if s.HintHits+s.HintMisses > 0 {
		fmt.Fprintf(out, "hints:  %s hits, %s misses\n", humanize.Comma(s.HintHits), humanize.Comma(s.HintMisses))
	}
	return nil
}

func avgPerWindow(cells, windows int64) int64 {
	if windows == 0 {
		return 0
	}
	return cells / windows
}
