package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hupe1980/packedmap"
	"github.com/hupe1980/packedmap/testutil"
)

// mapFlags are shared by every subcommand that builds a map.
type mapFlags struct {
	keys       int
	capacity   int
	order      string
	seed       int64
	maxRetries uint64
	cacheSize  int64
	memLimit   int64
	verbose    bool
}

func (f *mapFlags) register(fs *pflag.FlagSet, defaultKeys int) {
	fs.IntVarP(&f.keys, "keys", "n", defaultKeys, "number of keys to insert")
	fs.IntVar(&f.capacity, "capacity", 0, "expected key count used for sizing (defaults to --keys)")
	fs.StringVar(&f.order, "order", "random", "insertion order: random, ascending, descending or zipf")
	fs.Int64Var(&f.seed, "seed", 1, "random seed")
	fs.Uint64Var(&f.maxRetries, "max-retries", 0, "restart budget per operation (0 uses the default)")
	fs.Int64Var(&f.cacheSize, "lookup-cache", 0, "number of lookup hints to cache (0 disables)")
	fs.Int64Var(&f.memLimit, "memory-limit", 0, "memory budget in bytes (0 is unlimited)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log rebalances at debug level")
}

func (f *mapFlags) open(extra ...packedmap.Option) (*packedmap.Map[int, int], error) {
	capacity := f.capacity
	if capacity == 0 {
		capacity = f.keys
	}

	opts := []packedmap.Option{
		packedmap.WithMaxRetries(f.maxRetries),
		packedmap.WithLookupCache(f.cacheSize),
		packedmap.WithMemoryLimit(f.memLimit),
	}
	if f.verbose {
		opts = append(opts, packedmap.WithLogLevel(slog.LevelDebug))
	}
	return packedmap.New[int, int](capacity, append(opts, extra...)...)
}

// workload returns the keys to insert in insertion order.
func (f *mapFlags) workload() ([]int, error) {
	rng := testutil.NewRNG(f.seed)
	keys := make([]int, f.keys)

	switch f.order {
	case "random":
		return rng.UniqueInts(f.keys, 8*f.keys+1), nil
	case "ascending":
		for i := range keys {
			keys[i] = i
		}
	case "descending":
		for i := range keys {
			keys[i] = f.keys - 1 - i
		}
	case "zipf":
		// Zipf draws repeat keys, so later draws turn into updates.
		for i := range keys {
			keys[i] = rng.Zipf(f.keys, 1.1)
		}
	default:
		return nil, fmt.Errorf("unknown order %q", f.order)
	}
	return keys, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pmabench",
		Short:         "Benchmark and inspect a packed memory array map",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newBenchCmd(), newDumpCmd(), newLayoutCmd())
	return root
}
