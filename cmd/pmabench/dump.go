package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/packedmap"
)

type dumpFlags struct {
	mapFlags
	compression  string
	level        int
	output       string
	occupiedOnly bool
	tree         bool
}

func newDumpCmd() *cobra.Command {
	var f dumpFlags

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Insert a workload and write every cell of the array",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDump(cmd.Context(), cmd.OutOrStdout(), &f)
		},
	}

	f.register(cmd.Flags(), 16)
	cmd.Flags().StringVarP(&f.compression, "compression", "c", "none", "codec: none, zstd or lz4")
	cmd.Flags().IntVar(&f.level, "zstd-level", 0, "zstd level 1-22 (0 uses the default)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&f.occupiedOnly, "occupied-only", false, "skip empty cells")
	cmd.Flags().BoolVar(&f.tree, "tree", false, "also print the routing tree")
	return cmd
}

func runDump(ctx context.Context, out io.Writer, f *dumpFlags) (err error) {
	c, err := packedmap.ParseCompression(f.compression)
	if err != nil {
		return err
	}

	keys, err := f.workload()
	if err != nil {
		return err
	}
	m, err := f.open()
	if err != nil {
		return err
	}
	defer m.Close()

	for _, k := range keys {
		if _, err := m.Add(ctx, k, k); err != nil {
			return fmt.Errorf("add %d: %w", k, err)
		}
	}

	w := out
	if f.output != "" {
		file, ferr := os.Create(f.output)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = file
	}

	if f.tree {
		if _, err := io.WriteString(w, m.TreeString()); err != nil {
			return err
		}
	}

	opts := []packedmap.DumpOption{packedmap.DumpCompressed(c), packedmap.DumpZSTDLevel(f.level)}
	if f.occupiedOnly {
		opts = append(opts, packedmap.DumpOccupiedOnly())
	}
	return m.Dump(w, opts...)
}
