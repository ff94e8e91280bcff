package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/packedmap"
)

func newLayoutCmd() *cobra.Command {
	var keys int

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the array layout and density envelope for a key count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLayout(cmd.OutOrStdout(), keys)
		},
	}
	cmd.Flags().IntVarP(&keys, "keys", "n", 1000, "expected key count")
	return cmd
}

func runLayout(out io.Writer, keys int) error {
	m, err := packedmap.New[int, int](keys)
	if err != nil {
		return err
	}
	defer m.Close()

	l := m.Layout()
	fmt.Fprintf(out, "cells:    %s (%s reserved)\n",
		humanize.Comma(int64(l.Cells)), humanize.IBytes(uint64(m.Stats().ReservedBytes)))
	fmt.Fprintf(out, "active:   [%d, %d)\n", l.ActiveStart, l.ActiveStart+l.ActiveSize)
	fmt.Fprintf(out, "leaves:   %s of %d cells\n\n", humanize.Comma(int64(l.Leaves)), l.BlockSize)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "window\tlower\tupper")
	for _, b := range m.DensityBounds() {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", humanize.Comma(int64(b.MaxCells)), b.Lower, b.Upper)
	}
	return tw.Flush()
}
