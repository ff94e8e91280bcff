// Package dump renders the cell array as a text table, optionally
// compressed with zstd or lz4.
package dump

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream codec of a dump.
type Compression uint8

const (
	// CompressionNone writes plain text.
	CompressionNone Compression = iota
	// CompressionZSTD writes a zstd stream.
	CompressionZSTD
	// CompressionLZ4 writes an lz4 frame.
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZSTD:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps a codec name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZSTD, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("dump: unknown compression %q", s)
	}
}

// Header is the first line of a dump.
type Header struct {
	Cells       int
	ActiveStart int
	ActiveEnd   int
	LeafCount   int
	BlockSize   int
	Keys        int
}

// Row is one cell of a dump.
type Row struct {
	Pos     int
	Active  bool
	Version uint32
	Marker  string
	Key     string
	Value   string
	Pending string
}

// Options control a dump.
type Options struct {
	Compression Compression
	// OnlyOccupied skips empty, unclaimed cells.
	OnlyOccupied bool
	// ZSTDLevel is the zstd level (1-22); 0 uses the default level.
	ZSTDLevel int
}

// Write renders h and rows to w.
func Write(w io.Writer, h Header, rows []Row, opts Options) error {
	out, closeFn, err := compressor(w, opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "# cells=%d active=[%d,%d) blocks=%dx%d keys=%d\n",
		h.Cells, h.ActiveStart, h.ActiveEnd, h.LeafCount, h.BlockSize, h.Keys)
	fmt.Fprintln(tw, "pos\tregion\tversion\tmarker\tkey\tvalue\tpending")

	for _, r := range rows {
		if opts.OnlyOccupied && r.Key == "" && r.Pending == "" {
			continue
		}
		region := "buffer"
		if r.Active {
			region = "active"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Pos, region, r.Version, r.Marker, dash(r.Key), dash(r.Value), dash(r.Pending))
	}

	if err := tw.Flush(); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func compressor(w io.Writer, opts Options) (io.Writer, func() error, error) {
	switch opts.Compression {
	case CompressionNone:
		return w, func() error { return nil }, nil
	case CompressionZSTD:
		level := zstd.SpeedDefault
		if opts.ZSTDLevel > 0 {
			level = zstd.EncoderLevelFromZstd(opts.ZSTDLevel)
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, nil, err
		}
		return enc, enc.Close, nil
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	default:
		return nil, nil, fmt.Errorf("dump: unknown compression %d", opts.Compression)
	}
}

// NewReader returns a reader of the plain text of a dump written with c.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("dump: unknown compression %d", c)
	}
}
