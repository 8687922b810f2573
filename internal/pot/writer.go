package pot

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteTable emits the table in the same format ReadTable consumes: header
// lines first, then per function a gradient line (when hasGradients) and one
// sample value per line, functions separated by blank lines. Values carry 17
// significant digits so a write/read cycle reproduces the table bit-for-bit
// within float64 resolution.
func WriteTable(w io.Writer, t *Table, hasGradients bool) error {
	bw := bufio.NewWriter(w)
	for i := range t.First {
		fmt.Fprintf(bw, "%.16e %.16e %d\n", t.Begin[i], t.End[i], t.NumSamples(i))
	}
	for i := range t.First {
		fmt.Fprintln(bw)
		if hasGradients {
			fmt.Fprintf(bw, "%.16e %.16e\n", t.GradLeft(i), t.GradRight(i))
		}
		for j := t.First[i]; j <= t.Last[i]; j++ {
			fmt.Fprintf(bw, "%.16e\n", t.Values[j])
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write potential table: %w", err)
	}
	return nil
}

// WriteTableFile writes the table to disk, replacing any existing file.
func WriteTableFile(path string, t *Table, hasGradients bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create potential file: %w", err)
	}
	if err := WriteTable(f, t, hasGradients); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
