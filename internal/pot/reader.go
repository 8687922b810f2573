package pot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// tableScanner walks a potential file line by line, skipping blank lines and
// tracking the current line number for diagnostics.
type tableScanner struct {
	s    *bufio.Scanner
	file string
	line int
}

func (ts *tableScanner) next() ([]string, error) {
	for ts.s.Scan() {
		ts.line++
		fields := strings.Fields(ts.s.Text())
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := ts.s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", ts.file, err)
	}
	return nil, io.EOF
}

func (ts *tableScanner) floats(fn, want int) ([]float64, error) {
	fields, err := ts.next()
	if err == io.EOF {
		return nil, &MalformedTableError{File: ts.file, Function: fn, Line: ts.line, Reason: "premature end of file"}
	}
	if err != nil {
		return nil, err
	}
	if len(fields) != want {
		return nil, &MalformedTableError{
			File: ts.file, Function: fn, Line: ts.line,
			Reason: fmt.Sprintf("expected %d values, got %d", want, len(fields)),
		}
	}
	out := make([]float64, want)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &MalformedTableError{
				File: ts.file, Function: fn, Line: ts.line,
				Reason: fmt.Sprintf("bad number %q", f),
			}
		}
		out[i] = v
	}
	return out, nil
}

// ReadTable parses a potential table: one header line per function giving
// domain start, domain end and sample count, then per function an optional
// two-value gradient line followed by one value per sample line. Any
// malformed or missing line is fatal with a diagnostic naming the file and
// the offending function and line.
func ReadTable(r io.Reader, filename string, schema Schema, hasGradients bool) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	ts := &tableScanner{s: bufio.NewScanner(r), file: filename}

	nfn := schema.NumFunctions()
	grids := make([]GridSpec, nfn)
	for i := 0; i < nfn; i++ {
		fields, err := ts.next()
		if err == io.EOF {
			return nil, &MalformedTableError{File: filename, Function: i, Line: ts.line, Reason: "premature end of file in header block"}
		}
		if err != nil {
			return nil, err
		}
		if len(fields) != 3 {
			return nil, &MalformedTableError{
				File: filename, Function: i, Line: ts.line,
				Reason: fmt.Sprintf("header needs 'begin end npoints', got %d fields", len(fields)),
			}
		}
		begin, err1 := strconv.ParseFloat(fields[0], 64)
		end, err2 := strconv.ParseFloat(fields[1], 64)
		n, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, &MalformedTableError{File: filename, Function: i, Line: ts.line, Reason: "unparsable header fields"}
		}
		grids[i] = GridSpec{Begin: begin, End: end, N: n}
	}

	t, err := New(schema, grids)
	if err != nil {
		if me, ok := err.(*MalformedTableError); ok {
			me.File = filename
		}
		return nil, err
	}

	for i := 0; i < nfn; i++ {
		if hasGradients {
			grad, err := ts.floats(i, 2)
			if err != nil {
				return nil, err
			}
			t.Values[t.First[i]-2] = grad[0]
			t.Values[t.First[i]-1] = grad[1]
		}
		for j := t.First[i]; j <= t.Last[i]; j++ {
			v, err := ts.floats(i, 1)
			if err != nil {
				return nil, err
			}
			t.Values[j] = v[0]
		}
	}

	t.RebuildSplineCache()
	return t, nil
}

// ReadTableFile reads a potential table from disk.
func ReadTableFile(path string, schema Schema, hasGradients bool) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open potential file: %w", err)
	}
	defer f.Close()
	return ReadTable(f, path, schema, hasGradients)
}
