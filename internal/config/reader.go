package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// lineReader walks the training file line by line, skipping blanks and
// keeping the line number for diagnostics. All numbers are parsed with
// strconv so the result is independent of the process locale.
type lineReader struct {
	s    *bufio.Scanner
	file string
	line int
	// one-line pushback, used to sniff the optional stress line
	peeked []string
	hasPeek bool
}

func (lr *lineReader) next() ([]string, error) {
	if lr.hasPeek {
		lr.hasPeek = false
		return lr.peeked, nil
	}
	for lr.s.Scan() {
		lr.line++
		fields := strings.Fields(lr.s.Text())
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := lr.s.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", lr.file, err)
	}
	return nil, io.EOF
}

func (lr *lineReader) push(fields []string) {
	lr.peeked = fields
	lr.hasPeek = true
}

func (lr *lineReader) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", lr.file, lr.line, fmt.Sprintf(format, args...))
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// ReadConfigurations parses a sequence of configuration records. Each record
// is a fixed-order header (atom count, element symbols, three box vectors,
// cohesive energy per atom, optional six-component stress) followed by one
// line per atom with type index, position and force.
func ReadConfigurations(r io.Reader, filename string) ([]Configuration, error) {
	lr := &lineReader{s: bufio.NewScanner(r), file: filename}
	var configs []Configuration

	for {
		fields, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		natoms, err := strconv.Atoi(fields[0])
		if err != nil || natoms <= 0 {
			return nil, lr.errorf("expected atom count, got %q", fields[0])
		}

		var c Configuration

		elems, err := lr.next()
		if err != nil {
			return nil, lr.errorf("missing element list")
		}
		c.Elements = elems

		for i := 0; i < 3; i++ {
			fields, err := lr.next()
			if err != nil {
				return nil, lr.errorf("missing box vector %d", i)
			}
			v, perr := parseFloats(fields)
			if perr != nil || len(v) != 3 {
				return nil, lr.errorf("box vector %d needs 3 components", i)
			}
			c.Box[i] = Vec3{v[0], v[1], v[2]}
		}

		fields, err = lr.next()
		if err != nil {
			return nil, lr.errorf("missing cohesive energy")
		}
		e, perr := parseFloats(fields)
		if perr != nil || len(e) != 1 {
			return nil, lr.errorf("cohesive energy line needs 1 value")
		}
		c.Energy = e[0]

		// A six-field numeric line here is the optional stress tensor;
		// atom lines always carry seven fields.
		fields, err = lr.next()
		if err != nil {
			return nil, lr.errorf("premature end of record")
		}
		if len(fields) == 6 {
			s, perr := parseFloats(fields)
			if perr != nil {
				return nil, lr.errorf("unparsable stress tensor")
			}
			copy(c.Stress[:], s)
			c.HasStress = true
		} else {
			lr.push(fields)
		}

		c.Atoms = make([]Atom, natoms)
		for i := 0; i < natoms; i++ {
			fields, err := lr.next()
			if err != nil {
				return nil, lr.errorf("expected %d atoms, file ends after %d", natoms, i)
			}
			if len(fields) != 7 {
				return nil, lr.errorf("atom line needs 7 fields (type, position, force), got %d", len(fields))
			}
			typ, terr := strconv.Atoi(fields[0])
			v, perr := parseFloats(fields[1:])
			if terr != nil || perr != nil {
				return nil, lr.errorf("unparsable atom line")
			}
			c.Atoms[i] = Atom{
				Type:  typ,
				Pos:   Vec3{v[0], v[1], v[2]},
				Force: Vec3{v[3], v[4], v[5]},
			}
		}

		configs = append(configs, c)
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("%s: no configurations found", filename)
	}
	return configs, nil
}

// ReadConfigurationFile reads all configuration records from disk.
func ReadConfigurationFile(path string) ([]Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration file: %w", err)
	}
	defer f.Close()
	return ReadConfigurations(f, path)
}
