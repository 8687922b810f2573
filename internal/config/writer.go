package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// numeric fields are emitted as fixed-width scientific notation with six
// mantissa digits in 23-character fields, so records line up in columns.
const fieldFmt = "%23.6e"

// WriteConfigurations emits configuration records in the format
// ReadConfigurations consumes.
func WriteConfigurations(w io.Writer, configs []Configuration) error {
	bw := bufio.NewWriter(w)
	for i, c := range configs {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%d\n", len(c.Atoms))
		fmt.Fprintln(bw, strings.Join(c.Elements, " "))
		for _, b := range c.Box {
			fmt.Fprintf(bw, fieldFmt+" "+fieldFmt+" "+fieldFmt+"\n", b[0], b[1], b[2])
		}
		fmt.Fprintf(bw, fieldFmt+"\n", c.Energy)
		if c.HasStress {
			for j, s := range c.Stress {
				if j > 0 {
					fmt.Fprint(bw, " ")
				}
				fmt.Fprintf(bw, fieldFmt, s)
			}
			fmt.Fprintln(bw)
		}
		for _, a := range c.Atoms {
			fmt.Fprintf(bw, "%d "+fieldFmt+" "+fieldFmt+" "+fieldFmt+" "+fieldFmt+" "+fieldFmt+" "+fieldFmt+"\n",
				a.Type, a.Pos[0], a.Pos[1], a.Pos[2], a.Force[0], a.Force[1], a.Force[2])
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write configurations: %w", err)
	}
	return nil
}
