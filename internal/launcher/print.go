package launcher

import (
	"fmt"
	"io"
	"strings"
)

// Format renders r as the STDOUT, STDERR and Return code sections, in that
// order, whatever the fields contain. Each captured stream follows its label
// line after a single space.
func Format(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STDOUT:\n %s\n", r.Stdout)
	fmt.Fprintf(&b, "STDERR:\n %s\n", r.Stderr)
	fmt.Fprintf(&b, "Return code: %d\n", r.ExitStatus)
	return b.String()
}

// Print writes Format(r) to w in a single write.
func Print(w io.Writer, r *Result) error {
	_, err := io.WriteString(w, Format(r))
	return err
}
