package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoClosingQuote is returned when a command line ends inside quotes.
var ErrNoClosingQuote = errors.New("no closing quotation")

// Command is a full command line read from a command file: the executable
// and every parameter after it.
type Command struct {
	JavaPath string
	Params   []string
}

// LoadCommandFile reads a one-line command file such as the one a game
// launcher writes out. A UTF-8 byte order mark and surrounding whitespace are
// ignored.
func LoadCommandFile(path string) (*Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	fields, err := SplitCommandLine(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing command file %s: %w", path, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command file %s is empty", path)
	}
	return &Command{
		JavaPath: strings.Trim(fields[0], `"`),
		Params:   fields[1:],
	}, nil
}

// SplitCommandLine splits s into whitespace-separated fields. A field that
// starts with a quote runs to the matching quote and keeps both quote
// characters. Quotes inside an unquoted field are ordinary characters and
// backslashes are never escapes, so Windows paths survive intact.
func SplitCommandLine(s string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		quote  rune // non-zero while inside a quoted field
		inWord bool
	)
	flush := func() {
		if inWord {
			fields = append(fields, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
				flush()
			}
		case isSpace(r):
			flush()
		case !inWord && (r == '"' || r == '\''):
			quote = r
			inWord = true
			cur.WriteRune(r)
		default:
			inWord = true
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, ErrNoClosingQuote
	}
	flush()
	return fields, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
