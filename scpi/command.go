// SPDX-License-Identifier: EPL-2.0

package scpi

import (
	"fmt"
	"strings"
)

// Command headers.
const (
	IDN    = "*IDN"
	SOUR   = "SOUR"
	SENS   = "SENS"
	INIT   = "INIT"
	FETC   = "FETC"
	OUTPUT = "OUTPUT"
)

var subsystems = map[string][]string{
	SOUR:   {"FREQ", "LEN", "VOLT", "FUNC", "OFFSET"},
	SENS:   {"AVER"},
	INIT:   {"CONT", "LIM"},
	FETC:   nil,
	OUTPUT: nil,
}

// units are stripped from values before they are parsed.
var units = []string{"Hz", "HZ", "V", "COUN"}

// Command is one parsed query, e.g. SOUR:FREQ:700Hz? is
// {Header: SOUR, Node: FREQ, Value: "700"}.
type Command struct {
	Header string
	Node   string
	Value  string
	Raw    string
}

func (c Command) String() string { return c.Raw }

// Parse splits a query into header, node and unitless value.
func Parse(raw string) (Command, error) {
	line := strings.TrimSpace(raw)
	cmd := Command{Raw: line}
	if line == "" {
		return cmd, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	if !strings.HasSuffix(line, "?") {
		return cmd, fmt.Errorf("%w: %q", ErrNotQuery, line)
	}
	body := strings.TrimSuffix(line, "?")

	parts := strings.Split(body, ":")
	cmd.Header = strings.ToUpper(strings.TrimSpace(parts[0]))
	if cmd.Header == IDN {
		return cmd, nil
	}

	nodes, ok := subsystems[cmd.Header]
	if !ok {
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Header)
	}

	switch cmd.Header {
	case OUTPUT:
		// OUTPUT? and OUTPUT:STATE OFF? both stop
		return cmd, nil
	case FETC:
		if len(parts) < 2 {
			return cmd, fmt.Errorf("%w: FETC needs a duration", ErrBadValue)
		}
		cmd.Value = stripUnits(parts[len(parts)-1])
		return cmd, nil
	}

	if len(parts) < 2 {
		return cmd, fmt.Errorf("%w: %s needs a node", ErrUnknownCommand, cmd.Header)
	}
	cmd.Node = strings.ToUpper(strings.TrimSpace(parts[1]))
	known := false
	for _, n := range nodes {
		if n == cmd.Node {
			known = true
			break
		}
	}
	if !known {
		return cmd, fmt.Errorf("%w: %s:%s, want one of %v", ErrUnknownCommand, cmd.Header, cmd.Node, nodes)
	}
	if cmd.Header != INIT {
		if len(parts) < 3 {
			return cmd, fmt.Errorf("%w: %s:%s needs a value", ErrBadValue, cmd.Header, cmd.Node)
		}
		cmd.Value = stripUnits(parts[len(parts)-1])
	}
	return cmd, nil
}

func stripUnits(v string) string {
	v = strings.TrimSpace(v)
	for _, u := range units {
		v = strings.TrimSuffix(v, u)
	}
	return strings.TrimSpace(v)
}
