package generator

import (
	"bytes"
	"fmt"
	"strings"
)

const indentUnit = "    "

// writer is an indentation-aware line buffer
type writer struct {
	buf    bytes.Buffer
	indent int
}

func (w *writer) line(format string, args ...any) {
	if format == "" {
		w.buf.WriteByte('\n')
		return
	}
	w.buf.WriteString(strings.Repeat(indentUnit, w.indent))
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *writer) open(format string, args ...any) {
	w.line(format, args...)
	w.line("{")
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) String() string {
	return w.buf.String()
}

// names hands out unique identifiers within one C# scope
type names map[string]bool

func (n names) unique(name string) string {
	candidate := name
	for i := 1; n[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	n[candidate] = true
	return candidate
}
