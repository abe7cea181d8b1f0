// Package parser turns decompiler-emitted C++ declaration text into a type
// graph. Parsing never aborts: anything it cannot understand becomes a
// Diagnostic and the parser moves on to the next declaration.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// Diagnostic is a recoverable problem found while parsing
type Diagnostic struct {
	Location models.SourceLocation `json:"location"`
	Message  string                `json:"message"`
	Snippet  string                `json:"snippet,omitempty"`
}

func (d Diagnostic) String() string {
	if loc := d.Location.String(); loc != "" {
		return loc + ": " + d.Message
	}
	return d.Message
}

// Stats counts what a parse produced
type Stats struct {
	Declarations int `json:"declarations"`
	Types        int `json:"types"`
	Functions    int `json:"functions"`
	Statics      int `json:"statics"`
	Skipped      int `json:"skipped"`
}

// Result is the outcome of parsing one source
type Result struct {
	File        string
	Graph       *models.Graph
	Diagnostics []Diagnostic
	Stats       Stats
}

// Parser parses one source at a time into its own graph
type Parser struct {
	file  string
	graph *models.Graph
	diags []Diagnostic
	stats Stats
	cur   rawDecl
}

// New creates a parser for the named source file
func New(file string) *Parser {
	return &Parser{file: file, graph: models.NewGraph()}
}

// ParseString parses src as if read from file
func ParseString(src, file string) *Result {
	return New(file).Parse(src)
}

// ParseFile reads and parses a file from disk
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read %s", path)
	}
	return ParseString(string(data), path), nil
}

// Parse splits src into declarations and parses each one
func (p *Parser) Parse(src string) *Result {
	for _, d := range scan(src) {
		p.stats.Declarations++
		p.cur = d
		if err := p.parseDecl(d); err != nil {
			p.diagnose(d, err)
		}
	}
	p.graph.AttachOwned()
	return &Result{
		File:        p.file,
		Graph:       p.graph,
		Diagnostics: p.diags,
		Stats:       p.stats,
	}
}

func (p *Parser) parseDecl(d rawDecl) (err error) {
	// a malformed declaration must not take the rest of the file down
	defer func() {
		if r := recover(); r != nil {
			err = errors.ParseErrorf("internal parser failure: %v", r)
		}
	}()

	text := strings.TrimSpace(strings.TrimSuffix(NormalizeSpace(d.Text), ";"))
	switch {
	case text == "":
		return nil
	case strings.HasPrefix(text, "typedef "):
		return p.parseTypedef(d, strings.TrimSpace(strings.TrimPrefix(text, "typedef ")))
	case strings.HasPrefix(text, "template"), strings.HasPrefix(text, "using "), strings.HasPrefix(text, "namespace "):
		p.stats.Skipped++
		return nil
	}

	if open := strings.IndexByte(d.Text, '{'); open >= 0 {
		end := strings.LastIndexByte(d.Text, '}')
		if end < open {
			return p.errorf("unbalanced braces")
		}
		header := NormalizeSpace(d.Text[:open])
		body := d.Text[open+1 : end]
		tail := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d.Text[end+1:]), ";"))
		switch recordKeyword(header) {
		case "enum":
			_, err := p.parseEnum(d, header, body, "")
			return err
		case "struct", "class", "union":
			if !strings.Contains(StripArtifacts(header), "(") {
				if tail != "" {
					return p.errorf("declarators after a record definition are not supported")
				}
				_, err := p.parseRecord(d, header, body, "")
				return err
			}
		}
		if strings.HasSuffix(header, ")") || hasQualifierSuffix(header, "const") {
			return p.addFunction(d, header, body)
		}
		return p.errorf("unrecognized declaration")
	}

	switch kw := recordKeyword(text); {
	case kw != "" && isForwardDecl(kw, text):
		return p.parseForward(d, kw, text)
	case IsFunctionPointerDecl(text):
		return p.parseStatic(d, text)
	case strings.Contains(text, "(") && strings.HasSuffix(stripCallQualifiers(text), ")"):
		if d.Address == "" && trailingAddress(d.Trailing) == "" {
			p.stats.Skipped++
			return nil
		}
		if d.Address == "" {
			d.Address = trailingAddress(d.Trailing)
		}
		return p.addFunction(d, text, "")
	}
	return p.parseStatic(d, text)
}

func (p *Parser) addFunction(d rawDecl, header, body string) error {
	f, err := p.parseFunction(d, header, body)
	if err != nil {
		return err
	}
	p.graph.AddFunction(*f)
	p.stats.Functions++
	return nil
}

// recordKeyword returns struct/class/union/enum when text starts with one
func recordKeyword(text string) string {
	word := text
	if i := strings.IndexAny(text, " \t{:"); i >= 0 {
		word = text[:i]
	}
	if tagWords[word] {
		return word
	}
	return ""
}

// isForwardDecl matches "struct NS::Foo" and "enum Foo : int"
func isForwardDecl(kw, text string) bool {
	rest := StripArtifacts(strings.TrimSpace(strings.TrimPrefix(text, kw)))
	if kw == "enum" {
		rest = strings.TrimPrefix(rest, "class ")
		if i := baseColon(rest); i >= 0 {
			rest = rest[:i]
		}
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.ContainsAny(rest[len(rest)-1:], "*&)]") {
		return false
	}
	return len(splitWords(rest)) == 1
}

func stripCallQualifiers(text string) string {
	text = strings.TrimSpace(text)
	for _, suffix := range []string{"const", "throw()", "noexcept"} {
		if hasQualifierSuffix(text, suffix) {
			text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
		}
	}
	return text
}

// trailingAddress extracts an address from a "// 0x00812345" style comment
func trailingAddress(comment string) string {
	m := hexAddressRe.FindStringSubmatch(comment)
	if m == nil {
		return ""
	}
	addr, _ := NormalizeAddress(m[1])
	return addr
}

func (p *Parser) parseForward(d rawDecl, kw, text string) error {
	rest := StripArtifacts(strings.TrimSpace(strings.TrimPrefix(text, kw)))
	t := &models.TypeEntity{Kind: models.TypeKind(kw), Source: p.location(d)}
	if kw == "enum" {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "class "))
		if i := baseColon(rest); i >= 0 {
			t.UnderlyingType = NormalizeSpace(rest[i+1:])
			rest = rest[:i]
		}
	}
	t.Namespace, t.Name, t.TemplateArgs = ParseQualifiedName(rest)
	if t.Name == "" {
		return p.errorf("forward declaration without a name")
	}
	p.graph.AddType(t)
	return nil
}

func (p *Parser) location(d rawDecl) models.SourceLocation {
	return models.SourceLocation{File: p.file, Line: d.Line}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.ParseErrorf(format, args...).
		WithContext("file", p.file).
		WithContext("line", p.cur.Line)
}

func (p *Parser) diagnose(d rawDecl, err error) {
	snippet := NormalizeSpace(d.Text)
	if len(snippet) > 120 {
		snippet = snippet[:117] + "..."
	}
	msg := err.Error()
	if e, ok := err.(*errors.Error); ok {
		msg = e.Message
	}
	p.diags = append(p.diags, Diagnostic{
		Location: p.location(d),
		Message:  msg,
		Snippet:  snippet,
	})
}

// warn records a diagnostic without rejecting the declaration
func (p *Parser) warn(d rawDecl, format string, args ...interface{}) {
	p.diags = append(p.diags, Diagnostic{
		Location: p.location(d),
		Message:  fmt.Sprintf(format, args...),
	})
}
