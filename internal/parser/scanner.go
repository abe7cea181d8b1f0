package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var packRe = regexp.MustCompile(`^#\s*pragma\s+pack\s*\(\s*(push\s*,\s*)?(\d+)?\s*(pop)?\s*\)`)

// rawDecl is one top-level declaration as found by the scanner
type rawDecl struct {
	Text     string // code with comments removed
	Raw      string // original text, comments included
	Leading  string // comments directly preceding the declaration
	Trailing string // same-line comment after the terminator
	Line     int
	Address  string // from a preceding "//----- (ADDR) ---" marker
	Pack     int    // active #pragma pack value
}

// scanner splits a decompiler dump into top-level declarations. A declaration
// ends at a depth-0 ';' or at the '}' that closes a function body or record
// (consuming a following ';'). Strings and comments never affect depth.
type scanner struct {
	src  string
	pos  int
	line int

	decls []rawDecl

	code    strings.Builder
	raw     strings.Builder
	leading strings.Builder
	start   int

	depth      int
	address    string
	packStack  []int
	pack       int
	lastEnd    int // line on which the previous declaration ended
	sawContent bool
}

func scan(src string) []rawDecl {
	s := &scanner{src: src, line: 1}
	s.run()
	return s.decls
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.emitRaw("\n")
			s.emitCode("\n")
			s.pos++
		case c == '#' && s.depth == 0 && !s.sawContent:
			s.directive()
		case c == '/' && s.peek(1) == '/':
			s.lineComment()
		case c == '/' && s.peek(1) == '*':
			s.blockComment()
		case c == '"' || c == '\'':
			end := skipLiteral(s.src, s.pos)
			s.content(s.src[s.pos:end])
			s.pos = end
		case c == '{':
			s.depth++
			s.content("{")
			s.pos++
		case c == '}':
			s.depth--
			s.content("}")
			s.pos++
			if s.depth == 0 {
				s.closeBrace()
			}
			if s.depth < 0 {
				s.depth = 0
			}
		case c == ';' && s.depth == 0:
			s.content(";")
			s.pos++
			s.finish()
		default:
			if c == ' ' || c == '\t' || c == '\r' {
				s.emitRaw(string(c))
				s.emitCode(string(c))
			} else {
				s.content(string(c))
			}
			s.pos++
		}
	}
	if strings.TrimSpace(s.code.String()) != "" {
		s.finish()
	}
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *scanner) content(text string) {
	if !s.sawContent {
		s.sawContent = true
		s.start = s.line
	}
	s.emitRaw(text)
	s.emitCode(text)
}

func (s *scanner) emitRaw(text string) {
	if s.sawContent {
		s.raw.WriteString(text)
	}
}

func (s *scanner) emitCode(text string) {
	if s.sawContent {
		s.code.WriteString(text)
	}
}

func (s *scanner) restOfLine() string {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	if end < 0 {
		end = len(s.src) - s.pos
	}
	text := s.src[s.pos : s.pos+end]
	s.pos += end
	return text
}

// directive handles preprocessor lines between declarations. Only pack
// pragmas matter; everything else is skipped.
func (s *scanner) directive() {
	text := strings.TrimSpace(s.restOfLine())
	m := packRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	switch {
	case m[3] != "":
		if n := len(s.packStack); n > 0 {
			s.pack = s.packStack[n-1]
			s.packStack = s.packStack[:n-1]
		} else {
			s.pack = 0
		}
	case m[1] != "":
		s.packStack = append(s.packStack, s.pack)
		s.pack, _ = strconv.Atoi(m[2])
	case m[2] != "":
		s.pack, _ = strconv.Atoi(m[2])
	default:
		s.pack = 0
	}
}

func (s *scanner) lineComment() {
	text := s.restOfLine()
	if s.sawContent {
		s.emitRaw(text)
		s.emitCode(" ")
		return
	}
	if m := functionMarkRe.FindStringSubmatch(text); m != nil {
		if addr, ok := NormalizeAddress(m[1]); ok {
			s.address = addr
		}
		s.leading.Reset()
		return
	}
	if n := len(s.decls); n > 0 && s.lastEnd == s.line && s.decls[n-1].Trailing == "" {
		s.decls[n-1].Trailing = strings.TrimSpace(strings.TrimPrefix(text, "//"))
		return
	}
	s.leading.WriteString(text)
	s.leading.WriteByte('\n')
}

func (s *scanner) blockComment() {
	end := strings.Index(s.src[s.pos+2:], "*/")
	var text string
	if end < 0 {
		text = s.src[s.pos:]
	} else {
		text = s.src[s.pos : s.pos+end+4]
	}
	s.pos += len(text)
	s.line += strings.Count(text, "\n")
	if s.sawContent {
		s.emitRaw(text)
		s.emitCode(" ")
		return
	}
	s.leading.WriteString(text)
	s.leading.WriteByte('\n')
}

// closeBrace decides whether the '}' that returned to depth 0 ends the
// declaration. Function bodies end immediately; records end at an optional
// ';'; typedefs continue to their declarator name.
func (s *scanner) closeBrace() {
	code := strings.TrimSpace(s.code.String())
	header := code[:strings.IndexByte(code, '{')]
	isTypedef := strings.HasPrefix(header, "typedef")
	isRecord := isTypedef || recordHeaderRe.MatchString(header)

	i := s.pos
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t' || s.src[i] == '\r' || s.src[i] == '\n') {
		i++
	}
	if isRecord && i < len(s.src) && s.src[i] == ';' {
		s.line += strings.Count(s.src[s.pos:i], "\n")
		s.emitRaw(s.src[s.pos:i])
		s.content(";")
		s.pos = i + 1
		s.finish()
		return
	}
	if isTypedef {
		return
	}
	s.finish()
}

var recordHeaderRe = regexp.MustCompile(`^(?:struct|class|union|enum)\b`)

func (s *scanner) finish() {
	text := strings.TrimSpace(s.code.String())
	if text != "" && text != ";" {
		s.decls = append(s.decls, rawDecl{
			Text:    text,
			Raw:     strings.TrimSpace(s.raw.String()),
			Leading: s.leading.String(),
			Line:    s.start,
			Address: s.address,
			Pack:    s.pack,
		})
		s.address = ""
	}
	s.code.Reset()
	s.raw.Reset()
	s.leading.Reset()
	s.sawContent = false
	s.lastEnd = s.line
}
