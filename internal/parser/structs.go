package parser

import (
	"strconv"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// parseRecord parses a struct/class/union definition. namespace is set for
// records nested inline in another record and overrides the qualified name.
func (p *Parser) parseRecord(d rawDecl, header, body, namespace string) (*models.TypeEntity, error) {
	t := &models.TypeEntity{
		IsDefined: true,
		Alignment: ExtractAlignment(header),
		Pack:      d.Pack,
		Source:    p.location(d),
	}
	if namespace == "" {
		if i := strings.IndexByte(d.Raw, '{'); i >= 0 {
			t.IsVtable = strings.Contains(d.Raw[:i], "/*VFT*/")
		}
	}

	header = StripArtifacts(header)
	kw := recordKeyword(header)
	t.Kind = models.TypeKind(kw)
	rest := strings.TrimSpace(strings.TrimPrefix(header, kw))

	var bases []string
	if i := baseColon(rest); i >= 0 {
		bases = SplitTopLevel(rest[i+1:], ',', true)
		rest = strings.TrimSpace(rest[:i])
	}
	if rest == "" {
		return nil, p.errorf("%s definition without a name", kw)
	}
	if namespace != "" {
		t.Namespace = namespace
		_, t.Name, t.TemplateArgs = ParseQualifiedName(rest)
	} else {
		t.Namespace, t.Name, t.TemplateArgs = ParseQualifiedName(rest)
	}
	if strings.HasSuffix(t.Name, "_vtbl") {
		t.IsVtable = true
	}

	for i, b := range bases {
		b = stripBaseSpecifiers(b)
		if b == "" {
			continue
		}
		t.Bases = append(t.Bases, models.TypeInheritance{
			Order: i,
			Raw:   b,
			Ref:   ParseTypeReference(b),
		})
	}

	p.parseMembers(d, t, body)

	id, added := p.graph.AddType(t)
	if !added && p.graph.Type(id) != t {
		p.warn(d, "duplicate definition of %s ignored", t.FQN())
		return p.graph.Type(id), nil
	}
	p.stats.Types++
	return t, nil
}

// baseColon finds the single ':' that introduces a base list (or an enum's
// underlying type), skipping "::" and anything inside brackets.
func baseColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ':':
			if i+1 < len(s) && s[i+1] == ':' {
				i++
				continue
			}
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripBaseSpecifiers(b string) string {
	words := strings.Fields(b)
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "public", "private", "protected", "virtual":
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func stripAccess(stmt string) string {
	for _, w := range []string{"public", "private", "protected"} {
		if !strings.HasPrefix(stmt, w) {
			continue
		}
		rest := strings.TrimSpace(stmt[len(w):])
		if strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, "::") {
			return strings.TrimSpace(rest[1:])
		}
	}
	return stmt
}

// parseMembers parses the statements of a record body into owner.Members.
// Nested named records and enums become entities of their own.
func (p *Parser) parseMembers(d rawDecl, owner *models.TypeEntity, body string) {
	overloads := make(map[string]int)
	add := func(m models.StructMember) {
		m.Order = len(owner.Members)
		m.OverloadIndex = overloads[m.Name]
		overloads[m.Name]++
		owner.Members = append(owner.Members, m)
	}

	for _, stmt := range SplitTopLevel(body, ';', false) {
		stmt = stripAccess(NormalizeSpace(stmt))
		if stmt == "" {
			continue
		}
		switch {
		case strings.HasPrefix(stmt, "static "), strings.HasPrefix(stmt, "typedef "),
			strings.HasPrefix(stmt, "friend "), strings.HasPrefix(stmt, "using "):
			continue
		case strings.Contains(stmt, "{"):
			if m, ok := p.parseInlineRecord(d, owner, stmt); ok {
				add(m)
			}
			continue
		case isMethodDecl(stmt):
			continue
		}
		members, err := parseMemberDecl(stmt)
		if err != nil {
			// later offsets cannot be trusted once a member is lost
			owner.IsIgnored = true
			p.diagnose(d, p.errorf("%s: unrecognized member %q: %v", owner.FQN(), stmt, err))
			continue
		}
		for _, m := range members {
			add(m)
		}
	}
}

// isMethodDecl reports whether a record-body statement declares a method: its
// first top-level '(' follows a name and does not open a pointer declarator
// such as "(*p)" or "(__cdecl *f)". Parentheses inside template arguments do
// not count.
func isMethodDecl(stmt string) bool {
	stmt, _, _ = ParseBitfield(declspecRe.ReplaceAllString(stmt, " "))
	angles := 0
	for i := 0; i < len(stmt); i++ {
		if angles == 0 && isOperatorAt(stmt, i) {
			return true
		}
		switch stmt[i] {
		case '<':
			angles++
		case '>':
			if angles > 0 {
				angles--
			}
		case '(':
			if angles > 0 {
				end := matchingClose(stmt, i)
				if end < 0 {
					return false
				}
				i = end
				continue
			}
			inner := stmt[i+1:]
			if end := matchingClose(stmt, i); end > i {
				inner = stmt[i+1 : end]
			}
			inner = strings.TrimSpace(conventionRe.ReplaceAllString(inner, ""))
			if !strings.HasPrefix(inner, "*") && !strings.HasPrefix(inner, "&") {
				return true
			}
			// "T (*Get(int))(char)": a method returning a function pointer
			rest := strings.TrimLeft(inner, "*& ")
			return rest != "" && rest[0] != '(' && strings.Contains(rest, "(")
		}
	}
	return false
}

// parseInlineRecord handles "union { ... } name", "struct Tag { ... }" and
// "enum Tag { ... }" inside a record body.
func (p *Parser) parseInlineRecord(d rawDecl, owner *models.TypeEntity, stmt string) (models.StructMember, bool) {
	open := strings.IndexByte(stmt, '{')
	end := strings.LastIndexByte(stmt, '}')
	if end < open {
		p.warn(d, "%s: unbalanced inline definition", owner.FQN())
		return models.StructMember{}, false
	}
	header := strings.TrimSpace(stmt[:open])
	body := stmt[open+1 : end]
	declarator := strings.TrimSpace(stmt[end+1:])

	kw := recordKeyword(header)
	tag := strings.TrimSpace(strings.TrimPrefix(StripArtifacts(header), kw))
	order := len(owner.Members)

	var child *models.TypeEntity
	var err error
	switch kw {
	case "enum":
		child, err = p.parseEnum(d, header, body, owner.FQN())
	case "struct", "class", "union":
		if tag == "" {
			prefix := "$S"
			if kw == "union" {
				prefix = "$U"
			}
			header = kw + " " + prefix + strconv.Itoa(order)
		}
		child, err = p.parseRecord(d, header, body, owner.FQN())
	default:
		p.warn(d, "%s: unrecognized inline definition", owner.FQN())
		return models.StructMember{}, false
	}
	if err != nil {
		p.diagnose(d, err)
		return models.StructMember{}, false
	}

	if declarator == "" {
		if tag != "" {
			return models.StructMember{}, false
		}
		declarator = "___u" + strconv.Itoa(order)
	}

	fqn := child.FQN()
	ref := models.TypeReference{Raw: fqn, Name: fqn, Base: fqn, ResolvedID: child.ID}
	for strings.HasPrefix(declarator, "*") {
		ref.PointerDepth++
		declarator = strings.TrimSpace(declarator[1:])
	}
	if name, dims, flexible, ok := ParseArraySuffix(declarator); ok {
		applyArray(&ref, dims, flexible)
		declarator = name
	}
	return models.StructMember{Name: declarator, Type: ref}, true
}

// parseMemberDecl parses one data-member statement. "int a, *b" yields two
// members sharing the base type.
func parseMemberDecl(stmt string) ([]models.StructMember, error) {
	var width *int
	if left, w, ok := ParseBitfield(stmt); ok {
		stmt = left
		width = &w
	}

	if IsFunctionPointerDecl(stmt) {
		name, ref, ok := parseFunctionPointer(stmt)
		if !ok || name == "" {
			return nil, errMissingName
		}
		ref.Raw = stmt
		return []models.StructMember{{Name: name, Type: ref, BitWidth: width}}, nil
	}

	parts := SplitTopLevel(stmt, ',', true)
	first, err := parseDeclarator(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	first.BitWidth = width
	members := []models.StructMember{first}

	baseType := strings.TrimRight(typeTextOf(parts[0]), "*& ")
	for _, extra := range parts[1:] {
		m, err := parseDeclarator(baseType + " " + strings.TrimSpace(extra))
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func typeTextOf(decl string) string {
	decl = strings.TrimSpace(decl)
	if name, _, _, ok := ParseArraySuffix(decl); ok {
		decl = name
	}
	typeText, _ := SplitDeclarator(decl)
	return typeText
}

func parseDeclarator(decl string) (models.StructMember, error) {
	var dims []int
	var flexible, isArray bool
	if name, d, f, ok := ParseArraySuffix(decl); ok {
		decl, dims, flexible, isArray = name, d, f, true
	}
	if isArray && strings.HasSuffix(decl, ")") {
		return parseArrayPointer(decl)
	}
	typeText, name := SplitDeclarator(decl)
	if name == "" {
		return models.StructMember{}, errMissingName
	}
	ref := ParseTypeReference(typeText)
	if isArray {
		applyArray(&ref, dims, flexible)
	}
	return models.StructMember{Name: name, Type: ref}, nil
}

// parseArrayPointer handles "T (*name)" left over from "T (*name)[N]". The
// member is bound as a pointer to the element type.
func parseArrayPointer(decl string) (models.StructMember, error) {
	open := matchingOpen(decl, len(decl)-1)
	if open <= 0 {
		return models.StructMember{}, errMissingName
	}
	inner := strings.TrimSpace(decl[open+1 : len(decl)-1])
	stars := 0
	for strings.HasPrefix(inner, "*") {
		stars++
		inner = strings.TrimSpace(inner[1:])
	}
	if stars == 0 || !isIdentifier(inner) {
		return models.StructMember{}, errMissingName
	}
	ref := ParseTypeReference(strings.TrimSpace(decl[:open]) + " " + strings.Repeat("*", stars))
	return models.StructMember{Name: inner, Type: ref}, nil
}

func isIdentifier(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

type parseError string

func (e parseError) Error() string { return string(e) }

const errMissingName = parseError("declarator has no name")

// parseTypedef handles plain, pointer, array, function-pointer and inline
// record typedefs. text has the leading "typedef" removed.
func (p *Parser) parseTypedef(d rawDecl, text string) error {
	if open := strings.IndexByte(text, '{'); open >= 0 {
		return p.parseInlineTypedef(d, text, open)
	}

	var name string
	var target models.TypeReference
	switch {
	case IsFunctionPointerDecl(text):
		n, ref, ok := parseFunctionPointer(text)
		if !ok || n == "" {
			return p.errorf("unrecognized function pointer typedef")
		}
		ref.Raw = text
		name, target = n, ref
	default:
		m, err := parseDeclarator(text)
		if err != nil {
			return p.errorf("typedef without a name")
		}
		name, target = m.Name, m.Type
	}
	p.addTypedef(d, name, target)
	return nil
}

func (p *Parser) parseInlineTypedef(d rawDecl, text string, open int) error {
	end := strings.LastIndexByte(text, '}')
	if end < open {
		return p.errorf("unbalanced braces in typedef")
	}
	header := strings.TrimSpace(text[:open])
	body := text[open+1 : end]
	names := SplitTopLevel(strings.TrimSpace(text[end+1:]), ',', true)

	kw := recordKeyword(StripArtifacts(header))
	if kw == "" {
		return p.errorf("unrecognized inline typedef")
	}
	tag := strings.TrimSpace(strings.TrimPrefix(StripArtifacts(header), kw))
	if i := baseColon(tag); i >= 0 && kw != "enum" {
		tag = strings.TrimSpace(tag[:i])
	}

	plain := ""
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !strings.HasPrefix(n, "*") {
			plain = n
			break
		}
	}
	if tag == "" {
		if plain == "" {
			return p.errorf("anonymous typedef without a name")
		}
		header = strings.Replace(header, kw, kw+" "+plain, 1)
	}

	var t *models.TypeEntity
	var err error
	if kw == "enum" {
		t, err = p.parseEnum(d, header, body, "")
	} else {
		t, err = p.parseRecord(d, header, body, "")
	}
	if err != nil {
		return err
	}

	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		m, err := parseDeclarator(t.FQN() + " " + n)
		if err != nil {
			p.warn(d, "typedef declarator %q skipped", n)
			continue
		}
		p.addTypedef(d, m.Name, m.Type)
	}
	return nil
}

func (p *Parser) addTypedef(d rawDecl, name string, target models.TypeReference) {
	ns, bare, args := ParseQualifiedName(name)
	t := &models.TypeEntity{
		Kind:          models.KindTypedef,
		Name:          bare,
		Namespace:     ns,
		TemplateArgs:  args,
		TypedefTarget: &target,
		IsDefined:     true,
		Source:        p.location(d),
	}
	// typedef struct Foo Foo;
	if target.FuncSig == nil && target.PointerDepth == 0 && !target.IsArray && target.Base == t.FQN() {
		return
	}
	if _, added := p.graph.AddType(t); added {
		p.stats.Types++
	}
}

// parseStatic parses a fixed-address variable. The address comes from a
// preceding function marker or a trailing "// 0x..." comment.
func (p *Parser) parseStatic(d rawDecl, text string) error {
	address := d.Address
	if address == "" {
		address = trailingAddress(d.Trailing)
	}
	text = strings.TrimSpace(SplitTopLevel(text, '=', true)[0])
	for _, kw := range []string{"static ", "extern ", "__declspec(dllimport) "} {
		text = strings.TrimPrefix(text, kw)
	}

	var name string
	var ref models.TypeReference
	if IsFunctionPointerDecl(text) {
		n, r, ok := parseFunctionPointer(text)
		if !ok || n == "" {
			return p.errorf("unrecognized declaration")
		}
		r.Raw = text
		name, ref = n, r
	} else {
		n, r, ok := parseQualifiedDeclarator(text)
		if !ok {
			return p.errorf("unrecognized declaration")
		}
		name, ref = n, r
	}

	if address == "" {
		p.stats.Skipped++
		p.warn(d, "static %s has no address", name)
		return nil
	}

	v := models.StaticVariable{
		Name:    name,
		Type:    ref,
		Address: address,
		Source:  p.location(d),
	}
	if segs := SplitQualified(name); len(segs) > 1 {
		v.Name = segs[len(segs)-1]
		v.OwnerFQN = CanonicalName(strings.Join(segs[:len(segs)-1], "::"))
	}
	p.graph.AddStatic(v)
	p.stats.Statics++
	return nil
}

// parseQualifiedDeclarator is parseDeclarator for names that may carry an
// owner qualification, as in "CFoo *CFoo::s_instance".
func parseQualifiedDeclarator(decl string) (string, models.TypeReference, bool) {
	var dims []int
	var flexible, isArray bool
	if name, d, f, ok := ParseArraySuffix(decl); ok {
		decl, dims, flexible, isArray = name, d, f, true
	}
	start := scanQualifierBack(decl, len(decl))
	name := strings.TrimSpace(decl[start:])
	typeText := strings.TrimSpace(decl[:start])
	if name == "" || typeText == "" || builtinWords[name] {
		return "", models.TypeReference{}, false
	}
	ref := ParseTypeReference(typeText)
	if isArray {
		applyArray(&ref, dims, flexible)
	}
	return name, ref, true
}
