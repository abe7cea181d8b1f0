package parser

import (
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// parseFunctionPointer parses "Ret (conv *name)(params)", including arrays of
// function pointers and pointers to functions returning function pointers.
// name is empty for abstract declarators.
func parseFunctionPointer(s string) (string, models.TypeReference, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return "", models.TypeReference{}, false
	}
	po := matchingOpen(s, len(s)-1)
	if po <= 0 {
		return "", models.TypeReference{}, false
	}
	before := strings.TrimSpace(s[:po])
	if !strings.HasSuffix(before, ")") {
		return "", models.TypeReference{}, false
	}
	do := matchingOpen(before, len(before)-1)
	if do < 0 {
		return "", models.TypeReference{}, false
	}
	retText := strings.TrimSpace(before[:do])
	conv := models.ConvUnknown
	// "void __cdecl (*f)(int)" puts the convention outside the declarator
	if loc := conventionRe.FindStringIndex(retText); loc != nil && loc[1] == len(retText) {
		conv = ParseConvention(retText[loc[0]:loc[1]])
		retText = strings.TrimSpace(retText[:loc[0]])
	}
	ret := ParseTypeReference(retText)
	return parseDeclaratorChain(ret, conv, s[do:])
}

// parseDeclaratorChain handles "(conv *decl)(params)" where decl is either a
// name (possibly with array dimensions) or another nested declarator whose
// return type is the function pointer built at this level.
func parseDeclaratorChain(ret models.TypeReference, conv models.CallingConvention, s string) (string, models.TypeReference, bool) {
	s = strings.TrimSpace(s)
	po := matchingOpen(s, len(s)-1)
	if po <= 0 || s[0] != '(' {
		return "", models.TypeReference{}, false
	}
	declEnd := matchingClose(s, 0)
	if declEnd < 0 || declEnd >= po {
		return "", models.TypeReference{}, false
	}
	decl := strings.TrimSpace(s[1:declEnd])
	params, variadic := parseParams(s[po+1 : len(s)-1])

	if loc := conventionRe.FindStringIndex(decl); loc != nil && strings.TrimSpace(decl[:loc[0]]) == "" {
		conv = ParseConvention(decl[loc[0]:loc[1]])
		decl = strings.TrimSpace(decl[loc[1]:])
	}

	depth := 0
	isRef := false
	for {
		decl = strings.TrimSpace(decl)
		switch {
		case strings.HasPrefix(decl, "*"):
			depth++
			decl = decl[1:]
			continue
		case strings.HasPrefix(decl, "&"):
			isRef = true
			decl = decl[1:]
			continue
		case strings.HasPrefix(decl, "const") && !strings.HasPrefix(decl, "const_") && len(decl) > 5 && !isIdentByte(decl[5]):
			decl = decl[5:]
			continue
		}
		break
	}
	if depth == 0 && !isRef {
		return "", models.TypeReference{}, false
	}

	sig := &models.FunctionSignature{
		Return:     ret,
		Convention: conv,
		Params:     params,
		IsVariadic: variadic,
	}
	fn := models.TypeReference{FuncSig: sig, PointerDepth: depth, IsReference: isRef}

	if strings.HasPrefix(decl, "(") && !IsOperatorName(decl) {
		return parseDeclaratorChain(fn, models.ConvUnknown, decl)
	}
	if IsOperatorName(decl) {
		return decl, fn, true
	}
	if name, dims, flexible, ok := ParseArraySuffix(decl); ok {
		applyArray(&fn, dims, flexible)
		decl = name
	}
	return decl, fn, true
}

// matchingClose returns the index of the ')' matching the '(' at open
func matchingClose(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseParams parses a parameter list. "" and "void" mean no parameters;
// unnamed parameters keep an empty name.
func parseParams(text string) ([]models.FunctionParameter, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "void" {
		return nil, false
	}
	var params []models.FunctionParameter
	variadic := false
	for _, p := range SplitTopLevel(text, ',', true) {
		p, _ = StripRegisterLocations(p)
		p = StripArtifacts(NormalizeSpace(p))
		if p == "" {
			continue
		}
		if p == "..." {
			variadic = true
			continue
		}
		params = append(params, parseParam(p))
	}
	return params, variadic
}

func parseParam(p string) models.FunctionParameter {
	if IsFunctionPointerDecl(p) {
		if name, ref, ok := parseFunctionPointer(p); ok {
			ref.Raw = p
			return models.FunctionParameter{Name: name, Type: ref}
		}
	}
	if name, dims, flexible, ok := ParseArraySuffix(p); ok {
		typeText, ident := SplitDeclarator(name)
		ref := ParseTypeReference(typeText)
		applyArray(&ref, dims, flexible)
		return models.FunctionParameter{Name: ident, Type: ref}
	}
	typeText, name := SplitDeclarator(p)
	return models.FunctionParameter{Name: name, Type: ParseTypeReference(typeText)}
}

// functionHeader is the decomposed header of a function definition/prototype
type functionHeader struct {
	ret      string
	conv     models.CallingConvention
	owner    string
	name     string
	params   string
	usercall bool
}

// splitFunctionHeader decomposes "ret conv Owner::name(params) const".
func splitFunctionHeader(header string) (functionHeader, bool) {
	var h functionHeader
	header, h.usercall = StripRegisterLocations(header)
	header = StripArtifacts(NormalizeSpace(header))
	for _, kw := range []string{"static ", "virtual ", "inline ", "__inline ", "__forceinline ", "extern "} {
		header = strings.TrimPrefix(header, kw)
	}
	header = strings.TrimSpace(header)
	for _, suffix := range []string{"const", "throw()", "noexcept"} {
		if hasQualifierSuffix(header, suffix) {
			header = strings.TrimSpace(strings.TrimSuffix(header, suffix))
		}
	}
	if !strings.HasSuffix(header, ")") {
		return h, false
	}
	po := matchingOpen(header, len(header)-1)
	if po <= 0 {
		return h, false
	}
	h.params = header[po+1 : len(header)-1]
	head := strings.TrimSpace(header[:po])

	nameStart := qualifiedNameStart(head)
	if nameStart < 0 || nameStart >= len(head) {
		return h, false
	}
	qname := strings.TrimSpace(head[nameStart:])
	h.ret = strings.TrimSpace(head[:nameStart])
	if loc := conventionRe.FindStringIndex(h.ret); loc != nil {
		h.conv = ParseConvention(h.ret[loc[0]:loc[1]])
		h.ret = strings.TrimSpace(h.ret[:loc[0]] + " " + h.ret[loc[1]:])
	}

	segs := SplitQualified(qname)
	h.name = segs[len(segs)-1]
	if len(segs) > 1 {
		h.owner = CanonicalName(strings.Join(segs[:len(segs)-1], "::"))
	}
	return h, h.name != ""
}

// qualifiedNameStart finds where the (possibly qualified, possibly operator)
// function name starts at the end of head.
func qualifiedNameStart(head string) int {
	if i := operatorIndex(head); i >= 0 {
		return scanQualifierBack(head, i)
	}
	return scanQualifierBack(head, len(head))
}

func operatorIndex(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		}
		if depth == 0 && isOperatorAt(s, i) {
			return i
		}
	}
	return -1
}

// scanQualifierBack walks left from end over identifier characters, "::" and
// balanced template argument lists.
func scanQualifierBack(s string, end int) int {
	i := end
	depth := 0
	for i > 0 {
		c := s[i-1]
		switch {
		case c == '>':
			depth++
		case c == '<':
			if depth == 0 {
				return i
			}
			depth--
		case depth > 0:
		case isIdentByte(c) || c == ':' || c == '~':
		default:
			return i
		}
		i--
	}
	return i
}

// parseFunction builds a FunctionBody from a definition or prototype. body is
// the text between the outer braces (empty for prototypes).
func (p *Parser) parseFunction(d rawDecl, header, body string) (*models.FunctionBody, error) {
	h, ok := splitFunctionHeader(header)
	if !ok {
		return nil, p.errorf("unrecognized function header")
	}
	params, variadic := parseParams(h.params)
	f := &models.FunctionBody{
		Name:     h.name,
		OwnerFQN: h.owner,
		Signature: models.FunctionSignature{
			Return:     ParseTypeReference(h.ret),
			Convention: h.conv,
			Params:     params,
			IsVariadic: variadic,
		},
		Address:      d.Address,
		Body:         strings.TrimSpace(body),
		IsOperator:   IsOperatorName(h.name),
		IsUnreliable: h.usercall || h.conv.IsUserDefined() || IsUnreliable(header) || IsUnreliable(d.Leading),
		Source:       p.location(d),
	}
	if h.ret == "" {
		f.Signature.Return = models.TypeReference{Raw: "void", Name: "void", Base: "void"}
	}
	if h.owner != "" {
		ownerBase := ExtractBaseName(h.owner)
		name, _, _ := SplitTemplate(h.name)
		f.IsConstructor = name == ownerBase
		f.IsDestructor = strings.HasPrefix(h.name, "~")
	}
	return f, nil
}
