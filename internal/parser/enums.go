package parser

import (
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// parseEnum parses "enum [class] [__bitmask] Name [: underlying] { A = 1, B }".
// Omitted values continue from the previous one; values that are neither
// numeric nor an earlier enumerator keep their raw spelling only.
func (p *Parser) parseEnum(d rawDecl, header, body, namespace string) (*models.TypeEntity, error) {
	t := &models.TypeEntity{
		Kind:      models.KindEnum,
		IsDefined: true,
		Source:    p.location(d),
	}

	header = StripArtifacts(header)
	words := strings.Fields(strings.TrimSpace(strings.TrimPrefix(header, "enum")))
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "__bitmask":
			t.IsBitmask = true
		case "class", "struct":
		default:
			kept = append(kept, w)
		}
	}
	rest := strings.Join(kept, " ")
	if i := baseColon(rest); i >= 0 {
		t.UnderlyingType = NormalizeSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
	}
	if rest == "" {
		return nil, p.errorf("enum definition without a name")
	}
	if namespace != "" {
		t.Namespace = namespace
		_, t.Name, _ = ParseQualifiedName(rest)
	} else {
		t.Namespace, t.Name, _ = ParseQualifiedName(rest)
	}

	known := make(map[string]int64)
	var prev *int64
	for _, item := range SplitTopLevel(body, ',', true) {
		item = NormalizeSpace(item)
		if item == "" {
			continue
		}
		m := models.EnumMember{Name: item}
		if eq := strings.IndexByte(item, '='); eq >= 0 {
			m.Name = strings.TrimSpace(item[:eq])
			m.Raw = strings.TrimSpace(item[eq+1:])
			m.Value = enumValue(m.Raw, known)
		} else if prev != nil {
			v := *prev + 1
			m.Value = &v
		} else if len(t.EnumMembers) == 0 {
			v := int64(0)
			m.Value = &v
		}
		if m.Value != nil {
			known[m.Name] = *m.Value
		}
		prev = m.Value
		t.EnumMembers = append(t.EnumMembers, m)
	}

	id, added := p.graph.AddType(t)
	if !added && p.graph.Type(id) != t {
		p.warn(d, "duplicate definition of %s ignored", t.FQN())
		return p.graph.Type(id), nil
	}
	p.stats.Types++
	return t, nil
}

// enumValue evaluates a literal, an earlier enumerator, or a bitwise OR of them
func enumValue(raw string, known map[string]int64) *int64 {
	var total int64
	for _, part := range strings.Split(raw, "|") {
		part = strings.Trim(strings.TrimSpace(part), "()")
		if v, err := parseInteger(part); err == nil {
			total |= v
			continue
		}
		if v, ok := known[part]; ok {
			total |= v
			continue
		}
		return nil
	}
	return &total
}
