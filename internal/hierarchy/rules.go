package hierarchy

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// Rule types accepted in rule files
const (
	RuleTypeBaseClass       = "base_class"
	RuleTypeFQNPattern      = "fqn_pattern"
	RuleTypeMemberPattern   = "member_pattern"
	RuleTypeNamespacePrefix = "namespace_prefix"
)

// RuleSpec is one rule as written in a rule file
type RuleSpec struct {
	Type           string `yaml:"type"`
	Match          string `yaml:"match"`
	Dir            string `yaml:"dir,omitempty"`
	StripNamespace bool   `yaml:"strip_namespace,omitempty"`
	File           string `yaml:"file,omitempty"`
}

// RuleFile is the YAML document holding grouping rules and ignore patterns
type RuleFile struct {
	Rules  []RuleSpec `yaml:"rules"`
	Ignore []string   `yaml:"ignore,omitempty"`
}

// RuleSet is a compiled RuleFile
type RuleSet struct {
	Rules  []Rule
	Ignore []*regexp.Regexp
}

// LoadRules reads and compiles a YAML rule file
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read rule file %s", path)
	}
	rs, err := ParseRules(data)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithContext("path", path)
		}
		return nil, err
	}
	return rs, nil
}

// ParseRules compiles a YAML rule document
func ParseRules(data []byte) (*RuleSet, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "invalid rule file")
	}

	rs := &RuleSet{}
	for i, raw := range file.Rules {
		r, err := raw.compile()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "invalid rule").
				WithContext("index", i)
		}
		rs.Rules = append(rs.Rules, r)
	}
	for _, pattern := range file.Ignore {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.ValidationErrorf("invalid ignore pattern %q: %v", pattern, err)
		}
		rs.Ignore = append(rs.Ignore, re)
	}
	return rs, nil
}

func (s RuleSpec) compile() (Rule, error) {
	if s.Match == "" {
		return nil, errors.ValidationErrorf("rule of type %q has no match", s.Type)
	}
	p := Placement{Prefix: s.Dir, StripNamespace: s.StripNamespace, FileName: s.File}

	switch s.Type {
	case RuleTypeBaseClass:
		return RuleBaseClass{Base: s.Match, Placement: p}, nil
	case RuleTypeNamespacePrefix:
		return RuleNamespacePrefix{Prefix: s.Match, Placement: p}, nil
	case RuleTypeFQNPattern, RuleTypeMemberPattern:
		re, err := regexp.Compile(s.Match)
		if err != nil {
			return nil, errors.ValidationErrorf("invalid pattern %q: %v", s.Match, err)
		}
		if s.Type == RuleTypeFQNPattern {
			return RuleFQNPattern{Pattern: re, Placement: p}, nil
		}
		return RuleMemberPattern{Pattern: re, Placement: p}, nil
	}
	return nil, errors.ValidationErrorf("unknown rule type %q", s.Type)
}
