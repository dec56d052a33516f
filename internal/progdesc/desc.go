// Package progdesc loads program descriptions: YAML documents that declare
// features, types and code in the shape the monomorphizer consumes. They stand
// in for a front end in the CLI and in tests.
//
// A description looks like
//
//	base: true
//	main: main
//	features:
//	  - name: point
//	    args:
//	      - {name: x, type: i32}
//	      - {name: y, type: i32}
//	  - name: main
//	    code:
//	      - call: point
//	        args: [{int: 3}, {int: 4}]
package progdesc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Desc is the top-level document.
type Desc struct {
	// Base declares the built-in base library (Any, unit, bool, the numeric
	// types, String, fuzion.sys.Pointer) before the described features.
	Base bool `yaml:"base,omitempty"`

	// Main is the dotted path of the feature the program starts with.
	Main string `yaml:"main"`

	Features []Feature `yaml:"features"`
}

// Feature declares one feature and, recursively, its inner features.
type Feature struct {
	Name string `yaml:"name"`

	// Kind is one of constructor (default), routine, field, intrinsic,
	// abstract, choice or native.
	Kind string `yaml:"kind,omitempty"`

	Ref       bool `yaml:"ref,omitempty"`
	Fixed     bool `yaml:"fixed,omitempty"`
	Primitive bool `yaml:"primitive,omitempty"`

	// Type is the result type of a routine or the type of a field.
	Type string `yaml:"type,omitempty"`

	// TypeParams names the type parameters; a trailing "..." marks the last
	// one as open.
	TypeParams []string `yaml:"type_params,omitempty"`

	Args      []Arg    `yaml:"args,omitempty"`
	Choices   []string `yaml:"choices,omitempty"`
	Redefines []string `yaml:"redefines,omitempty"`

	// Inherits, Code, Pre and Post hold expressions, see expr.go.
	Inherits []yaml.Node `yaml:"inherits,omitempty"`
	Code     []yaml.Node `yaml:"code,omitempty"`
	Pre      []yaml.Node `yaml:"pre,omitempty"`
	Post     []yaml.Node `yaml:"post,omitempty"`

	Features []Feature `yaml:"features,omitempty"`

	node *yaml.Node
}

// Arg is a value argument.
type Arg struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

var featureKeys = map[string]bool{
	"name": true, "kind": true, "ref": true, "fixed": true, "primitive": true,
	"type": true, "type_params": true, "args": true, "choices": true,
	"redefines": true, "inherits": true, "code": true, "pre": true, "post": true,
	"features": true,
}

// UnmarshalYAML keeps the node for positions and rejects unknown keys.
func (f *Feature) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: feature must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k := value.Content[i]
		if !featureKeys[k.Value] {
			return fmt.Errorf("line %d: unknown feature key %q", k.Line, k.Value)
		}
	}
	type plain Feature
	if err := value.Decode((*plain)(f)); err != nil {
		return err
	}
	f.node = value
	return nil
}

// typeParam reports the declared name of a type parameter and whether it is open.
func typeParam(s string) (string, bool) {
	if name, ok := strings.CutSuffix(s, "..."); ok {
		return strings.TrimSpace(name), true
	}
	return s, false
}
