package surface

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML declaration surface. name is recorded as the file
// name for diagnostics.
func Parse(data []byte, name string) (*File, error) {
	return Load(bytes.NewReader(data), name)
}

// Load decodes a YAML declaration surface from r.
func Load(r io.Reader, name string) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &File{Name: name}, nil
		}
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	f.Name = name
	return &f, nil
}

// LoadFile decodes the YAML declaration surface at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, path)
}

func posOf(n *yaml.Node) Pos {
	return Pos{Line: n.Line, Column: n.Column}
}

// decodeStrict decodes a mapping node into v, rejecting keys v has no field
// for. Node.Decode does not inherit the decoder's KnownFields setting.
func decodeStrict(n *yaml.Node, v any) error {
	if n.Kind == yaml.MappingNode {
		known := yamlKeys(reflect.TypeOf(v).Elem())
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if !known[k.Value] {
				return fmt.Errorf("line %d: unknown field %q", k.Line, k.Value)
			}
		}
	}
	return n.Decode(v)
}

func yamlKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

// UnmarshalYAML records the position of the declaration.
func (d *Decl) UnmarshalYAML(n *yaml.Node) error {
	type plain Decl
	if err := decodeStrict(n, (*plain)(d)); err != nil {
		return err
	}
	d.Pos = posOf(n)
	return nil
}

// UnmarshalYAML records the position of the type declaration. A scalar is
// shorthand for the name.
func (t *TypeDecl) UnmarshalYAML(n *yaml.Node) error {
	t.Pos = posOf(n)
	if n.Kind == yaml.ScalarNode {
		t.Name = n.Value
		return nil
	}
	type plain TypeDecl
	if err := decodeStrict(n, (*plain)(t)); err != nil {
		return err
	}
	t.Pos = posOf(n)
	return nil
}

// UnmarshalYAML records the position of the field.
func (f *FieldDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain FieldDecl
	if err := decodeStrict(n, (*plain)(f)); err != nil {
		return err
	}
	f.Pos = posOf(n)
	return nil
}

// UnmarshalYAML records the position of the variant. A scalar is shorthand
// for a variant with an implicit discriminant.
func (v *VariantDecl) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		v.Name = n.Value
		v.Pos = posOf(n)
		return nil
	}
	type plain VariantDecl
	if err := decodeStrict(n, (*plain)(v)); err != nil {
		return err
	}
	v.Pos = posOf(n)
	return nil
}

// UnmarshalYAML records the position of the function.
func (f *FuncDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain FuncDecl
	if err := decodeStrict(n, (*plain)(f)); err != nil {
		return err
	}
	f.Pos = posOf(n)
	return nil
}

// UnmarshalYAML records the position of the parameter.
func (p *ParamDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ParamDecl
	if err := decodeStrict(n, (*plain)(p)); err != nil {
		return err
	}
	p.Pos = posOf(n)
	return nil
}

// UnmarshalYAML accepts a scalar type name or a mapping.
func (t *TypeExpr) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		t.Name = n.Value
		t.Pos = posOf(n)
		return nil
	}
	type plain TypeExpr
	if err := decodeStrict(n, (*plain)(t)); err != nil {
		return err
	}
	t.Pos = posOf(n)
	return nil
}

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (t *Tags) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*t = Tags{n.Value}
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := n.Decode(&vals); err != nil {
			return err
		}
		*t = vals
		return nil
	default:
		return fmt.Errorf("line %d: side must be a scalar or a list", n.Line)
	}
}
