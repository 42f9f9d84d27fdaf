package abi

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SupportedVersions is the range of contract versions this library emits.
const SupportedVersions = ">= 0.1.0, < 2.0.0"

// DefaultVersion is used when configuration does not name one.
const DefaultVersion = "0.1.0"

// ParseVersion parses an ABI version and checks that it is supported.
func ParseVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid abi version %q: %w", s, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return nil, fmt.Errorf("abi version %s is outside the supported range %q", v, SupportedVersions)
	}
	return v, nil
}

// PrefixFor derives the symbol prefix from an ABI version. Only major and
// minor participate: patch releases never change the contract.
func PrefixFor(v *semver.Version) string {
	return fmt.Sprintf("bridge%d%d", v.Major(), v.Minor())
}

// IsIdentifier reports whether s is an ASCII identifier valid on both sides:
// a letter or underscore followed by letters, digits, or underscores.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ReservedSegment reports whether name spells a fixed symbol segment: a
// container family name or the deleter marker. A type with such a name
// would give its methods the symbols of container operations or deleters.
func ReservedSegment(name string) bool {
	if name == "" {
		return false
	}
	if name == "drop" {
		return true
	}
	for _, n := range containerNames {
		if n == name {
			return true
		}
	}
	return false
}

// Mangler builds link symbols. Segments are joined with '$', which is not an
// identifier character, so generated symbols cannot collide with user code.
// Symbols stay distinct from each other as long as every segment is an
// identifier and no type name is a ReservedSegment:
//
//	function   prefix$ns$name
//	method     prefix$ns$Type$name
//	deleter    prefix$ns$drop$Type
//	container  prefix$ns$family[$elem]$op
type Mangler struct {
	Prefix    string
	Namespace []string
}

// NewMangler returns a Mangler for version v and a "::"-separated namespace.
func NewMangler(v *semver.Version, namespace string) Mangler {
	m := Mangler{Prefix: PrefixFor(v)}
	if namespace != "" {
		m.Namespace = strings.Split(namespace, "::")
	}
	return m
}

// Symbol joins the prefix, namespace, and parts.
func (m Mangler) Symbol(parts ...string) string {
	segs := make([]string, 0, 1+len(m.Namespace)+len(parts))
	segs = append(segs, m.Prefix)
	segs = append(segs, m.Namespace...)
	segs = append(segs, parts...)
	return strings.Join(segs, "$")
}

// Function is the symbol of a free function.
func (m Mangler) Function(name string) string {
	return m.Symbol(name)
}

// Method is the symbol of a function whose receiver is typ.
func (m Mangler) Method(typ, name string) string {
	return m.Symbol(typ, name)
}

// Deleter is the destructor trampoline of an opaque type.
func (m Mangler) Deleter(typ string) string {
	return m.Symbol("drop", typ)
}

// Op is the symbol of a container operation.
func (m Mangler) Op(kind ContainerKind, elem string, op Op) string {
	if elem == "" {
		return m.Symbol(kind.String(), string(op))
	}
	return m.Symbol(kind.String(), elem, string(op))
}
