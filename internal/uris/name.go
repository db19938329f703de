package uris

import (
	"strings"

	"github.com/FlexiFormal/FLAMS-sub003/internal/intern"
)

// percentEscapes is the exact, closed table of URL-unsafe characters in
// name steps per spec §4.A. Nothing outside this table is encoded, and
// nothing else is decoded back out of a "%XX" triple.
var percentEscapes = []struct {
	raw     byte
	escaped string
}{
	{' ', "%20"},
	{'\\', "%5C"},
	{'^', "%5E"},
	{'[', "%5B"},
	{']', "%5D"},
}

func escapeStep(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		escaped := false
		for _, e := range percentEscapes {
			if c == e.raw {
				b.WriteString(e.escaped)
				escaped = true
				break
			}
		}
		if !escaped {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescapeStep(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '%' && i+3 <= len(s) {
			matched := false
			for _, e := range percentEscapes {
				if strings.EqualFold(s[i:i+3], e.escaped) {
					b.WriteByte(e.raw)
					i += 3
					matched = true
					break
				}
			}
			if matched {
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// Name is an interned, "/"-joined sequence of name steps. Two Names with
// the same textual form intern to the same Symbol slice, so equality can
// be checked step-by-step without string comparison.
type Name struct {
	steps []intern.Symbol
}

// EmptyName is the zero-length name, used as the "no sub-path" sentinel.
var EmptyName = Name{}

// ParseName splits s on "/" and interns (after percent-decoding) each step.
// An empty string parses to EmptyName.
func ParseName(s string) Name {
	if s == "" {
		return EmptyName
	}
	parts := strings.Split(s, "/")
	steps := make([]intern.Symbol, len(parts))
	for i, p := range parts {
		steps[i] = intern.Intern(unescapeStep(p))
	}
	return Name{steps: steps}
}

// String renders n back to its canonical, percent-encoded textual form.
func (n Name) String() string {
	if len(n.steps) == 0 {
		return ""
	}
	parts := make([]string, len(n.steps))
	for i, s := range n.steps {
		parts[i] = escapeStep(s.String())
	}
	return strings.Join(parts, "/")
}

// IsEmpty reports whether n has zero steps.
func (n Name) IsEmpty() bool { return len(n.steps) == 0 }

// Equal compares two Names by their interned step symbols (pointer-style
// equality, per spec §9 "Interning & identity").
func (n Name) Equal(o Name) bool {
	if len(n.steps) != len(o.steps) {
		return false
	}
	for i := range n.steps {
		if n.steps[i] != o.steps[i] {
			return false
		}
	}
	return true
}

// Append returns a new Name with step appended.
func (n Name) Append(step string) Name {
	steps := make([]intern.Symbol, len(n.steps)+1)
	copy(steps, n.steps)
	steps[len(n.steps)] = intern.Intern(step)
	return Name{steps: steps}
}

// ArchiveId is a non-empty ordered sequence of name steps identifying an
// archive, "/"-separated in textual form (spec §3 "Identifiers").
type ArchiveId struct {
	steps []intern.Symbol
}

// MetaArchiveId is the special archive id reserved for the meta archive.
var MetaArchiveId = ArchiveId{steps: []intern.Symbol{intern.Intern("MathHub"), intern.Intern("meta-inf")}}

// ParseArchiveId splits s on "/" into name-step symbols. An empty string is
// rejected: archive ids must be non-empty per spec §3.
func ParseArchiveId(s string) (ArchiveId, error) {
	if s == "" {
		return ArchiveId{}, errInvalid("archive id must not be empty")
	}
	parts := strings.Split(s, "/")
	steps := make([]intern.Symbol, len(parts))
	for i, p := range parts {
		if p == "" {
			return ArchiveId{}, errInvalid("archive id has an empty path segment: %q", s)
		}
		steps[i] = intern.Intern(unescapeStep(p))
	}
	return ArchiveId{steps: steps}, nil
}

// MustParseArchiveId is ParseArchiveId for callers with a known-good
// compile-time constant (tests, registry bootstrap).
func MustParseArchiveId(s string) ArchiveId {
	id, err := ParseArchiveId(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (a ArchiveId) String() string {
	parts := make([]string, len(a.steps))
	for i, s := range a.steps {
		parts[i] = escapeStep(s.String())
	}
	return strings.Join(parts, "/")
}

// Equal compares two archive ids by interned symbol.
func (a ArchiveId) Equal(o ArchiveId) bool {
	if len(a.steps) != len(o.steps) {
		return false
	}
	for i := range a.steps {
		if a.steps[i] != o.steps[i] {
			return false
		}
	}
	return true
}

// IsMeta reports whether a is the distinguished "MathHub/meta-inf" id.
func (a ArchiveId) IsMeta() bool { return a.Equal(MetaArchiveId) }

// IsZero reports whether a was never assigned (the zero ArchiveId).
func (a ArchiveId) IsZero() bool { return len(a.steps) == 0 }

// Steps exposes the archive id's interned path segments.
func (a ArchiveId) Steps() []intern.Symbol {
	out := make([]intern.Symbol, len(a.steps))
	copy(out, a.steps)
	return out
}
