package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Placeholder is a non-translatable inline element (tag, variable, markup).
// T is the kind, V the literal value and S an optional human-readable sample.
// Keys other than t/v/s are carried verbatim in Attrs.
type Placeholder struct {
	T     string
	V     string
	S     string
	Attrs map[string]json.RawMessage
}

// Part is one item of normalized content: either plain text or a placeholder.
type Part struct {
	Text string
	Ph   *Placeholder
}

// Text returns a plain-text part.
func Text(s string) Part { return Part{Text: s} }

// Ph returns a placeholder part.
func Ph(kind, value string) Part { return Part{Ph: &Placeholder{T: kind, V: value}} }

// IsPlaceholder reports whether p carries a placeholder instead of text.
func (p Part) IsPlaceholder() bool { return p.Ph != nil }

// Clone returns a copy of p that shares no structure with it.
func (p Part) Clone() Part {
	if p.Ph == nil {
		return Part{Text: p.Text}
	}
	ph := &Placeholder{T: p.Ph.T, V: p.Ph.V, S: p.Ph.S}
	if len(p.Ph.Attrs) > 0 {
		ph.Attrs = make(map[string]json.RawMessage, len(p.Ph.Attrs))
		for k, v := range p.Ph.Attrs {
			ph.Attrs[k] = append(json.RawMessage(nil), v...)
		}
	}
	return Part{Ph: ph}
}

// Equal reports structural equality.
func (p Part) Equal(o Part) bool {
	if (p.Ph == nil) != (o.Ph == nil) {
		return false
	}
	if p.Ph == nil {
		return p.Text == o.Text
	}
	a, b := p.Ph, o.Ph
	if a.T != b.T || a.V != b.V || a.S != b.S || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for k, av := range a.Attrs {
		bv, ok := b.Attrs[k]
		if !ok || !bytes.Equal(av, bv) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes text as a JSON string and placeholders as objects.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Ph == nil {
		return json.Marshal(p.Text)
	}
	obj := make(map[string]any, len(p.Ph.Attrs)+3)
	for k, v := range p.Ph.Attrs {
		obj[k] = v
	}
	obj["t"] = p.Ph.T
	if p.Ph.V != "" {
		obj["v"] = p.Ph.V
	}
	if p.Ph.S != "" {
		obj["s"] = p.Ph.S
	}
	return json.Marshal(obj)
}

// UnmarshalJSON accepts a JSON string or a placeholder object.
func (p *Part) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("part: empty value")
	}
	switch b[0] {
	case '"':
		*p = Part{}
		return json.Unmarshal(b, &p.Text)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("part: %w", err)
		}
		ph := &Placeholder{}
		for key, dst := range map[string]*string{"t": &ph.T, "v": &ph.V, "s": &ph.S} {
			v, ok := raw[key]
			if !ok {
				continue
			}
			// non-string values stay in Attrs untouched
			if err := json.Unmarshal(v, dst); err != nil {
				continue
			}
			delete(raw, key)
		}
		if len(raw) > 0 {
			ph.Attrs = raw
		}
		*p = Part{Ph: ph}
		return nil
	default:
		return fmt.Errorf("part: expected string or object, got %q", truncate(string(b), 16))
	}
}

// Parts is an ordered sequence of normalized content items.
type Parts []Part

// Clone returns a deep copy. A nil sequence stays nil.
func (ps Parts) Clone() Parts {
	if ps == nil {
		return nil
	}
	out := make(Parts, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

// Equal compares item by item. Nil and empty sequences are equal.
func (ps Parts) Equal(o Parts) bool {
	if len(ps) != len(o) {
		return false
	}
	for i := range ps {
		if !ps[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the sequence has no items.
func (ps Parts) IsEmpty() bool { return len(ps) == 0 }

// PlainText flattens the sequence. Placeholders render as their value,
// or as {kind} when they have none.
func (ps Parts) PlainText() string {
	var sb strings.Builder
	for _, p := range ps {
		switch {
		case p.Ph == nil:
			sb.WriteString(p.Text)
		case p.Ph.V != "":
			sb.WriteString(p.Ph.V)
		default:
			sb.WriteString("{" + p.Ph.T + "}")
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
