package filter

import "strings"

// Group is an immutable tree of fields and nested groups. Fields are
// rendered first, then nested groups, each group in parentheses.
type Group struct {
	conj   Conjunction
	not    bool
	fields []Field
	groups []*Group
}

// NewGroup builds a group from its parts. The slices are copied.
func NewGroup(conj Conjunction, not bool, fields []Field, groups []*Group) *Group {
	g := &Group{conj: conj, not: not}
	if len(fields) > 0 {
		g.fields = append([]Field(nil), fields...)
	}
	for _, sub := range groups {
		if sub != nil {
			g.groups = append(g.groups, sub)
		}
	}
	return g
}

// All joins fields with AND.
func All(fields ...Field) *Group { return NewGroup(And, false, fields, nil) }

// Any joins fields with OR.
func Any(fields ...Field) *Group { return NewGroup(Or, false, fields, nil) }

// AllOf joins groups with AND.
func AllOf(groups ...*Group) *Group { return NewGroup(And, false, nil, groups) }

// AnyOf joins groups with OR.
func AnyOf(groups ...*Group) *Group { return NewGroup(Or, false, nil, groups) }

// Not returns a negated copy of g.
func Not(g *Group) *Group {
	if g == nil {
		return nil
	}
	c := g.clone()
	c.not = !c.not
	return c
}

// With returns a copy of g with extra nested groups.
func (g *Group) With(groups ...*Group) *Group {
	c := g.clone()
	for _, sub := range groups {
		if sub != nil {
			c.groups = append(c.groups, sub)
		}
	}
	return c
}

// WithFields returns a copy of g with extra fields.
func (g *Group) WithFields(fields ...Field) *Group {
	c := g.clone()
	c.fields = append(c.fields, fields...)
	return c
}

func (g *Group) clone() *Group {
	if g == nil {
		return &Group{}
	}
	return NewGroup(g.conj, g.not, g.fields, g.groups)
}

// Conjunction returns how the members are joined.
func (g *Group) Conjunction() Conjunction {
	if g == nil {
		return And
	}
	return g.conj
}

// IsNot reports whether the group is negated.
func (g *Group) IsNot() bool { return g != nil && g.not }

// Fields returns a copy of the direct fields.
func (g *Group) Fields() []Field {
	if g == nil || len(g.fields) == 0 {
		return nil
	}
	return append([]Field(nil), g.fields...)
}

// Groups returns a copy of the nested groups.
func (g *Group) Groups() []*Group {
	if g == nil || len(g.groups) == 0 {
		return nil
	}
	return append([]*Group(nil), g.groups...)
}

// IsEmpty reports whether the group renders no predicate at all.
func (g *Group) IsEmpty() bool {
	if g == nil {
		return true
	}
	if len(g.fields) > 0 {
		return false
	}
	for _, sub := range g.groups {
		if !sub.IsEmpty() {
			return false
		}
	}
	return true
}

// Values returns the bound arguments in render order.
func (g *Group) Values() []any {
	if g == nil {
		return nil
	}
	var out []any
	g.appendValues(&out)
	return out
}

func (g *Group) appendValues(out *[]any) {
	for _, f := range g.fields {
		*out = append(*out, f.args...)
	}
	for _, sub := range g.groups {
		if !sub.IsEmpty() {
			sub.appendValues(out)
		}
	}
}

// Shape is a deterministic description of the group that covers names,
// operations and value counts but no values.
func (g *Group) Shape() string {
	if g.IsEmpty() {
		return ""
	}
	var b strings.Builder
	g.writeShape(&b)
	return b.String()
}

func (g *Group) writeShape(b *strings.Builder) {
	if g.not {
		b.WriteString("NOT ")
	}
	b.WriteByte('(')
	n := 0
	sep := func() {
		if n > 0 {
			b.WriteByte(' ')
			b.WriteString(g.conj.String())
			b.WriteByte(' ')
		}
		n++
	}
	for _, f := range g.fields {
		sep()
		f.writeShape(b)
	}
	for _, sub := range g.groups {
		if sub.IsEmpty() {
			continue
		}
		sep()
		sub.writeShape(b)
	}
	b.WriteByte(')')
}

// Validate checks every field in the tree.
func (g *Group) Validate() error {
	if g == nil {
		return nil
	}
	for _, f := range g.fields {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	for _, sub := range g.groups {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MapNames returns a copy of the tree with every field renamed through fn.
func (g *Group) MapNames(fn func(string) string) *Group {
	if g == nil {
		return nil
	}
	c := &Group{conj: g.conj, not: g.not}
	for _, f := range g.fields {
		c.fields = append(c.fields, f.Rename(fn(f.name)))
	}
	for _, sub := range g.groups {
		c.groups = append(c.groups, sub.MapNames(fn))
	}
	return c
}

// String renders the tree for debugging.
func (g *Group) String() string {
	if g.IsEmpty() {
		return "()"
	}
	parts := make([]string, 0, len(g.fields)+len(g.groups))
	for _, f := range g.fields {
		parts = append(parts, f.String())
	}
	for _, sub := range g.groups {
		if !sub.IsEmpty() {
			parts = append(parts, sub.String())
		}
	}
	s := "(" + strings.Join(parts, " "+g.conj.String()+" ") + ")"
	if g.not {
		s = "NOT " + s
	}
	return s
}
