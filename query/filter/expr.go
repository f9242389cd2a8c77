package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ErrInvalidExpression is returned when an expression cannot be parsed or
// its placeholders do not match its arguments.
var ErrInvalidExpression = errors.New("filter: invalid expression")

// exprLexer tokenizes boolean expressions such as
// "Age >= ? AND (Name LIKE 'J%' OR Name IS NULL)".
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(?:AND|OR|NOT|LIKE|IN|BETWEEN|IS|NULL|TRUE|FALSE)\b`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*(?:\.[\p{L}_][\p{L}\p{N}_]*)*`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|==|=|<|>`},
	{Name: "Symbol", Pattern: `&&|\|\||[(),?!]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type exprOr struct {
	Left  *exprAnd   `@@`
	Right []*exprAnd `( ( "OR" | "||" ) @@ )*`
}

type exprAnd struct {
	Left  *exprUnary   `@@`
	Right []*exprUnary `( ( "AND" | "&&" ) @@ )*`
}

type exprUnary struct {
	Not       *exprUnary     `  ( "NOT" | "!" ) @@`
	Sub       *exprOr        `| "(" @@ ")"`
	Predicate *exprPredicate `| @@`
}

type exprPredicate struct {
	Column  string       `@Ident`
	Is      *exprIs      `( @@`
	Between *exprBetween `| @@`
	In      *exprIn      `| @@`
	Like    *exprLike    `| @@`
	Compare *exprCompare `| @@ )`
}

type exprIs struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

type exprBetween struct {
	Not  bool       `@"NOT"? "BETWEEN"`
	Low  *exprValue `@@ "AND"`
	High *exprValue `@@`
}

type exprIn struct {
	Not    bool         `@"NOT"? "IN"`
	Values []*exprValue `( "(" ( @@ ( "," @@ )* )? ")" | @@ )`
}

type exprLike struct {
	Not   bool       `@"NOT"? "LIKE"`
	Value *exprValue `@@`
}

type exprCompare struct {
	Op    string     `@Operator`
	Value *exprValue `@@`
}

type exprValue struct {
	Param  bool    `  @"?"`
	Null   bool    `| @"NULL"`
	True   bool    `| @"TRUE"`
	False  bool    `| @"FALSE"`
	Number *string `| @Number`
	String *string `| @String`
}

var exprParser = participle.MustBuild[exprOr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// Expression is a boolean expression with positional "?" arguments.
type Expression struct {
	text string
	args []any
}

// Expr builds an expression, for example
//
//	filter.Expr("Age >= ? AND (Name = ? OR Name IS NULL)", 18, "Ann")
//
// Supported are comparisons (=, ==, <>, !=, <, >, <=, >=), [NOT] LIKE,
// [NOT] IN (...), [NOT] BETWEEN x AND y, IS [NOT] NULL, AND/&&, OR/||,
// NOT/!, parentheses and string, number, boolean and NULL literals.
// "IN ?" binds a single slice argument.
func Expr(text string, args ...any) *Expression {
	return &Expression{text: text, args: args}
}

// Text returns the expression source.
func (e *Expression) Text() string { return e.text }

// Group parses the expression into a group.
func (e *Expression) Group() (*Group, error) {
	ast, err := exprParser.ParseString("", e.text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, e.text, err)
	}
	b := &exprBuilder{args: e.args}
	it, err := b.or(ast)
	if err != nil {
		return nil, err
	}
	if b.next != len(b.args) {
		return nil, fmt.Errorf("%w: %q has %d placeholders but %d arguments", ErrInvalidExpression, e.text, b.next, len(b.args))
	}
	if it.group != nil {
		return it.group, nil
	}
	return All(*it.field), nil
}

// item is either a single field or a group.
type item struct {
	field *Field
	group *Group
}

type exprBuilder struct {
	args []any
	next int
}

func (b *exprBuilder) or(n *exprOr) (item, error) {
	items := make([]item, 0, 1+len(n.Right))
	for _, a := range append([]*exprAnd{n.Left}, n.Right...) {
		it, err := b.and(a)
		if err != nil {
			return item{}, err
		}
		items = append(items, it)
	}
	return combine(Or, items), nil
}

func (b *exprBuilder) and(n *exprAnd) (item, error) {
	items := make([]item, 0, 1+len(n.Right))
	for _, u := range append([]*exprUnary{n.Left}, n.Right...) {
		it, err := b.unary(u)
		if err != nil {
			return item{}, err
		}
		items = append(items, it)
	}
	return combine(And, items), nil
}

func (b *exprBuilder) unary(n *exprUnary) (item, error) {
	switch {
	case n.Not != nil:
		it, err := b.unary(n.Not)
		if err != nil {
			return item{}, err
		}
		if it.group != nil {
			return item{group: Not(it.group)}, nil
		}
		return item{group: Not(All(*it.field))}, nil
	case n.Sub != nil:
		return b.or(n.Sub)
	default:
		f, err := b.predicate(n.Predicate)
		if err != nil {
			return item{}, err
		}
		return item{field: &f}, nil
	}
}

func (b *exprBuilder) predicate(p *exprPredicate) (Field, error) {
	switch {
	case p.Is != nil:
		if p.Is.Not {
			return Ne(p.Column, nil), nil
		}
		return Eq(p.Column, nil), nil

	case p.Between != nil:
		lo, err := b.value(p.Between.Low)
		if err != nil {
			return Field{}, err
		}
		hi, err := b.value(p.Between.High)
		if err != nil {
			return Field{}, err
		}
		if p.Between.Not {
			return NotRange(p.Column, lo, hi), nil
		}
		return Range(p.Column, lo, hi), nil

	case p.In != nil:
		values := make([]any, 0, len(p.In.Values))
		for _, v := range p.In.Values {
			val, err := b.value(v)
			if err != nil {
				return Field{}, err
			}
			values = append(values, val)
		}
		op := In
		if p.In.Not {
			op = NotIn
		}
		if len(values) == 1 {
			// "IN ?" or "IN (?)" with a slice argument.
			return NewField(p.Column, op, values[0]), nil
		}
		return NewField(p.Column, op, values), nil

	case p.Like != nil:
		val, err := b.value(p.Like.Value)
		if err != nil {
			return Field{}, err
		}
		if p.Like.Not {
			return NotMatches(p.Column, val), nil
		}
		return Matches(p.Column, val), nil

	default:
		val, err := b.value(p.Compare.Value)
		if err != nil {
			return Field{}, err
		}
		switch p.Compare.Op {
		case "=", "==":
			return Eq(p.Column, val), nil
		case "<>", "!=":
			return Ne(p.Column, val), nil
		case "<":
			return Lt(p.Column, val), nil
		case ">":
			return Gt(p.Column, val), nil
		case "<=":
			return Le(p.Column, val), nil
		case ">=":
			return Ge(p.Column, val), nil
		}
		return Field{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidExpression, p.Compare.Op)
	}
}

func (b *exprBuilder) value(v *exprValue) (any, error) {
	switch {
	case v.Param:
		if b.next >= len(b.args) {
			return nil, fmt.Errorf("%w: missing argument %d", ErrInvalidExpression, b.next+1)
		}
		arg := b.args[b.next]
		b.next++
		return arg, nil
	case v.Null:
		return nil, nil
	case v.True:
		return true, nil
	case v.False:
		return false, nil
	case v.Number != nil:
		if n, err := strconv.ParseInt(*v.Number, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
		}
		return f, nil
	case v.String != nil:
		s := *v.String
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
	}
	return nil, fmt.Errorf("%w: empty value", ErrInvalidExpression)
}

// combine joins items with conj. A single item is returned unchanged.
func combine(conj Conjunction, items []item) item {
	if len(items) == 1 {
		return items[0]
	}
	var (
		fields []Field
		groups []*Group
	)
	for _, it := range items {
		if it.field != nil {
			fields = append(fields, *it.field)
		} else {
			groups = append(groups, it.group)
		}
	}
	return item{group: NewGroup(conj, false, fields, groups)}
}
