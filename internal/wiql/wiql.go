// Package wiql builds and parses the small subset of the Work Item Query
// Language the stores understand:
//
//	SELECT <* | [field], ...> FROM <WorkItems | WorkItemLinks>
//	  [WHERE <cond> {AND <cond>}] [MODE (<word>)]
//
// where a condition is [field] = 'literal' or [field] = number, optionally
// prefixed with [Source]. or [Target]. in link queries.
package wiql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrSyntax is matched by every error returned from Parse.
var ErrSyntax = errors.New("wiql: syntax error")

// Source is the table a query selects from.
type Source string

const (
	SourceWorkItems     Source = "WorkItems"
	SourceWorkItemLinks Source = "WorkItemLinks"
)

// Link query condition prefixes.
const (
	PrefixSource = "Source"
	PrefixTarget = "Target"
)

// Condition is one equality test of a WHERE clause.
type Condition struct {
	Prefix  string
	Field   string
	Value   string
	Numeric bool
}

// Query is a parsed query.
type Query struct {
	Text   string
	Source Source
	Fields []string // nil means *
	Where  []Condition
	Mode   string
}

// IsLink reports whether the query returns link rows rather than work items.
func (q Query) IsLink() bool {
	return q.Source == SourceWorkItemLinks
}

// Conditions returns the conditions that apply to the given prefix. Unprefixed
// conditions of a link query apply to the source side.
func (q Query) Conditions(prefix string) []Condition {
	var out []Condition
	for _, c := range q.Where {
		p := c.Prefix
		if p == "" && q.IsLink() {
			p = PrefixSource
		}
		if p == prefix {
			out = append(out, c)
		}
	}
	return out
}

// IterationFilter returns the direct query for all work items in path. The
// path is inserted verbatim.
func IterationFilter(path string) string {
	return fmt.Sprintf("SELECT * FROM WorkItems WHERE [System.IterationPath] = '%s'", path)
}

// IterationLinkFilter returns the link-shaped query for all work items in path
// and their direct links.
func IterationLinkFilter(path string) string {
	return fmt.Sprintf("SELECT * FROM WorkItemLinks WHERE [Source].[System.IterationPath] = '%s' MODE (MustContain)", path)
}

// ValidatePath rejects iteration paths that cannot be embedded in a literal.
func ValidatePath(path string) error {
	for i, r := range path {
		if r == '\'' {
			return fmt.Errorf("iteration path %q: quote at offset %d", path, i)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("iteration path %q: control character at offset %d", path, i)
		}
	}
	return nil
}

// SyntaxError describes where parsing failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("wiql: %s at offset %d", e.Msg, e.Pos)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Parse parses text into a Query.
func Parse(text string) (Query, error) {
	toks, err := lex(text)
	if err != nil {
		return Query{}, err
	}
	p := &parser{toks: toks}
	q, err := p.query()
	if err != nil {
		return Query{}, err
	}
	q.Text = text
	return q, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) keyword(word string) error {
	t := p.next()
	if t.kind != tokIdent || !strings.EqualFold(t.text, word) {
		return p.errorf(t, "expected %s, got %s", word, t)
	}
	return nil
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, got %s", kind, t)
	}
	return t, nil
}

func (p *parser) query() (Query, error) {
	var q Query
	if err := p.keyword("SELECT"); err != nil {
		return q, err
	}
	fields, err := p.fieldList()
	if err != nil {
		return q, err
	}
	q.Fields = fields
	if err := p.keyword("FROM"); err != nil {
		return q, err
	}
	src, err := p.expect(tokIdent)
	if err != nil {
		return q, err
	}
	switch {
	case strings.EqualFold(src.text, string(SourceWorkItems)):
		q.Source = SourceWorkItems
	case strings.EqualFold(src.text, string(SourceWorkItemLinks)):
		q.Source = SourceWorkItemLinks
	default:
		return q, p.errorf(src, "unknown source %q", src.text)
	}
	if p.isKeyword("WHERE") {
		p.next()
		for {
			c, err := p.condition(q.IsLink())
			if err != nil {
				return q, err
			}
			q.Where = append(q.Where, c)
			if !p.isKeyword("AND") {
				break
			}
			p.next()
		}
	}
	if p.isKeyword("MODE") {
		p.next()
		if _, err := p.expect(tokLParen); err != nil {
			return q, err
		}
		mode, err := p.expect(tokIdent)
		if err != nil {
			return q, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return q, err
		}
		q.Mode = mode.text
	}
	if t := p.peek(); t.kind != tokEOF {
		return q, p.errorf(t, "unexpected %s", t)
	}
	return q, nil
}

func (p *parser) fieldList() ([]string, error) {
	if p.peek().kind == tokStar {
		p.next()
		return nil, nil
	}
	var fields []string
	for {
		f, err := p.expect(tokField)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f.text)
		if p.peek().kind != tokComma {
			return fields, nil
		}
		p.next()
	}
}

func (p *parser) condition(link bool) (Condition, error) {
	var c Condition
	first, err := p.expect(tokField)
	if err != nil {
		return c, err
	}
	c.Field = first.text
	if p.peek().kind == tokDot {
		p.next()
		second, err := p.expect(tokField)
		if err != nil {
			return c, err
		}
		if !link {
			return c, p.errorf(first, "prefix %q outside a link query", first.text)
		}
		switch {
		case strings.EqualFold(first.text, PrefixSource):
			c.Prefix = PrefixSource
		case strings.EqualFold(first.text, PrefixTarget):
			c.Prefix = PrefixTarget
		default:
			return c, p.errorf(first, "unknown prefix %q", first.text)
		}
		c.Field = second.text
	}
	if _, err := p.expect(tokEq); err != nil {
		return c, err
	}
	v := p.next()
	switch v.kind {
	case tokString:
		c.Value = v.text
	case tokNumber:
		c.Value = v.text
		c.Numeric = true
	default:
		return c, p.errorf(v, "expected literal, got %s", v)
	}
	return c, nil
}
