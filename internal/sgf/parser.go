package sgf

import (
	"fmt"
	"strings"
)

// Parser reads the main line of an SGF record. It never fails on bad
// properties; it records an Issue and keeps going.
type Parser struct {
	content string
	index   int
	node    int
	issues  []Issue
}

// NewParser creates a parser over content.
func NewParser(content string) *Parser {
	return &Parser{content: strings.TrimSpace(content)}
}

// Parse returns the main line. The first variation at every branch point is
// followed; the rest are skipped.
func Parse(content string) (*GameTree, []Issue, error) {
	return NewParser(content).Parse()
}

// Parse runs the parser. It fails only if there is no game tree with at
// least one node.
func (p *Parser) Parse() (*GameTree, []Issue, error) {
	if !p.skipTo('(') {
		return nil, nil, fmt.Errorf("%w: no opening parenthesis", ErrMalformedRecord)
	}
	p.index++

	tree := &GameTree{}

loop:
	for p.index < len(p.content) {
		p.skipWhitespace()
		if p.index >= len(p.content) {
			break
		}

		switch p.content[p.index] {
		case ')':
			p.index++
			break loop
		case ';':
			p.index++
			tree.Nodes = append(tree.Nodes, p.parseNode())
			p.node++
		case '(':
			// Descend into the first variation; it continues the main line.
			p.index++
		default:
			p.issue("", "", fmt.Sprintf("unexpected character %q", p.content[p.index]))
			p.index++
		}
	}

	if len(tree.Nodes) == 0 {
		return nil, p.issues, fmt.Errorf("%w: no root node", ErrMalformedRecord)
	}
	if n := p.countVariations(); n > 0 {
		p.issue("", "", fmt.Sprintf("%d variation(s) skipped", n))
	}

	return tree, p.issues, nil
}

func (p *Parser) parseNode() Node {
	n := Node{Properties: map[string][]string{}}

	for p.index < len(p.content) {
		p.skipWhitespace()
		if p.index >= len(p.content) {
			break
		}
		ch := p.content[p.index]
		if ch == ';' || ch == ')' || ch == '(' {
			break
		}
		if !isLetter(ch) {
			p.issue("", "", fmt.Sprintf("unexpected character %q", ch))
			p.index++
			continue
		}

		prop, values, ok := p.parseProperty()
		if !ok {
			continue
		}
		n.Properties[prop] = append(n.Properties[prop], values...)
	}

	return n
}

// parseProperty reads a name and its bracketed values. Lowercase letters in
// the name are dropped, as old FF[3] files spell names like "AddBlack".
func (p *Parser) parseProperty() (string, []string, bool) {
	var name strings.Builder
	for p.index < len(p.content) && isLetter(p.content[p.index]) {
		if ch := p.content[p.index]; ch >= 'A' && ch <= 'Z' {
			name.WriteByte(ch)
		}
		p.index++
	}
	prop := name.String()

	var values []string
	for p.index < len(p.content) {
		p.skipWhitespace()
		if p.index >= len(p.content) || p.content[p.index] != '[' {
			break
		}
		p.index++

		start := p.index
		escaped := false
		for p.index < len(p.content) {
			ch := p.content[p.index]
			if ch == '\\' && !escaped {
				escaped = true
			} else if ch == ']' && !escaped {
				break
			} else {
				escaped = false
			}
			p.index++
		}
		if p.index >= len(p.content) {
			p.issue(prop, p.content[start:], "unclosed property value")
			return "", nil, false
		}

		values = append(values, unescape(p.content[start:p.index]))
		p.index++
	}

	if prop == "" {
		p.issue("", "", "property name has no uppercase letters")
		return "", nil, false
	}
	if len(values) == 0 {
		p.issue(prop, "", "property has no value")
		return "", nil, false
	}
	return prop, values, true
}

// countVariations counts the sibling variations left after the main line.
func (p *Parser) countVariations() int {
	n := 0
	inValue := false
	escaped := false
	for i := p.index; i < len(p.content); i++ {
		ch := p.content[i]
		switch {
		case inValue && ch == '\\' && !escaped:
			escaped = true
			continue
		case ch == '[' && !inValue:
			inValue = true
		case ch == ']' && inValue && !escaped:
			inValue = false
		case ch == '(' && !inValue:
			n++
		}
		escaped = false
	}
	return n
}

func (p *Parser) issue(prop, value, reason string) {
	p.issues = append(p.issues, Issue{Node: p.node, Property: prop, Value: value, Reason: reason})
}

func (p *Parser) skipWhitespace() {
	for p.index < len(p.content) {
		switch p.content[p.index] {
		case ' ', '\t', '\n', '\r':
			p.index++
		default:
			return
		}
	}
}

func (p *Parser) skipTo(ch byte) bool {
	for p.index < len(p.content) {
		if p.content[p.index] == ch {
			return true
		}
		p.index++
	}
	return false
}

func isLetter(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}
