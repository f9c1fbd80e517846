// Package sgf reads and writes the subset of SGF used for game records:
// a root node with GM, FF, SZ, KM, HA and AB followed by one B or W move per
// node. Variations are skipped on read and never written.
package sgf

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedRecord is returned when no game tree can be found at all.
var ErrMalformedRecord = errors.New("malformed SGF record")

// Node is one ";"-introduced node of the main line.
type Node struct {
	Properties map[string][]string
}

// Get returns the first value of prop.
func (n Node) Get(prop string) (string, bool) {
	v, ok := n.Properties[prop]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// GameTree is the main line of a record.
type GameTree struct {
	Nodes []Node
}

// Issue describes something skipped while reading a record.
type Issue struct {
	Node     int    `json:"node"`
	Property string `json:"property,omitempty"`
	Value    string `json:"value,omitempty"`
	Reason   string `json:"reason"`
}

func (i Issue) String() string {
	if i.Property == "" {
		return fmt.Sprintf("node %d: %s", i.Node, i.Reason)
	}
	return fmt.Sprintf("node %d: %s[%s]: %s", i.Node, i.Property, i.Value, i.Reason)
}

// Root-node properties are written in this order; anything else follows
// sorted by name.
var propertyOrder = []string{"GM", "FF", "CA", "SZ", "KM", "HA", "AB", "AW", "PB", "PW", "DT", "RE", "B", "W"}

// Serialize writes the tree as a single-line record.
func Serialize(t *GameTree) string {
	var sb strings.Builder
	sb.WriteString("(")
	for _, n := range t.Nodes {
		sb.WriteString(";")
		writeNode(&sb, n)
	}
	sb.WriteString(")")
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	used := make(map[string]bool, len(n.Properties))
	for _, key := range propertyOrder {
		if values, ok := n.Properties[key]; ok {
			used[key] = true
			writeProperty(sb, key, values)
		}
	}

	var rest []string
	for key := range n.Properties {
		if !used[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		writeProperty(sb, key, n.Properties[key])
	}
}

func writeProperty(sb *strings.Builder, key string, values []string) {
	sb.WriteString(key)
	for _, v := range values {
		sb.WriteString("[")
		sb.WriteString(escape(v))
		sb.WriteString("]")
	}
}

func escape(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, "]", `\]`)
}

func unescape(v string) string {
	var sb strings.Builder
	escaped := false
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteByte(v[i])
	}
	return sb.String()
}
