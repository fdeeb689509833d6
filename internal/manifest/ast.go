package manifest

// Span is a byte-offset range [Start,End] into a Document's source text.
// Both ends are inclusive of their boundary offset so that a zero-width
// span (Start == End) still "contains" that single offset — this is what
// lets locate resolve a cursor sitting immediately after a bare `=` with
// no value token yet (spec.md §4.1).
type Span struct {
	Start, End int
}

// Contains reports whether offset falls within the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

// Kind identifies the syntactic role of a Node.
type Kind int

const (
	KindDocument Kind = iota
	KindTableHeader
	KindArrayTableHeader
	KindKey
	KindString
	KindInteger
	KindFloat
	KindBool
	KindArray
	KindInlineTable
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "Document"
	case KindTableHeader:
		return "TableHeader"
	case KindArrayTableHeader:
		return "ArrayTableHeader"
	case KindKey:
		return "Key"
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindArray:
		return "Array"
	case KindInlineTable:
		return "InlineTable"
	case KindError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Node is one element of the manifest's syntax tree. Every node carries a
// byte Span into the owning Document's Text; Text itself is never mutated,
// so slicing Doc.Text[Span.Start:Span.End+1] always reproduces the exact
// source for that node, giving round-trip losslessness for free.
type Node struct {
	Kind Kind
	Span Span

	// Path is the dotted key path this node addresses: a TableHeader's
	// full header path, a Key's full path (table path + key), or an
	// InlineTable field's path relative to its containing key.
	Path []string

	// Raw is the node's literal source text, only meaningful for value
	// nodes (String/Integer/Float/Bool) and Error nodes.
	Raw string

	// Children holds nested nodes: a Key's single value node, an Array's
	// element nodes, an InlineTable's field (Key) nodes, or a table
	// header's body Key nodes.
	Children []*Node

	Parent *Node
}

// Key returns the last path segment, or "" for nodes without a path.
func (n *Node) Key() string {
	if len(n.Path) == 0 {
		return ""
	}
	return n.Path[len(n.Path)-1]
}

// Value returns the single value child of a Key node, or nil.
func (n *Node) Value() *Node {
	if n.Kind != KindKey || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// StringValue returns the unquoted text of a String node's Raw source.
func (n *Node) StringValue() string {
	if n.Kind != KindString {
		return ""
	}
	return unquote(n.Raw)
}

func unquote(raw string) string {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			inner := raw[1 : len(raw)-1]
			if first == '"' {
				return unescapeBasic(inner)
			}
			return inner
		}
	}
	return raw
}

func unescapeBasic(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				out = append(out, s[i+1])
			}
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// FindTable returns the direct KindTableHeader/KindArrayTableHeader child of
// the document root whose Path equals path exactly, or nil.
func (d *Document) FindTable(path []string) *Node {
	for _, n := range d.Root.Children {
		if (n.Kind == KindTableHeader || n.Kind == KindArrayTableHeader) && pathEqual(n.Path, path) {
			return n
		}
	}
	return nil
}

// FindKey returns the KindKey child of table whose last path segment equals
// key. table must be non-nil; pass doc.Root to search top-level keys.
func FindKey(table *Node, key string) *Node {
	for _, n := range table.Children {
		if n.Kind == KindKey && n.Key() == key {
			return n
		}
	}
	return nil
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether path starts with the given prefix segments.
func HasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}
