package manifest

import "strings"

// CursorKind identifies which tagged variant of Cursor was resolved,
// mirroring spec.md §4.1's Cursor contract.
type CursorKind int

const (
	CursorTableHeader CursorKind = iota
	CursorKey
	CursorStringValue
	CursorArrayElement
	CursorInlineTableField
	CursorWhitespace
)

// Cursor identifies the smallest manifest construct containing a given
// byte offset.
type Cursor struct {
	Kind CursorKind

	// Path is: the header path for TableHeader, the full key path for
	// Key/StringValue/ArrayElement, the containing key's path for
	// InlineTableField, and for Whitespace the enclosing table's header
	// path (or the owning key's path between the elements of an array).
	Path []string

	// InnerOffset is the offset within the value's inner text (excluding
	// surrounding quotes for strings), used by StringValue/ArrayElement.
	InnerOffset int

	// Index is the zero-based element index, for ArrayElement.
	Index int

	// FieldKey names the inline-table field, for InlineTableField.
	FieldKey string

	// Node is the resolved value or header node, or nil for pure Whitespace.
	Node *Node
}

// Locate resolves the cursor at a byte offset into the document, per
// spec.md §4.1. It always returns a cursor whose reported span would
// contain offset, even over malformed or empty input (spec.md §8).
func Locate(doc *Document, offset int) Cursor {
	if offset < 0 {
		offset = 0
	}
	if offset > len(doc.Text) {
		offset = len(doc.Text)
	}

	var enclosingTablePath []string
	for _, top := range doc.Root.Children {
		switch top.Kind {
		case KindTableHeader, KindArrayTableHeader:
			if top.Span.Contains(offset) {
				return Cursor{Kind: CursorTableHeader, Path: top.Path, Node: top}
			}
			if offset > top.Span.End {
				enclosingTablePath = top.Path
			}
			for _, child := range top.Children {
				if child.Span.Contains(offset) {
					return locateWithinKey(child, offset)
				}
			}
		case KindKey:
			if top.Span.Contains(offset) {
				return locateWithinKey(top, offset)
			}
		case KindError:
			// A line holding only a bare key (a name typed before any `=`)
			// resolves as that key; its span reaches one past the name so a
			// cursor right after the last character is inside it.
			if name := strings.TrimSpace(top.Raw); isBareKey(name) && offset >= top.Span.Start && offset <= top.Span.End+1 {
				path := append(append([]string{}, enclosingTablePath...), name)
				key := &Node{Kind: KindKey, Span: Span{top.Span.Start, top.Span.End + 1}, Path: path, Raw: name}
				return Cursor{Kind: CursorKey, Path: path, Node: key}
			}
			if top.Span.Contains(offset) {
				return Cursor{Kind: CursorWhitespace, Path: enclosingTablePath, Node: top}
			}
		}
	}

	return Cursor{Kind: CursorWhitespace, Path: enclosingTablePath}
}

func isBareKey(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isBareKeyByte(s[i]) {
			return false
		}
	}
	return s != ""
}

// locateWithinKey resolves an offset known to fall inside a Key node: on
// the key name itself, or somewhere in its value subtree.
func locateWithinKey(key *Node, offset int) Cursor {
	val := key.Value()
	if val == nil || !val.Span.Contains(offset) {
		return Cursor{Kind: CursorKey, Path: key.Path, Node: key}
	}
	return locateWithinValue(key.Path, val, offset)
}

// locateWithinValue resolves an offset within a value node (which may be a
// nested array/inline-table), given the dotted path of the key that owns it.
func locateWithinValue(path []string, val *Node, offset int) Cursor {
	switch val.Kind {
	case KindArray:
		for i, el := range val.Children {
			if el.Span.Contains(offset) {
				if el.Kind == KindString {
					return Cursor{
						Kind:        CursorArrayElement,
						Path:        path,
						Index:       i,
						InnerOffset: innerStringOffset(el, offset),
						Node:        el,
					}
				}
				return Cursor{Kind: CursorArrayElement, Path: path, Index: i, Node: el}
			}
		}
		return Cursor{Kind: CursorWhitespace, Path: path, Node: val}
	case KindInlineTable:
		for _, field := range val.Children {
			if field.Span.Contains(offset) {
				fv := field.Value()
				node := field
				if fv != nil && fv.Span.Contains(offset) {
					node = fv
				}
				return Cursor{Kind: CursorInlineTableField, Path: path, FieldKey: field.Key(), Node: node}
			}
		}
		return Cursor{Kind: CursorInlineTableField, Path: path, Node: val}
	case KindString:
		return Cursor{Kind: CursorStringValue, Path: path, InnerOffset: innerStringOffset(val, offset), Node: val}
	default:
		return Cursor{Kind: CursorStringValue, Path: path, Node: val}
	}
}

// innerStringOffset converts a byte offset within a string node's full span
// (including quotes) to an offset relative to the string's inner contents.
func innerStringOffset(n *Node, offset int) int {
	inner := offset - n.Span.Start - 1
	if inner < 0 {
		inner = 0
	}
	maxInner := len(n.Raw) - 2
	if n.Raw == "" {
		maxInner = 0
	}
	if maxInner < 0 {
		maxInner = 0
	}
	if inner > maxInner {
		inner = maxInner
	}
	return inner
}
