package manifest

// Edit applies a byte-range replacement to a Document and returns the
// reparsed result. A full reparse per edit is acceptable for document sizes
// typical of manifests (well under 100 KB); the parser has no incremental
// mode in the retrieval pack's teacher repo either — its editor buffer
// reparses on every change notification (internal/lsp/document.go).
func Edit(doc *Document, span Span, replacement string) *Document {
	text := doc.Text
	start, end := span.Start, span.End+1
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	next := text[:start] + replacement + text[end:]
	return Parse(next)
}

// ApplyRangeEdit replaces the text between two Positions, converting through
// a PositionConverter built from doc's current text.
func ApplyRangeEdit(doc *Document, r Range, replacement string) *Document {
	pc := NewPositionConverter(doc.Text)
	start, end := pc.RangeToByteOffsets(r)
	span := Span{Start: start, End: max(end-1, start-1)}
	return Edit(doc, span, replacement)
}
