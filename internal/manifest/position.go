package manifest

// PositionConverter translates between byte offsets and LSP-style
// zero-based line/UTF-16-character positions. Adapted from the editor's
// own text-position converter (internal/lsp/position.go in the retrieval
// pack's teacher repo); the algorithm is identical, only the owning type
// changed from an editor buffer to a manifest Document.
type PositionConverter struct {
	content string
	lines   []lineInfo
}

// Position is a zero-based line/UTF-16-character position, matching LSP's
// Position wire type (spec.md §6).
type Position struct {
	Line      int
	Character int
}

// Range is a start/end pair of Positions.
type Range struct {
	Start, End Position
}

type lineInfo struct {
	byteOffset int
	utf16Len   int
	byteLen    int
}

// NewPositionConverter builds a line index for content.
func NewPositionConverter(content string) *PositionConverter {
	pc := &PositionConverter{content: content}
	pc.buildLineIndex()
	return pc
}

func (pc *PositionConverter) buildLineIndex() {
	lineStart := 0
	for i := 0; i < len(pc.content); i++ {
		if pc.content[i] == '\n' {
			seg := pc.content[lineStart:i]
			pc.lines = append(pc.lines, lineInfo{byteOffset: lineStart, byteLen: len(seg), utf16Len: utf16Len(seg)})
			lineStart = i + 1
		}
	}
	seg := pc.content[lineStart:]
	pc.lines = append(pc.lines, lineInfo{byteOffset: lineStart, byteLen: len(seg), utf16Len: utf16Len(seg)})
}

// ByteOffsetToPosition converts a byte offset to a Position.
func (pc *PositionConverter) ByteOffsetToPosition(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	lineNum := len(pc.lines) - 1
	for i, l := range pc.lines {
		end := l.byteOffset + l.byteLen
		if i < len(pc.lines)-1 {
			end++ // account for the newline itself
		}
		if offset < end || i == len(pc.lines)-1 {
			lineNum = i
			break
		}
	}
	line := pc.lines[lineNum]
	byteInLine := offset - line.byteOffset
	if byteInLine < 0 {
		byteInLine = 0
	}
	if byteInLine > line.byteLen {
		byteInLine = line.byteLen
	}
	content := pc.content[line.byteOffset : line.byteOffset+line.byteLen]
	return Position{Line: lineNum, Character: byteToUTF16(content, byteInLine)}
}

// PositionToByteOffset converts a Position to a byte offset.
func (pc *PositionConverter) PositionToByteOffset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(pc.lines) {
		return len(pc.content)
	}
	line := pc.lines[pos.Line]
	content := pc.content[line.byteOffset : line.byteOffset+line.byteLen]
	return line.byteOffset + utf16ToByte(content, pos.Character)
}

// RangeToByteOffsets converts a Range to start/end byte offsets.
func (pc *PositionConverter) RangeToByteOffsets(r Range) (start, end int) {
	return pc.PositionToByteOffset(r.Start), pc.PositionToByteOffset(r.End)
}

// ByteOffsetsToRange converts byte offsets to a Range.
func (pc *PositionConverter) ByteOffsetsToRange(start, end int) Range {
	return Range{Start: pc.ByteOffsetToPosition(start), End: pc.ByteOffsetToPosition(end)}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func byteToUTF16(s string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(s) {
		return utf16Len(s)
	}
	n := 0
	for i, r := range s {
		if i >= byteOff {
			break
		}
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func utf16ToByte(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		if n >= utf16Off {
			return i
		}
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return len(s)
}
