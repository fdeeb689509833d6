package manifest

import "testing"

func TestLocateStringValue(t *testing.T) {
	src := `version = "1.2.3"` + "\n"
	doc := Parse(src)
	// offset inside the digits of "1.2.3"
	offset := len(`version = "1.`)
	cur := Locate(doc, offset)
	if cur.Kind != CursorStringValue {
		t.Fatalf("expected CursorStringValue, got %v", cur.Kind)
	}
	if cur.Path[len(cur.Path)-1] != "version" {
		t.Fatalf("unexpected path: %v", cur.Path)
	}
}

func TestLocateTableHeader(t *testing.T) {
	src := "[dependencies]\nserde = \"1.0\"\n"
	doc := Parse(src)
	cur := Locate(doc, 3) // inside "dependencies"
	if cur.Kind != CursorTableHeader {
		t.Fatalf("expected CursorTableHeader, got %v", cur.Kind)
	}
}

func TestLocateKeyName(t *testing.T) {
	src := "serde = \"1.0\"\n"
	doc := Parse(src)
	cur := Locate(doc, 2) // inside "serde"
	if cur.Kind != CursorKey {
		t.Fatalf("expected CursorKey, got %v", cur.Kind)
	}
}

func TestLocateArrayElement(t *testing.T) {
	src := `features = ["derive", "std"]` + "\n"
	doc := Parse(src)
	offset := len(`features = ["der`)
	cur := Locate(doc, offset)
	if cur.Kind != CursorArrayElement {
		t.Fatalf("expected CursorArrayElement, got %v", cur.Kind)
	}
	if cur.Index != 0 {
		t.Fatalf("expected index 0, got %d", cur.Index)
	}
}

func TestLocateInlineTableField(t *testing.T) {
	src := `serde = { version = "1.0", features = ["derive"] }` + "\n"
	doc := Parse(src)
	offset := len(`serde = { vers`)
	cur := Locate(doc, offset)
	if cur.Kind != CursorInlineTableField {
		t.Fatalf("expected CursorInlineTableField, got %v", cur.Kind)
	}
	if cur.FieldKey != "version" {
		t.Fatalf("expected field key 'version', got %q", cur.FieldKey)
	}
}

func TestLocateCursorAfterBareEquals(t *testing.T) {
	src := "name = "
	doc := Parse(src)
	cur := Locate(doc, len(src))
	if cur.Kind != CursorStringValue {
		t.Fatalf("expected CursorStringValue for empty value, got %v", cur.Kind)
	}
}

func TestLocateWhitespaceBetweenTables(t *testing.T) {
	src := "[package]\nname = \"demo\"\n\n[dependencies]\nserde = \"1.0\"\n"
	doc := Parse(src)
	blankOffset := len("[package]\nname = \"demo\"\n")
	cur := Locate(doc, blankOffset)
	if cur.Kind != CursorWhitespace && cur.Kind != CursorTableHeader {
		t.Fatalf("expected whitespace or adjoining header, got %v", cur.Kind)
	}
}

func TestLocateNeverPanicsOnEmptyDocument(t *testing.T) {
	doc := Parse("")
	cur := Locate(doc, 0)
	if cur.Kind != CursorWhitespace {
		t.Fatalf("expected CursorWhitespace on empty doc, got %v", cur.Kind)
	}
}

func TestLocateAlwaysContainsOffset(t *testing.T) {
	srcs := []string{
		`version = "1.2.3"` + "\n",
		"[dependencies]\nserde = { version = \"1.0\", features = [\"derive\"] }\n",
		"@@@garbage@@@\nname = \"demo\"\n",
	}
	for _, src := range srcs {
		doc := Parse(src)
		for offset := 0; offset <= len(src); offset++ {
			cur := Locate(doc, offset)
			if cur.Node != nil && !cur.Node.Span.Contains(offset) {
				// Whitespace / table-header-adjacent cursors may legitimately
				// report a node whose span does not include a boundary offset
				// that sits in trivia; only value/key nodes must strictly contain.
				if cur.Kind == CursorKey || cur.Kind == CursorStringValue || cur.Kind == CursorArrayElement {
					t.Fatalf("cursor node span %+v does not contain offset %d (src=%q)", cur.Node.Span, offset, src)
				}
			}
		}
	}
}
