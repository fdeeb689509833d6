package manifest

import "testing"

func TestEditReplacesSpanAndReparses(t *testing.T) {
	src := `version = "1.0.0"` + "\n"
	doc := Parse(src)
	val := doc.Root.Children[0].Value()

	next := Edit(doc, val.Span, `"2.0.0"`)
	got := next.Root.Children[0].Value().StringValue()
	if got != "2.0.0" {
		t.Fatalf("StringValue() = %q, want %q", got, "2.0.0")
	}
	want := `version = "2.0.0"` + "\n"
	if next.Serialize() != want {
		t.Fatalf("Serialize() = %q, want %q", next.Serialize(), want)
	}
}

func TestEditInsertAtZeroWidthSpan(t *testing.T) {
	src := "name = "
	doc := Parse(src)
	val := doc.Root.Children[0].Value()
	if val.Span.Start != val.Span.End {
		t.Fatalf("expected zero-width span, got %+v", val.Span)
	}

	next := Edit(doc, val.Span, `"demo"`)
	if next.Root.Children[0].Value().StringValue() != "demo" {
		t.Fatalf("expected inserted value to parse, got %+v", next.Root.Children[0].Value())
	}
}

func TestApplyRangeEditWholeDocument(t *testing.T) {
	src := "name = \"demo\"\n"
	doc := Parse(src)
	pc := NewPositionConverter(src)
	full := pc.ByteOffsetsToRange(0, len(src))

	next := ApplyRangeEdit(doc, full, "name = \"renamed\"\n")
	if next.Root.Children[0].Value().StringValue() != "renamed" {
		t.Fatalf("expected replaced content, got %+v", next.Root.Children[0].Value())
	}
}

func TestEditThenLocateConsistency(t *testing.T) {
	src := `serde = "1.0"` + "\n"
	doc := Parse(src)
	val := doc.Root.Children[0].Value()

	next := Edit(doc, val.Span, `"1.5"`)
	offset := len(`serde = "1.`)
	cur := Locate(next, offset)
	if cur.Kind != CursorStringValue {
		t.Fatalf("expected CursorStringValue after edit, got %v", cur.Kind)
	}
	if !cur.Node.Span.Contains(offset) {
		t.Fatalf("cursor span %+v does not contain offset %d", cur.Node.Span, offset)
	}
}
