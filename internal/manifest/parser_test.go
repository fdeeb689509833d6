package manifest

import "testing"

func TestParseSimpleKeyValue(t *testing.T) {
	doc := Parse(`name = "demo"` + "\n")
	if len(doc.Root.Children) != 1 {
		t.Fatalf("expected 1 top-level node, got %d", len(doc.Root.Children))
	}
	key := doc.Root.Children[0]
	if key.Kind != KindKey || key.Key() != "name" {
		t.Fatalf("unexpected node: %+v", key)
	}
	if got := key.Value().StringValue(); got != "demo" {
		t.Fatalf("StringValue() = %q, want %q", got, "demo")
	}
}

func TestParseTableHeaderAndKeys(t *testing.T) {
	src := "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n"
	doc := Parse(src)
	table := doc.FindTable([]string{"package"})
	if table == nil {
		t.Fatal("expected [package] table")
	}
	if len(table.Children) != 2 {
		t.Fatalf("expected 2 keys under [package], got %d", len(table.Children))
	}
	name := FindKey(table, "name")
	if name == nil || name.Value().StringValue() != "demo" {
		t.Fatalf("unexpected name key: %+v", name)
	}
}

func TestParseArrayTableHeader(t *testing.T) {
	src := "[[bin]]\nname = \"tool\"\npath = \"src/main.rs\"\n"
	doc := Parse(src)
	if len(doc.Root.Children) != 1 || doc.Root.Children[0].Kind != KindArrayTableHeader {
		t.Fatalf("expected a single array-table header, got %+v", doc.Root.Children)
	}
}

func TestParseInlineTableDependency(t *testing.T) {
	src := `serde = { version = "1.0", features = ["derive"], optional = true }` + "\n"
	doc := Parse(src)
	key := doc.Root.Children[0]
	val := key.Value()
	if val.Kind != KindInlineTable {
		t.Fatalf("expected inline table value, got %v", val.Kind)
	}
	if len(val.Children) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(val.Children))
	}
}

func TestParseArrayOfStrings(t *testing.T) {
	src := `members = ["a", "b", "c"]` + "\n"
	doc := Parse(src)
	val := doc.Root.Children[0].Value()
	if val.Kind != KindArray || len(val.Children) != 3 {
		t.Fatalf("unexpected array: %+v", val)
	}
	if val.Children[1].StringValue() != "b" {
		t.Fatalf("unexpected element: %+v", val.Children[1])
	}
}

func TestParseMultilineArray(t *testing.T) {
	src := "members = [\n    \"a\",\n    \"b\",\n]\n"
	doc := Parse(src)
	val := doc.Root.Children[0].Value()
	if val.Kind != KindArray || len(val.Children) != 2 {
		t.Fatalf("unexpected array: %+v", val)
	}
}

func TestParseBareValueAfterEquals(t *testing.T) {
	src := "name = "
	doc := Parse(src)
	key := doc.Root.Children[0]
	val := key.Value()
	if val.Kind != KindString || val.Raw != "" {
		t.Fatalf("expected zero-width string value, got %+v", val)
	}
	if val.Span.Start != val.Span.End {
		t.Fatalf("expected zero-width span, got %+v", val.Span)
	}
}

func TestParseMalformedLineRecordsError(t *testing.T) {
	src := "@@@garbage@@@\nname = \"demo\"\n"
	doc := Parse(src)
	if doc.Root.Children[0].Kind != KindError {
		t.Fatalf("expected error node first, got %+v", doc.Root.Children[0])
	}
	// parsing continues after the malformed line
	found := false
	for _, c := range doc.Root.Children {
		if c.Kind == KindKey && c.Key() == "name" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected parser to recover and parse subsequent key")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	src := "[package]\nname = \"demo\"\n# comment\nversion = \"0.1.0\"\n\n[dependencies]\nserde = \"1.0\"\n"
	doc := Parse(src)
	if doc.Serialize() != src {
		t.Fatalf("round trip mismatch:\ngot:  %q\nwant: %q", doc.Serialize(), src)
	}
}

func TestParseComment(t *testing.T) {
	src := "# top comment\nname = \"demo\" # trailing\n"
	doc := Parse(src)
	if len(doc.Root.Children) != 1 {
		t.Fatalf("expected comment lines to be skipped, got %d nodes", len(doc.Root.Children))
	}
}
