package uris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustBase(t *testing.T, s string) BaseURI {
	t.Helper()
	b, err := ParseBaseURI(s)
	if err != nil {
		t.Fatalf("ParseBaseURI(%q): %v", s, err)
	}
	return b
}

func TestArchiveURIRoundTrip(t *testing.T) {
	u := ArchiveURI{
		Base: mustBase(t, "http://mathhub.info/"),
		ID:   MustParseArchiveId("smglom/sets"),
	}
	s := u.String()
	got, err := ParseArchiveURI(s)
	if err != nil {
		t.Fatalf("ParseArchiveURI(%q): %v", s, err)
	}
	if !got.ID.Equal(u.ID) || got.Base != u.Base {
		t.Fatalf("round-trip mismatch: %+v != %+v", got, u)
	}
	if got.String() != s {
		t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
	}
}

func TestPathURIRoundTrip(t *testing.T) {
	cases := []PathURI{
		{
			Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
			Path:     ParseName("a/b"),
			Language: LanguageGerman,
		},
		{
			Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
			Path:     EmptyName,
			Language: DefaultLanguage,
		},
	}
	for _, u := range cases {
		s := u.String()
		got, err := ParsePathURI(s)
		if err != nil {
			t.Fatalf("ParsePathURI(%q): %v", s, err)
		}
		if !got.Path.Equal(u.Path) || got.Language != u.Language || !got.Archive.ID.Equal(u.Archive.ID) {
			t.Fatalf("round-trip mismatch for %q: got %+v, want %+v", s, got, u)
		}
		if got.String() != s {
			t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
		}
	}
}

func TestDocumentURIRoundTrip(t *testing.T) {
	u := DocumentURI{
		Path: PathURI{
			Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
			Path:     ParseName("a/b"),
			Language: LanguageFrench,
		},
		Name: ParseName("doc"),
	}
	s := u.String()
	got, err := ParseDocumentURI(s)
	if err != nil {
		t.Fatalf("ParseDocumentURI(%q): %v", s, err)
	}
	if !got.Name.Equal(u.Name) || got.Path.Language != u.Path.Language || !got.Path.Path.Equal(u.Path.Path) {
		t.Fatalf("round-trip mismatch for %q: got %+v, want %+v", s, got, u)
	}
	if got.String() != s {
		t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
	}
}

func TestModuleURIRoundTrip(t *testing.T) {
	u := ModuleURI{
		Path: PathURI{
			Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
			Language: DefaultLanguage,
		},
		Name: ParseName("Set"),
	}
	s := u.String()
	got, err := ParseModuleURI(s)
	if err != nil {
		t.Fatalf("ParseModuleURI(%q): %v", s, err)
	}
	if !got.Name.Equal(u.Name) {
		t.Fatalf("round-trip mismatch for %q: got %+v, want %+v", s, got, u)
	}
	if got.String() != s {
		t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
	}
}

func TestSymbolURIRoundTrip(t *testing.T) {
	u := SymbolURI{
		Module: ModuleURI{
			Path: PathURI{
				Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
				Language: DefaultLanguage,
			},
			Name: ParseName("Set"),
		},
		Name: ParseName("element"),
	}
	s := u.String()
	got, err := ParseSymbolURI(s)
	if err != nil {
		t.Fatalf("ParseSymbolURI(%q): %v", s, err)
	}
	if !got.Name.Equal(u.Name) || !got.Module.Name.Equal(u.Module.Name) {
		t.Fatalf("round-trip mismatch for %q: got %+v, want %+v", s, got, u)
	}
	if got.String() != s {
		t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
	}
}

func TestDocumentElementURIRoundTrip(t *testing.T) {
	u := DocumentElementURI{
		Document: DocumentURI{
			Path: PathURI{
				Archive:  ArchiveURI{Base: mustBase(t, "http://mathhub.info/"), ID: MustParseArchiveId("smglom/sets")},
				Language: DefaultLanguage,
			},
			Name: ParseName("doc"),
		},
		Name: ParseName("slide3"),
	}
	s := u.String()
	got, err := ParseDocumentElementURI(s)
	if err != nil {
		t.Fatalf("ParseDocumentElementURI(%q): %v", s, err)
	}
	if !got.Name.Equal(u.Name) || !got.Document.Name.Equal(u.Document.Name) {
		t.Fatalf("round-trip mismatch for %q: got %+v, want %+v", s, got, u)
	}
	if got.String() != s {
		t.Fatalf("format(parse(s)) != s: %q != %q", got.String(), s)
	}
}

func TestParseURIRejectsUnknownKey(t *testing.T) {
	_, err := ParseArchiveURI("http://mathhub.info/?a=x&z=y")
	if err == nil {
		t.Fatalf("expected error for unknown query key")
	}
}

func TestParseURIRejectsDuplicateKey(t *testing.T) {
	_, err := ParseArchiveURI("http://mathhub.info/?a=x&a=y")
	if err == nil {
		t.Fatalf("expected error for duplicate query key")
	}
}

func TestParseURIRejectsMissingArchiveComponent(t *testing.T) {
	_, err := ParseArchiveURI("http://mathhub.info/?p=foo")
	if err == nil {
		t.Fatalf("expected error for missing 'a' component")
	}
}

func TestNameWithReservedCharactersRoundTrips(t *testing.T) {
	n := ParseName(escapeStep("weird name") + "/" + escapeStep("a[b]c^d\\e"))
	s := n.String()
	got := ParseName(s)
	if !got.Equal(n) {
		t.Fatalf("name round-trip mismatch")
	}
}

func TestArchiveIdComparisons(t *testing.T) {
	testCases := []struct {
		desc  string
		a, b  string
		equal bool
	}{
		{"identical ids are equal", "smglom/sets", "smglom/sets", true},
		{"different groups are unequal", "smglom/sets", "smglom/numbers", false},
		{"a group prefix is not equal to the archive itself", "smglom", "smglom/sets", false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			a := MustParseArchiveId(tc.a)
			b := MustParseArchiveId(tc.b)
			assert.Equal(t, tc.equal, a.Equal(b))
			assert.Equal(t, tc.a, a.String())
		})
	}
}
