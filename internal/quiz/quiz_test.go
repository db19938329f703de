package quiz

import (
	"fmt"
	"testing"

	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/omdoc"
)

type fakeBackend struct {
	fragments map[string]string
	css       map[string][]artifact.CSS
	solutions map[string]string
	gnotes    map[string]GNote
	docs      map[string]*omdoc.Document
}

func rangeKey(r omdoc.FragmentRange) string { return fmt.Sprintf("%d:%d", r.Start, r.End) }

func (b *fakeBackend) Fragment(docURI string, r omdoc.FragmentRange) ([]artifact.CSS, string, error) {
	key := docURI + "@" + rangeKey(r)
	html, ok := b.fragments[key]
	if !ok {
		return nil, "", fmt.Errorf("no fragment for %s", key)
	}
	return b.css[key], html, nil
}

func (b *fakeBackend) GNote(docURI string, r omdoc.FragmentRange) (GNote, error) {
	key := docURI + "@" + rangeKey(r)
	g, ok := b.gnotes[key]
	if !ok {
		return GNote{}, fmt.Errorf("no gnote for %s", key)
	}
	return g, nil
}

func (b *fakeBackend) Solution(docURI string, r omdoc.FragmentRange) (string, error) {
	key := docURI + "@" + rangeKey(r)
	s, ok := b.solutions[key]
	if !ok {
		return "", fmt.Errorf("no solution for %s", key)
	}
	return s, nil
}

func (b *fakeBackend) Document(uri string) (*omdoc.Document, bool) {
	d, ok := b.docs[uri]
	return d, ok
}

func TestAsQuizFlattensParagraphsAndSections(t *testing.T) {
	doc := &omdoc.Document{
		URI: "doc1",
		Children: []omdoc.DocumentElement{
			{
				Kind:     omdoc.ElementSection,
				HasTitle: true,
				Title:    omdoc.FragmentRange{Start: 0, End: 1},
				Children: []omdoc.DocumentElement{
					{Kind: omdoc.ElementParagraph, ParagraphURI: "p1", ParagraphRange: omdoc.FragmentRange{Start: 1, End: 2}},
				},
			},
		},
	}
	be := &fakeBackend{
		fragments: map[string]string{
			"doc1@0:1": "<h1>Intro</h1>",
			"doc1@1:2": "<p>hello</p>",
		},
		css: map[string][]artifact.CSS{
			"doc1@0:1": {{Href: "a.css"}},
		},
	}

	q, err := AsQuiz(doc, be)
	if err != nil {
		t.Fatalf("AsQuiz: %v", err)
	}
	if len(q.Elements) != 1 || q.Elements[0].IsSection {
		t.Fatalf("expected the single top-level section to collapse, got %+v", q.Elements)
	}
	if q.Elements[0].HTML != "<p>hello</p>" {
		t.Fatalf("paragraph HTML = %q", q.Elements[0].HTML)
	}
	if len(q.CSS) != 1 || q.CSS[0].Href != "a.css" {
		t.Fatalf("expected section title's CSS to surface on the quiz, got %+v", q.CSS)
	}
}

func TestAsQuizResolvesProblemWithNestedSolution(t *testing.T) {
	doc := &omdoc.Document{
		URI: "doc1",
		Children: []omdoc.DocumentElement{
			{
				Kind:         omdoc.ElementProblem,
				ProblemURI:   "prob1",
				ProblemRange: omdoc.FragmentRange{Start: 0, End: 1},
				Solutions:    omdoc.FragmentRange{Start: 1, End: 2},
				TotalPoints:  2.5,
				Children: []omdoc.DocumentElement{
					{Kind: omdoc.ElementProblem, ProblemURI: "prob1", Solutions: omdoc.FragmentRange{Start: 1, End: 2}},
				},
			},
		},
	}
	be := &fakeBackend{
		fragments: map[string]string{"doc1@0:1": "<div>problem</div>"},
		solutions: map[string]string{"doc1@1:2": `{"solution":"42"}`},
	}

	q, err := AsQuiz(doc, be)
	if err != nil {
		t.Fatalf("AsQuiz: %v", err)
	}
	if len(q.Elements) != 1 || !q.Elements[0].IsProblem {
		t.Fatalf("expected one flattened question, got %+v", q.Elements)
	}
	if q.Elements[0].Question.TotalPoints != 2.5 {
		t.Fatalf("TotalPoints = %v", q.Elements[0].Question.TotalPoints)
	}
	if q.Solutions["prob1"] != `{"solution":"42"}` {
		t.Fatalf("Solutions[prob1] = %q", q.Solutions["prob1"])
	}
}

func TestAsQuizFollowsDocumentReference(t *testing.T) {
	sub := &omdoc.Document{
		URI: "doc2",
		Children: []omdoc.DocumentElement{
			{Kind: omdoc.ElementParagraph, ParagraphRange: omdoc.FragmentRange{Start: 0, End: 1}},
		},
	}
	doc := &omdoc.Document{
		URI: "doc1",
		Children: []omdoc.DocumentElement{
			{Kind: omdoc.ElementDocumentReference, RefTarget: "doc2"},
		},
	}
	be := &fakeBackend{
		fragments: map[string]string{"doc2@0:1": "<p>from doc2</p>"},
		docs:      map[string]*omdoc.Document{"doc2": sub},
	}

	q, err := AsQuiz(doc, be)
	if err != nil {
		t.Fatalf("AsQuiz: %v", err)
	}
	if len(q.Elements) != 1 || q.Elements[0].HTML != "<p>from doc2</p>" {
		t.Fatalf("expected the referenced document's paragraph to splice in, got %+v", q.Elements)
	}
}

func TestAsQuizMissingDocumentReferenceErrors(t *testing.T) {
	doc := &omdoc.Document{
		URI:      "doc1",
		Children: []omdoc.DocumentElement{{Kind: omdoc.ElementDocumentReference, RefTarget: "missing"}},
	}
	be := &fakeBackend{docs: map[string]*omdoc.Document{}}

	if _, err := AsQuiz(doc, be); err == nil {
		t.Fatalf("expected an error for a missing referenced document")
	}
}
