// Package quiz implements the one out-of-scope-but-named component spec.md
// calls out explicitly: AsQuiz walks a narration tree and resolves it into
// a flat, presentation-ready Quiz, following the traversal in
// flams_ontology's Document::as_quiz (vendored as
// original_source/.../docfile.rs) element for element.
package quiz

import (
	"fmt"

	"github.com/FlexiFormal/FLAMS-sub003/internal/artifact"
	"github.com/FlexiFormal/FLAMS-sub003/internal/omdoc"
)

// Backend is the minimal reference-resolution contract AsQuiz places on
// component C: loading an HTML fragment, loading a gob-encoded reference
// blob, and following a cross-document reference to another Document. It
// is deliberately narrower than backend.Backend (component G), which is a
// build-time abstraction; quiz resolution is read-only and document-scoped.
type Backend interface {
	Fragment(docURI string, r omdoc.FragmentRange) ([]artifact.CSS, string, error)
	GNote(docURI string, r omdoc.FragmentRange) (GNote, error)
	Solution(docURI string, r omdoc.FragmentRange) (string, error)
	Document(uri string) (*omdoc.Document, bool)
}

// GNote is the answer-class payload resolved from a problem's gnotes
// reference blob.
type GNote struct {
	AnswerClasses []AnswerClass
}

// AnswerClass is one graded-answer classification rule attached to a
// problem, copied verbatim into a QuizQuestion's owning problem entry.
type AnswerClass struct {
	ID     string
	Points float64
}

// QuizElement is the tagged union of flattened quiz content: a collapsed
// section, a plain paragraph, or a graded question.
type QuizElement struct {
	IsSection bool
	IsProblem bool

	// IsSection
	SectionTitle string
	Elements     []QuizElement

	// !IsSection && !IsProblem: plain paragraph
	HTML string

	// IsProblem
	Question QuizQuestion
}

// QuizQuestion is one graded problem, flattened out of the narration tree.
type QuizQuestion struct {
	HTML          string
	HasTitleHTML  bool
	TitleHTML     string
	URI           string
	Preconditions []string
	Objectives    []string
	TotalPoints   float64
}

// Quiz is the fully resolved, presentation-ready result of AsQuiz.
type Quiz struct {
	HasTitle      bool
	Title         string
	AnswerClasses map[string][]AnswerClass
	Elements      []QuizElement
	CSS           []artifact.CSS
	Solutions     map[string]string
}

// frame is one level of the explicit traversal stack: the iterator
// position curr replaces, the elements accumulated so far at the level
// curr is returning to, and what to do with them on pop (collapse into a
// Section, splice back in as-is, or restore in-problem state).
type frame struct {
	rest      []omdoc.DocumentElement
	elements  []QuizElement
	kind      frameKind
	title     string
	wasInProb bool
}

type frameKind uint8

const (
	frameSplice frameKind = iota
	frameSection
	frameProblemEnd
)

// AsQuiz ports Document::as_quiz: an explicit-stack depth-first walk over
// the narration tree (Go has no TCO, so the original's recursive form
// becomes a push/pop loop just as the teacher avoids unbounded recursion
// over build-dependency graphs elsewhere in this codebase).
func AsQuiz(doc *omdoc.Document, be Backend) (*Quiz, error) {
	cssSeen := map[string]artifact.CSS{}
	var cssOrder []string
	addCSS := func(c artifact.CSS) {
		key := c.Href + "\x1f" + c.Text
		if _, ok := cssSeen[key]; !ok {
			cssSeen[key] = c
			cssOrder = append(cssOrder, key)
		}
	}

	solutions := map[string]string{}
	answerClasses := map[string][]AnswerClass{}
	inProblem := false

	var elements []QuizElement
	var stack []frame
	curr := doc.Children

	for {
		if len(curr) == 0 {
			if len(stack) == 0 {
				break
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			curr = top.rest
			finished := elements
			elements = top.elements
			switch top.kind {
			case frameSection:
				elements = append(elements, QuizElement{
					IsSection:    true,
					SectionTitle: top.title,
					Elements:     finished,
				})
			case frameProblemEnd:
				inProblem = top.wasInProb
				elements = append(elements, finished...)
			default:
				elements = append(elements, finished...)
			}
			continue
		}

		e := curr[0]
		curr = curr[1:]

		switch e.Kind {
		case omdoc.ElementDocumentReference:
			target, ok := be.Document(e.RefTarget)
			if !ok {
				return nil, fmt.Errorf("quiz: missing document %s", e.RefTarget)
			}
			sub, err := AsQuiz(target, be)
			if err != nil {
				return nil, err
			}
			for _, c := range sub.CSS {
				addCSS(c)
			}
			elements = append(elements, sub.Elements...)
			for u, s := range sub.Solutions {
				solutions[u] = s
			}
			for u, a := range sub.AnswerClasses {
				answerClasses[u] = append(answerClasses[u], a...)
			}

		case omdoc.ElementSection:
			if e.HasTitle {
				css, html, err := be.Fragment(doc.URI, e.Title)
				if err != nil {
					return nil, fmt.Errorf("quiz: missing FTML fragment for section title: %w", err)
				}
				for _, c := range css {
					addCSS(c)
				}
				stack = append(stack, frame{rest: curr, elements: elements, kind: frameSection, title: html})
				elements = nil
				curr = e.Children
			} else {
				stack = append(stack, frame{rest: curr, elements: elements, kind: frameSplice})
				elements = nil
				curr = e.Children
			}

		case omdoc.ElementParagraph:
			css, html, err := be.Fragment(doc.URI, e.ParagraphRange)
			if err != nil {
				return nil, fmt.Errorf("quiz: missing FTML fragment for paragraph %s: %w", e.ParagraphURI, err)
			}
			for _, c := range css {
				addCSS(c)
			}
			elements = append(elements, QuizElement{HTML: html})

		case omdoc.ElementProblem:
			if inProblem {
				solution, err := be.Solution(doc.URI, e.Solutions)
				if err != nil {
					return nil, fmt.Errorf("quiz: missing solutions for %s: %w", e.ProblemURI, err)
				}
				solutions[e.ProblemURI] = solution
				continue
			}

			css, html, err := be.Fragment(doc.URI, e.ProblemRange)
			if err != nil {
				return nil, fmt.Errorf("quiz: missing FTML fragment for %s: %w", e.ProblemURI, err)
			}
			for _, c := range css {
				addCSS(c)
			}
			solution, err := be.Solution(doc.URI, e.Solutions)
			if err != nil {
				return nil, fmt.Errorf("quiz: missing solutions for %s: %w", e.ProblemURI, err)
			}
			var titleHTML string
			hasTitle := e.HasProblemTitle
			if hasTitle {
				_, t, err := be.Fragment(doc.URI, e.ProblemTitle)
				if err != nil {
					return nil, fmt.Errorf("quiz: missing FTML fragment for title of %s: %w", e.ProblemURI, err)
				}
				titleHTML = t
			}
			for _, note := range e.GNotes {
				gnote, err := be.GNote(doc.URI, note)
				if err != nil {
					return nil, fmt.Errorf("quiz: missing gnote for %s: %w", e.ProblemURI, err)
				}
				answerClasses[e.ProblemURI] = append(answerClasses[e.ProblemURI], gnote.AnswerClasses...)
			}
			solutions[e.ProblemURI] = solution

			elements = append(elements, QuizElement{
				IsProblem: true,
				Question: QuizQuestion{
					HTML:          html,
					HasTitleHTML:  hasTitle,
					TitleHTML:     titleHTML,
					URI:           e.ProblemURI,
					Preconditions: e.Preconditions,
					Objectives:    e.Objectives,
					TotalPoints:   e.TotalPoints,
				},
			})

			stack = append(stack, frame{rest: curr, elements: elements, kind: frameProblemEnd, wasInProb: inProblem})
			elements = nil
			curr = e.Children
			inProblem = true

		default:
			if len(e.Children) > 0 {
				stack = append(stack, frame{rest: curr, elements: elements, kind: frameSplice})
				elements = nil
				curr = e.Children
			}
		}
	}

	if len(elements) == 1 && elements[0].IsSection {
		elements = elements[0].Elements
	}

	css := make([]artifact.CSS, 0, len(cssOrder))
	for _, key := range cssOrder {
		css = append(css, cssSeen[key])
	}

	return &Quiz{
		HasTitle:      doc.HasTitle,
		Title:         doc.Title,
		AnswerClasses: answerClasses,
		Elements:      elements,
		CSS:           css,
		Solutions:     solutions,
	}, nil
}
