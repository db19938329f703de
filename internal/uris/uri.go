package uris

import (
	"fmt"
	"sort"
	"strings"
)

// BaseURI is an absolute URL prefix with a mandatory trailing "/".
type BaseURI string

// ParseBaseURI validates that s looks like an absolute URL, appending a
// trailing "/" when s lacks one.
func ParseBaseURI(s string) (BaseURI, error) {
	if s == "" {
		return "", errInvalid("base URI must not be empty")
	}
	if !strings.Contains(s, "://") {
		return "", errInvalid("base URI %q is not absolute", s)
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return BaseURI(s), nil
}

func (b BaseURI) String() string { return string(b) }

// queryKeyOrder is the fixed canonical order in which URI query parameters are
// ever emitted. Parsing accepts exactly this key set per kind; anything
// else is rejected (spec §4.A: "strict ... rejects unknown keys,
// duplicates").
var queryKeyOrder = []byte{'a', 'p', 'd', 'l', 'm', 's', 'e'}

// queryParams is the parsed form of the "?a=...&p=...&..." suffix shared
// by every URI kind in this package.
type queryParams struct {
	vals map[byte]string
}

func parseQuery(raw string) (queryParams, error) {
	qp := queryParams{vals: map[byte]string{}}
	if raw == "" {
		return qp, nil
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || len(kv[0]) != 1 {
			return qp, errInvalid("malformed URI query component %q", part)
		}
		key := kv[0][0]
		if !validQueryKey(key) {
			return qp, errInvalid("unknown URI query key %q", kv[0])
		}
		if _, dup := qp.vals[key]; dup {
			return qp, errInvalid("duplicate URI query key %q", kv[0])
		}
		qp.vals[key] = kv[1]
	}
	return qp, nil
}

func validQueryKey(k byte) bool {
	for _, kk := range queryKeyOrder {
		if kk == k {
			return true
		}
	}
	return false
}

func (qp queryParams) format() string {
	keys := make([]byte, 0, len(qp.vals))
	for k := range qp.vals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return indexOf(queryKeyOrder, keys[i]) < indexOf(queryKeyOrder, keys[j])
	})
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%c=%s", k, qp.vals[k])
	}
	return b.String()
}

func indexOf(haystack []byte, needle byte) int {
	for i, h := range haystack {
		if h == needle {
			return i
		}
	}
	return -1
}

func splitBaseAndQuery(s string) (string, string, error) {
	i := strings.IndexByte(s, '?')
	if i < 0 {
		return "", "", errInvalid("URI %q has no query component", s)
	}
	return s[:i], s[i+1:], nil
}

// ArchiveURI identifies an archive: a BaseURI plus an ArchiveId.
type ArchiveURI struct {
	Base BaseURI
	ID   ArchiveId
}

func (u ArchiveURI) String() string {
	qp := queryParams{vals: map[byte]string{'a': escapeStep(u.ID.String())}}
	return string(u.Base) + "?" + qp.format()
}

// ParseArchiveURI parses the canonical textual form of an ArchiveURI.
func ParseArchiveURI(s string) (ArchiveURI, error) {
	base, rawQ, err := splitBaseAndQuery(s)
	if err != nil {
		return ArchiveURI{}, err
	}
	b, err := ParseBaseURI(base)
	if err != nil {
		return ArchiveURI{}, err
	}
	qp, err := parseQuery(rawQ)
	if err != nil {
		return ArchiveURI{}, err
	}
	araw, ok := qp.vals['a']
	if !ok {
		return ArchiveURI{}, errInvalid("archive URI %q is missing 'a' component", s)
	}
	id, err := ParseArchiveId(unescapeStep(araw))
	if err != nil {
		return ArchiveURI{}, err
	}
	return ArchiveURI{Base: b, ID: id}, nil
}

// PathURI adds an optional sub-path and optional language to an ArchiveURI.
type PathURI struct {
	Archive  ArchiveURI
	Path     Name // EmptyName if absent
	Language Language
}

func (u PathURI) queryParams() queryParams {
	qp := queryParams{vals: map[byte]string{'a': escapeStep(u.Archive.ID.String())}}
	if !u.Path.IsEmpty() {
		qp.vals['p'] = u.Path.String()
	}
	qp.vals['l'] = u.Language.String()
	return qp
}

func (u PathURI) String() string {
	return string(u.Archive.Base) + "?" + u.queryParams().format()
}

// ParsePathURI parses the canonical textual form of a PathURI.
func ParsePathURI(s string) (PathURI, error) {
	base, rawQ, err := splitBaseAndQuery(s)
	if err != nil {
		return PathURI{}, err
	}
	b, err := ParseBaseURI(base)
	if err != nil {
		return PathURI{}, err
	}
	qp, err := parseQuery(rawQ)
	if err != nil {
		return PathURI{}, err
	}
	araw, ok := qp.vals['a']
	if !ok {
		return PathURI{}, errInvalid("path URI %q is missing 'a' component", s)
	}
	id, err := ParseArchiveId(unescapeStep(araw))
	if err != nil {
		return PathURI{}, err
	}
	lang := DefaultLanguage
	if lraw, ok := qp.vals['l']; ok {
		lang, err = ParseLanguage(lraw)
		if err != nil {
			return PathURI{}, err
		}
	}
	var path Name
	if praw, ok := qp.vals['p']; ok {
		path = ParseName(praw)
	}
	return PathURI{Archive: ArchiveURI{Base: b, ID: id}, Path: path, Language: lang}, nil
}

// DocumentURI identifies a document: a PathURI plus a name and language.
// The language is carried on the embedded PathURI per the textual form.
type DocumentURI struct {
	Path PathURI
	Name Name
}

func (u DocumentURI) String() string {
	qp := u.Path.queryParams()
	qp.vals['d'] = u.Name.String()
	return string(u.Path.Archive.Base) + "?" + qp.format()
}

// ParseDocumentURI parses the canonical textual form of a DocumentURI.
func ParseDocumentURI(s string) (DocumentURI, error) {
	p, rawQ, err := splitAndParsePath(s)
	if err != nil {
		return DocumentURI{}, err
	}
	draw, ok := rawQ.vals['d']
	if !ok {
		return DocumentURI{}, errInvalid("document URI %q is missing 'd' component", s)
	}
	return DocumentURI{Path: p, Name: ParseName(draw)}, nil
}

// ModuleURI identifies a module: a PathURI plus a name and language.
type ModuleURI struct {
	Path PathURI
	Name Name
}

func (u ModuleURI) String() string {
	qp := u.Path.queryParams()
	qp.vals['m'] = u.Name.String()
	return string(u.Path.Archive.Base) + "?" + qp.format()
}

// ParseModuleURI parses the canonical textual form of a ModuleURI.
func ParseModuleURI(s string) (ModuleURI, error) {
	p, rawQ, err := splitAndParsePath(s)
	if err != nil {
		return ModuleURI{}, err
	}
	mraw, ok := rawQ.vals['m']
	if !ok {
		return ModuleURI{}, errInvalid("module URI %q is missing 'm' component", s)
	}
	return ModuleURI{Path: p, Name: ParseName(mraw)}, nil
}

// SymbolURI is a ModuleURI plus a symbol Name.
type SymbolURI struct {
	Module ModuleURI
	Name   Name
}

func (u SymbolURI) String() string {
	qp := u.Module.Path.queryParams()
	qp.vals['m'] = u.Module.Name.String()
	qp.vals['s'] = u.Name.String()
	return string(u.Module.Path.Archive.Base) + "?" + qp.format()
}

// ParseSymbolURI parses the canonical textual form of a SymbolURI.
func ParseSymbolURI(s string) (SymbolURI, error) {
	p, rawQ, err := splitAndParsePath(s)
	if err != nil {
		return SymbolURI{}, err
	}
	mraw, ok := rawQ.vals['m']
	if !ok {
		return SymbolURI{}, errInvalid("symbol URI %q is missing 'm' component", s)
	}
	sraw, ok := rawQ.vals['s']
	if !ok {
		return SymbolURI{}, errInvalid("symbol URI %q is missing 's' component", s)
	}
	return SymbolURI{Module: ModuleURI{Path: p, Name: ParseName(mraw)}, Name: ParseName(sraw)}, nil
}

// DocumentElementURI is a DocumentURI plus an element Name.
type DocumentElementURI struct {
	Document DocumentURI
	Name     Name
}

func (u DocumentElementURI) String() string {
	qp := u.Document.Path.queryParams()
	qp.vals['d'] = u.Document.Name.String()
	qp.vals['e'] = u.Name.String()
	return string(u.Document.Path.Archive.Base) + "?" + qp.format()
}

// ParseDocumentElementURI parses the canonical textual form of a
// DocumentElementURI.
func ParseDocumentElementURI(s string) (DocumentElementURI, error) {
	p, rawQ, err := splitAndParsePath(s)
	if err != nil {
		return DocumentElementURI{}, err
	}
	draw, ok := rawQ.vals['d']
	if !ok {
		return DocumentElementURI{}, errInvalid("document element URI %q is missing 'd' component", s)
	}
	eraw, ok := rawQ.vals['e']
	if !ok {
		return DocumentElementURI{}, errInvalid("document element URI %q is missing 'e' component", s)
	}
	return DocumentElementURI{Document: DocumentURI{Path: p, Name: ParseName(draw)}, Name: ParseName(eraw)}, nil
}

// splitAndParsePath parses the shared (base, archive, path, language)
// prefix used by Document/Module/Symbol/DocumentElement URIs, returning the
// constructed PathURI (sub-path stripped, since 'd'/'m' carry a different
// name than 'p') along with the raw query map for kind-specific lookups.
func splitAndParsePath(s string) (PathURI, queryParams, error) {
	base, rawQ, err := splitBaseAndQuery(s)
	if err != nil {
		return PathURI{}, queryParams{}, err
	}
	b, err := ParseBaseURI(base)
	if err != nil {
		return PathURI{}, queryParams{}, err
	}
	qp, err := parseQuery(rawQ)
	if err != nil {
		return PathURI{}, queryParams{}, err
	}
	araw, ok := qp.vals['a']
	if !ok {
		return PathURI{}, queryParams{}, errInvalid("URI %q is missing 'a' component", s)
	}
	id, err := ParseArchiveId(unescapeStep(araw))
	if err != nil {
		return PathURI{}, queryParams{}, err
	}
	lang := DefaultLanguage
	if lraw, ok := qp.vals['l']; ok {
		lang, err = ParseLanguage(lraw)
		if err != nil {
			return PathURI{}, queryParams{}, err
		}
	}
	var path Name
	if praw, ok := qp.vals['p']; ok {
		path = ParseName(praw)
	}
	return PathURI{Archive: ArchiveURI{Base: b, ID: id}, Path: path, Language: lang}, qp, nil
}
