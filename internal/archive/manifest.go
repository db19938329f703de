// Package archive implements the archive manifest model and the on-disk
// source-file scanner: discovering MathHub roots, parsing
// META-INF/MANIFEST.MF, and maintaining the per-archive FileState tree.
package archive

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// Manifest is the parsed form of a META-INF/MANIFEST.MF file.
type Manifest struct {
	ID           uris.ArchiveId
	IsMeta       bool
	FormatNames  []string
	URLBase      uris.BaseURI
	Dependencies []uris.ArchiveId
	Ignore       *regexp.Regexp
	Attrs        map[string]string
}

// ParseManifest reads a line-oriented "key: value" manifest, as produced by
// META-INF/MANIFEST.MF. "#"-prefixed lines are comments. Duplicate keys:
// last one wins. id, url-base and dependencies are validated against
// wantID (the archive's location-derived id); a mismatch or malformed
// recognized key logs a warning via log and is treated per spec §4.B
// (missing/mismatched id, unparseable url-base => the caller should skip
// the archive; ParseManifest signals that by returning a nil *Manifest with
// a non-nil error).
func ParseManifest(r io.Reader, wantID uris.ArchiveId, log *logrus.Entry) (*Manifest, error) {
	m := &Manifest{
		ID:     wantID,
		IsMeta: wantID.IsMeta(),
		Attrs:  map[string]string{},
	}
	sc := bufio.NewScanner(r)
	seen := map[string]string{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			log.Warnf("manifest: ignoring malformed line %q", line)
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		seen[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("archive: reading manifest: %w", err)
	}

	if idRaw, ok := seen["id"]; ok {
		gotID, err := uris.ParseArchiveId(idRaw)
		if err != nil || !gotID.Equal(wantID) {
			return nil, fmt.Errorf("archive: manifest id %q does not match location-derived id %q", idRaw, wantID)
		}
	}

	if fmtRaw, ok := seen["format"]; ok {
		for _, name := range strings.Split(fmtRaw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				m.FormatNames = append(m.FormatNames, name)
			}
		}
	}

	if len(m.FormatNames) == 0 && !m.IsMeta {
		return nil, fmt.Errorf("archive: %s has no recognized format and is not the meta archive", wantID)
	}

	if baseRaw, ok := seen["url-base"]; ok {
		base, err := uris.ParseBaseURI(baseRaw)
		if err != nil {
			return nil, fmt.Errorf("archive: %s has unparseable url-base %q: %w", wantID, baseRaw, err)
		}
		m.URLBase = base
	}

	if depsRaw, ok := seen["dependencies"]; ok {
		for _, d := range strings.Split(depsRaw, ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			depID, err := uris.ParseArchiveId(d)
			if err != nil {
				log.Warnf("manifest: %s: ignoring malformed dependency %q", wantID, d)
				continue
			}
			if depID.Equal(wantID) {
				continue
			}
			m.Dependencies = append(m.Dependencies, depID)
		}
	}

	if ignoreRaw, ok := seen["ignore"]; ok {
		re, err := regexp.Compile(ignoreRaw)
		if err != nil {
			log.Warnf("manifest: %s: ignoring unparseable ignore regex %q: %v", wantID, ignoreRaw, err)
		} else {
			m.Ignore = re
		}
	}

	for k, v := range seen {
		switch k {
		case "id", "format", "url-base", "dependencies", "ignore":
		default:
			m.Attrs[k] = v
		}
	}

	return m, nil
}

// Ignores reports whether relPath (slash-separated, relative to source/)
// matches the manifest's ignore regex.
func (m *Manifest) Ignores(relPath string) bool {
	return m.Ignore != nil && m.Ignore.MatchString(relPath)
}
