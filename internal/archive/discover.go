package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
)

// Discover walks every MathHub root, pruning dot-directories, and returns
// one Archive per subtree containing a META-INF/MANIFEST.MF. Archives whose
// manifest is malformed are skipped with a warning (spec §7
// ManifestMalformed) rather than aborting the whole walk.
func Discover(roots []string, log *logrus.Entry) []*Archive {
	var found []*Archive
	for _, root := range roots {
		found = append(found, discoverRoot(root, log)...)
	}
	return found
}

func discoverRoot(root string, log *logrus.Entry) []*Archive {
	var found []*Archive
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warnf("discover: cannot read MathHub root %q: %v", root, err)
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if metaInf := findMetaInf(dir); metaInf != "" {
			if a := loadArchive(root, dir, metaInf, log); a != nil {
				found = append(found, a)
			}
			continue
		}
		found = append(found, discoverRoot(dir, log)...)
	}
	return found
}

// findMetaInf returns the case-insensitively matched META-INF directory
// directly under dir, or "" if none exists.
func findMetaInf(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), "META-INF") {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

func loadArchive(root, archiveDir, metaInfDir string, log *logrus.Entry) *Archive {
	manifestPath := filepath.Join(metaInfDir, "MANIFEST.MF")
	f, err := os.Open(manifestPath)
	if err != nil {
		// tolerate lowercase on case-sensitive filesystems
		f, err = os.Open(filepath.Join(metaInfDir, "manifest.mf"))
		if err != nil {
			log.Warnf("discover: %s has a META-INF directory but no manifest.mf", archiveDir)
			return nil
		}
	}
	defer f.Close()

	relID, err := filepath.Rel(root, archiveDir)
	if err != nil {
		log.Warnf("discover: cannot compute archive id for %s: %v", archiveDir, err)
		return nil
	}
	id, err := uris.ParseArchiveId(filepath.ToSlash(relID))
	if err != nil {
		log.Warnf("discover: %s has an invalid archive id: %v", archiveDir, err)
		return nil
	}

	manifest, err := ParseManifest(f, id, log)
	if err != nil {
		log.Warnf("discover: %s: %v", archiveDir, err)
		return nil
	}
	return NewArchive(manifest, archiveDir)
}
