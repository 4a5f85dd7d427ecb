package storage

import (
	"path/filepath"
	"strings"
)

const (
	objectDirName = "dicom"
	thumbDirName  = "thumbs"
	thumbExt      = ".png"
)

// InstancePath is the canonical on-disk location of a stored object:
// <root>/dicom/<studyUID>/<seriesUID>/<sopInstanceUID>. It is a pure
// computation; nothing is created.
func InstancePath(root, studyUID, seriesUID, sopInstanceUID string) string {
	return filepath.Join(root, objectDirName, escapeUID(studyUID), escapeUID(seriesUID), escapeUID(sopInstanceUID))
}

// ThumbnailPath mirrors InstancePath under a parallel tree:
// <root>/thumbs/<studyUID>/<seriesUID>/<sopInstanceUID>.png.
func ThumbnailPath(root, studyUID, seriesUID, sopInstanceUID string) string {
	return filepath.Join(root, thumbDirName, escapeUID(studyUID), escapeUID(seriesUID), escapeUID(sopInstanceUID)+thumbExt)
}

// ObjectRoot is the top of the stored-object tree.
func ObjectRoot(root string) string { return filepath.Join(root, objectDirName) }

// ThumbnailRoot is the top of the thumbnail tree.
func ThumbnailRoot(root string) string { return filepath.Join(root, thumbDirName) }

// escapeUID keeps path components filesystem-safe. DICOM UIDs are digits and
// dots by construction, but inputs from partial query results are not always
// well formed, so anything outside a conservative set is replaced.
func escapeUID(uid string) string {
	if uid == "" || uid == "." || uid == ".." {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(uid))
	for _, r := range uid {
		switch {
		case r >= '0' && r <= '9',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
