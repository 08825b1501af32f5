package file

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// newStorageKey returns a globally unique blob key. The original extension is
// kept so local static serving and browsers retain a content-type hint.
func newStorageKey(originalName string) string {
	ext := filepath.Ext(originalName)
	if strings.ContainsAny(ext, `/\`) || len(ext) > 16 {
		ext = ""
	}
	return uuid.NewString() + strings.ToLower(ext)
}
