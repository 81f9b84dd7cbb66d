package tagcodec

import (
	"path/filepath"
	"strings"
)

func extOf(path string) string {
	return filepath.Ext(path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(ext)
}
