package editor

import (
	"embed"
	"io/fs"

	"github.com/farmplat/farmmap/internal/humastar"
)

//go:embed fragments/*.html
var fragmentFS embed.FS

// NewRenderer builds a fragment renderer over the embedded templates.
// Pass a directory to override them during development.
func NewRenderer(overrideDir string) (*humastar.Renderer, error) {
	if overrideDir != "" {
		return humastar.NewDir(overrideDir)
	}
	sub, err := fs.Sub(fragmentFS, "fragments")
	if err != nil {
		return nil, err
	}
	return humastar.New(sub)
}
