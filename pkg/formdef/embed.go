package formdef

import (
	"embed"
	"io/fs"
	"sync"
)

//go:embed forms/*.yaml
var embeddedForms embed.FS

// EmbeddedFS returns the bundled form definitions. Pass it to LoadFS, or use
// Default for the compiled result.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedForms, "forms")
	if err != nil {
		panic(err)
	}
	return sub
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry compiled from the bundled definitions. The
// bundled files are tested, so a load failure panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := LoadFS(EmbeddedFS())
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}
