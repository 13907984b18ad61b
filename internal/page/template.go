package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/store"
)

//go:embed assets/index.html
var indexTmpl string

// Params fills the single-page form template: the submitted (or default)
// form values, the outcome of the last generation, and the gallery.
type Params struct {
	Prompt  string
	Width   int
	Height  int
	Steps   int
	Seed    string
	Format  string
	Model   string
	Models  []string
	Message string
	Image   string
	Error   string
	Meta    *store.Metadata
	Gallery []GalleryItem
}

type GalleryItem struct {
	Image string
	Meta  store.Metadata
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (t *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	t.once.Do(func() {
		t.tmpl = template.Must(template.New("index").Parse(indexTmpl))
	})

	log.FromContextOrDiscard(ctx).WithGroup("page").Info("rendering page")

	var data bytes.Buffer
	if err := t.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
