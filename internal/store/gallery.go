package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Item is one stored generation: the sidecar contents plus the names the
// web layer links to.
type Item struct {
	Meta      Metadata
	ImageName string
	MetaName  string
}

// List returns up to limit stored generations, newest first. Sidecars whose
// image file has been removed out of band are skipped, as are sidecars that
// no longer parse.
func (w *DirWriter) List(ctx context.Context, limit int) ([]Item, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("store")

	sidecars, err := filepath.Glob(filepath.Join(w.Dir, "*.json"))
	if err != nil {
		return nil, err
	}

	type entry struct {
		path  string
		mtime int64
	}
	entries := lo.FilterMap(sidecars, func(p string, _ int) (entry, bool) {
		info, err := os.Stat(p)
		if err != nil {
			return entry{}, false
		}
		return entry{path: p, mtime: info.ModTime().UnixNano()}, true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime > entries[j].mtime })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	var mu sync.Mutex
	items := make([]Item, 0, len(entries))

	group, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(e.path)
			if err != nil {
				return err
			}
			var meta Metadata
			if err := json.Unmarshal(data, &meta); err != nil {
				logger.Warn("skipping unreadable sidecar", "path", e.path, log.Err(err))
				return nil
			}
			imagePath := filepath.Join(w.Dir, meta.Filename)
			if _, err := os.Stat(imagePath); err != nil {
				return nil
			}
			mu.Lock()
			items = append(items, Item{
				Meta:      meta,
				ImageName: meta.Filename,
				MetaName:  filepath.Base(e.path),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Meta.Timestamp > items[j].Meta.Timestamp })
	return items, nil
}

// Remove deletes an image and its sidecar. The name must be a bare file
// name inside the output directory; anything that would escape it is
// rejected before touching the filesystem.
func (w *DirWriter) Remove(ctx context.Context, name string) error {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid file name %q", name)
	}

	imagePath := filepath.Join(w.Dir, name)
	if _, err := os.Stat(imagePath); err != nil {
		return err
	}

	log.FromContextOrDiscard(ctx).WithGroup("store").Info("removing image", "path", imagePath)
	if err := os.Remove(imagePath); err != nil {
		return err
	}
	if err := os.Remove(sidecarPath(imagePath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
