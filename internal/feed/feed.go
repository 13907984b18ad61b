package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const feedLimit = 50

// Generator builds an RSS feed of recent generations from the sidecars in
// the output directory.
type Generator struct {
	store *store.DirWriter
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{store: do.MustInvoke[*store.DirWriter](i)}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log.FromContextOrDiscard(ctx).WithGroup("feed").Info("generating rss feed")

	items, err := g.store.List(ctx, feedLimit)
	if err != nil {
		return nil, err
	}

	feed := feeds.Feed{
		Title:       "fluxgen",
		Description: "Recent text-to-image generations",
		Link:        &feeds.Link{Href: "/"},
		Updated:     time.Now(),
	}
	for _, item := range lo.Map(items, toFeedItem) {
		feed.Add(item)
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}

func toFeedItem(item store.Item, _ int) *feeds.Item {
	updated, _ := time.Parse(time.RFC3339, item.Meta.Timestamp)
	return &feeds.Item{
		Title:       item.Meta.Prompt,
		Description: fmt.Sprintf("%s seed %d, %dx%d, %d steps", item.Meta.Model, item.Meta.Seed, item.Meta.Width, item.Meta.Height, item.Meta.Steps),
		Link:        &feeds.Link{Href: "/output/" + item.ImageName},
		Updated:     updated,
	}
}
