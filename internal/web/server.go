package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fluxgen/fluxgen/internal/feed"
	"github.com/fluxgen/fluxgen/internal/handler"
	"github.com/fluxgen/fluxgen/internal/image"
	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/page"
	"github.com/fluxgen/fluxgen/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const galleryLimit = 50

// Server is the thin web front-end: one form page, the output directory,
// a status probe, and an RSS feed. Every generation runs synchronously
// inside the request that asked for it.
type Server struct {
	handler   *handler.Handler
	templator *page.Templator
	store     *store.DirWriter
	prober    image.Prober
	generator *feed.Generator
	defaults  handler.Defaults
	models    []string
	engine    *gin.Engine
}

func NewServer(i *do.Injector) (*Server, error) {
	defaults := do.MustInvoke[handler.Defaults](i)
	s := &Server{
		handler:   do.MustInvoke[*handler.Handler](i),
		templator: do.MustInvoke[*page.Templator](i),
		store:     do.MustInvoke[*store.DirWriter](i),
		prober:    do.MustInvoke[image.Prober](i),
		generator: do.MustInvoke[*feed.Generator](i),
		defaults:  defaults,
		models: lo.Uniq([]string{
			defaults.Model,
			"black-forest-labs/FLUX.1-schnell",
			"black-forest-labs/FLUX.1-dev",
		}),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.logging())

	engine.GET("/", s.index)
	engine.POST("/", s.generate)
	engine.GET("/output/:filename", s.serveFile)
	engine.DELETE("/delete/:filename", s.remove)
	engine.GET("/api_status", s.apiStatus)
	engine.GET("/feed", s.rss)

	s.engine = engine
	return s, nil
}

// Engine exposes the router for tests.
func (s *Server) Engine() http.Handler { return s.engine }

// Run serves until the context is cancelled, then shuts down cleanly.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	log.FromContextOrDiscard(ctx).Info("listening", "addr", addr)
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := log.FromContextOrDiscard(c.Request.Context()).With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(log.NewContext(c.Request.Context(), logger))
		c.Next()
	}
}

func (s *Server) index(c *gin.Context) {
	s.render(c, http.StatusOK, s.formParams(c))
}

func (s *Server) generate(c *gin.Context) {
	ctx := c.Request.Context()
	params := s.formParams(c)

	input, err := s.parseInput(c)
	if err != nil {
		params.Error = err.Error()
		s.render(c, http.StatusBadRequest, params)
		return
	}

	result, err := s.handler.Handle(ctx, input)
	if err != nil {
		log.FromContextOrDiscard(ctx).Error("generation failed", log.Err(err))
		params.Error = "Could not generate image: " + err.Error()
		s.render(c, http.StatusBadGateway, params)
		return
	}

	params.Message = "Saved to " + result.ImagePath
	params.Image = "/output/" + result.Meta.Filename
	params.Meta = &result.Meta
	s.render(c, http.StatusOK, params)
}

func (s *Server) serveFile(c *gin.Context) {
	name := c.Param("filename")
	if name != filepath.Base(name) {
		c.Status(http.StatusBadRequest)
		return
	}
	c.File(filepath.Join(s.store.Dir, name))
}

func (s *Server) remove(c *gin.Context) {
	err := s.store.Remove(c.Request.Context(), c.Param("filename"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "image not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	}
}

func (s *Server) apiStatus(c *gin.Context) {
	model := c.DefaultQuery("model", s.defaults.Model)
	c.JSON(http.StatusOK, s.prober.Probe(c.Request.Context(), model))
}

func (s *Server) rss(c *gin.Context) {
	data, err := s.generator.Generate(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/rss+xml", data)
}

func (s *Server) render(c *gin.Context, code int, params page.Params) {
	ctx := c.Request.Context()

	items, err := s.store.List(ctx, galleryLimit)
	if err != nil {
		log.FromContextOrDiscard(ctx).Error("gallery listing failed", log.Err(err))
	}
	params.Gallery = lo.Map(items, func(item store.Item, _ int) page.GalleryItem {
		return page.GalleryItem{Image: "/output/" + item.ImageName, Meta: item.Meta}
	})

	html, err := s.templator.Template(ctx, params)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(code, "text/html; charset=utf-8", html)
}

func (s *Server) formParams(c *gin.Context) page.Params {
	return page.Params{
		Prompt: c.PostForm("prompt"),
		Width:  intForm(c, "width", s.defaults.Width),
		Height: intForm(c, "height", s.defaults.Height),
		Steps:  intForm(c, "steps", s.defaults.Steps),
		Seed:   c.PostForm("seed"),
		Format: lo.Ternary(c.PostForm("format") != "", c.PostForm("format"), s.defaults.Format),
		Model:  lo.Ternary(c.PostForm("model") != "", c.PostForm("model"), s.defaults.Model),
		Models: s.models,
	}
}

func (s *Server) parseInput(c *gin.Context) (handler.Input, error) {
	input := handler.Input{
		Prompt: c.PostForm("prompt"),
		Model:  c.PostForm("model"),
		Format: c.PostForm("format"),
	}

	var err error
	if input.Width, err = intField(c, "width"); err != nil {
		return input, err
	}
	if input.Height, err = intField(c, "height"); err != nil {
		return input, err
	}
	if input.Steps, err = intField(c, "steps"); err != nil {
		return input, err
	}

	if v := c.PostForm("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return input, fmt.Errorf("seed must be an integer, got %q", v)
		}
		input.Seed = &seed
	}
	return input, nil
}

func intForm(c *gin.Context, name string, fallback int) int {
	if n, err := strconv.Atoi(c.PostForm(name)); err == nil {
		return n
	}
	return fallback
}

func intField(c *gin.Context, name string) (int, error) {
	v := c.PostForm(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return n, nil
}
