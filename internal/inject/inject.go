package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fluxgen/fluxgen/internal/config"
	"github.com/fluxgen/fluxgen/internal/feed"
	"github.com/fluxgen/fluxgen/internal/handler"
	"github.com/fluxgen/fluxgen/internal/image"
	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/page"
	"github.com/fluxgen/fluxgen/internal/store"
	"github.com/fluxgen/fluxgen/internal/web"
	"github.com/samber/do"
)

// Generation can take minutes on a cold model, so the client timeout is
// deliberately generous.
const httpTimeout = 5 * time.Minute

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	logger := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	})

	do.ProvideValue[*config.Config](injector, cfg)
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: httpTimeout})
	do.ProvideValue[handler.Defaults](injector, handler.Defaults{
		Model:  cfg.Model,
		Width:  cfg.Width,
		Height: cfg.Height,
		Steps:  cfg.Steps,
		Format: cfg.Format,
	})

	do.Provide[*image.HuggingFaceGenerator](injector, func(i *do.Injector) (*image.HuggingFaceGenerator, error) {
		return &image.HuggingFaceGenerator{
			Client: do.MustInvoke[*http.Client](i),
			Token:  cfg.Token,
		}, nil
	})
	do.Provide[image.Generator](injector, func(i *do.Injector) (image.Generator, error) {
		return do.MustInvoke[*image.HuggingFaceGenerator](i), nil
	})
	do.Provide[image.Prober](injector, func(i *do.Injector) (image.Prober, error) {
		return do.MustInvoke[*image.HuggingFaceGenerator](i), nil
	})

	do.Provide[*store.DirWriter](injector, func(i *do.Injector) (*store.DirWriter, error) {
		return &store.DirWriter{Dir: cfg.OutputDir}, nil
	})
	do.Provide[store.Writer](injector, func(i *do.Injector) (store.Writer, error) {
		return do.MustInvoke[*store.DirWriter](i), nil
	})
	do.Provide[store.Mirror](injector, func(i *do.Injector) (store.Mirror, error) {
		if cfg.MirrorBucket == "" {
			return nil, nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return &store.S3Mirror{Client: s3.NewFromConfig(awsCfg), Bucket: cfg.MirrorBucket}, nil
	})

	do.ProvideValue[*page.Templator](injector, &page.Templator{})
	do.Provide[*feed.Generator](injector, feed.NewGenerator)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*web.Server](injector, web.NewServer)

	return injector
}
