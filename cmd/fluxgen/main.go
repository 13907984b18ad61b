package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxgen/fluxgen/internal/config"
	"github.com/fluxgen/fluxgen/internal/handler"
	"github.com/fluxgen/fluxgen/internal/inject"
	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/samber/do"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <prompt>\n\nGenerate an image from a text prompt via the Hugging Face Inference API.\n\n", os.Args[0])
		flag.PrintDefaults()
	}

	output := flag.String("output", "", "output file path (default: derived from timestamp and prompt)")
	width := flag.Int("width", 0, "image width")
	height := flag.Int("height", 0, "image height")
	steps := flag.Int("steps", 0, "number of inference steps")
	seed := flag.Int64("seed", -1, "random seed for reproducibility (default: random)")
	format := flag.String("format", "", "output format, jpg or png")
	model := flag.String("model", "", "model id on the hosted inference API")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *output, *width, *height, *steps, *seed, *format, *model, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "fluxgen:", err)
		os.Exit(1)
	}
}

func run(prompt, output string, width, height, steps int, seed int64, format, model string, verbose bool) error {
	logOut := io.Writer(io.Discard)
	if verbose {
		logOut = os.Stderr
	}
	ctx := log.NewContext(context.Background(), log.New(logOut))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	injector := inject.Setup(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()

	input := handler.Input{
		Prompt: prompt,
		Model:  model,
		Width:  width,
		Height: height,
		Steps:  steps,
		Format: format,
		Output: output,
	}
	if seed >= 0 {
		input.Seed = &seed
	}

	result, err := do.MustInvoke[*handler.Handler](injector).Handle(ctx, input)
	if err != nil {
		return err
	}

	fmt.Println(result.ImagePath)
	return nil
}
