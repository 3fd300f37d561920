package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	lens "github.com/menta2k/infographic-lens"
	"github.com/menta2k/infographic-lens/internal/config"
	"github.com/menta2k/infographic-lens/internal/utils"
	"github.com/menta2k/infographic-lens/pkg/types"
)

func main() {
	app := &cli.App{
		Name:    "infographic-lens",
		Usage:   "turn a topic into an explorable infographic",
		Version: lens.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml or json)", EnvVars: []string{"INFOGRAPHIC_LENS_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error"},
			&cli.StringFlag{Name: "log-format", Usage: "text|json"},
			&cli.BoolFlag{Name: "mock", Usage: "use the offline mock backends"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the web UI",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default from config)"},
				},
				Action: serveAction,
			},
			{
				Name:  "generate",
				Usage: "generate and analyze one infographic",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "infographic topic"},
					&cli.StringFlag{Name: "out", Usage: "output directory (default from config)"},
					&cli.BoolFlag{Name: "debug", Usage: "also write the annotated overlay and segment crops"},
				},
				Action: generateAction,
			},
			{
				Name:  "analyze",
				Usage: "find interactive regions on an existing image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true, Usage: "input image path or URL (jpg/png/webp)"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "topic of the image"},
					&cli.StringFlag{Name: "out", Usage: "output directory (default from config)"},
					&cli.BoolFlag{Name: "debug", Usage: "also write the annotated overlay and segment crops"},
				},
				Action: analyzeAction,
			},
			{
				Name:  "check",
				Usage: "verify the vision backend can see an image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Required: true, Usage: "input image path or URL"},
				},
				Action: checkAction,
			},
			{
				Name:  "config",
				Usage: "manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "write the default configuration",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "path", Usage: "destination (default " + config.GetConfigPath() + ")"},
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
						},
						Action: configInitAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies global flags and installs the logger
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	path := c.String("config")
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if c.Bool("mock") {
		cfg.Generation.Backend = "mock"
		cfg.Analysis.Backend = "mock"
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newLens(c *cli.Context) (*lens.Lens, *config.Config, error) {
	cfg, logger, err := setup(c)
	if err != nil {
		return nil, nil, err
	}
	l, err := lens.New(c.Context, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}

func serveAction(c *cli.Context) error {
	l, _, err := newLens(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return l.Serve(ctx, c.String("addr"))
}

func generateAction(c *cli.Context) error {
	l, cfg, err := newLens(c)
	if err != nil {
		return err
	}

	query := c.String("query")
	result, err := l.Run(c.Context, query)
	if err != nil {
		return err
	}

	outDir := c.String("out")
	if outDir == "" {
		outDir = utils.RunDir(cfg.Output.OutputDir, query)
	}

	written, err := l.SaveResult(result, outDir, c.Bool("debug"))
	printWritten(written)
	if err != nil {
		return err
	}
	return printSummary(result)
}

func analyzeAction(c *cli.Context) error {
	l, cfg, err := newLens(c)
	if err != nil {
		return err
	}

	img, err := loadInput(c.Context, l, c.String("in"))
	if err != nil {
		return err
	}
	query := c.String("query")
	result, err := l.Analyze(c.Context, query, img)
	if err != nil {
		return err
	}

	outDir := c.String("out")
	if outDir == "" {
		outDir = utils.RunDir(cfg.Output.OutputDir, query)
	}
	written, err := l.SaveResult(result, outDir, c.Bool("debug"))
	printWritten(written)
	if err != nil {
		return err
	}
	return printSummary(result)
}

func checkAction(c *cli.Context) error {
	l, _, err := newLens(c)
	if err != nil {
		return err
	}
	img, err := loadInput(c.Context, l, c.String("in"))
	if err != nil {
		return err
	}
	answer, err := l.CheckVision(c.Context, img)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func configInitAction(c *cli.Context) error {
	path := c.String("path")
	if path == "" {
		path = config.GetConfigPath()
	}
	if utils.FileExists(path) && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}

func loadInput(ctx context.Context, l *lens.Lens, source string) (*types.GeneratedImage, error) {
	remote := strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
	if !remote && !utils.IsImageFile(source) {
		return nil, fmt.Errorf("%s: unsupported image type (use jpg, png or webp)", source)
	}
	return l.LoadImage(ctx, source)
}

func printWritten(paths []string) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			fmt.Printf("wrote %s (%s)\n", p, utils.FormatFileSize(info.Size()))
			continue
		}
		fmt.Println("wrote", p)
	}
}

func printSummary(result *lens.Result) error {
	summary := struct {
		Query    string   `json:"query"`
		Segments []string `json:"segments"`
		Sources  int      `json:"sources"`
	}{Query: result.Query, Segments: []string{}}
	if result.Analysis != nil {
		for _, s := range result.Analysis.Segments {
			summary.Segments = append(summary.Segments, fmt.Sprintf("%s [%s] %.0f,%.0f %.0fx%.0f",
				s.Label, s.Format, s.Bounds.X, s.Bounds.Y, s.Bounds.Width, s.Bounds.Height))
		}
	}
	if result.Image != nil {
		summary.Sources = len(result.Image.GroundingURLs)
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
