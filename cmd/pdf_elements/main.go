package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/source"
	"github.com/a3tai/mcp-pdf-overlay/internal/render"
	"github.com/a3tai/mcp-pdf-overlay/internal/session"
)

// output is the JSON document written by the command
type output struct {
	Path       string               `json:"path"`
	PageCount  int                  `json:"page_count"`
	Scale      float64              `json:"scale"`
	ScaleMode  string               `json:"scale_mode"`
	Generation uint64               `json:"generation"`
	Elements   []extraction.Element `json:"elements"`
	Errors     []string             `json:"errors,omitempty"`
	Rendered   []string             `json:"rendered,omitempty"`
}

func main() {
	if err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "pdf_elements",
		Usage:     "Print the positioned elements of a PDF as JSON",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output JSON file path (default: stdout)",
			},
			&cli.FloatFlag{
				Name:  "scale",
				Usage: "Zoom scale used to build the elements",
				Value: 1.0,
			},
			&cli.FloatFlag{
				Name:  "rescale-to",
				Usage: "Change the scale after building, exercising the scale mode",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Scale mode: rescale or reparse",
				Value: string(session.ScaleModeRescale),
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Only print this 1-based page (0 prints every page)",
			},
			&cli.StringSliceFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only print elements of this type (text, annotation, image, form-field); repeatable",
			},
			&cli.StringFlag{
				Name:  "render-dir",
				Usage: "Render the selected pages to PNG files in this directory",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log extraction warnings to stderr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return extractElements(ctx, cmd, stdout, stderr)
		},
	}
}

func extractElements(ctx context.Context, cmd *cli.Command, stdout, stderr io.Writer) error {
	logger := log.New(io.Discard, "", 0)
	if cmd.Bool("verbose") {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	mode, err := session.ParseScaleMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	query, err := buildQuery(cmd.StringSlice("type"), cmd.Int("page"))
	if err != nil {
		return err
	}

	inputPath := cmd.String("input")
	doc, err := source.Open(inputPath, source.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	if p := cmd.Int("page"); p < 0 || p > doc.NumPages() {
		doc.Close()
		return fmt.Errorf("page %d out of range (1-%d)", p, doc.NumPages())
	}

	renderDir := cmd.String("render-dir")
	var renderer render.Renderer
	if renderDir != "" {
		pool, err := render.NewPool(1, 30*time.Second)
		if err != nil {
			doc.Close()
			return fmt.Errorf("failed to start renderer: %w", err)
		}
		defer pool.Close()

		pdfium, err := pool.Open(doc.Bytes())
		if err != nil {
			doc.Close()
			return fmt.Errorf("failed to load PDF for rendering: %w", err)
		}
		renderer = pdfium
	}

	sess, err := session.New(ctx, doc, session.Options{
		Scale:    cmd.Float("scale"),
		Mode:     mode,
		Builder:  extraction.NewBuilder(extraction.WithLogger(logger)),
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		if renderer != nil {
			renderer.Close()
		}
		doc.Close()
		return fmt.Errorf("failed to extract elements: %w", err)
	}
	defer sess.Close()

	if to := cmd.Float("rescale-to"); to != 0 {
		if err := sess.SetScale(ctx, to); err != nil {
			return fmt.Errorf("failed to rescale: %w", err)
		}
	}

	view := sess.State()
	out := output{
		Path:       inputPath,
		PageCount:  sess.NumPages(),
		Scale:      view.Scale,
		ScaleMode:  string(sess.Mode()),
		Generation: view.Generation,
		Elements:   query.Apply(view.Elements()),
	}
	for _, p := range view.Pages {
		if len(query.Pages) > 0 && p.PageNumber != query.Pages[0] {
			continue
		}
		for _, e := range p.Errors {
			out.Errors = append(out.Errors, e.Error())
		}
	}

	if renderDir != "" {
		if out.Rendered, err = renderPages(ctx, sess, renderDir, query.Pages); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode elements: %w", err)
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(stderr, "Elements written to %s\n", outputPath)
		return nil
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func buildQuery(types []string, page int) (extraction.Query, error) {
	var q extraction.Query
	for _, t := range types {
		et, err := extraction.ParseElementType(t)
		if err != nil {
			return q, err
		}
		q.Types = append(q.Types, et)
	}
	if page > 0 {
		q.Pages = []int{page}
	}
	return q, nil
}

// renderPages writes page-NNN.png files for the given pages, or every page
// when none are given
func renderPages(ctx context.Context, sess *session.Session, dir string, pages []int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create render directory: %w", err)
	}
	if len(pages) == 0 {
		for p := 1; p <= sess.NumPages(); p++ {
			pages = append(pages, p)
		}
	}

	var written []string
	for _, p := range pages {
		img, err := sess.RenderPage(ctx, p)
		if err != nil {
			return written, fmt.Errorf("failed to render page %d: %w", p, err)
		}
		if img == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%03d.png", p))
		f, err := os.Create(path)
		if err != nil {
			return written, fmt.Errorf("failed to create %s: %w", path, err)
		}
		err = render.EncodePNG(f, img)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
