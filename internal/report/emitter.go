// Package report turns the teacher's narrative into files: one paginated
// PDF or a set of Markdown section files with an index.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/registry"
)

// Format names.
const (
	FormatPDF      = "pdf"
	FormatMarkdown = "markdown"
)

// Job is one document to emit.
type Job struct {
	// Name is the student's full name; it names the output files.
	Name string
	Text string
	Dir  string
}

// Options carry format settings.
type Options struct {
	// FontPath is a TTF file with Cyrillic glyphs for PDF output.
	FontPath string
	// Created stamps PDF metadata; identical input gives identical bytes.
	Created time.Time
	Logger  *slog.Logger
}

// Format writes doc for job and returns the paths it wrote.
type Format func(doc Document, job Job, opts Options) ([]string, error)

// Formats holds the known output formats.
var Formats = registry.New[string, Format]("format")

func init() {
	Formats.Register(FormatPDF, writePDF)
	Formats.Register(FormatMarkdown, writeMarkdown)
}

// Emitter renders narrative text in one format.
// It is safe for concurrent use.
type Emitter struct {
	name   string
	format Format
	opts   Options
}

// Option configures an Emitter.
type Option func(*Options)

// WithFont sets the PDF font file.
func WithFont(path string) Option {
	return func(o *Options) { o.FontPath = path }
}

// WithCreated sets the PDF creation time.
func WithCreated(t time.Time) Option {
	return func(o *Options) { o.Created = t }
}

// WithLogger sets the logger for font fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// NewEmitter returns an emitter for the named format.
// An unknown format is a ConfigurationError.
func NewEmitter(format string, opts ...Option) (*Emitter, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	f, err := Formats.Lookup(name)
	if err != nil {
		return nil, &fgerrors.ConfigurationError{Setting: "output.format", Message: err.Error()}
	}
	o := Options{
		Created: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Emitter{name: name, format: f, opts: o}, nil
}

// Format returns the emitter's format name.
func (e *Emitter) Format() string {
	return e.name
}

// Emit writes the document for job into job.Dir, creating it if needed.
// Existing files with the same names are overwritten.
func (e *Emitter) Emit(job Job) ([]string, error) {
	if strings.TrimSpace(job.Text) == "" {
		return nil, fmt.Errorf("emit %s: empty text", e.name)
	}
	if job.Dir == "" {
		job.Dir = "."
	}
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.name, err)
	}
	paths, err := e.format(Parse(job.Text), job, e.opts)
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.name, err)
	}
	return paths, nil
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Slug lowercases s and collapses every run of non-word characters to "_".
func Slug(s string) string {
	return nonWord.ReplaceAllString(strings.ToLower(s), "_")
}

// replaceFile writes data to a temporary file next to path and renames it
// into place.
func replaceFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

// baseName is the file stem shared by every format.
func baseName(name string) string {
	slug := Slug(name)
	if strings.Trim(slug, "_") == "" {
		slug = "student"
	}
	return slug + "_teacher_conclusion"
}
