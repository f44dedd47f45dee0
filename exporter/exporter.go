package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/utils"
	"go.uber.org/zap"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"

	DefaultTimeout = 2 * time.Minute
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrTimeout       = errors.New("export timed out")
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

type renderFunc func(*Report) ([]byte, error)

// Exporter renders reports under a deadline and writes them to dir.
type Exporter struct {
	dir       string
	timeout   time.Duration
	logger    *logger.Logger
	renderers map[Format]renderFunc
	now       func() time.Time
}

func New(dir string, timeout time.Duration, log *logger.Logger) *Exporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Exporter{
		dir:     dir,
		timeout: timeout,
		logger:  log,
		renderers: map[Format]renderFunc{
			FormatXLSX: RenderWorkbook,
			FormatPDF:  RenderDocument,
		},
		now: time.Now,
	}
}

func (e *Exporter) Dir() string {
	return e.dir
}

type rendered struct {
	data []byte
	err  error
}

// Render produces the artifact bytes, giving up when ctx or the export
// timeout expires first.
func (e *Exporter) Render(ctx context.Context, format Format, r *Report) ([]byte, error) {
	render, ok := e.renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan rendered, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- rendered{err: fmt.Errorf("render %s panicked: %v", format, p)}
			}
		}()
		data, err := render(r)
		done <- rendered{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return nil, ctx.Err()
	case out := <-done:
		return out.data, out.err
	}
}

func (e *Exporter) fileName(format Format, r *Report) string {
	slug := ""
	if r.Questionnaire != nil {
		slug = utils.Slugify(r.Questionnaire.SlugValue())
		if slug == "" {
			slug = fmt.Sprintf("questionnaire-%d", r.Questionnaire.ID)
		}
	}
	if slug == "" {
		slug = "questionnaire"
	}
	return fmt.Sprintf("%s_%s.%s", slug, e.now().Format("20060102_150405"), format)
}

// Export renders r and writes it as {slug}_{timestamp}.{ext} under the export
// directory, returning the file path.
func (e *Exporter) Export(ctx context.Context, format Format, r *Report) (string, error) {
	start := e.now()
	data, err := e.Render(ctx, format, r)
	if err != nil {
		e.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		return "", err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, e.fileName(format, r))
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(path)
		path = path[:len(path)-len(ext)] + "_" + uuid.NewString()[:8] + ext
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("place export: %w", err)
	}

	e.logger.Info("export written",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Duration("took", e.now().Sub(start)))
	return path, nil
}
