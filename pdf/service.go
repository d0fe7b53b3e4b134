package pdf

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DemoAlias is the demo record's path; it renders the public demo page.
	DemoAlias  = "86bczf1oqv"
	DemoTarget = "timesheet-demo"
)

// Archiver stores a copy of each freshly rendered PDF.
type Archiver interface {
	WriteFile(ctx context.Context, key string, contentType string, data []byte) error
}

type Result struct {
	Data     []byte
	CacheHit bool
}

// Service renders timesheet pages to PDF through a shared cache. Concurrent
// misses for the same path share a single render.
type Service struct {
	renderer   Renderer
	compressor Compressor
	cache      *Cache
	archiver   Archiver
	baseURL    string
	log        zerolog.Logger

	group singleflight.Group
}

type ServiceOptions struct {
	Renderer   Renderer
	Compressor Compressor
	Cache      *Cache
	// Archiver is optional.
	Archiver Archiver
	// BaseURL is the origin the browser loads pages from.
	BaseURL string
	Logger  zerolog.Logger
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		renderer:   opts.Renderer,
		compressor: opts.Compressor,
		cache:      opts.Cache,
		archiver:   opts.Archiver,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		log:        opts.Logger.With().Str("component", "pdf").Logger(),
	}
}

// Normalize maps the demo alias onto the demo page.
func Normalize(path string) string {
	path = strings.Trim(path, "/")
	if path == DemoAlias {
		return DemoTarget
	}
	return path
}

// PrintURL is the page the browser prints for path.
func (s *Service) PrintURL(path string) string {
	return fmt.Sprintf("%s/%s?print=true", s.baseURL, url.PathEscape(path))
}

// Generate returns the PDF for path. Renders are detached from ctx cancellation
// so an abandoned request still fills the cache.
func (s *Service) Generate(ctx context.Context, path string) (*Result, error) {
	key := Normalize(path)

	if data, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("path", key).Msg("cache hit")
		return &Result{Data: data, CacheHit: true}, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		// another caller may have filled the cache while we queued
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
		return s.render(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Str("path", key).Msg("joined in-flight render")
	}
	return &Result{Data: v.([]byte), CacheHit: false}, nil
}

func (s *Service) render(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()

	raw, err := s.renderer.Render(ctx, s.PrintURL(key))
	if err != nil {
		s.log.Error().Err(err).Str("path", key).Msg("render failed")
		return nil, fmt.Errorf("failed to render %s: %w", key, err)
	}

	data, err := s.compressor.Compress(raw)
	if err != nil {
		s.log.Error().Err(err).Str("path", key).Msg("compression failed")
		return nil, fmt.Errorf("failed to compress %s: %w", key, err)
	}

	s.cache.Set(key, data)
	s.log.Info().
		Str("path", key).
		Int("raw_bytes", len(raw)).
		Int("bytes", len(data)).
		Dur("duration_ms", time.Since(start)/time.Millisecond).
		Msg("cache miss, rendered")

	if s.archiver != nil {
		if err := s.archiver.WriteFile(ctx, "timesheets/"+key+".pdf", "application/pdf", data); err != nil {
			s.log.Warn().Err(err).Str("path", key).Msg("failed to archive pdf")
		}
	}
	return data, nil
}
