package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds each fetch, including the full body transfer.
	Timeout   time.Duration
	UserAgent string
	// MaxBytes rejects larger downloads. Zero disables the limit.
	MaxBytes int64
}

// OptionsFromConfig maps configuration onto fetch options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  int64(cfg.Fetch.MaxMegabytes) * 1024 * 1024,
	}
}

// Fetcher retrieves locators into local files.
type Fetcher struct {
	opts    Options
	client  *http.Client
	objects ObjectGetter
	logger  *slog.Logger
}

// New constructs a Fetcher. objects may be nil, in which case s3:// locators fail.
func New(opts Options, objects ObjectGetter, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		opts:    opts,
		client:  &http.Client{},
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "fetcher"),
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func (f *Fetcher) WithHTTPClient(client *http.Client) {
	if f != nil && client != nil {
		f.client = client
	}
}

// Fetch retrieves locator into dest and returns the number of bytes written.
// dest is never left partially written.
func (f *Fetcher) Fetch(ctx context.Context, locator, dest string) (int64, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return 0, err
	}
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var n int64
	switch loc.Kind {
	case KindHTTP:
		n, err = f.fetchHTTP(ctx, loc, dest)
	case KindS3:
		n, err = f.fetchS3(ctx, loc, dest)
	default:
		n, err = f.fetchFile(loc, dest)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return 0, err
	}

	f.logger.Debug("fetched locator",
		logging.String("locator", loc.Raw),
		logging.String("kind", string(loc.Kind)),
		logging.Int64("bytes", n),
		logging.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, loc Locator, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "fetch", "http", "build request", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "http", loc.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			marker = services.ErrNotFound
		}
		return 0, services.Wrap(marker, "fetch", "http", fmt.Sprintf("%s returned status %d", loc.URL, resp.StatusCode), nil)
	}
	if f.opts.MaxBytes > 0 && resp.ContentLength > f.opts.MaxBytes {
		return 0, services.Wrap(services.ErrValidation, "fetch", "http", fmt.Sprintf("%s is %d bytes", loc.URL, resp.ContentLength), fileutil.ErrTooLarge)
	}

	return f.store(dest, resp.Body, loc)
}

func (f *Fetcher) fetchS3(ctx context.Context, loc Locator, dest string) (int64, error) {
	if f.objects == nil {
		return 0, services.Wrap(services.ErrConfiguration, "fetch", "s3", "no object storage client configured", nil)
	}
	body, err := f.objects.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		marker := services.ErrTransient
		if isMissingObject(err) {
			marker = services.ErrNotFound
		}
		return 0, services.Wrap(marker, "fetch", "s3", loc.Raw, err)
	}
	defer body.Close()
	return f.store(dest, body, loc)
}

func (f *Fetcher) fetchFile(loc Locator, dest string) (int64, error) {
	info, err := os.Stat(loc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, services.Wrap(services.ErrNotFound, "fetch", "file", loc.Path, err)
		}
		return 0, services.Wrap(services.ErrTransient, "fetch", "file", loc.Path, err)
	}
	if info.IsDir() {
		return 0, services.Wrap(services.ErrValidation, "fetch", "file", loc.Path+" is a directory", nil)
	}
	in, err := os.Open(loc.Path)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "file", loc.Path, err)
	}
	defer in.Close()
	return f.store(dest, in, loc)
}

func (f *Fetcher) store(dest string, body io.Reader, loc Locator) (int64, error) {
	n, err := fileutil.WriteStream(dest, body, f.opts.MaxBytes)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, fileutil.ErrEmpty), errors.Is(err, fileutil.ErrTooLarge):
		return 0, services.Wrap(services.ErrValidation, "fetch", string(loc.Kind), loc.Raw, err)
	default:
		return 0, services.Wrap(services.ErrTransient, "fetch", string(loc.Kind), loc.Raw, err)
	}
}
