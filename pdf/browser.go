package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// A3 in inches.
const (
	paperWidth  = 11.69
	paperHeight = 16.54
	printScale  = 0.9

	settleDelay     = time.Second
	livenessTimeout = 5 * time.Second
)

// repaint waits for web fonts and nudges opacity so the swapped fonts are painted
// before printing.
const repaintScript = `(async () => {
  if (document.fonts && document.fonts.ready) {
    await document.fonts.ready;
    document.body.style.opacity = "0.99";
    await new Promise((resolve) => setTimeout(resolve, 100));
    document.body.style.opacity = "1";
  }
  return true;
})()`

// Renderer prints a URL to PDF.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Browser supervises a single headless Chrome shared by every render. Each
// render opens its own tab and closes it on return. A dead browser is
// relaunched on the next use.
type Browser struct {
	mu            sync.Mutex
	allocOpts     []chromedp.ExecAllocatorOption
	timeout       time.Duration
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	launches      int
	log           zerolog.Logger
}

func NewBrowser(execPath string, timeout time.Duration, log zerolog.Logger) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-features", "IsolateOrigins,AudioServiceOutOfProcess"),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-print-preview", true),
		chromedp.Flag("disable-speech-api", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return &Browser{
		allocOpts: opts,
		timeout:   timeout,
		log:       log.With().Str("component", "browser").Logger(),
	}
}

// Render prints url to PDF. When the render fails because the browser died it
// is relaunched and the render retried once.
func (b *Browser) Render(ctx context.Context, url string) ([]byte, error) {
	data, err := b.render(ctx, url)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil || b.Alive() {
		return nil, err
	}

	b.log.Warn().Err(err).Str("url", url).Msg("browser is not responding, relaunching")
	b.mu.Lock()
	b.closeLocked()
	b.mu.Unlock()

	return b.render(ctx, url)
}

func (b *Browser) render(ctx context.Context, url string) ([]byte, error) {
	bctx, err := b.acquire()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(bctx)
	defer cancelTab()

	// stop the render if the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// the first Run opens the tab, so the deadline covers it too
	runCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()

	var buf []byte
	var painted bool
	err = chromedp.Run(runCtx,
		navigateAndWaitIdle(url),
		chromedp.Sleep(settleDelay),
		chromedp.Evaluate(repaintScript, &painted, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithScale(printScale).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithPreferCSSPageSize(true).
				Do(ctx)
			buf = data
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}
	return buf, nil
}

// navigateAndWaitIdle loads url and waits for the page's networkIdle lifecycle
// event, i.e. no network connections for 500ms. Only events carrying the
// navigation's loader id count; enabling lifecycle events replays the blank
// page's own events.
func navigateAndWaitIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		// listeners run on the target's event loop and must not block
		idle := make(chan *page.EventLifecycleEvent, 64)
		lctx, stopListening := context.WithCancel(ctx)
		defer stopListening()

		chromedp.ListenTarget(lctx, func(ev any) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- e:
				default:
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		frameID, loaderID, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation failed: %s", errorText)
		}

		for {
			select {
			case e := <-idle:
				if isNetworkIdle(e, frameID, loaderID) {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func isNetworkIdle(e *page.EventLifecycleEvent, frameID cdp.FrameID, loaderID cdp.LoaderID) bool {
	return e.Name == "networkIdle" && e.FrameID == frameID && e.LoaderID == loaderID
}

func (b *Browser) acquire() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		if b.browserCtx.Err() == nil {
			return b.browserCtx, nil
		}
		b.closeLocked()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), b.allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	abort := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// the browser process lives as long as the first Run's context, so the
	// launch is bounded by a watchdog instead of a deadline
	if err := within(b.timeout, func() error { return chromedp.Run(browserCtx) }, abort); err != nil {
		abort()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelBrowser = cancelBrowser
	b.launches++
	b.log.Info().Int("launches", b.launches).Msg("browser launched")
	return browserCtx, nil
}

var errTimeout = errors.New("timed out")

// within runs fn and calls abort if it has not returned after d. abort must
// make fn return.
func within(d time.Duration, fn func() error, abort func()) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		abort()
		<-done
		return fmt.Errorf("%w after %s", errTimeout, d)
	}
}

// Alive pings the browser with Browser.getVersion.
func (b *Browser) Alive() bool {
	b.mu.Lock()
	bctx := b.browserCtx
	b.mu.Unlock()

	if bctx == nil || bctx.Err() != nil {
		return false
	}
	c := chromedp.FromContext(bctx)
	if c == nil || c.Browser == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(bctx, livenessTimeout)
	defer cancel()
	_, _, _, _, _, err := browser.GetVersion().Do(cdp.WithExecutor(ctx, c.Browser))
	return err == nil
}

func (b *Browser) closeLocked() {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.browserCtx = nil
	b.cancelBrowser = nil
	b.cancelAlloc = nil
}

// Close shuts the browser down. The next Render launches a new one.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return nil
	}
	err := chromedp.Cancel(b.browserCtx)
	b.closeLocked()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
