// Package browser implements catalog.Surface by driving a Chrome instance
// over the DevTools protocol. Each catalog entry is a result card; a download
// is triggered through the card's context menu and lands in the configured
// download directory.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"docharvest/pkg/catalog"
	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/ratelimit"
	"docharvest/pkg/retry"
)

// pageSettle is how long the result list is given to render after the
// results container shows up
const pageSettle = time.Second

// Options configures a browser Surface
type Options struct {
	URL             string
	UserAgent       string
	Cookie          string
	Headless        bool
	DownloadDir     string
	PageLoadTimeout time.Duration
	TriggerTimeout  time.Duration
	MenuDelay       time.Duration
	ExpandWait      time.Duration
	Selectors       config.SelectorConfig
	StripPrefixes   []string

	// TriggersPerMinute caps how often download menus are clicked
	TriggersPerMinute int
	// Retry governs the initial page load
	Retry *retry.Config
}

// OptionsFromConfig maps the configuration onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:               cfg.Catalog.URL,
		UserAgent:         cfg.Catalog.UserAgent,
		Cookie:            cfg.Catalog.Cookie,
		Headless:          cfg.Catalog.Headless,
		DownloadDir:       cfg.Download.Directory,
		PageLoadTimeout:   cfg.Catalog.PageLoadTimeout,
		TriggerTimeout:    cfg.Catalog.TriggerTimeout,
		MenuDelay:         cfg.Catalog.MenuDelay,
		ExpandWait:        cfg.Catalog.ExpandWait,
		Selectors:         cfg.Catalog.Selectors,
		StripPrefixes:     cfg.Catalog.TitleStripPrefixes,
		TriggersPerMinute: cfg.RateLimit.RequestsPerMinute,
		Retry:             retry.FromRateLimit(&cfg.RateLimit, nil),
	}
}

// Surface is a catalog.Surface backed by a live browser tab
type Surface struct {
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	limiter ratelimit.Limiter
	logger  logger.Logger
}

var _ catalog.Surface = (*Surface)(nil)

// New launches Chrome, routes downloads into opts.DownloadDir and opens the
// catalog page. The returned Surface must be closed.
func New(ctx context.Context, opts Options, log logger.Logger) (*Surface, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	dir, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}
	opts.DownloadDir = dir

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Surface{
		opts: opts,
		ctx:  tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		limiter: ratelimit.NewSlidingWindow(max(opts.TriggersPerMinute, 1), time.Minute),
		logger:  log,
	}

	// The first Run starts the browser and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		s.cancel()
		return nil, errs.NewCatalogUnavailable("launch browser", err)
	}
	log.Info("Browser launched")

	s.listen()

	if err := s.open(ctx); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

// listen accepts JavaScript dialogs and forwards console output to the log
func (s *Surface) listen() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			s.logger.InfoWithFields("Accepting page dialog", map[string]interface{}{
				"message": ev.Message,
			})
			go func() {
				if err := chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true)); err != nil {
					s.logger.WithError(err).Warn("Failed to accept page dialog")
				}
			}()
		case *runtime.EventConsoleAPICalled:
			parts := make([]string, 0, len(ev.Args))
			for _, arg := range ev.Args {
				if arg.Description != "" {
					parts = append(parts, arg.Description)
				} else {
					parts = append(parts, string(arg.Value))
				}
			}
			s.logger.DebugWithFields("Page console", map[string]interface{}{
				"type": string(ev.Type),
				"text": strings.Join(parts, " "),
			})
		}
	})
}

// open enables downloads and loads the catalog page, retrying on failure
func (s *Surface) open(ctx context.Context) error {
	sel := s.opts.Selectors
	cfg := s.opts.Retry
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}
	cfg.Logger = s.logger
	cfg.RetryIf = func(error) bool { return ctx.Err() == nil }

	err := retry.Do(ctx, func(ctx context.Context) error {
		tctx, cancel := s.scoped(ctx, s.opts.PageLoadTimeout)
		defer cancel()

		s.logger.InfoWithFields("Navigating to catalog", map[string]interface{}{
			"url": s.opts.URL,
		})
		actions := []chromedp.Action{
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(s.opts.DownloadDir).
				WithEventsEnabled(true),
		}
		if s.opts.Cookie != "" {
			actions = append(actions,
				network.Enable(),
				network.SetExtraHTTPHeaders(network.Headers{"Cookie": s.opts.Cookie}),
			)
		}
		actions = append(actions,
			chromedp.Navigate(s.opts.URL),
			chromedp.WaitVisible(sel.Results, chromedp.ByQuery),
			chromedp.Sleep(pageSettle),
		)
		return chromedp.Run(tctx, actions...)
	}, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.NewCatalogUnavailable("load catalog page", err)
	}

	s.logger.InfoWithFields("Catalog page loaded", map[string]interface{}{
		"download_dir": s.opts.DownloadDir,
	})
	return nil
}

// scoped derives a tab context bounded by timeout that also ends with ctx
func (s *Surface) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var tctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		tctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		tctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

// ListPositions returns one position per result card
func (s *Surface) ListPositions(ctx context.Context) ([]int, error) {
	tctx, cancel := s.scoped(ctx, s.opts.PageLoadTimeout)
	defer cancel()

	var count int
	if err := chromedp.Run(tctx, chromedp.Evaluate(countScript(s.opts.Selectors.Cards), &count)); err != nil {
		return nil, fmt.Errorf("failed to count result cards: %w", err)
	}

	positions := make([]int, count)
	for i := range positions {
		positions[i] = i
	}
	return positions, nil
}

// TitlesByPosition reads each card's title element
func (s *Surface) TitlesByPosition(ctx context.Context) (map[int]string, error) {
	tctx, cancel := s.scoped(ctx, s.opts.PageLoadTimeout)
	defer cancel()

	cards := s.opts.Selectors.TitledCards
	if cards == "" {
		cards = s.opts.Selectors.Cards
	}

	var raw []string
	if err := chromedp.Run(tctx, chromedp.Evaluate(titlesScript(cards, s.opts.Selectors.CardTitle), &raw)); err != nil {
		return nil, fmt.Errorf("failed to read card titles: %w", err)
	}
	return titlesFrom(raw, s.opts.StripPrefixes), nil
}

// TriggerDownload opens the card's menu and clicks its download entry
func (s *Surface) TriggerDownload(ctx context.Context, position int) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	tctx, cancel := s.scoped(ctx, s.opts.TriggerTimeout)
	defer cancel()

	sel := s.opts.Selectors
	button := cardButton(sel.CardButton, position)

	err := chromedp.Run(tctx,
		chromedp.ScrollIntoView(button, chromedp.ByQuery),
		chromedp.Click(button, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.WaitVisible(sel.MenuDownload, chromedp.ByQuery),
		chromedp.Sleep(s.opts.MenuDelay),
		chromedp.Click(sel.MenuDownload, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to click download for card %d: %w", position+1, err)
	}

	s.logger.DebugWithFields("Download triggered", map[string]interface{}{
		"position": position,
		"button":   button,
	})
	return nil
}

// Expand clicks the "more results" button when the page still shows one
func (s *Surface) Expand(ctx context.Context) (catalog.ExpandResult, error) {
	tctx, cancel := s.scoped(ctx, s.opts.PageLoadTimeout)
	defer cancel()

	sel := s.opts.Selectors.MoreResults
	var present bool
	if err := chromedp.Run(tctx, chromedp.Evaluate(existsScript(sel), &present)); err != nil {
		return catalog.ExpandResult{}, fmt.Errorf("failed to look for more results: %w", err)
	}
	if !present {
		return catalog.ExpandResult{MoreAvailable: false}, nil
	}

	if err := chromedp.Run(tctx,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.Sleep(s.opts.ExpandWait),
	); err != nil {
		return catalog.ExpandResult{}, fmt.Errorf("failed to load more results: %w", err)
	}
	return catalog.ExpandResult{MoreAvailable: true}, nil
}

// Close shuts the browser down
func (s *Surface) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.logger.Info("Browser closed")
	return err
}

// cardButton fills the 1-based card index into the button selector pattern
func cardButton(pattern string, position int) string {
	return fmt.Sprintf(pattern, position+1)
}

// titlesFrom maps card titles to positions, dropping cards without one
func titlesFrom(raw []string, stripPrefixes []string) map[int]string {
	titles := make(map[int]string, len(raw))
	for i, t := range raw {
		clean := catalog.CleanTitle(t, stripPrefixes)
		if clean == "" {
			continue
		}
		titles[i] = clean
	}
	return titles
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func countScript(cards string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(cards))
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

func titlesScript(cards, title string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(card => {
  const el = card.querySelector(%s);
  return el ? el.textContent : "";
})`, jsString(cards), jsString(title))
}
