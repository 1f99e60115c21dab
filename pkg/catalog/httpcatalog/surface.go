// Package httpcatalog implements catalog.Surface over a paged JSON listing.
// Triggering a download queues the document on a background worker pool,
// which streams it into the download directory through a temporary name.
package httpcatalog

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"docharvest/internal/downloader"
	"docharvest/pkg/catalog"
	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
)

// TempSuffix is appended to documents while they are being written
const TempSuffix = ".part"

// Item is one catalog entry
type Item struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Page is the JSON body of one listing page
type Page struct {
	Items   []Item `json:"items"`
	HasMore bool   `json:"has_more"`
}

// Options configures a Surface
type Options struct {
	URL           string
	PageParam     string
	FirstPage     int
	StripPrefixes []string
	Workers       int
}

// OptionsFromConfig maps the catalog and download sections onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:           cfg.Catalog.URL,
		PageParam:     cfg.Catalog.PageParam,
		FirstPage:     cfg.Catalog.FirstPage,
		StripPrefixes: cfg.Catalog.TitleStripPrefixes,
		Workers:       cfg.Download.Workers,
	}
}

// existenceChecker is implemented by stores that can tell whether a name is
// already on disk
type existenceChecker interface {
	Exists(name string) bool
}

// Surface is a catalog.Surface backed by a JSON listing API
type Surface struct {
	client *Client
	opts   Options
	pool   *downloader.WorkerPool
	store  downloader.Store
	logger logger.Logger

	mu       sync.Mutex
	items    []Item
	nextPage int
	hasMore  bool
	loaded   bool
	names    map[string]struct{}

	drained chan struct{}
}

var _ catalog.Surface = (*Surface)(nil)

// New creates a surface and starts its download workers. Close releases them.
func New(client *Client, store downloader.Store, opts Options, log logger.Logger) *Surface {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PageParam == "" {
		opts.PageParam = "page"
	}

	s := &Surface{
		client:   client,
		opts:     opts,
		pool:     downloader.NewWorkerPool(opts.Workers, client, store, TempSuffix, log),
		store:    store,
		logger:   log,
		names:    make(map[string]struct{}),
		nextPage: opts.FirstPage,
		drained:  make(chan struct{}),
	}
	s.pool.Start()
	go s.drainResults()
	return s
}

// drainResults logs producer failures. The settle detector is what decides
// whether an entry completed, so failures only surface as timeouts there.
func (s *Surface) drainResults() {
	defer close(s.drained)
	for result := range s.pool.Results() {
		if result.Error != nil {
			s.logger.WarnWithFields("Background download failed", map[string]interface{}{
				"position": result.Job.Position,
				"url":      result.Job.URL,
				"error":    result.Error.Error(),
			})
		}
	}
}

// ListPositions returns the positions of every item loaded so far
func (s *Surface) ListPositions(ctx context.Context) ([]int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	positions := make([]int, len(s.items))
	for i := range s.items {
		positions[i] = i
	}
	return positions, nil
}

// TitlesByPosition returns the cleaned title of every loaded item
func (s *Surface) TitlesByPosition(ctx context.Context) (map[int]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make(map[int]string, len(s.items))
	for i, item := range s.items {
		if item.Title == "" {
			continue
		}
		titles[i] = catalog.CleanTitle(item.Title, s.opts.StripPrefixes)
	}
	return titles, nil
}

// TriggerDownload queues the document at position and returns immediately
func (s *Surface) TriggerDownload(ctx context.Context, position int) error {
	s.mu.Lock()
	if position < 0 || position >= len(s.items) {
		n := len(s.items)
		s.mu.Unlock()
		return fmt.Errorf("position %d out of range (%d entries)", position, n)
	}
	item := s.items[position]
	s.mu.Unlock()

	if item.URL == "" {
		return fmt.Errorf("entry at position %d has no document URL", position)
	}
	target, err := s.resolve(item.URL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	name := s.uniqueName(documentName(target, position))
	s.mu.Unlock()

	return s.pool.Submit(ctx, downloader.Job{
		Position: position,
		URL:      target,
		Name:     name,
	})
}

// Expand loads the next listing page when the previous one announced more
func (s *Surface) Expand(ctx context.Context) (catalog.ExpandResult, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return catalog.ExpandResult{}, err
	}

	s.mu.Lock()
	more := s.hasMore
	s.mu.Unlock()
	if !more {
		return catalog.ExpandResult{MoreAvailable: false}, nil
	}

	if err := s.fetchPage(ctx); err != nil {
		return catalog.ExpandResult{}, err
	}
	return catalog.ExpandResult{MoreAvailable: true}, nil
}

// Close stops the download workers, abandoning anything still queued
func (s *Surface) Close() error {
	s.pool.Cancel()
	s.pool.Stop()
	<-s.drained
	return nil
}

func (s *Surface) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.fetchPage(ctx)
}

func (s *Surface) fetchPage(ctx context.Context) error {
	s.mu.Lock()
	pageNum := s.nextPage
	s.mu.Unlock()

	pageURL, err := s.pageURL(pageNum)
	if err != nil {
		return err
	}

	var page Page
	if err := s.client.GetJSON(ctx, pageURL, &page); err != nil {
		return err
	}

	s.mu.Lock()
	s.items = append(s.items, page.Items...)
	s.hasMore = page.HasMore
	s.nextPage = pageNum + 1
	s.loaded = true
	total := len(s.items)
	s.mu.Unlock()

	s.logger.DebugWithFields("Loaded catalog page", map[string]interface{}{
		"page":     pageNum,
		"items":    len(page.Items),
		"total":    total,
		"has_more": page.HasMore,
	})
	return nil
}

func (s *Surface) pageURL(page int) (string, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", errs.NewCatalogUnavailable("parse catalog URL", err)
	}
	q := u.Query()
	q.Set(s.opts.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resolve makes a document URL absolute against the catalog URL
func (s *Surface) resolve(ref string) (string, error) {
	base, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid document URL %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

// documentName is the file name the producer writes, the equivalent of the
// name a browser picks from the URL
func documentName(rawURL string, position int) string {
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" && name != "" {
			return name
		}
	}
	return fmt.Sprintf("document_%d", position+1)
}

// uniqueName returns name, or "stem (n).ext" with the lowest free n when an
// earlier trigger already used name or it is present on disk. Callers hold
// s.mu.
func (s *Surface) uniqueName(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; s.taken(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	s.names[candidate] = struct{}{}
	return candidate
}

func (s *Surface) taken(name string) bool {
	if _, ok := s.names[name]; ok {
		return true
	}
	if ec, ok := s.store.(existenceChecker); ok {
		return ec.Exists(name) || ec.Exists(name+TempSuffix)
	}
	return false
}
