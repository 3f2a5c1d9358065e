// Package render loads product pages and answers selector queries against them.
package render

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Renderer loads a URL into a queryable page.
type Renderer interface {
	// Open loads url. When it returns without error the page content is
	// settled and the caller owns the page until Close.
	Open(ctx context.Context, url string) (Page, error)
}

// Page is a loaded document. Close must be called on every path.
type Page interface {
	// Text returns the trimmed text of the first element matching selector,
	// or "" when nothing matches.
	Text(selector string) string
	Close() error
}

// documentPage is a Page backed by a parsed goquery document.
type documentPage struct {
	mu      sync.Mutex
	doc     *goquery.Document
	onClose func()
}

func newDocumentPage(r io.Reader, onClose func()) (*documentPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &documentPage{doc: doc, onClose: onClose}, nil
}

func (p *documentPage) Text(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return ""
	}
	// goquery treats an invalid selector as matching nothing.
	return strings.TrimSpace(p.doc.Find(selector).First().Text())
}

func (p *documentPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil
	}
	p.doc = nil
	if p.onClose != nil {
		p.onClose()
	}
	return nil
}

// StaticRenderer serves fixed HTML per URL. It backs offline probes and tests.
type StaticRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	fallback string
	errs     map[string][]error
	open     int
	opened   int
}

// NewStaticRenderer creates a renderer serving the given url -> html pages.
func NewStaticRenderer(pages map[string]string) *StaticRenderer {
	sr := &StaticRenderer{
		pages: make(map[string]string, len(pages)),
		errs:  make(map[string][]error),
	}
	for k, v := range pages {
		sr.pages[k] = v
	}
	return sr
}

// SetFallback sets the HTML served for URLs without a registered page.
func (s *StaticRenderer) SetFallback(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = html
}

// SetPage replaces the HTML served for url.
func (s *StaticRenderer) SetPage(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
}

// FailNext queues errors returned by the next Open calls for url, in order.
func (s *StaticRenderer) FailNext(url string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[url] = append(s.errs[url], errs...)
}

// Open implements Renderer.
func (s *StaticRenderer) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if queued := s.errs[url]; len(queued) > 0 {
		err := queued[0]
		s.errs[url] = queued[1:]
		s.mu.Unlock()
		return nil, err
	}
	html, ok := s.pages[url]
	if !ok {
		html = s.fallback
	}
	s.open++
	s.opened++
	s.mu.Unlock()

	page, err := newDocumentPage(bytes.NewReader([]byte(html)), s.release)
	if err != nil {
		s.release()
		return nil, err
	}
	return page, nil
}

func (s *StaticRenderer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open--
}

// OpenPages returns the number of pages opened and not yet closed.
func (s *StaticRenderer) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opened returns the total number of successful Open calls.
func (s *StaticRenderer) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}
