package screen

import (
	"context"
	"sync"

	"github.com/UkralStul/nexus-sync/internal/repository"
)

// Feed - лента постов от новых к старым, видимая часть растет страницами.
type Feed struct {
	loop     *loop[repository.FeedItem]
	onUpdate func([]repository.FeedItem)

	mu    sync.Mutex
	pages int
}

// NewFeed создает ленту. onUpdate получает видимую часть после каждого изменения.
func NewFeed(repo *repository.Repository, opts Options, onUpdate func(visible []repository.FeedItem)) *Feed {
	f := &Feed{onUpdate: onUpdate, pages: 1}
	f.loop = newLoop("feed", repo.FeedWithAuthors, opts, func([]repository.FeedItem) { f.notify() })
	return f
}

func (f *Feed) Start(ctx context.Context) { f.loop.start(ctx) }

func (f *Feed) Stop() { f.loop.stop() }

// Refresh сбрасывает ленту на первую страницу и перечитывает ее.
func (f *Feed) Refresh() error {
	f.mu.Lock()
	f.pages = 1
	f.mu.Unlock()
	return f.loop.refresh()
}

// Visible возвращает загруженные страницы.
func (f *Feed) Visible() []repository.FeedItem {
	f.mu.Lock()
	pages := f.pages
	f.mu.Unlock()
	return repository.Page(f.loop.poller.Snapshot(), pages, repository.FeedPageSize)
}

// HasMore сообщает, есть ли посты за пределами видимой части.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	pages := f.pages
	f.mu.Unlock()
	return pages*repository.FeedPageSize < len(f.loop.poller.Snapshot())
}

// LoadMore открывает следующую страницу. false - если показано все.
func (f *Feed) LoadMore() bool {
	if !f.HasMore() {
		return false
	}
	f.mu.Lock()
	f.pages++
	f.mu.Unlock()
	f.notify()
	return true
}

func (f *Feed) notify() {
	if f.onUpdate != nil {
		f.onUpdate(f.Visible())
	}
}
