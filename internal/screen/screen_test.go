package screen

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/repository"
	"github.com/UkralStul/nexus-sync/internal/server"
	"github.com/UkralStul/nexus-sync/internal/session"
	"github.com/UkralStul/nexus-sync/internal/storage/inmemory"
	"github.com/UkralStul/nexus-sync/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func newTestStore(t *testing.T) (*repository.Repository, *remote.Client) {
	srv := server.New(inmemory.New(), server.Config{}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	c, err := remote.New(ts.URL)
	require.NoError(t, err)
	return repository.New(c, nil, nil), c
}

func seedPosts(t *testing.T, c *remote.Client, n int) {
	for i := 1; i <= n; i++ {
		p := domain.Post{UserID: "u1", Username: "ana", Description: fmt.Sprintf("post %d", i), Timestamp: int64(i)}
		require.NoError(t, c.PutFull(context.Background(), remote.Path("posts", fmt.Sprintf("post_%d", i)), p))
	}
}

func TestFeed_PagesGrow(t *testing.T) {
	repo, c := newTestStore(t)
	seedPosts(t, c, 10)

	var updates atomic.Int32
	feed := NewFeed(repo, Options{Ticks: make(chan time.Time)}, func([]repository.FeedItem) { updates.Add(1) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.Start(ctx)
	defer feed.Stop()

	require.Eventually(t, func() bool { return len(feed.Visible()) == repository.FeedPageSize }, waitFor, 5*time.Millisecond)
	visible := feed.Visible()
	assert.Equal(t, "post_10", visible[0].Post.ID, "newest first")
	assert.True(t, feed.HasMore())

	assert.True(t, feed.LoadMore())
	assert.Len(t, feed.Visible(), 10)
	assert.False(t, feed.HasMore())
	assert.False(t, feed.LoadMore())
	assert.Eventually(t, func() bool { return updates.Load() == 2 }, waitFor, 5*time.Millisecond)

	require.NoError(t, feed.Refresh())
	require.Eventually(t, func() bool { return len(feed.Visible()) == repository.FeedPageSize }, waitFor, 5*time.Millisecond)
}

func TestFeed_ErrorsCollapseToEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()
	c, err := remote.New(ts.URL)
	require.NoError(t, err)

	rec := telemetry.NewRecorder(8)
	feed := NewFeed(repository.New(c, nil, nil), Options{Ticks: make(chan time.Time), Sink: rec}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.Start(ctx)

	var events []telemetry.Event
	require.Eventually(t, func() bool {
		events = append(events, rec.Events()...)
		return len(events) > 0
	}, waitFor, 5*time.Millisecond)
	feed.Stop()

	assert.Empty(t, feed.Visible())
	assert.Equal(t, domain.KindNetwork, events[0].Kind)
	assert.Equal(t, "feed", events[0].Source)
}

func TestChatTranscript_ReconcilesOnTicks(t *testing.T) {
	repo, _ := newTestStore(t)
	chatID := domain.ChatID("u2", "u1")
	ticks := make(chan time.Time)

	var lastIndex atomic.Int64
	lastIndex.Store(-1)
	tr := NewChatTranscript(repo, chatID, &session.Session{UserID: "u1"}, "ana", Options{
		Ticks:         ticks,
		OnScrollToEnd: func(last int) { lastIndex.Store(int64(last)) },
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)
	defer tr.Stop()

	// Отправка тика блокируется до приема, поэтому второй тик гарантирует, что первый отработал
	tick := func() {
		ticks <- time.Now()
		ticks <- time.Now()
	}

	tick()
	assert.Empty(t, tr.Messages())
	assert.Zero(t, tr.ScrollCount())

	_, err := tr.Send(ctx, "hola")
	require.NoError(t, err)
	assert.Empty(t, tr.Messages(), "the sent message shows up on the next tick")

	tick()
	require.Len(t, tr.Messages(), 1)
	assert.Equal(t, "hola", tr.Messages()[0].Text)
	assert.Equal(t, int64(1), tr.ScrollCount())
	assert.Equal(t, int64(0), lastIndex.Load())

	_, err = repo.SendText(ctx, chatID, "u2", "bea", "que tal")
	require.NoError(t, err)
	tick()
	require.Len(t, tr.Messages(), 2)
	assert.Equal(t, int64(2), tr.ScrollCount())
	assert.Equal(t, int64(1), lastIndex.Load())

	tick()
	assert.Equal(t, int64(2), tr.ScrollCount(), "no change, no scroll")

	assert.Equal(t, 1, tr.MarkRead(ctx))
	tick()
	msgs := tr.Messages()
	assert.True(t, msgs[1].ReadBy["u1"])
	assert.Equal(t, domain.StatusRead, msgs[1].Status)
}

func TestChatTranscript_SendValidation(t *testing.T) {
	repo, _ := newTestStore(t)

	anon := NewChatTranscript(repo, "a_b", nil, "", Options{}, nil)
	_, err := anon.Send(context.Background(), "hola")
	assert.ErrorIs(t, err, repository.ErrNotLoggedIn)

	rec := telemetry.NewRecorder(4)
	tr := NewChatTranscript(repo, "a_b", &session.Session{UserID: "a"}, "ana", Options{Sink: rec}, nil)
	_, err = tr.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, repository.ErrEmptyMessage)
	assert.Empty(t, rec.Events(), "validation errors are not store failures")
}

func TestChatTranscript_StopEndsLoop(t *testing.T) {
	repo, _ := newTestStore(t)
	tr := NewChatTranscript(repo, "a_b", &session.Session{UserID: "a"}, "ana", Options{Interval: time.Millisecond}, nil)

	assert.ErrorIs(t, tr.Refresh(), ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)
	tr.Start(ctx)
	tr.Stop()
	tr.Stop()
	assert.ErrorIs(t, tr.Refresh(), ErrNotStarted)
}

func TestChatList_OnlyMyChats(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()
	_, err := repo.SendText(ctx, domain.ChatID("u1", "u2"), "u2", "bea", "hola ana")
	require.NoError(t, err)
	_, err = repo.SendText(ctx, domain.ChatID("u2", "u3"), "u2", "bea", "hola caro")
	require.NoError(t, err)

	list := NewChatList(repo, "u1", Options{Ticks: make(chan time.Time)}, nil)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	list.Start(runCtx)
	defer list.Stop()

	require.Eventually(t, func() bool { return len(list.Chats()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "u1_u2", list.Chats()[0].ChatID)
	assert.Equal(t, "hola ana", list.Chats()[0].LastMessage.Text)
}

func TestChatTranscript_RestartsAfterScopeEnds(t *testing.T) {
	var reads atomic.Int64
	router := server.New(inmemory.New(), server.Config{}, nil).Router()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	defer ts.Close()
	c, err := remote.New(ts.URL)
	require.NoError(t, err)

	tr := NewChatTranscript(repository.New(c, nil, nil), "a_b", &session.Session{UserID: "a"}, "ana", Options{Interval: time.Millisecond}, nil)

	first, cancelFirst := context.WithCancel(context.Background())
	tr.Start(first)
	require.Eventually(t, func() bool { return reads.Load() > 2 }, waitFor, time.Millisecond)
	cancelFirst()

	// Экран закрыт отменой контекста, а не Stop: повторный вход должен возобновить опрос
	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	require.Eventually(t, func() bool {
		return tr.Refresh() == ErrNotStarted
	}, waitFor, time.Millisecond, "loop state is cleared once its context ends")

	before := reads.Load()
	tr.Start(second)
	defer tr.Stop()
	assert.Eventually(t, func() bool { return reads.Load() > before+2 }, waitFor, time.Millisecond)
	assert.NoError(t, tr.Refresh())
}
