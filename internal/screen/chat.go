package screen

import (
	"context"
	"sync/atomic"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/repository"
	"github.com/UkralStul/nexus-sync/internal/session"
	"github.com/UkralStul/nexus-sync/internal/telemetry"
)

// === Chat Transcript ===

// ChatTranscript - переписка одного диалога, от старых сообщений к новым.
type ChatTranscript struct {
	repo   *repository.Repository
	chatID string
	me     *session.Session
	myName string
	sink   telemetry.Sink

	loop    *loop[domain.Message]
	scrolls atomic.Int64
}

// NewChatTranscript открывает диалог chatID от имени me.
func NewChatTranscript(repo *repository.Repository, chatID string, me *session.Session, myName string, opts Options, onUpdate func([]domain.Message)) *ChatTranscript {
	opts = opts.withDefaults()
	t := &ChatTranscript{repo: repo, chatID: chatID, me: me, myName: myName, sink: opts.Sink}

	scroll := opts.OnScrollToEnd
	opts.OnScrollToEnd = func(last int) {
		t.scrolls.Add(1)
		if scroll != nil {
			scroll(last)
		}
	}
	fetch := func(ctx context.Context) ([]domain.Message, error) {
		return repo.GetMessages(ctx, chatID)
	}
	t.loop = newLoop("chat", fetch, opts, onUpdate)
	return t
}

func (t *ChatTranscript) ChatID() string { return t.chatID }

func (t *ChatTranscript) Start(ctx context.Context) { t.loop.start(ctx) }

func (t *ChatTranscript) Stop() { t.loop.stop() }

func (t *ChatTranscript) Refresh() error { return t.loop.refresh() }

// Messages возвращает показанные сообщения.
func (t *ChatTranscript) Messages() []domain.Message { return t.loop.poller.Snapshot() }

// ScrollCount - сколько раз список прокручивался к концу.
func (t *ChatTranscript) ScrollCount() int64 { return t.scrolls.Load() }

// Send отправляет текст. Сообщение появится в списке на следующем тике опроса.
func (t *ChatTranscript) Send(ctx context.Context, text string) (string, error) {
	if t.me == nil || t.me.UserID == "" {
		return "", repository.ErrNotLoggedIn
	}
	id, err := t.repo.SendText(ctx, t.chatID, t.me.UserID, t.myName, text)
	if err != nil {
		if domain.KindOf(err) != domain.KindUnknown {
			t.sink.Report(ctx, telemetry.FromError("chat", err))
		}
		return "", err
	}
	return id, nil
}

// MarkRead отмечает прочитанными чужие сообщения из показанного списка.
func (t *ChatTranscript) MarkRead(ctx context.Context) int {
	if t.me == nil || t.me.UserID == "" {
		return 0
	}
	marked := 0
	for _, m := range t.Messages() {
		if m.SenderID == t.me.UserID || m.ReadBy[t.me.UserID] {
			continue
		}
		if err := t.repo.MarkRead(ctx, t.chatID, m.ID, t.me.UserID); err != nil {
			t.sink.Report(ctx, telemetry.FromError("chat", err))
			continue
		}
		marked++
	}
	return marked
}

// === Chat List ===

// ChatList - превью диалогов пользователя, свежие первыми.
type ChatList struct {
	loop *loop[domain.ChatPreview]
}

// NewChatList показывает диалоги userID. Пустой userID - все диалоги.
func NewChatList(repo *repository.Repository, userID string, opts Options, onUpdate func([]domain.ChatPreview)) *ChatList {
	fetch := func(ctx context.Context) ([]domain.ChatPreview, error) {
		if userID == "" {
			return repo.GetAllChats(ctx)
		}
		return repo.ChatsFor(ctx, userID)
	}
	return &ChatList{loop: newLoop("chats", fetch, opts, onUpdate)}
}

func (l *ChatList) Start(ctx context.Context) { l.loop.start(ctx) }

func (l *ChatList) Stop() { l.loop.stop() }

func (l *ChatList) Refresh() error { return l.loop.refresh() }

func (l *ChatList) Chats() []domain.ChatPreview { return l.loop.poller.Snapshot() }
