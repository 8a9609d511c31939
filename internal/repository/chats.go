package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
)

// EmptyChatText - текст превью для диалога без сообщений.
const EmptyChatText = "Sin mensajes"

var ErrEmptyMessage = errors.New("message text cannot be empty")

func messagesPath(chatID string) string {
	return remote.Path("chats", chatID, "messages")
}

// === Chat Methods ===

// GetMessages возвращает сообщения диалога от старых к новым.
func (r *Repository) GetMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	msgs, err := remote.GetCollection[domain.Message](ctx, r.store, messagesPath(chatID))
	if err != nil {
		return nil, err
	}
	return sortMessages(msgs), nil
}

// SendMessage добавляет сообщение; ключ выдает хранилище. Возвращает этот ключ.
func (r *Repository) SendMessage(ctx context.Context, chatID string, msg domain.Message) (string, error) {
	if strings.TrimSpace(msg.Text) == "" && msg.ImageURL.IsZero() {
		return "", ErrEmptyMessage
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = r.now().UnixMilli()
	}
	if msg.Status == "" {
		msg.Status = domain.StatusSent
	}
	// Ключ станет ID при чтении
	msg.ID = ""
	return r.store.PostAppend(ctx, messagesPath(chatID), msg)
}

// SendText - сокращение для текстового сообщения.
func (r *Repository) SendText(ctx context.Context, chatID, senderID, senderName, text string) (string, error) {
	return r.SendMessage(ctx, chatID, domain.Message{SenderID: senderID, SenderName: senderName, Text: text})
}

type chatNode struct {
	Messages map[string]domain.Message `json:"messages"`
}

// GetAllChats возвращает последнее сообщение каждого диалога, свежие диалоги первыми.
func (r *Repository) GetAllChats(ctx context.Context) ([]domain.ChatPreview, error) {
	chats, err := remote.GetCollection[chatNode](ctx, r.store, "chats")
	if err != nil {
		return nil, err
	}

	previews := make(map[string]domain.ChatPreview, len(chats))
	for id, node := range chats {
		p := domain.ChatPreview{ChatID: id, LastMessage: domain.Message{Text: EmptyChatText}}
		if msgs := sortMessages(node.Messages); len(msgs) > 0 {
			p.LastMessage = msgs[len(msgs)-1]
		}
		previews[id] = p
	}
	return entries(previews,
		func(p *domain.ChatPreview, id string) { p.ChatID = id },
		func(a, b *domain.ChatPreview) bool { return a.LastMessage.Timestamp > b.LastMessage.Timestamp },
	), nil
}

// ChatsFor оставляет только диалоги, в которых участвует userID.
func (r *Repository) ChatsFor(ctx context.Context, userID string) ([]domain.ChatPreview, error) {
	all, err := r.GetAllChats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatPreview, 0, len(all))
	for _, p := range all {
		if _, ok := domain.OtherParticipant(p.ChatID, userID); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// MarkRead отмечает сообщение прочитанным пользователем userID.
func (r *Repository) MarkRead(ctx context.Context, chatID, msgID, userID string) error {
	return r.store.PatchFields(ctx, remote.Path("chats", chatID, "messages", msgID), map[string]any{
		"readBy/" + userID: true,
		"status":           domain.StatusRead,
	})
}

func (r *Repository) EditMessage(ctx context.Context, chatID, msgID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return r.store.PatchFields(ctx, remote.Path("chats", chatID, "messages", msgID), map[string]any{
		"text":     text,
		"isEdited": true,
	})
}

// ReactToMessage ставит реакцию. Пустая строка снимает ее.
func (r *Repository) ReactToMessage(ctx context.Context, chatID, msgID, reaction string) error {
	var value any
	if reaction != "" {
		value = reaction
	}
	return r.store.PatchFields(ctx, remote.Path("chats", chatID, "messages", msgID), map[string]any{
		"reaction": value,
	})
}

func sortMessages(msgs map[string]domain.Message) []domain.Message {
	return entries(msgs,
		func(m *domain.Message, id string) { m.ID = id },
		func(a, b *domain.Message) bool { return a.Timestamp < b.Timestamp },
	)
}
