package domain

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// User представляет профиль пользователя в хранилище (/users/{id}).
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	ProfileImageURL *ImageRef `json:"profileImageUrl,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	CreatedAt       int64     `json:"createdAt,omitempty"`
}

// Post представляет публикацию в ленте (/posts/{id}).
// Комментарии хранятся как map[commentID]"автор: текст", отдельной сущности нет.
type Post struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	Username      string            `json:"username"`
	UserAvatarURL *ImageRef         `json:"userAvatarUrl,omitempty"`
	ImageURL      *ImageRef         `json:"imageUrl,omitempty"`
	Description   string            `json:"description"`
	Timestamp     int64             `json:"timestamp"`
	Likes         int               `json:"likes"`
	Comments      map[string]string `json:"comments,omitempty"`
}

// MessageStatus - флаг доставки сообщения.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message представляет сообщение чата (/chats/{chatId}/messages/{id}).
type Message struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName,omitempty"`
	Text        string          `json:"text"`
	Timestamp   int64           `json:"timestamp"`
	Status      MessageStatus   `json:"status,omitempty"`
	IsEdited    bool            `json:"isEdited,omitempty"`
	ReplyToText *string         `json:"replyToText,omitempty"`
	Reaction    *string         `json:"reaction,omitempty"`
	ImageURL    *ImageRef       `json:"imageUrl,omitempty"`
	ReadBy      map[string]bool `json:"readBy,omitempty"`
}

// ChatPreview - последнее сообщение чата для списка диалогов.
type ChatPreview struct {
	ChatID      string  `json:"chatId"`
	LastMessage Message `json:"lastMessage"`
}

// Story представляет историю пользователя (/stories/{id}). Картинка обязательна.
type Story struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	UserAvatarURL *ImageRef `json:"userAvatarUrl,omitempty"`
	ImageURL      ImageRef  `json:"imageUrl"`
	Timestamp     int64     `json:"timestamp"`
}

// ErrInvalidUserID - id пользователя пустой или содержит разделитель диалога.
var ErrInvalidUserID = errors.New("user id must be non-empty and must not contain '_'")

// ValidateUserID проверяет, что id можно однозначно использовать в ChatID.
func ValidateUserID(id string) error {
	if id == "" || strings.Contains(id, "_") {
		return ErrInvalidUserID
	}
	return nil
}

// ChatID вычисляет идентификатор диалога из пары участников.
// Результат не зависит от порядка аргументов. Id участников не должны содержать "_".
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// OtherParticipant возвращает собеседника в диалоге chatID для пользователя me.
// Диалог должен состоять ровно из двух id, один из которых - me.
func OtherParticipant(chatID, me string) (string, bool) {
	a, b, ok := strings.Cut(chatID, "_")
	if !ok || a == "" || b == "" || strings.Contains(b, "_") {
		return "", false
	}
	switch me {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// === Comments ===

// CommentID генерирует синтетический ключ комментария.
func CommentID(millis int64) string {
	return "c_" + strconv.FormatInt(millis, 10)
}

// FormatComment кодирует автора внутри значения комментария.
func FormatComment(author, text string) string {
	return author + ": " + text
}

// SplitComment разбирает значение "автор: текст". Без разделителя автор пустой.
func SplitComment(value string) (author, text string) {
	author, text, ok := strings.Cut(value, ": ")
	if !ok {
		return "", value
	}
	return author, text
}

// SortedComments возвращает комментарии поста в порядке ключей.
// Ключи c_<millis> одинаковой длины, поэтому порядок совпадает с хронологическим.
func (p *Post) SortedComments() []string {
	keys := make([]string, 0, len(p.Comments))
	for k := range p.Comments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = p.Comments[k]
	}
	return out
}
