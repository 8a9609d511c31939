package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/repository"
	"github.com/UkralStul/nexus-sync/internal/screen"
)

// === Account ===

func cmdSignUp(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	username := fs.String("username", "", "Public username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	uid, err := a.auth.SignUp(ctx, *email, *password, *username)
	if err != nil {
		return err
	}
	fmt.Println("signed up as", uid)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	uid, err := a.auth.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Println("logged in as", uid)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	bio := fs.String("bio", "", "Replace profile bio")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, u, err := a.me(ctx)
	if err != nil {
		return err
	}
	if *bio != "" {
		if err := a.repo.UpdateBio(ctx, s.UserID, *bio); err != nil {
			return err
		}
		u.Bio = strings.TrimSpace(*bio)
	}
	fmt.Printf("%s (%s)\n", u.Username, s.UserID)
	if u.Email != "" {
		fmt.Println("email:", u.Email)
	}
	if u.Bio != "" {
		fmt.Println("bio:  ", u.Bio)
	}
	if !s.ExpiresAt.IsZero() {
		fmt.Println("token expires:", s.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func cmdAvatar(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: avatar FILE")
	}
	s, _, err := a.me(ctx)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	ref, err := a.repo.UpdateAvatar(ctx, s.UserID, data)
	if err != nil {
		return err
	}
	fmt.Println("avatar updated:", describeImage(ref))
	return nil
}

func cmdUsers(ctx context.Context, a *app, args []string) error {
	users, err := a.repo.SearchUsers(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%-20s %s\n", u.Username, u.ID)
	}
	return nil
}

// === Feed ===

func cmdFeed(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	page := fs.Int("page", 1, "Number of pages to show")
	watch := fs.Bool("watch", false, "Keep polling and reprint on change")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*watch {
		items, err := a.repo.FeedWithAuthors(ctx)
		if err != nil {
			return err
		}
		printFeed(repository.Page(items, *page, repository.FeedPageSize))
		return nil
	}

	feed := screen.NewFeed(a.repo, a.screenOptions(), func(visible []repository.FeedItem) {
		fmt.Println("---", time.Now().Format(time.TimeOnly))
		printFeed(visible)
	})
	for i := 1; i < *page; i++ {
		feed.LoadMore()
	}
	feed.Start(ctx)
	<-ctx.Done()
	feed.Stop()
	return ctx.Err()
}

func printFeed(items []repository.FeedItem) {
	if len(items) == 0 {
		fmt.Println("no posts yet")
		return
	}
	for _, it := range items {
		p := it.Post
		author := p.Username
		if it.Author != nil {
			author = it.Author.Username
		}
		fmt.Printf("[%s] %s  %s  likes:%d\n", p.ID, author, formatMillis(p.Timestamp), p.Likes)
		if p.Description != "" {
			fmt.Println("   ", p.Description)
		}
		if !p.ImageURL.IsZero() {
			fmt.Println("    image:", describeImage(p.ImageURL))
		}
		for _, c := range p.SortedComments() {
			fmt.Println("    >", c)
		}
	}
}

func cmdPost(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	imagePath := fs.String("image", "", "Attach an image file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var image []byte
	if *imagePath != "" {
		var err error
		if image, err = os.ReadFile(*imagePath); err != nil {
			return err
		}
	}
	post, err := a.repo.CreatePost(ctx, a.sessions.Current(), strings.Join(fs.Args(), " "), image)
	if err != nil {
		return err
	}
	fmt.Println("posted", post.ID)
	return nil
}

func cmdLike(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: like POST_ID")
	}
	likes, err := a.repo.LikePost(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println("likes:", likes)
	return nil
}

func cmdComment(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: comment POST_ID TEXT...")
	}
	_, u, err := a.me(ctx)
	if err != nil {
		return err
	}
	id, err := a.repo.CommentPost(ctx, args[0], u.Username, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Println("commented", id)
	return nil
}

// === Stories ===

func cmdStories(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stories", flag.ContinueOnError)
	add := fs.String("add", "", "Publish an image as a story")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *add != "" {
		data, err := os.ReadFile(*add)
		if err != nil {
			return err
		}
		st, err := a.repo.CreateStory(ctx, a.sessions.Current(), data)
		if err != nil {
			return err
		}
		fmt.Println("story published", st.ID)
		return nil
	}

	stories, err := a.repo.GetStories(ctx)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Println("no stories in the last 24h")
	}
	for _, st := range stories {
		fmt.Printf("[%s] %s  %s  %s\n", st.ID, st.Username, formatMillis(st.Timestamp), describeImage(&st.ImageURL))
	}
	return nil
}

// === Chats ===

func cmdChats(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("chats", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "Keep polling and reprint on change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, _, err := a.me(ctx)
	if err != nil {
		return err
	}

	if !*watch {
		chats, err := a.repo.ChatsFor(ctx, s.UserID)
		if err != nil {
			return err
		}
		printChats(s.UserID, chats)
		return nil
	}

	list := screen.NewChatList(a.repo, s.UserID, a.screenOptions(), func(chats []domain.ChatPreview) {
		fmt.Println("---", time.Now().Format(time.TimeOnly))
		printChats(s.UserID, chats)
	})
	list.Start(ctx)
	<-ctx.Done()
	list.Stop()
	return ctx.Err()
}

func printChats(me string, chats []domain.ChatPreview) {
	if len(chats) == 0 {
		fmt.Println("no chats yet")
		return
	}
	for _, c := range chats {
		other, _ := domain.OtherParticipant(c.ChatID, me)
		fmt.Printf("%-24s %s: %s\n", other, c.LastMessage.SenderName, c.LastMessage.Text)
	}
}

func cmdSend(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: send USER TEXT...")
	}
	s, u, err := a.me(ctx)
	if err != nil {
		return err
	}
	other, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	id, err := a.repo.SendText(ctx, domain.ChatID(s.UserID, other.ID), s.UserID, u.Username, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Println("sent", id)
	return nil
}

// cmdChat печатает новые сообщения по мере опроса и отправляет строки из stdin.
func cmdChat(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chat USER")
	}
	s, u, err := a.me(ctx)
	if err != nil {
		return err
	}
	other, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	chatID := domain.ChatID(s.UserID, other.ID)

	printed := make(map[string]bool)
	tr := screen.NewChatTranscript(a.repo, chatID, s, u.Username, a.screenOptions(), func(msgs []domain.Message) {
		for _, m := range msgs {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			printMessage(s.UserID, m)
		}
	})
	fmt.Printf("chat with %s (%s). Type a message and press enter, Ctrl-C to leave.\n", other.Username, chatID)
	tr.Start(ctx)
	defer tr.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := tr.Send(ctx, line); err != nil {
				fmt.Fprintln(os.Stderr, describe(err))
				continue
			}
			tr.MarkRead(ctx)
		}
	}
}

func printMessage(me string, m domain.Message) {
	who := m.SenderName
	if m.SenderID == me {
		who = "me"
	}
	text := m.Text
	if m.IsEdited {
		text += " (edited)"
	}
	if m.Reaction != nil {
		text += " [" + *m.Reaction + "]"
	}
	if !m.ImageURL.IsZero() {
		text += " " + describeImage(m.ImageURL)
	}
	fmt.Printf("%s %s: %s\n", formatMillis(m.Timestamp), who, text)
}

// resolveUser принимает id пользователя или точное имя.
func (a *app) resolveUser(ctx context.Context, idOrName string) (*domain.User, error) {
	u, err := a.repo.GetUser(ctx, idOrName)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	users, err := a.repo.SearchUsers(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Username, idOrName) {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", idOrName, domain.ErrNotFound)
}

// === Helpers ===

func (a *app) screenOptions() screen.Options {
	return screen.Options{
		Interval: a.cfg.Poll.Interval,
		Sink:     a.sink,
		Log:      a.log.Named("screen"),
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func describeImage(ref *domain.ImageRef) string {
	switch {
	case ref.IsZero():
		return ""
	case ref.Kind == domain.ImageInline:
		return fmt.Sprintf("<inline %s, %d bytes>", ref.MIME, len(ref.Data))
	default:
		return ref.URL
	}
}
