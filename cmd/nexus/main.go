package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/UkralStul/nexus-sync/internal/config"
	"github.com/UkralStul/nexus-sync/internal/domain"
)

// command - подкоманда CLI. run получает аргументы после имени подкоманды.
type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"signup":  {"signup -email E -password P -username U", cmdSignUp},
	"login":   {"login -email E -password P", cmdLogin},
	"logout":  {"logout", cmdLogout},
	"whoami":  {"whoami [-bio TEXT]", cmdWhoami},
	"feed":    {"feed [-page N] [-watch]", cmdFeed},
	"post":    {"post [-image FILE] TEXT...", cmdPost},
	"like":    {"like POST_ID", cmdLike},
	"comment": {"comment POST_ID TEXT...", cmdComment},
	"chats":   {"chats [-watch]", cmdChats},
	"chat":    {"chat USER (reads messages from stdin)", cmdChat},
	"send":    {"send USER TEXT...", cmdSend},
	"stories": {"stories [-add FILE]", cmdStories},
	"avatar":  {"avatar FILE", cmdAvatar},
	"users":   {"users [PREFIX]", cmdUsers},
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = cmd.run(ctx, a, flag.Args()[1:])
	a.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nexus [-config FILE] COMMAND [ARGS]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(os.Stderr, "  "+commands[name].usage)
	}
}

// describe переводит вид ошибки в понятное сообщение.
func describe(err error) string {
	switch domain.KindOf(err) {
	case domain.KindNetwork:
		return "network error: " + err.Error()
	case domain.KindAuth:
		return "authentication failed: " + err.Error()
	case domain.KindNotFound:
		return "not found: " + err.Error()
	case domain.KindDecode:
		return "unexpected data in store: " + err.Error()
	default:
		return err.Error()
	}
}
