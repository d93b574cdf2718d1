// Command webchat is a terminal client for a live webchat session. It
// joins one session, replays the history, follows the live channel and
// accepts authoring commands on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/adambraimbridge/webchat/pkg/client"
	"github.com/adambraimbridge/webchat/pkg/ingest"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/scroll"
	"github.com/adambraimbridge/webchat/pkg/stream"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "backend base URL")
	sessionID := flag.String("session", "", "session id to join (required)")
	apiKey := flag.String("key", os.Getenv("WEBCHAT_API_KEY"), "API key")
	userID := flag.String("user", os.Getenv("WEBCHAT_USER_ID"), "author user id")
	flag.Parse()

	logger.Init()

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "usage: webchat -session <id> [-url <base>] [-key <key>] [-user <id>]")
		os.Exit(2)
	}

	api, err := client.New(client.Config{
		BaseURL:   strings.TrimRight(*baseURL, "/"),
		SessionID: *sessionID,
		APIKey:    *apiKey,
		UserID:    *userID,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	term := newTerminal(os.Stdout)
	engine, err := ingest.New(ingest.Config{
		API:     api,
		Dialer:  &wsDialer{base: *baseURL, apiKey: *apiKey},
		Surface: term,
		Header:  term,
		Roster:  term,
		Editor:  term,
		Alerter: term,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-runErr:
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case line, ok := <-lines:
			if !ok {
				engine.Stop()
				return
			}
			if !handleLine(ctx, engine, line) {
				engine.Stop()
				return
			}
		}
	}
}

// handleLine interprets one stdin line. Slash commands drive session and
// moderation actions; anything else is sent as a message. It returns
// false when the user asked to quit.
func handleLine(ctx context.Context, s *ingest.Synchronizer, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		s.SendMessage(ctx, ingest.MessageData{Message: line})
		return true
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit":
		return false
	case "/start":
		s.StartSession(ctx)
	case "/end":
		s.EndSession(ctx)
	case "/delete":
		s.DeleteMessage(ctx, arg)
	case "/block":
		s.BlockMessage(ctx, arg)
	case "/edit":
		id, text, ok := strings.Cut(arg, " ")
		if !ok {
			fmt.Println("usage: /edit <mid> <text>")
			return true
		}
		s.EditMessage(ctx, ingest.MessageData{MessageID: id, Message: text})
	case "/key":
		id, text, ok := strings.Cut(arg, " ")
		if !ok {
			fmt.Println("usage: /key <mid> <text>")
			return true
		}
		s.EditMessage(ctx, ingest.MessageData{MessageID: id, Message: text, KeyText: text})
	case "/help":
		fmt.Println("commands: /start /end /edit <mid> <text> /key <mid> <text> /delete <mid> /block <mid> /quit")
	default:
		fmt.Printf("unknown command %s (try /help)\n", cmd)
	}
	return true
}

// wsDialer resolves a session channel reference against the backend base
// URL and opens it as a websocket. Channel references from the backend
// are usually relative paths.
type wsDialer struct {
	base   string
	apiKey string
}

func (d *wsDialer) Dial(ctx context.Context, channelRef string) (ingest.Channel, error) {
	ref, err := resolveChannelURL(d.base, channelRef)
	if err != nil {
		return nil, err
	}
	wd := stream.Dialer{APIKey: d.apiKey}
	return wd.Dial(ctx, ref)
}

// resolveChannelURL turns a channel reference into an absolute ws(s) URL.
func resolveChannelURL(base, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid channel reference %q: %w", ref, err)
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base URL %q: %w", base, err)
		}
		u = b.ResolveReference(u)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

// terminal renders the conversation as plain text lines. It implements
// every synchronizer collaborator; a terminal always reads at the live
// edge, so the scroll position is fixed at the bottom.
type terminal struct {
	mu  sync.Mutex
	out *os.File

	participants map[string]bool
}

func newTerminal(out *os.File) *terminal {
	return &terminal{out: out, participants: make(map[string]bool)}
}

func (t *terminal) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *terminal) ScrollPosition() scroll.Position { return scroll.Bottom }
func (t *terminal) ScrollToLiveEdge()               {}
func (t *terminal) FreezeHeight()                   {}

func (t *terminal) UpsertMessage(m models.Message, opts ingest.RenderOptions) {
	label := m.Author
	if label == "" {
		label = "system"
	}
	marker := ""
	if opts.Replaced {
		marker = " (edited)"
	}
	if m.KeyText != "" {
		marker += " [key point]"
	}
	t.printf("[%s] %s%s: %s", m.ID, label, marker, stripTags(m.HTML))
}

func (t *terminal) RemoveMessage(messageID string) {
	t.printf("[%s] (message removed)", messageID)
}

func (t *terminal) BlockMessage(messageID, blockedBy string) {
	t.printf("[%s] (blocked by %s)", messageID, blockedBy)
}

func (t *terminal) MarkPending(messageID string, pending bool) {
	if pending {
		t.printf("[%s] (moderation in progress)", messageID)
	}
}

func (t *terminal) SetLozenge(status models.SessionStatus) {
	t.printf("-- session status: %s --", status)
}

func (t *terminal) SetTitle(title string)     { t.printf("== %s ==", stripTags(title)) }
func (t *terminal) SetExcerpt(excerpt string) { t.printf("%s", stripTags(excerpt)) }

func (t *terminal) AddKeyPoint(messageID, keyText string) {
	t.printf("* key point [%s]: %s", messageID, stripTags(keyText))
}

func (t *terminal) RemoveKeyPoint(messageID string) {
	t.printf("* key point [%s] withdrawn", messageID)
}

func (t *terminal) AddParticipant(p models.Participant) {
	t.mu.Lock()
	known := t.participants[p.ID]
	t.participants[p.ID] = true
	t.mu.Unlock()
	if known {
		return
	}
	t.printf("-- %s joined --", p.DisplayName)
}

func (t *terminal) Contains(participantID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.participants[participantID]
}

func (t *terminal) SessionStarted() { t.printf("-- you can now send messages --") }
func (t *terminal) SessionEnded()   { t.printf("-- session ended --") }

func (t *terminal) PopulateMessageField(value string) {
	t.printf("(editor field: %s)", value)
}

func (t *terminal) Alert(message string) {
	t.printf("!! %s", message)
}

// stripTags drops HTML markup for terminal display. Entity decoding is
// limited to the handful the backend emits.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for entity, repl := range map[string]string{
		"&amp;": "&", "&lt;": "<", "&gt;": ">", "&quot;": `"`, "&#39;": "'",
	} {
		out = strings.ReplaceAll(out, entity, repl)
	}
	return strings.TrimSpace(out)
}
