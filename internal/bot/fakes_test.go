package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Armin-kho/mp3-editor-bot/internal/config"
	"github.com/Armin-kho/mp3-editor-bot/internal/db"
	"github.com/Armin-kho/mp3-editor-bot/internal/media"
)

type outMsg struct {
	kind   string // text, edit, file, photo_id, document_id
	chatID int64
	text   string
	path   string
	fileID string
	kb     *tgbotapi.InlineKeyboardMarkup
}

type fakeTransport struct {
	mu        sync.Mutex
	out       []outMsg
	files     map[string][]byte // by file id
	status    map[string]string // by channel
	statusErr error
	failFor   map[int64]bool
	failFiles bool
	answered  []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		files:   map[string][]byte{},
		status:  map[string]string{},
		failFor: map[int64]bool{},
	}
}

func (f *fakeTransport) record(m outMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[m.chatID] || (f.failFiles && m.kind == "file") {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.out = append(f.out, m)
	return nil
}

func (f *fakeTransport) SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	return f.record(outMsg{kind: "text", chatID: chatID, text: text, kb: kb})
}

func (f *fakeTransport) EditText(chatID int64, _ int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	return f.record(outMsg{kind: "edit", chatID: chatID, text: text, kb: kb})
}

func (f *fakeTransport) SendFile(chatID int64, path, caption string) error {
	return f.record(outMsg{kind: "file", chatID: chatID, path: path, text: caption})
}

func (f *fakeTransport) SendPhotoID(chatID int64, fileID, caption string) error {
	return f.record(outMsg{kind: "photo_id", chatID: chatID, fileID: fileID, text: caption})
}

func (f *fakeTransport) SendDocumentID(chatID int64, fileID, caption string) error {
	return f.record(outMsg{kind: "document_id", chatID: chatID, fileID: fileID, text: caption})
}

func (f *fakeTransport) AnswerCallback(callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeTransport) Download(_ context.Context, fileID, dst string) error {
	f.mu.Lock()
	b, ok := f.files[fileID]
	f.mu.Unlock()
	if !ok {
		return errors.New("Bad Request: invalid file_id")
	}
	return os.WriteFile(dst, b, 0o600)
}

func (f *fakeTransport) MemberStatus(_ context.Context, channel string, _ int64) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if s, ok := f.status[channel]; ok {
		return s, nil
	}
	return "member", nil
}

func (f *fakeTransport) sent() []outMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outMsg(nil), f.out...)
}

func (f *fakeTransport) last(t *testing.T) outMsg {
	t.Helper()
	out := f.sent()
	require.NotEmpty(t, out, "nothing was sent")
	return out[len(out)-1]
}

type trimCall struct {
	in, out         string
	start, duration int
}

type fakeEncoder struct {
	mu     sync.Mutex
	trims  []trimCall
	toMP3  [][2]string
	errOut error

	// When set, Trim signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func (e *fakeEncoder) Trim(_ context.Context, in, out string, start, duration int) error {
	e.mu.Lock()
	e.trims = append(e.trims, trimCall{in, out, start, duration})
	e.mu.Unlock()
	if e.started != nil {
		e.started <- struct{}{}
		<-e.release
	}
	if e.errOut != nil {
		return e.errOut
	}
	return os.WriteFile(out, []byte("trimmed"), 0o600)
}

func (e *fakeEncoder) ToMP3(_ context.Context, in, out string) error {
	e.mu.Lock()
	e.toMP3 = append(e.toMP3, [2]string{in, out})
	e.mu.Unlock()
	if e.errOut != nil {
		return e.errOut
	}
	return os.WriteFile(out, []byte("mp3"), 0o600)
}

func (e *fakeEncoder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.trims) + len(e.toMP3)
}

type fakeTagger struct {
	mu     sync.Mutex
	titles map[string]string
	covers map[string]int
	err    error
}

func newFakeTagger() *fakeTagger {
	return &fakeTagger{titles: map[string]string{}, covers: map[string]int{}}
}

func (g *fakeTagger) SetTitle(path, title string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.titles[path] = title
	return nil
}

func (g *fakeTagger) SetCover(path, imagePath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	if _, err := os.Stat(imagePath); err != nil {
		return err
	}
	g.covers[path] = 1
	return nil
}

func (g *fakeTagger) Info(path string) (media.TagInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ti := media.TagInfo{Title: g.titles[path], Covers: g.covers[path]}
	if ti.Title != "" {
		ti.TitleCount = 1
	}
	return ti, nil
}

func (g *fakeTagger) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.titles) + len(g.covers)
}

const adminID = 1

type harness struct {
	app   *App
	tg    *fakeTransport
	enc   *fakeEncoder
	tags  *fakeTagger
	store *db.DB
	cfg   config.Config
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Config{
		BotToken:    "test",
		Admins:      []int64{adminID},
		TmpDir:      t.TempDir(),
		Concurrency: 4,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	store, err := db.Open(filepath.Join(t.TempDir(), "bot_db.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		tg:    newFakeTransport(),
		enc:   &fakeEncoder{},
		tags:  newFakeTagger(),
		store: store,
		cfg:   cfg,
	}
	h.app = New(Deps{
		Config:    cfg,
		Store:     store,
		Transport: h.tg,
		Encoder:   h.enc,
		Tagger:    h.tags,
		Log:       zaptest.NewLogger(t),
	})
	return h
}

// seedFile stores an audio file on disk and as the user's last file.
func (h *harness) seedFile(t *testing.T, userID int64) string {
	t.Helper()
	p := filepath.Join(h.cfg.TmpDir, "seed_song.mp3")
	require.NoError(t, os.WriteFile(p, []byte("ID3audio"), 0o600))
	require.NoError(t, h.store.Upsert(context.Background(), db.User{UserID: userID}, &p))
	return p
}

func (h *harness) send(msg *tgbotapi.Message) {
	h.app.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (h *harness) press(userID int64, data string) {
	h.app.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}})
}

func textMsg(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
}

func cmdMsg(userID int64, text string) *tgbotapi.Message {
	m := textMsg(userID, text)
	head, _, _ := strings.Cut(text, " ")
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(head)}}
	return m
}

func photo(fileID string) []tgbotapi.PhotoSize {
	return []tgbotapi.PhotoSize{
		{FileID: fileID + "_small", Width: 90, Height: 90},
		{FileID: fileID, Width: 1280, Height: 1280},
		{FileID: fileID + "_mid", Width: 320, Height: 320},
	}
}
