package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Armin-kho/mp3-editor-bot/internal/broadcast"
	"github.com/Armin-kho/mp3-editor-bot/internal/config"
	"github.com/Armin-kho/mp3-editor-bot/internal/db"
	"github.com/Armin-kho/mp3-editor-bot/internal/gate"
	"github.com/Armin-kho/mp3-editor-bot/internal/media"
)

// Transport is everything the bot needs from Telegram.
type Transport interface {
	SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	EditText(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	SendFile(chatID int64, path, caption string) error
	SendPhotoID(chatID int64, fileID, caption string) error
	SendDocumentID(chatID int64, fileID, caption string) error
	AnswerCallback(callbackID, text string) error
	Download(ctx context.Context, fileID, dst string) error
	gate.MemberLookup
}

type Transcoder interface {
	Trim(ctx context.Context, in, out string, start, duration int) error
	ToMP3(ctx context.Context, in, out string) error
}

type Tagger interface {
	SetTitle(path, title string) error
	SetCover(path, imagePath string) error
	Info(path string) (media.TagInfo, error)
}

type Deps struct {
	Config    config.Config
	Store     *db.DB
	Transport Transport
	Encoder   Transcoder
	Tagger    Tagger
	Log       *zap.Logger
}

type App struct {
	cfg   config.Config
	db    *db.DB
	tg    Transport
	enc   Transcoder
	tags  Tagger
	gate  *gate.Checker
	bcast *broadcast.Runner
	log   *zap.Logger

	sessMu sync.Mutex
	sess   map[int64]*Session // by user id

	now func() time.Time
}

func New(d Deps) *App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:   d.Config,
		db:    d.Store,
		tg:    d.Transport,
		enc:   d.Encoder,
		tags:  d.Tagger,
		gate:  gate.New(d.Config.Channels, d.Transport, log.Named("gate")),
		bcast: broadcast.NewRunner(d.Config.BroadcastInterval, d.Config.BroadcastWorkers, log.Named("broadcast")),
		log:   log,
		sess:  map[int64]*Session{},
		now:   time.Now,
	}
}

// Run handles updates until the channel closes or ctx is done. Updates of one
// user run in arrival order; at most Concurrency updates run at a time.
func (a *App) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	limit := a.cfg.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			a.enqueue(ctx, upd, sem, &wg)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("update handler panicked", zap.Int("update_id", upd.UpdateID), zap.Any("panic", r))
		}
	}()
	if upd.Message != nil {
		a.handleMessage(ctx, upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		a.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	sess, unlock := a.lockSession(userID)
	defer unlock()

	cmd, args := parseCommand(msg)
	log := a.log.With(zap.Int64("user_id", userID), zap.String("cmd", cmd))

	// Admin commands answer to admins only and skip the subscription check.
	switch cmd {
	case "broadcast", "users", "backup":
		if !a.cfg.IsAdmin(userID) {
			a.reply(chatID, textAdminOnly)
			return
		}
		sess.Await = AwaitNone
		switch cmd {
		case "broadcast":
			a.broadcast(ctx, chatID, msg, args)
		case "users":
			a.countUsers(ctx, chatID)
		case "backup":
			a.backup(ctx, chatID)
		}
		return
	}

	if !a.allowed(ctx, chatID, userID) {
		return
	}

	if cmd != "" {
		log.Debug("command")
		if cmd == "cancel" {
			a.cancel(sess, chatID, 0)
			return
		}
		sess.Await = AwaitNone
		switch cmd {
		case "start", "help":
			a.start(ctx, chatID, msg.From)
		case "rename":
			a.rename(ctx, chatID, userID, args)
		case "cut":
			a.cut(ctx, chatID, userID, args)
		case "setcover":
			a.setCover(ctx, chatID, userID, msg)
		case "myfile":
			a.myFile(ctx, chatID, userID)
		case "info":
			a.info(ctx, chatID, userID)
		default:
			a.reply(chatID, textUnknown)
		}
		return
	}

	if fileID, name, ok := audioOf(msg); ok {
		sess.Await = AwaitNone
		a.upload(ctx, chatID, msg.From, fileID, name)
		return
	}

	if sess.Await != AwaitNone {
		a.continueAwait(ctx, sess, chatID, userID, msg)
		return
	}

	if _, ok := pictureOf(msg); ok {
		a.reply(chatID, textSendPhoto)
		return
	}
	a.reply(chatID, textHelp)
}

// allowed runs the subscription gate and answers refused users itself.
func (a *App) allowed(ctx context.Context, chatID, userID int64) bool {
	ok, missing := a.gate.Subscribed(ctx, userID)
	if ok {
		return true
	}
	a.log.Debug("not subscribed", zap.Int64("user_id", userID), zap.String("channel", missing))
	kb := gate.Keyboard(a.gate.Channels())
	if err := a.tg.SendText(chatID, textNotSubbed, &kb); err != nil {
		a.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return false
}

// parseCommand reads a leading /command from the text, or from the caption
// of a picture message. Captions on uploads are ignored. The @botname suffix
// is dropped.
func parseCommand(msg *tgbotapi.Message) (cmd, args string) {
	if msg.IsCommand() {
		return strings.ToLower(msg.Command()), strings.TrimSpace(msg.CommandArguments())
	}
	if _, ok := pictureOf(msg); !ok {
		return "", ""
	}
	c := strings.TrimSpace(msg.Caption)
	if !strings.HasPrefix(c, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(c, " ")
	head = strings.TrimPrefix(head, "/")
	if i := strings.Index(head, "@"); i >= 0 {
		head = head[:i]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// audioOf returns the uploaded audio file of msg, sent either as audio or as
// a document. Image documents are left for /setcover.
func audioOf(msg *tgbotapi.Message) (fileID, name string, ok bool) {
	switch {
	case msg.Audio != nil:
		return msg.Audio.FileID, msg.Audio.FileName, true
	case msg.Document != nil && !isImageDoc(msg.Document):
		return msg.Document.FileID, msg.Document.FileName, true
	}
	return "", "", false
}

func isImageDoc(d *tgbotapi.Document) bool {
	return strings.HasPrefix(d.MimeType, "image/")
}

// coverOf finds a picture on msg or on the message it replies to.
func coverOf(msg *tgbotapi.Message) (string, bool) {
	if id, ok := pictureOf(msg); ok {
		return id, true
	}
	if msg.ReplyToMessage != nil {
		return pictureOf(msg.ReplyToMessage)
	}
	return "", false
}

func pictureOf(m *tgbotapi.Message) (string, bool) {
	if id, ok := largestPhoto(m.Photo); ok {
		return id, true
	}
	if m.Document != nil && isImageDoc(m.Document) {
		return m.Document.FileID, true
	}
	return "", false
}

func largestPhoto(photos []tgbotapi.PhotoSize) (string, bool) {
	best := -1
	for i, p := range photos {
		if best < 0 || p.Width*p.Height > photos[best].Width*photos[best].Height {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return photos[best].FileID, true
}

func (a *App) reply(chatID int64, text string) {
	if err := a.tg.SendText(chatID, text, nil); err != nil {
		a.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (a *App) editOrSendMenu(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		if err := a.tg.EditText(chatID, msgID, text, kb); err == nil {
			return
		}
	}
	if err := a.tg.SendText(chatID, text, kb); err != nil {
		a.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
