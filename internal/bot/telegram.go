package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram is the Transport backed by the Bot API.
type Telegram struct {
	api   *tgbotapi.BotAPI
	token string
	http  *http.Client
	log   *zap.Logger
}

func NewTelegram(token string, debug bool, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	return &Telegram{
		api:   api,
		token: token,
		http:  &http.Client{Timeout: 120 * time.Second},
		log:   log,
	}, nil
}

func (t *Telegram) Username() string { return t.api.Self.UserName }

// Updates long-polls until ctx is done.
func (t *Telegram) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	ch := t.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()
	return ch
}

func (t *Telegram) SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) EditText(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ReplyMarkup = kb
	edit.DisableWebPagePreview = true
	_, err := t.api.Request(edit)
	return err
}

func (t *Telegram) SendFile(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	_, err := t.api.Send(doc)
	return err
}

func (t *Telegram) SendPhotoID(chatID int64, fileID, caption string) error {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	p.Caption = caption
	_, err := t.api.Send(p)
	return err
}

func (t *Telegram) SendDocumentID(chatID int64, fileID, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = caption
	_, err := t.api.Send(doc)
	return err
}

func (t *Telegram) AnswerCallback(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// MemberStatus accepts "@name" channels as well as numeric chat ids.
func (t *Telegram) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	cfg := tgbotapi.ChatConfigWithUser{UserID: userID}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = channel
	}
	m, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: cfg})
	if err != nil {
		return "", err
	}
	return m.Status, nil
}

// Download stores the Telegram file fileID at dst.
func (t *Telegram) Download(ctx context.Context, fileID, dst string) error {
	f, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	rc, err := t.get(ctx, f.Link(t.token))
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	t.log.Debug("downloaded", zap.String("file_id", fileID), zap.String("dst", dst))
	return nil
}

func (t *Telegram) get(ctx context.Context, urlStr string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}
