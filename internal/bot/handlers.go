package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Armin-kho/mp3-editor-bot/internal/db"
	"github.com/Armin-kho/mp3-editor-bot/internal/media"
	"github.com/Armin-kho/mp3-editor-bot/internal/utils"
)

const (
	// maxDiagnostic bounds the ffmpeg stderr echoed back to the user.
	maxDiagnostic = 3000
	maxCaption    = 1024
)

func userRecord(u *tgbotapi.User) db.User {
	return db.User{
		UserID:    u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func (a *App) start(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if err := a.db.Upsert(ctx, userRecord(from), nil); err != nil {
		a.log.Error("upsert user", zap.Int64("user_id", from.ID), zap.Error(err))
	}
	a.log.Info("user started", zap.Int64("user_id", from.ID),
		zap.String("name", utils.DisplayName(from.FirstName, from.LastName, from.UserName, from.ID)))
	kb := actionKeyboard()
	if err := a.tg.SendText(chatID, textHelp, &kb); err != nil {
		a.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// currentFile resolves the user's last file, answering the user itself when
// there is none.
func (a *App) currentFile(ctx context.Context, chatID, userID int64) (string, bool) {
	path, ok, err := a.db.GetLastFile(ctx, userID)
	if err != nil {
		a.log.Error("get last file", zap.Int64("user_id", userID), zap.Error(err))
		a.reply(chatID, textError)
		return "", false
	}
	if !ok {
		a.reply(chatID, textNoFile)
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		a.log.Warn("stored file unavailable", zap.Int64("user_id", userID), zap.String("path", path), zap.Error(err))
		a.reply(chatID, textSourceMissing)
		return "", false
	}
	return path, true
}

func (a *App) upload(ctx context.Context, chatID int64, from *tgbotapi.User, fileID, name string) {
	log := a.log.With(zap.Int64("user_id", from.ID))

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".mp3"
	}
	if err := os.MkdirAll(a.cfg.TmpDir, 0o750); err != nil {
		log.Error("create tmp dir", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	dst := filepath.Join(a.cfg.TmpDir, fmt.Sprintf("%d_%d%s", from.ID, a.now().Unix(), ext))
	if err := a.tg.Download(ctx, fileID, dst); err != nil {
		log.Warn("download upload", zap.Error(err))
		a.reply(chatID, textDownloadFail)
		return
	}

	if ext != ".mp3" {
		mp3 := strings.TrimSuffix(dst, ext) + ".mp3"
		err := a.enc.ToMP3(ctx, dst, mp3)
		if rmErr := os.Remove(dst); rmErr != nil {
			log.Warn("remove original upload", zap.String("path", dst), zap.Error(rmErr))
		}
		if err != nil {
			_ = os.Remove(mp3)
			a.transcodeFailed(chatID, log, err)
			return
		}
		dst = mp3
	}

	if err := a.db.Upsert(ctx, userRecord(from), &dst); err != nil {
		log.Error("store last file", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	log.Info("file stored", zap.String("path", dst))
	kb := actionKeyboard()
	if err := a.tg.SendText(chatID, textUploaded, &kb); err != nil {
		log.Warn("send failed", zap.Error(err))
	}
}

func (a *App) rename(ctx context.Context, chatID, userID int64, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		a.reply(chatID, textRenameUsage)
		return
	}
	path, ok := a.currentFile(ctx, chatID, userID)
	if !ok {
		return
	}
	if err := a.tags.SetTitle(path, title); err != nil {
		a.log.Error("set title", zap.Int64("user_id", userID), zap.String("path", path), zap.Error(err))
		a.reply(chatID, textTagFailed)
		return
	}
	a.sendFile(chatID, path, fmt.Sprintf(textRenamed, title))
}

func (a *App) cut(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		a.reply(chatID, textCutUsage)
		return
	}
	path, ok := a.currentFile(ctx, chatID, userID)
	if !ok {
		return
	}
	start, err := utils.ParseTimecode(fields[0])
	if err != nil {
		a.reply(chatID, textBadTime)
		return
	}
	end, err := utils.ParseTimecode(fields[1])
	if err != nil {
		a.reply(chatID, textBadTime)
		return
	}
	if end <= start {
		a.reply(chatID, textBadRange)
		return
	}

	log := a.log.With(zap.Int64("user_id", userID))
	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_cut.mp3"
	if err := a.enc.Trim(ctx, path, out, start, end-start); err != nil {
		a.transcodeFailed(chatID, log, err)
		return
	}
	if err := a.db.SetLastFile(ctx, userID, out); err != nil {
		log.Error("store cut file", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	a.sendFile(chatID, out, fmt.Sprintf(textCut, utils.FormatTimecode(start), utils.FormatTimecode(end)))
}

func (a *App) setCover(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) {
	fileID, ok := coverOf(msg)
	if !ok {
		a.reply(chatID, textCoverUsage)
		return
	}
	path, ok := a.currentFile(ctx, chatID, userID)
	if !ok {
		return
	}

	log := a.log.With(zap.Int64("user_id", userID))
	img := filepath.Join(a.cfg.TmpDir, fmt.Sprintf("cover_%d_%d.jpg", userID, a.now().Unix()))
	if err := a.tg.Download(ctx, fileID, img); err != nil {
		log.Warn("download cover", zap.Error(err))
		a.reply(chatID, textDownloadFail)
		return
	}
	defer os.Remove(img)

	if err := media.PrepareCover(img, img); err != nil {
		log.Warn("prepare cover, embedding as is", zap.Error(err))
	}
	if err := a.tags.SetCover(path, img); err != nil {
		log.Error("set cover", zap.String("path", path), zap.Error(err))
		a.reply(chatID, textTagFailed)
		return
	}
	a.sendFile(chatID, path, textCoverSet)
}

func (a *App) myFile(ctx context.Context, chatID, userID int64) {
	path, ok := a.currentFile(ctx, chatID, userID)
	if !ok {
		return
	}
	a.sendFile(chatID, path, "")
}

func (a *App) info(ctx context.Context, chatID, userID int64) {
	path, ok := a.currentFile(ctx, chatID, userID)
	if !ok {
		return
	}
	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	ti, err := a.tags.Info(path)
	if err != nil {
		a.log.Warn("read tags", zap.Int64("user_id", userID), zap.Error(err))
	}
	title := ti.Title
	if title == "" {
		title = textNoTitle
	}
	text := fmt.Sprintf(textInfo, filepath.Base(path), utils.FormatSize(size), title, ti.Covers)

	u, err := a.db.GetUser(ctx, userID)
	if err != nil {
		a.log.Warn("get user", zap.Int64("user_id", userID), zap.Error(err))
	} else {
		text += fmt.Sprintf(textInfoOwner, utils.DisplayName(u.FirstName, u.LastName, u.Username, u.UserID))
		if !u.UpdatedAt.IsZero() {
			text += fmt.Sprintf(textInfoUpdated, u.UpdatedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
	}
	a.reply(chatID, text)
}

func (a *App) sendFile(chatID int64, path, caption string) {
	if err := a.tg.SendFile(chatID, path, utils.Truncate(caption, maxCaption)); err != nil {
		a.log.Warn("send file", zap.Int64("chat_id", chatID), zap.String("path", path), zap.Error(err))
		a.reply(chatID, textSendFailed)
	}
}

func (a *App) transcodeFailed(chatID int64, log *zap.Logger, err error) {
	var te *media.TranscodeError
	if errors.As(err, &te) {
		log.Warn("ffmpeg failed", zap.Strings("args", te.Args), zap.Error(te.Err))
		// ffmpeg prints its banner first and the error last.
		a.reply(chatID, textTranscodeFail+utils.TruncateHead(strings.TrimSpace(te.Stderr), maxDiagnostic))
		return
	}
	log.Error("transcode", zap.Error(err))
	a.reply(chatID, textError)
}
