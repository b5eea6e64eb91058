package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Armin-kho/mp3-editor-bot/internal/broadcast"
)

// broadcast sends args to every known user. A reply to a photo or document
// re-sends that media by file id with args as caption; otherwise args (or
// the replied message's text) goes out as plain text.
func (a *App) broadcast(ctx context.Context, chatID int64, msg *tgbotapi.Message, args string) {
	send, ok := a.broadcastSender(msg.ReplyToMessage, strings.TrimSpace(args))
	if !ok {
		a.reply(chatID, textBcastUsage)
		return
	}

	ids, err := a.db.AllUserIDs(ctx)
	if err != nil {
		a.log.Error("list users", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	a.reply(chatID, fmt.Sprintf(textBcastStart, len(ids)))

	job := broadcast.NewJob(ids, send)
	a.log.Info("broadcast started", zap.String("job_id", job.ID),
		zap.Int64("admin_id", msg.From.ID), zap.Int("recipients", len(ids)))
	res := a.bcast.Broadcast(ctx, job)
	a.log.Info("broadcast finished", zap.String("job_id", res.JobID),
		zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))

	a.reply(chatID, fmt.Sprintf(textBcastDone, shortID(res.JobID), res.Sent, res.Failed))
}

func (a *App) broadcastSender(reply *tgbotapi.Message, text string) (broadcast.SendFunc, bool) {
	if reply != nil {
		if id, ok := largestPhoto(reply.Photo); ok {
			return func(_ context.Context, uid int64) error { return a.tg.SendPhotoID(uid, id, text) }, true
		}
		if reply.Document != nil {
			id := reply.Document.FileID
			return func(_ context.Context, uid int64) error { return a.tg.SendDocumentID(uid, id, text) }, true
		}
		if text == "" {
			text = strings.TrimSpace(reply.Text)
		}
	}
	if text == "" {
		return nil, false
	}
	return func(_ context.Context, uid int64) error { return a.tg.SendText(uid, text, nil) }, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) countUsers(ctx context.Context, chatID int64) {
	n, err := a.db.CountUsers(ctx)
	if err != nil {
		a.log.Error("count users", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	a.reply(chatID, fmt.Sprintf(textUsersCount, n))
}

// backup sends a consistent snapshot of the database file.
func (a *App) backup(ctx context.Context, chatID int64) {
	tmp := filepath.Join(a.cfg.TmpDir, fmt.Sprintf("backup_%d_bot_db.sqlite3", a.now().Unix()))
	defer os.Remove(tmp)

	if err := a.db.BackupTo(ctx, tmp); err != nil {
		a.log.Error("backup", zap.Error(err))
		a.reply(chatID, textError)
		return
	}
	a.sendFile(chatID, tmp, textBackupReady)
}
