package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleCallback drives the button flow. Rename, cut and cover put the
// session into an awaiting state; the user's next message carries the
// argument.
func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	if err := a.tg.AnswerCallback(q.ID, ""); err != nil {
		a.log.Debug("answer callback", zap.Error(err))
	}

	userID := q.From.ID
	chatID := userID
	msgID := 0
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
		msgID = q.Message.MessageID
	}

	sess, unlock := a.lockSession(userID)
	defer unlock()

	if !a.allowed(ctx, chatID, userID) {
		return
	}

	verb, action, _ := strings.Cut(q.Data, "|")
	if verb != cbAction {
		a.log.Debug("unknown callback", zap.String("data", q.Data))
		return
	}

	switch action {
	case actRename:
		a.await(ctx, sess, chatID, userID, msgID, AwaitRename, textAskRename)
	case actCut:
		a.await(ctx, sess, chatID, userID, msgID, AwaitCut, textAskCut)
	case actCover:
		a.await(ctx, sess, chatID, userID, msgID, AwaitCover, textAskCover)
	case actFile:
		sess.Await = AwaitNone
		a.myFile(ctx, chatID, userID)
	case actCancel:
		a.cancel(sess, chatID, msgID)
	}
}

func (a *App) await(ctx context.Context, sess *Session, chatID, userID int64, msgID int, state Awaiting, prompt string) {
	if _, ok := a.currentFile(ctx, chatID, userID); !ok {
		sess.Await = AwaitNone
		return
	}
	sess.Await = state
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", cbAction+"|"+actCancel),
	))
	a.editOrSendMenu(chatID, msgID, prompt, &kb)
}

func (a *App) cancel(sess *Session, chatID int64, msgID int) {
	text := textCancelled
	if sess.Await == AwaitNone {
		text = textNothing
	}
	sess.Await = AwaitNone
	kb := actionKeyboard()
	a.editOrSendMenu(chatID, msgID, text, &kb)
}

// continueAwait feeds msg to the pending action. The state is cleared before
// the action runs, so a validation failure also leaves the flow.
func (a *App) continueAwait(ctx context.Context, sess *Session, chatID, userID int64, msg *tgbotapi.Message) {
	state := sess.Await
	sess.Await = AwaitNone
	switch state {
	case AwaitRename:
		a.rename(ctx, chatID, userID, msg.Text)
	case AwaitCut:
		a.cut(ctx, chatID, userID, msg.Text)
	case AwaitCover:
		a.setCover(ctx, chatID, userID, msg)
	}
}
