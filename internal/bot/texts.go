package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	textHelp = "🎵 Привет! Пришлите мне аудиофайл, и я помогу его отредактировать.\n\n" +
		"Команды:\n" +
		"/rename <название> — изменить название трека\n" +
		"/cut <начало> <конец> — вырезать фрагмент (например /cut 0:30 1:45)\n" +
		"/setcover — ответьте на фото или пришлите фото с подписью /setcover\n" +
		"/myfile — получить текущий файл\n" +
		"/info — сведения о текущем файле\n" +
		"/cancel — отменить ожидание ввода"

	textNoFile        = "❌ Сначала пришлите аудиофайл."
	textSourceMissing = "❌ Исходный файл не найден. Пришлите аудиофайл заново."
	textRenameUsage   = "Использование: /rename <название>"
	textCutUsage      = "Использование: /cut <начало> <конец>, например /cut 0:30 1:45"
	textBadTime       = "❌ Неверный формат времени. Используйте ЧЧ:ММ:СС, ММ:СС или секунды."
	textBadRange      = "❌ Конец должен быть больше начала."
	textCoverUsage    = "Пришлите фото с подписью /setcover или ответьте командой /setcover на фото."
	textUnknown       = "Неизвестная команда. /help — список команд."
	textSendPhoto     = "Чтобы сменить обложку, используйте /setcover."
	textCancelled     = "Отменено."
	textNothing       = "Нечего отменять."
	textError         = "⚠️ Что-то пошло не так. Попробуйте ещё раз."
	textSendFailed    = "⚠️ Не удалось отправить файл."
	textDownloadFail  = "⚠️ Не удалось скачать файл."
	textTagFailed     = "⚠️ Не удалось изменить теги файла."
	textTranscodeFail = "❌ Ошибка ffmpeg:\n"

	textUploaded    = "✅ Файл сохранён. Что сделать?"
	textRenamed     = "✅ Название: %s"
	textCut         = "✂️ Фрагмент %s–%s"
	textCoverSet    = "🖼 Обложка обновлена"
	textInfo        = "📄 Файл: %s\nРазмер: %s\nНазвание: %s\nОбложек: %d"
	textInfoOwner   = "\nВладелец: %s"
	textInfoUpdated = "\nИзменён: %s"
	textNoTitle     = "—"
	textAskRename   = "Отправьте новое название трека."
	textAskCut      = "Отправьте начало и конец через пробел, например: 0:30 1:45"
	textAskCover    = "Отправьте фото для обложки."
	textNotSubbed   = "🔒 Чтобы пользоваться ботом, подпишитесь на каналы ниже и повторите команду."
	textAdminOnly   = "⛔️ Команда доступна только администраторам."
	textBcastUsage  = "Использование: /broadcast <текст> или ответьте командой /broadcast на сообщение."
	textBcastStart  = "📣 Рассылка для %d пользователей..."
	textBcastDone   = "📣 Рассылка %s завершена.\nОтправлено: %d\nОшибок: %d"
	textUsersCount  = "👥 Пользователей: %d"
	textBackupReady = "💾 Бэкап базы"
)

const (
	cbAction = "act"

	actRename = "rename"
	actCut    = "cut"
	actCover  = "cover"
	actFile   = "file"
	actCancel = "cancel"
)

func actionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Название", cbAction+"|"+actRename),
			tgbotapi.NewInlineKeyboardButtonData("✂️ Обрезать", cbAction+"|"+actCut),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🖼 Обложка", cbAction+"|"+actCover),
			tgbotapi.NewInlineKeyboardButtonData("📥 Файл", cbAction+"|"+actFile),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", cbAction+"|"+actCancel),
		),
	)
}
