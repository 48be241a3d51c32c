package engine

import "topicvote/internal/model"

const (
	msgWelcome       = "Привет! Нажмите кнопку ниже, чтобы перейти к голосованию."
	msgWelcomeNoLink = "Привет! Отправьте /vote в личном чате с ботом, чтобы проголосовать."
	btnGoVote        = "Перейти к голосованию"

	msgHelp = "Команды участника:\n" +
		"/vote - Голосовать за темы\n" +
		"/changevote - Изменить свой голос\n" +
		"/suggest - Предложить тему\n" +
		"/cancel - Отменить текущее действие\n" +
		"/help - Показать эту справку"

	msgAdminHelp = "Администраторские команды:\n" +
		"/start - Отправить кнопку \"Перейти к голосованию\"\n" +
		"/vote - Голосовать за темы\n" +
		"/addtopic - Добавить новые темы\n" +
		"/removetopic - Удалить темы\n" +
		"/book - Забронировать слот\n" +
		"/rename - Переименовать бронь\n" +
		"/finalize - Завершить голосование и показать результаты\n" +
		"/tally - Показать рейтинг тем\n" +
		"/export - Выгрузить результаты в Excel\n" +
		"/layout - Показать залы и брони\n" +
		"/setrooms - Установить количество залов\n" +
		"/setroomnames - Задать названия залов\n" +
		"/setslots - Установить количество слотов в залах\n" +
		"/setmaxvotes - Установить число голосов на участника\n" +
		"/clearvotes - Очистить голоса\n" +
		"/clearbookings - Очистить брони\n" +
		"/countvotes - Показать количество участников, проголосовавших за темы\n" +
		"/topiclist - Показать список тем для голосования\n" +
		"/cleartopics - Очистить все сохранённые темы\n" +
		"/secret - Показать подробную статистику голосования"

	msgAccessDenied   = "Эта команда доступна только организаторам."
	msgUnknownCommand = "Неизвестная команда. Список команд: /help"

	msgPersistFailed    = "Не удалось сохранить изменения. Попробуйте ещё раз."
	msgNothingToCancel  = "Нечего отменять."
	msgCanceled         = "Действие отменено."
	msgNoActiveFlow     = "Нет активного действия. Список команд: /help"
	msgUseButtons       = "Пожалуйста, воспользуйтесь кнопками."
	msgUseText          = "Сейчас нужно отправить текстовое сообщение."
	msgStale            = "Эта кнопка устарела."
	msgUnknownSelection = "Список изменился, откройте его заново."
	msgEmptyInput       = "Сообщение не должно быть пустым."

	msgNoTopics         = "Нет доступных тем для голосования."
	msgVotePrompt       = "Выберите до %d тем, которые вам интересны:"
	btnSubmit           = "Отправить голос"
	msgVoteLimit        = "Вы уже выбрали максимальное количество тем."
	msgVoteLimitLowered = "Лимит изменился: выберите не больше %d тем."
	msgEmptySelection   = "Ничего не выбрано."
	msgVoteThanks       = "Спасибо! Ваш голос учтён:"
	btnChangeVote       = "Переголосовать"
	btnBackToChat       = "Вернуться в чат"

	msgAskName        = "Как вас зовут?"
	msgAskCategory    = "Выберите формат:"
	msgCategoryChosen = "Формат: %s"
	msgAskBody        = "Опишите тему одним сообщением."
	msgTopicSubmitted = "Тема добавлена:\n%s"
	msgTopicExists    = "Такая тема уже есть:\n%s"

	msgBatchPrompt        = "Отправьте темы, разделяя их символом «;». Можно несколькими сообщениями. Когда закончите, нажмите кнопку."
	btnSubmitTopics       = "Добавить темы"
	msgBatchQueued        = "Принято. Тем в очереди: %d"
	msgBatchNothingQueued = "Новых тем в сообщении нет."
	msgBatchEmpty         = "Вы ещё не отправили ни одной темы."
	msgBatchAdded         = "Добавлены темы: %s"
	msgBatchNoneNew       = "Все эти темы уже есть в списке."

	msgNoTopicsToRemove = "Список тем пуст."
	msgRemovalPrompt    = "Отметьте темы для удаления:"
	btnRemove           = "Удалить (%d)"
	msgTopicsRemoved    = "Удалено тем: %d"

	msgNoBookings   = "Броней пока нет."
	msgAskRoom      = "Выберите зал:"
	msgAskSlot      = "%s: выберите слот."
	slotLabel       = "Слот %d"
	msgSlotChosen   = "%s, слот %d."
	msgAskLabel     = "Введите название брони."
	msgSlotConflict = "%s, слот %d уже занят: %s"
	msgBooked       = "Забронировано: %s, слот %d - %s"
	msgRenamed      = "Бронь переименована: %s, слот %d - %s"
	btnCancel       = "Отмена"

	msgVotesCleared    = "Все голоса удалены."
	msgTopicsCleared   = "Все темы и голоса удалены."
	msgBookingsCleared = "Все брони удалены."

	msgTopicListEmpty  = "Список тем пуст."
	msgTopicListHeader = "Список тем для голосования:"
	msgNoVoters        = "Никто ещё не проголосовал."
	msgVoterCount      = "Количество участников, проголосовавших за темы: %d"
	msgNoVoteData      = "Нет данных о голосах."
	msgVotersHeader    = "Список проголосовавших:"
	msgAnonymousVoter  = "Пользователь %s"

	msgNoVotesToProcess = "Нет голосов для обработки."
	msgNoVotesYet       = "Голосов пока нет."
	msgStatsHeader      = "Статистика голосов:"
	msgScheduleHeader   = "Расписание:"
	msgSurplusHeader    = "Не вошли в расписание:"
	msgEmptySlot        = "Пусто"

	msgExportCaption     = "Результаты голосования"
	msgExportFailed      = "Не удалось сформировать файл."
	msgExportUnavailable = "Выгрузка не настроена."

	msgLayoutSummary  = "Залов: %d, слотов в зале: %d, голосов на участника: %d"
	msgNoRoomBookings = "броней нет"
)

func settingPrompt(field string) string {
	switch field {
	case model.FieldRooms:
		return "Введите количество залов:"
	case model.FieldSlots:
		return "Введите количество слотов в каждом зале:"
	case model.FieldMaxVotes:
		return "Введите, сколько тем может выбрать один участник:"
	case model.FieldRoomNames:
		return "Введите названия залов через «;»:"
	}
	return "Введите значение:"
}

func settingInvalid(field string) string {
	if field == model.FieldRoomNames {
		return "Нужны непустые различные названия, разделённые «;»."
	}
	return "Пожалуйста, введите положительное целое число."
}

func settingDone(field string) string {
	switch field {
	case model.FieldRooms:
		return "Залы: %s"
	case model.FieldSlots:
		return "Количество слотов установлено: %s"
	case model.FieldMaxVotes:
		return "Максимум голосов на участника: %s"
	case model.FieldRoomNames:
		return "Названия залов: %s"
	}
	return "Готово: %s"
}
