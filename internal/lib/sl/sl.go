// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога
// и не допустить попадания чувствительных данных (пароли, коды) в вывод.
package sl

import (
	"log/slog"
	"strings"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Secret возвращает slog.Attr, маскирующий значение секрета.
// Длина значения сохраняется, содержимое — нет.
func Secret(key, value string) slog.Attr {
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(strings.Repeat("*", len(value))),
	}
}
