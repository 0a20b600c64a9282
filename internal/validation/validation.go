package validation

import (
	"net/http"
	"sort"
	"strings"

	"teleicu/internal/models"
)

// FieldErrors — агрегированная ошибка валидации: поле → список сообщений.
// Валидация спеков не кидает исключений, а накапливает ошибки здесь
// и возвращает одну структурированную ошибку на запрос.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FieldErrors) Empty() bool { return len(e) == 0 }

// OrNil возвращает nil-ошибку, если ошибок не накопилось.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f + ": " + strings.Join(e[f], ", "))
	}
	return b.String()
}

// NotConfigured — ошибка вида {key: "Not configured"} на каждый
// отсутствующий ключ metadata; каждое поле именуется отдельно, чтобы
// вызывающая сторона могла показать точное «настройте X».
func NotConfigured(keys ...string) FieldErrors {
	e := FieldErrors{}
	for _, k := range keys {
		e.Add(k, "Not configured")
	}
	return e
}

// Write отдаёт 400 с полями в Extra.
func Write(w http.ResponseWriter, e FieldErrors) {
	models.WriteProblem(w, http.StatusBadRequest, "Validation Failed", "", map[string]any{
		"fields": e,
	})
}
