// Пакет journal — best-effort журнал аудита: одна строка на мутирующую
// операцию. Ошибка записи логируется и глотается — журнал наблюдаемость,
// он никогда не блокирует основную операцию.
package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/globecontacts/data-module/internal/domain/model"
)

var journalFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dm_journal_failures_total",
	Help: "Количество неудавшихся записей в журнал аудита.",
})

// Appender — добавление строки в лист. Реализуется sheets.Client.
type Appender interface {
	AppendRow(ctx context.Context, rng string, row []string) error
}

// Entry — детали журналируемой операции.
type Entry struct {
	RecordID    string
	DisplayName string
	Detail      string
}

// Recorder — писатель журнала аудита.
type Recorder struct {
	client    Appender
	sheetName string
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт Recorder, пишущий в указанный лист журнала.
func New(client Appender, sheetName string, logger *slog.Logger) *Recorder {
	return &Recorder{
		client:    client,
		sheetName: sheetName,
		logger:    logger.With(slog.String("component", "journal")),
		now:       time.Now,
	}
}

// Record добавляет строку журнала фиксированной ширины:
// дата, время, действие, тип таблицы, идентификатор записи,
// отображаемое имя, свободный комментарий.
// Ожидается внутри, но не возвращает ошибку: сбой журнала не должен
// откатывать или маскировать уже успешную мутацию.
func (r *Recorder) Record(ctx context.Context, action string, kind model.TableKind, e Entry) {
	ts := r.now()
	row := []string{
		ts.Format("02/01/2006"),
		ts.Format("15:04:05"),
		action,
		string(kind),
		e.RecordID,
		e.DisplayName,
		e.Detail,
	}

	if err := r.client.AppendRow(ctx, r.sheetName, row); err != nil {
		journalFailuresTotal.Inc()
		r.logger.Warn("запись в журнал аудита не удалась",
			slog.String("action", action),
			slog.String("table", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}
