package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/globecontacts/data-module/internal/domain/model"
	"github.com/globecontacts/data-module/internal/journal"
)

// fakeCache — SnapshotCache с управляемым снимком.
type fakeCache struct {
	mu       sync.Mutex
	snapshot *model.Snapshot
	refreshN atomic.Int64
	applied  []appliedCoords
}

type appliedCoords struct {
	kind     model.TableKind
	rowIndex int
	coords   model.Coordinates
}

func (f *fakeCache) Get(ctx context.Context, kind model.TableKind, force bool) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return nil, errors.New("снимка нет")
	}
	out := *f.snapshot
	out.Records = append([]model.Record(nil), f.snapshot.Records...)
	return &out, nil
}

func (f *fakeCache) Refresh(ctx context.Context, kind model.TableKind) (*model.Snapshot, error) {
	f.refreshN.Add(1)
	return f.Get(ctx, kind, true)
}

func (f *fakeCache) ApplyCoordinates(kind model.TableKind, rowIndex int, coords *model.Coordinates) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, appliedCoords{kind: kind, rowIndex: rowIndex, coords: *coords})
	return true
}

func (f *fakeCache) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// fakeStore — MutationStore, фиксирующий вызовы.
type fakeStore struct {
	appends int
	updates int
	deletes int
	err     error
}

func (f *fakeStore) Append(ctx context.Context, kind model.TableKind, fields map[model.Field]string) error {
	if f.err != nil {
		return f.err
	}
	f.appends++
	return nil
}

func (f *fakeStore) Update(ctx context.Context, kind model.TableKind, rowIndex int, fields map[model.Field]string) error {
	if f.err != nil {
		return f.err
	}
	f.updates++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, kind model.TableKind, rowIndex int) error {
	if f.err != nil {
		return f.err
	}
	f.deletes++
	return nil
}

// fakeResolver — Resolver с таблицей ответов.
type fakeResolver struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*model.Coordinates
}

func (f *fakeResolver) Resolve(ctx context.Context, city, country string) (*model.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := city + "|" + country
	f.calls = append(f.calls, key)
	return f.results[key], nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeJournal — Journal, фиксирующий записи.
type fakeJournal struct {
	mu      sync.Mutex
	actions []string
	entries []journal.Entry
}

func (f *fakeJournal) Record(ctx context.Context, action string, kind model.TableKind, e journal.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.entries = append(f.entries, e)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(cache *fakeCache, store *fakeStore, resolver *fakeResolver, jrnl *fakeJournal) *ContactsService {
	if cache == nil {
		cache = &fakeCache{}
	}
	if store == nil {
		store = &fakeStore{}
	}
	if resolver == nil {
		resolver = &fakeResolver{results: map[string]*model.Coordinates{}}
	}
	if jrnl == nil {
		jrnl = &fakeJournal{}
	}
	return New(cache, store, resolver, jrnl, testLogger())
}

// waitFor опрашивает условие до дедлайна.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSnapshot_EnrichesMissingCoords проверяет конвейер обогащения:
// записи без точных координат разрешаются и вливаются в кэш,
// записи с координатами пропускаются.
func TestSnapshot_EnrichesMissingCoords(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{
		Kind: model.TableContacts,
		Records: []model.Record{
			{RowIndex: 0, Pseudo: "Alice", Pays: "France", Ville: "Paris"},
			{RowIndex: 1, Pseudo: "Bob", Pays: "Italie", Ville: "Rome",
				Coords: &model.Coordinates{Lat: 41.9, Lon: 12.5}, HasExactCoords: true},
			{RowIndex: 2, Pseudo: "Carla", Pays: "Espagne", Ville: "Madrid"},
		},
	}}
	resolver := &fakeResolver{results: map[string]*model.Coordinates{
		"Paris|France":   {Lat: 48.8566, Lon: 2.3522},
		"Madrid|Espagne": {Lat: 40.4168, Lon: -3.7038},
	}}
	svc := newTestService(cache, nil, resolver, nil)

	snap, err := svc.Snapshot(context.Background(), model.TableContacts, false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Records) != 3 {
		t.Fatalf("записей = %d", len(snap.Records))
	}

	waitFor(t, func() bool { return cache.appliedCount() == 2 },
		"обогащение не применило координаты")

	cache.mu.Lock()
	defer cache.mu.Unlock()
	rows := map[int]bool{}
	for _, a := range cache.applied {
		rows[a.rowIndex] = true
	}
	if !rows[0] || !rows[2] {
		t.Errorf("обогащены строки %v, ожидались 0 и 2", cache.applied)
	}
	if rows[1] {
		t.Error("запись с точными координатами не должна обогащаться")
	}
}

// TestSnapshot_AttemptedNotRetried проверяет пометку "уже пробовали":
// безрезультатная пара не запрашивается повторно при следующем снимке.
func TestSnapshot_AttemptedNotRetried(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{
		Kind: model.TableContacts,
		Records: []model.Record{
			{RowIndex: 0, Pseudo: "Alice", Pays: "Nulle-Part", Ville: "Xyzzy"},
		},
	}}
	resolver := &fakeResolver{results: map[string]*model.Coordinates{}}
	svc := newTestService(cache, nil, resolver, nil)

	if _, err := svc.Snapshot(context.Background(), model.TableContacts, false); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	waitFor(t, func() bool { return resolver.callCount() == 1 },
		"первый проход обогащения не состоялся")

	// Второй снимок: конвейер запускается снова, но пара уже помечена.
	if _, err := svc.Snapshot(context.Background(), model.TableContacts, false); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Ждём завершения второго конвейера.
	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return !svc.enriching[model.TableContacts]
	}, "конвейер обогащения не завершился")

	if got := resolver.callCount(); got != 1 {
		t.Errorf("запросов геокодера = %d, повтор безрезультатной пары запрещён", got)
	}
}

// TestSnapshot_BlankLocationSkipped проверяет, что записи без города
// и страны не попадают в геокодер.
func TestSnapshot_BlankLocationSkipped(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{
		Kind: model.TableContacts,
		Records: []model.Record{
			{RowIndex: 0, Pseudo: "Alice"},
		},
	}}
	resolver := &fakeResolver{results: map[string]*model.Coordinates{}}
	svc := newTestService(cache, nil, resolver, nil)

	if _, err := svc.Snapshot(context.Background(), model.TableContacts, false); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return !svc.enriching[model.TableContacts]
	}, "конвейер обогащения не завершился")

	if got := resolver.callCount(); got != 0 {
		t.Errorf("запросов геокодера = %d, пустое местоположение не разрешается", got)
	}
}

// TestAppend_JournalAndRefresh проверяет порядок мутации: запись в store,
// строка журнала с действием ajout и именем, форсированное обновление кэша.
func TestAppend_JournalAndRefresh(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{Kind: model.TableContacts}}
	store := &fakeStore{}
	jrnl := &fakeJournal{}
	svc := newTestService(cache, store, nil, jrnl)

	err := svc.Append(context.Background(), model.TableContacts, map[model.Field]string{
		model.FieldPseudo: "Chloé",
		model.FieldPays:   "Suisse",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if store.appends != 1 {
		t.Errorf("записей в store = %d", store.appends)
	}
	if len(jrnl.actions) != 1 || jrnl.actions[0] != "ajout" {
		t.Errorf("действия журнала: %v", jrnl.actions)
	}
	if jrnl.entries[0].DisplayName != "Chloé" {
		t.Errorf("имя в журнале = %q", jrnl.entries[0].DisplayName)
	}
	if got := cache.refreshN.Load(); got != 1 {
		t.Errorf("форсированных обновлений = %d", got)
	}
}

// TestUpdate_JournalAndRefresh проверяет журналирование изменения
// с идентификатором строки.
func TestUpdate_JournalAndRefresh(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{Kind: model.TableContacts}}
	store := &fakeStore{}
	jrnl := &fakeJournal{}
	svc := newTestService(cache, store, nil, jrnl)

	err := svc.Update(context.Background(), model.TableContacts, 4, map[model.Field]string{
		model.FieldVille: "Lyon",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if store.updates != 1 {
		t.Errorf("обновлений в store = %d", store.updates)
	}
	if jrnl.actions[0] != "modification" || jrnl.entries[0].RecordID != "4" {
		t.Errorf("журнал: %v %+v", jrnl.actions, jrnl.entries)
	}
	if got := cache.refreshN.Load(); got != 1 {
		t.Errorf("форсированных обновлений = %d", got)
	}
}

// TestDelete_JournalAndRefresh проверяет журналирование удаления.
func TestDelete_JournalAndRefresh(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{Kind: model.TableContacts}}
	store := &fakeStore{}
	jrnl := &fakeJournal{}
	svc := newTestService(cache, store, nil, jrnl)

	if err := svc.Delete(context.Background(), model.TableContacts, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if store.deletes != 1 {
		t.Errorf("удалений в store = %d", store.deletes)
	}
	if jrnl.actions[0] != "suppression" || jrnl.entries[0].RecordID != "2" {
		t.Errorf("журнал: %v %+v", jrnl.actions, jrnl.entries)
	}
	if got := cache.refreshN.Load(); got != 1 {
		t.Errorf("форсированных обновлений = %d", got)
	}
}

// TestMutation_StoreErrorStopsChain проверяет, что при ошибке store
// ни журнал, ни обновление кэша не выполняются.
func TestMutation_StoreErrorStopsChain(t *testing.T) {
	cache := &fakeCache{snapshot: &model.Snapshot{Kind: model.TableContacts}}
	store := &fakeStore{err: errors.New("строка занята")}
	jrnl := &fakeJournal{}
	svc := newTestService(cache, store, nil, jrnl)

	if err := svc.Append(context.Background(), model.TableContacts, map[model.Field]string{model.FieldPseudo: "X"}); err == nil {
		t.Fatal("ожидалась ошибка")
	}

	if len(jrnl.actions) != 0 {
		t.Errorf("журнал записан при неудавшейся мутации: %v", jrnl.actions)
	}
	if got := cache.refreshN.Load(); got != 0 {
		t.Errorf("кэш обновлён при неудавшейся мутации: %d", got)
	}
}

// TestDisplayNameFromFields — цепочка фолбэков имени для журнала.
func TestDisplayNameFromFields(t *testing.T) {
	cases := []struct {
		fields map[model.Field]string
		want   string
	}{
		{map[model.Field]string{model.FieldPseudo: "Alice", model.FieldPrenom: "A"}, "Alice"},
		{map[model.Field]string{model.FieldPrenom: "Jean", model.FieldNom: "Dupont"}, "Jean Dupont"},
		{map[model.Field]string{model.FieldNom: "Dupont"}, "Dupont"},
		{map[model.Field]string{model.FieldSociete: "Acme"}, "Acme"},
		{map[model.Field]string{}, ""},
	}

	for _, tc := range cases {
		if got := displayNameFromFields(tc.fields); got != tc.want {
			t.Errorf("displayNameFromFields(%v) = %q, ожидалось %q", tc.fields, got, tc.want)
		}
	}
}
