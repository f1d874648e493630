package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/telegram"
)

// memTx collects undo steps so a failed transaction leaves the store untouched.
type memTx struct {
	pgx.Tx
	undo []func()
}

func onRollback(tx pgx.Tx, fn func()) {
	if t, ok := tx.(*memTx); ok {
		t.undo = append(t.undo, fn)
	}
}

type memTxManager struct {
	mu        sync.Mutex
	commitErr error
	commits   atomic.Int32
	rollbacks atomic.Int32

	// overlap lets transactions interleave; only single store operations stay atomic.
	overlap bool
}

// RunInTransaction serializes transactions unless overlap is set.
func (m *memTxManager) RunInTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	if !m.overlap {
		m.mu.Lock()
		defer m.mu.Unlock()
	}

	tx := &memTx{}
	err := fn(tx)
	if err == nil && m.commitErr != nil {
		err = m.commitErr
	}
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.rollbacks.Add(1)
		return err
	}
	m.commits.Add(1)
	return nil
}

type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*entities.User
	areas    map[uuid.UUID]*entities.Area
	findings map[uuid.UUID]*entities.Finding
	history  []entities.StatusHistory
	photos   []entities.Photo

	// lastReportID, when set, replaces what LastReportID would read.
	lastReportID func(actual string) string
	// afterReportIDRead runs outside the store lock once LastReportID has read.
	afterReportIDRead func()
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*entities.User),
		areas:    make(map[uuid.UUID]*entities.Area),
		findings: make(map[uuid.UUID]*entities.Finding),
	}
}

func (s *memStore) addUser(u entities.User) *entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = &u
	return &u
}

func (s *memStore) addArea(name string, parent *entities.Area) *entities.Area {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &entities.Area{ID: uuid.New(), Name: name, Level: 1}
	if parent != nil {
		pid := parent.ID
		a.ParentID = &pid
		a.Level = parent.Level + 1
	}
	s.areas[a.ID] = a
	return a
}

func (s *memStore) historyOf(findingID uuid.UUID) []entities.StatusHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.StatusHistory
	for _, h := range s.history {
		if h.FindingID == findingID {
			out = append(out, h)
		}
	}
	return out
}

func (s *memStore) photoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

func (s *memStore) findingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}

// users

type memUserRepo struct{ *memStore }

func (r memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUserRepo) FindByStaffID(_ context.Context, staffID string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StaffID == staffID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memUserRepo) FindByTelegramID(_ context.Context, telegramID int64) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*entities.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r memUserRepo) List(_ context.Context, filter repositories.UserFilter) ([]entities.User, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.FullName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *u)
	}
	return out, uint64(len(out)), nil
}

func (r memUserRepo) ListNotifiableAdmins(_ context.Context) ([]entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.User
	for _, u := range r.users {
		if u.Role.IsAdmin() && u.IsActive && u.TelegramID != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r memUserRepo) Create(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StaffID == user.StaffID {
			return apperrors.NewConflictError("User with this staff ID already exists")
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r memUserRepo) Update(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r memUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// areas

type memAreaRepo struct{ *memStore }

func (r memAreaRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAreaRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*entities.Area, len(ids))
	for _, id := range ids {
		if a, ok := r.areas[id]; ok {
			cp := *a
			out[id] = &cp
		}
	}
	return out, nil
}

func (r memAreaRepo) ExistsByName(_ context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.areas {
		if a.Name == name && (excludeID == nil || a.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (r memAreaRepo) sorted(keep func(a *entities.Area) bool) []entities.Area {
	out := make([]entities.Area, 0)
	for _, a := range r.areas {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r memAreaRepo) List(_ context.Context, filter repositories.AreaFilter) ([]entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *entities.Area) bool {
		if filter.Level != nil && a.Level != *filter.Level {
			return false
		}
		if filter.ParentID != nil && (a.ParentID == nil || *a.ParentID != *filter.ParentID) {
			return false
		}
		return true
	}), nil
}

func (r memAreaRepo) ListUpToLevel(_ context.Context, maxLevel int) ([]entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *entities.Area) bool { return a.Level <= maxLevel }), nil
}

func (r memAreaRepo) ListRoots(_ context.Context, limit uint64) ([]entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(a *entities.Area) bool { return a.Level == 1 })
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memAreaRepo) FindByIDForUpdateInTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*entities.Area, error) {
	return r.FindByID(ctx, id)
}

func (r memAreaRepo) CountChildrenInTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.areas {
		if a.ParentID != nil && *a.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r memAreaRepo) CountFindingsInTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, f := range r.findings {
		if f.AreaID == id {
			n++
		}
	}
	return n, nil
}

func (r memAreaRepo) subtree(id uuid.UUID) []entities.Area {
	if _, ok := r.areas[id]; !ok {
		return []entities.Area{}
	}
	in := map[uuid.UUID]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, a := range r.areas {
			if !in[a.ID] && a.ParentID != nil && in[*a.ParentID] {
				in[a.ID] = true
				changed = true
			}
		}
	}
	return r.sorted(func(a *entities.Area) bool { return in[a.ID] })
}

func (r memAreaRepo) Descendants(_ context.Context, id uuid.UUID) ([]entities.Area, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subtree(id), nil
}

func (r memAreaRepo) DescendantIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	areas := r.subtree(id)
	ids := make([]uuid.UUID, 0, len(areas))
	for _, a := range areas {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (r memAreaRepo) Create(_ context.Context, area *entities.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *area
	r.areas[area.ID] = &cp
	return nil
}

func (r memAreaRepo) UpdateInTx(_ context.Context, tx pgx.Tx, area *entities.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.areas[area.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	cp := *area
	r.areas[area.ID] = &cp
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.areas[prev.ID] = prev
	})
	return nil
}

func (r memAreaRepo) ShiftSubtreeLevelsInTx(_ context.Context, _ pgx.Tx, rootID uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.subtree(rootID) {
		if a.ID != rootID {
			r.areas[a.ID].Level += delta
		}
	}
	return nil
}

func (r memAreaRepo) DeleteInTx(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.areas[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.areas, id)
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.areas[id] = prev
	})
	return nil
}

// findings

type memFindingRepo struct{ *memStore }

func reportIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (r memFindingRepo) LastReportID(_ context.Context, _ pgx.Tx, prefix string) (string, error) {
	r.mu.Lock()
	last := ""
	for _, f := range r.findings {
		if strings.HasPrefix(f.ReportID, prefix) && reportIDLess(last, f.ReportID) {
			last = f.ReportID
		}
	}
	if r.lastReportID != nil {
		last = r.lastReportID(last)
	}
	after := r.afterReportIDRead
	r.mu.Unlock()

	if after != nil {
		after()
	}
	return last, nil
}

func (r memFindingRepo) CreateInTx(_ context.Context, tx pgx.Tx, finding *entities.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.findings {
		if f.ReportID == finding.ReportID {
			return repositories.ErrReportIDTaken
		}
	}
	cp := *finding
	r.findings[finding.ID] = &cp
	id := finding.ID
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.findings, id)
	})
	return nil
}

func (r memFindingRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.findings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r memFindingRepo) FindByIDForUpdateInTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*entities.Finding, error) {
	return r.FindByID(ctx, id)
}

func (r memFindingRepo) UpdateStatusInTx(_ context.Context, tx pgx.Tx, finding *entities.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.findings[finding.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	cp := *finding
	r.findings[finding.ID] = &cp
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.findings[prev.ID] = prev
	})
	return nil
}

func (r memFindingRepo) Assign(_ context.Context, id uuid.UUID, assignee *uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.findings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	f.AssignedTo = assignee
	f.UpdatedAt = at
	return nil
}

func (r memFindingRepo) matching(filter repositories.FindingFilter) []entities.Finding {
	areaOK := make(map[uuid.UUID]bool, len(filter.AreaIDs))
	for _, id := range filter.AreaIDs {
		areaOK[id] = true
	}
	out := make([]entities.Finding, 0)
	for _, f := range r.findings {
		switch {
		case len(areaOK) > 0 && !areaOK[f.AreaID]:
		case filter.Severity != nil && f.Severity != *filter.Severity:
		case filter.Status != nil && f.Status != *filter.Status:
		case filter.ReporterID != nil && f.ReporterID != *filter.ReporterID:
		case filter.DateFrom != nil && f.ReportedAt.Before(*filter.DateFrom):
		case filter.DateTo != nil && f.ReportedAt.After(*filter.DateTo):
		default:
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.After(out[j].ReportedAt)
		}
		return reportIDLess(out[j].ReportID, out[i].ReportID)
	})
	return out
}

func (r memFindingRepo) List(_ context.Context, filter repositories.FindingFilter) ([]entities.Finding, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(filter)
	total := uint64(len(all))
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit()
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r memFindingRepo) ListAll(_ context.Context, filter repositories.FindingFilter) ([]entities.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(filter), nil
}

func (r memFindingRepo) RecentByReporter(_ context.Context, reporterID uuid.UUID, limit uint64) ([]entities.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(repositories.FindingFilter{ReporterID: &reporterID})
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memFindingRepo) Counts(_ context.Context, from, to time.Time) ([]repositories.FindingCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type key struct {
		area uuid.UUID
		sev  entities.Severity
		st   entities.Status
	}
	counts := make(map[key]int64)
	var order []key
	for _, f := range r.matching(repositories.FindingFilter{DateFrom: &from, DateTo: &to}) {
		k := key{f.AreaID, f.Severity, f.Status}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]repositories.FindingCount, 0, len(order))
	for _, k := range order {
		name := ""
		if a, ok := r.areas[k.area]; ok {
			name = a.Name
		}
		out = append(out, repositories.FindingCount{AreaID: k.area, AreaName: name, Severity: k.sev, Status: k.st, Count: counts[k]})
	}
	return out, nil
}

// photos and history

type memPhotoRepo struct {
	*memStore
	failErr error
}

func (r *memPhotoRepo) CreateInTx(_ context.Context, tx pgx.Tx, photo *entities.Photo) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos = append(r.photos, *photo)
	n := len(r.photos) - 1
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.photos = r.photos[:n]
	})
	return nil
}

func (r *memPhotoRepo) ListByFinding(_ context.Context, findingID uuid.UUID) ([]entities.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.Photo, 0)
	for _, p := range r.photos {
		if p.FindingID == findingID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memHistoryRepo struct{ *memStore }

func (r memHistoryRepo) CreateInTx(_ context.Context, tx pgx.Tx, entry *entities.StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *entry)
	id := entry.ID
	onRollback(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := range r.history {
			if r.history[i].ID == id {
				r.history = append(r.history[:i], r.history[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r memHistoryRepo) ListByFinding(_ context.Context, findingID uuid.UUID) ([]entities.StatusHistory, error) {
	return r.historyOf(findingID), nil
}

// object storage

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Save(_ context.Context, file io.Reader, _ int64, name, _, prefix string) (string, error) {
	if s.failOn != "" && s.failOn == name {
		return "", errors.New("storage unavailable")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d-%s", prefix, len(s.objects), name)
	s.objects[key] = buf.Bytes()
	return key, nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) URL(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (s *memStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// events

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) named(name string) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []eventbus.Event
	for _, e := range p.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

// telegram

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (t *fakeTelegram) SendMessage(_ context.Context, chatID int64, text string, _ ...telegram.MessageOption) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (t *fakeTelegram) EditMessageText(context.Context, int64, int, string, ...telegram.MessageOption) error {
	return nil
}

func (t *fakeTelegram) AnswerCallbackQuery(context.Context, string, string) error { return nil }

func (t *fakeTelegram) DownloadFile(_ context.Context, fileID string) (*telegram.DownloadedFile, error) {
	return &telegram.DownloadedFile{FileID: fileID, FilePath: "photos/" + fileID + ".jpg", Content: []byte("jpeg")}, nil
}

func (t *fakeTelegram) SetWebhook(context.Context, string, string) error           { return nil }
func (t *fakeTelegram) DeleteWebhook(context.Context) error                        { return nil }
func (t *fakeTelegram) SetMyCommands(context.Context, []telegram.BotCommand) error { return nil }

func (t *fakeTelegram) GetUpdates(context.Context, int64, time.Duration) ([]telegram.Update, error) {
	return nil, nil
}

func (t *fakeTelegram) messages() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentMessage(nil), t.sent...)
}
