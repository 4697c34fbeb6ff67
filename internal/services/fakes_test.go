package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

// memStore is an in-memory SessionStore. Transactions simply run fn.
type memStore struct {
	sessions     map[uuid.UUID]*models.StudySession
	participants []*models.Participant
	timers       []*models.TimerSession
	todoDeletes  []uuid.UUID
	clock        time.Time
	createErrs   []error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uuid.UUID]*models.StudySession{},
		clock:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing timestamps for joined_at.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) WithTx(ctx context.Context, fn func(repository.SessionStore) error) error {
	return fn(m)
}

func (m *memStore) CreateSession(ctx context.Context, s *models.StudySession) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	s.ID = uuid.New()
	s.IsActive = true
	s.CreatedAt = m.tick()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return m.GetSession(ctx, id)
}

func (m *memStore) GetActiveSessionByInviteCode(ctx context.Context, code string) (*models.StudySession, error) {
	for _, s := range m.sessions {
		if s.IsActive && s.InviteCode != nil && *s.InviteCode == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) list(keep func(*models.StudySession) bool) []models.StudySession {
	var out []models.StudySession
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListPublicSessions(ctx context.Context) ([]models.StudySession, error) {
	return m.list(func(s *models.StudySession) bool { return s.IsActive && s.IsPublic }), nil
}

func (m *memStore) ListActiveSessions(ctx context.Context) ([]models.StudySession, error) {
	return m.list(func(s *models.StudySession) bool { return s.IsActive }), nil
}

func (m *memStore) ListSessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error) {
	return m.list(func(s *models.StudySession) bool {
		if !s.IsActive {
			return false
		}
		if s.CreatorUserID == userID {
			return true
		}
		for _, p := range m.participants {
			if p.StudySessionID == s.ID && p.UserID == userID && p.Active() {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) MarkSessionStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s, ok := m.sessions[id]; ok && s.StartedAt == nil {
		s.StartedAt = &at
	}
	return nil
}

func (m *memStore) EndSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.IsActive = false
	s.EndedAt = &at
	return nil
}

func (m *memStore) RecountParticipants(ctx context.Context, id uuid.UUID) (int, error) {
	n, _ := m.CountActiveParticipants(ctx, id)
	if s, ok := m.sessions[id]; ok {
		s.CurrentParticipants = n
	}
	return n, nil
}

func (m *memStore) DeleteTodosBySession(ctx context.Context, id uuid.UUID) error {
	m.todoDeletes = append(m.todoDeletes, id)
	return nil
}

func (m *memStore) GetParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	for _, p := range m.participants {
		if p.StudySessionID == sessionID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListActiveParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range m.participants {
		if p.StudySessionID == sessionID && p.Active() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *memStore) CountActiveParticipants(ctx context.Context, sessionID uuid.UUID) (int, error) {
	n := 0
	for _, p := range m.participants {
		if p.StudySessionID == sessionID && p.Active() {
			n++
		}
	}
	return n, nil
}

func (m *memStore) AddParticipant(ctx context.Context, p *models.Participant) error {
	p.ID = uuid.New()
	p.JoinedAt = m.tick()
	cp := *p
	m.participants = append(m.participants, &cp)
	return nil
}

func (m *memStore) participant(id uuid.UUID) *models.Participant {
	for _, p := range m.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memStore) RejoinParticipant(ctx context.Context, participantID uuid.UUID, at time.Time) error {
	p := m.participant(participantID)
	if p == nil {
		return repository.ErrNotFound
	}
	p.LeftAt = nil
	p.JoinedAt = m.tick()
	return nil
}

func (m *memStore) MarkParticipantLeft(ctx context.Context, participantID uuid.UUID, at time.Time) error {
	p := m.participant(participantID)
	if p == nil {
		return repository.ErrNotFound
	}
	p.LeftAt = &at
	p.IsHost = false
	return nil
}

func (m *memStore) SetHost(ctx context.Context, participantID uuid.UUID) error {
	p := m.participant(participantID)
	if p == nil {
		return repository.ErrNotFound
	}
	p.IsHost = true
	return nil
}

func (m *memStore) DeleteParticipants(ctx context.Context, sessionID uuid.UUID) error {
	kept := m.participants[:0]
	for _, p := range m.participants {
		if p.StudySessionID != sessionID {
			kept = append(kept, p)
		}
	}
	m.participants = kept
	return nil
}

func (m *memStore) TouchParticipant(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error {
	for _, p := range m.participants {
		if p.StudySessionID == sessionID && p.UserID == userID {
			p.LastActivityAt = &at
		}
	}
	return nil
}

func (m *memStore) GetOpenTimer(ctx context.Context, sessionID, userID uuid.UUID) (*models.TimerSession, error) {
	for _, t := range m.timers {
		if t.StudySessionID == sessionID && t.UserID == userID && t.Open() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) CreateTimer(ctx context.Context, t *models.TimerSession) error {
	if _, err := m.GetOpenTimer(ctx, t.StudySessionID, t.UserID); err == nil {
		return repository.ErrOpenTimerExists
	}
	t.ID = uuid.New()
	cp := *t
	m.timers = append(m.timers, &cp)
	return nil
}

func (m *memStore) CloseTimer(ctx context.Context, t *models.TimerSession) error {
	for _, stored := range m.timers {
		if stored.ID == t.ID && stored.Open() {
			*stored = *t
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) CloseOpenTimersForSession(ctx context.Context, sessionID uuid.UUID, at time.Time, note string) (int64, error) {
	var n int64
	for _, t := range m.timers {
		if t.StudySessionID == sessionID && t.Open() {
			closeTimer(t, at, false, note)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListTimers(ctx context.Context, sessionID, userID uuid.UUID) ([]models.TimerSession, error) {
	var out []models.TimerSession
	for _, t := range m.timers {
		if t.StudySessionID == sessionID && t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) ParticipantStudyTimes(ctx context.Context, sessionID uuid.UUID) ([]models.ParticipantStudyTime, error) {
	totals := map[uuid.UUID]*models.ParticipantStudyTime{}
	var order []uuid.UUID
	for _, p := range m.participants {
		if p.StudySessionID == sessionID {
			totals[p.UserID] = &models.ParticipantStudyTime{UserID: p.UserID, UserName: p.UserName}
			order = append(order, p.UserID)
		}
	}
	for _, t := range m.timers {
		if pt, ok := totals[t.UserID]; ok && t.StudySessionID == sessionID &&
			t.SessionType == models.TimerKindStudy && !t.Open() {
			pt.TotalStudyMinutes += t.DurationMinutes
		}
	}
	out := make([]models.ParticipantStudyTime, 0, len(order))
	for _, id := range order {
		out = append(out, *totals[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalStudyMinutes != out[j].TotalStudyMinutes {
			return out[i].TotalStudyMinutes > out[j].TotalStudyMinutes
		}
		return out[i].UserName < out[j].UserName
	})
	return out, nil
}

func (m *memStore) StudyTotalsForUser(ctx context.Context, userID uuid.UUID) ([]models.SessionStudyTotal, error) {
	totals := map[uuid.UUID]int{}
	var order []uuid.UUID
	for _, p := range m.participants {
		if p.UserID == userID {
			totals[p.StudySessionID] = 0
			order = append(order, p.StudySessionID)
		}
	}
	for _, t := range m.timers {
		if _, ok := totals[t.StudySessionID]; ok && t.UserID == userID &&
			t.SessionType == models.TimerKindStudy && !t.Open() {
			totals[t.StudySessionID] += t.DurationMinutes
		}
	}
	out := make([]models.SessionStudyTotal, 0, len(order))
	for _, id := range order {
		out = append(out, models.SessionStudyTotal{SessionID: id, TotalStudyMinutes: totals[id]})
	}
	return out, nil
}

func (m *memStore) CloseStaleTimers(ctx context.Context, openedBefore time.Time, maxMinutes int, note string) (int64, error) {
	var n int64
	for _, t := range m.timers {
		if t.Open() && t.StartTime.Before(openedBefore) {
			closeTimer(t, t.StartTime.Add(time.Duration(maxMinutes)*time.Minute), false, note)
			n++
		}
	}
	return n, nil
}

// activeHosts counts participants currently holding the host flag.
func (m *memStore) activeHosts(sessionID uuid.UUID) int {
	n := 0
	for _, p := range m.participants {
		if p.StudySessionID == sessionID && p.Active() && p.IsHost {
			n++
		}
	}
	return n
}

type publishedEvent struct {
	Type  string
	Event models.SessionEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, ev models.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Event: ev})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingEnqueuer struct {
	reasons []string
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, userID uuid.UUID, reason string) {
	r.reasons = append(r.reasons, reason)
}

type stubCompleter struct {
	text    string
	err     error
	prompts []string
}

func (c *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.text, c.err
}

// fixedClock returns a now func that can be advanced by tests.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeTodoRepo struct {
	todos []*models.Todo
}

func (r *fakeTodoRepo) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Todo, error) {
	var out []models.Todo
	for _, t := range r.todos {
		if t.UserID == userID && t.StudySessionID != nil && *t.StudySessionID == sessionID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTodoRepo) ListUnscoped(ctx context.Context, userID uuid.UUID) ([]models.Todo, error) {
	var out []models.Todo
	for _, t := range r.todos {
		if t.UserID == userID && t.StudySessionID == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTodoRepo) ListCreatedBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Todo, error) {
	var out []models.Todo
	for _, t := range r.todos {
		if t.UserID == userID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTodoRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Todo, error) {
	for _, t := range r.todos {
		if t.ID == id && t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTodoRepo) Create(ctx context.Context, t *models.Todo) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.todos = append(r.todos, &cp)
	return nil
}

func (r *fakeTodoRepo) Update(ctx context.Context, t *models.Todo) error {
	for _, stored := range r.todos {
		if stored.ID == t.ID && stored.UserID == t.UserID {
			*stored = *t
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeTodoRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	for i, t := range r.todos {
		if t.ID == id && t.UserID == userID {
			r.todos = append(r.todos[:i], r.todos[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeFlashcardRepo struct {
	decks   map[uuid.UUID]*models.FlashcardDeck
	cards   map[uuid.UUID]*models.FlashcardCard
	reviews int
}

func newFakeFlashcardRepo() *fakeFlashcardRepo {
	return &fakeFlashcardRepo{decks: map[uuid.UUID]*models.FlashcardDeck{}, cards: map[uuid.UUID]*models.FlashcardCard{}}
}

func (r *fakeFlashcardRepo) CreateDeck(ctx context.Context, d *models.FlashcardDeck, cards []models.FlashcardCard) error {
	d.ID = uuid.New()
	d.CardCount = len(cards)
	for i := range cards {
		cards[i].ID = uuid.New()
		cards[i].DeckID = d.ID
		cards[i].EaseFactor = 2.5
		cp := cards[i]
		r.cards[cp.ID] = &cp
	}
	cp := *d
	r.decks[d.ID] = &cp
	return nil
}

func (r *fakeFlashcardRepo) GetDeck(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	d, ok := r.decks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeFlashcardRepo) ListDecks(ctx context.Context, userID uuid.UUID) ([]models.FlashcardDeck, error) {
	var out []models.FlashcardDeck
	for _, d := range r.decks {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeFlashcardRepo) GetCards(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error) {
	var out []models.FlashcardCard
	for _, c := range r.cards {
		if c.DeckID == deckID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeFlashcardRepo) RateCard(ctx context.Context, cardID, userID uuid.UUID, rating int, next func(models.CardSchedule) models.CardSchedule) (*models.FlashcardCard, error) {
	c, ok := r.cards[cardID]
	if !ok || r.decks[c.DeckID].UserID != userID {
		return nil, repository.ErrNotFound
	}
	s := next(models.CardSchedule{IntervalDays: c.IntervalDays, EaseFactor: c.EaseFactor, Repetitions: c.Repetitions})
	c.IntervalDays, c.EaseFactor, c.Repetitions = s.IntervalDays, s.EaseFactor, s.Repetitions
	r.reviews++
	cp := *c
	return &cp, nil
}

func (r *fakeFlashcardRepo) GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error) {
	stats := &models.DeckStats{}
	for _, c := range r.cards {
		if c.DeckID == deckID {
			stats.TotalCards++
		}
	}
	return stats, nil
}

func (r *fakeFlashcardRepo) CountDecks(ctx context.Context, userID uuid.UUID) (int, error) {
	decks, _ := r.ListDecks(ctx, userID)
	return len(decks), nil
}

func (r *fakeFlashcardRepo) CountReviews(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	return r.reviews, nil
}

type fakeExamRepo struct {
	exams []*models.MockExam
}

func (r *fakeExamRepo) Create(ctx context.Context, e *models.MockExam) error {
	e.ID = uuid.New()
	e.TakenAt = time.Now()
	cp := *e
	r.exams = append(r.exams, &cp)
	return nil
}

func (r *fakeExamRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.MockExam, error) {
	var out []models.MockExam
	for i := len(r.exams) - 1; i >= 0 && len(out) < limit; i-- {
		if r.exams[i].UserID == userID {
			out = append(out, *r.exams[i])
		}
	}
	return out, nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MockExam, error) {
	for _, e := range r.exams {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeNoteRepo struct {
	notes      []*models.Note
	categories []*models.Category
	clock      time.Time
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{clock: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (r *fakeNoteRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeNoteRepo) CreateNote(ctx context.Context, n *models.Note) error {
	n.ID = uuid.New()
	n.CreatedAt = r.tick()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	r.notes = append(r.notes, &cp)
	return nil
}

func (r *fakeNoteRepo) GetNote(ctx context.Context, id, userID uuid.UUID) (*models.Note, error) {
	for _, n := range r.notes {
		if n.ID == id && n.UserID == userID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func filedUnder(n *models.Note, categoryID uuid.UUID) bool {
	for _, id := range n.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

func (r *fakeNoteRepo) ListNotes(ctx context.Context, userID uuid.UUID, categoryID *uuid.UUID) ([]models.Note, error) {
	out := []models.Note{}
	for _, n := range r.notes {
		if n.UserID == userID && (categoryID == nil || filedUnder(n, *categoryID)) {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeNoteRepo) GetNotesByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Note, error) {
	out := []models.Note{}
	for _, n := range r.notes {
		if n.UserID != userID {
			continue
		}
		for _, id := range ids {
			if n.ID == id {
				out = append(out, *n)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeNoteRepo) UpdateNote(ctx context.Context, n *models.Note) error {
	for _, stored := range r.notes {
		if stored.ID == n.ID && stored.UserID == n.UserID {
			n.UpdatedAt = r.tick()
			*stored = *n
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeNoteRepo) DeleteNote(ctx context.Context, id, userID uuid.UUID) error {
	for i, n := range r.notes {
		if n.ID == id && n.UserID == userID {
			r.notes = append(r.notes[:i], r.notes[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeNoteRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	for _, existing := range r.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return &pgconn.PgError{Code: "23505", ConstraintName: categoryNameConstraint}
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = r.tick()
	cp := *c
	r.categories = append(r.categories, &cp)
	return nil
}

func (r *fakeNoteRepo) countNotes(categoryID uuid.UUID) int {
	n := 0
	for _, note := range r.notes {
		if filedUnder(note, categoryID) {
			n++
		}
	}
	return n
}

func (r *fakeNoteRepo) GetCategory(ctx context.Context, id, userID uuid.UUID) (*models.Category, error) {
	for _, c := range r.categories {
		if c.ID == id && c.UserID == userID {
			cp := *c
			cp.NoteCount = r.countNotes(c.ID)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeNoteRepo) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	out := []models.Category{}
	for _, c := range r.categories {
		if c.UserID == userID {
			cp := *c
			cp.NoteCount = r.countNotes(c.ID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeNoteRepo) DeleteCategory(ctx context.Context, id, userID uuid.UUID) error {
	for i, c := range r.categories {
		if c.ID == id && c.UserID == userID {
			r.categories = append(r.categories[:i], r.categories[i+1:]...)
			for _, n := range r.notes {
				kept := make([]uuid.UUID, 0, len(n.CategoryIDs))
				for _, cid := range n.CategoryIDs {
					if cid != id {
						kept = append(kept, cid)
					}
				}
				n.CategoryIDs = kept
			}
			return nil
		}
	}
	return repository.ErrNotFound
}
