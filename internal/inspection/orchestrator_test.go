package inspection_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/enterprise"
	"github.com/careready/careready/internal/inspection"
	"github.com/careready/careready/internal/mockinspect"
)

// ---------------------------------------------------------------------------
// In-memory session repository — real CAS semantics so version conflicts are
// exercised, not stubbed away
// ---------------------------------------------------------------------------

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*mockinspect.Session

	// failNextUpdate makes the next Update call fail once with this error.
	failNextUpdate error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*mockinspect.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *mockinspect.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*mockinspect.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *memSessionRepo) ListByTenant(_ context.Context, tenantID uuid.UUID, _, _ int) ([]*mockinspect.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mockinspect.Session
	for _, s := range r.sessions {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) CountActiveByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.Status == mockinspect.StatusActive {
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) Update(_ context.Context, s *mockinspect.Session, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextUpdate != nil {
		err := r.failNextUpdate
		r.failNextUpdate = nil
		return err
	}
	cur, ok := r.sessions[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version() != expectedVersion {
		return domain.ErrConflict
	}
	r.sessions[s.ID] = s
	return nil
}

// ---------------------------------------------------------------------------
// Function-field mocks for the lookup repositories
// ---------------------------------------------------------------------------

type mockCatalogRepo struct {
	getByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.TopicCatalog, error)
	getLatestByDomainFunc func(ctx context.Context, d string) (*domain.TopicCatalog, error)
}

func (m *mockCatalogRepo) Create(context.Context, *domain.TopicCatalog) error { return nil }
func (m *mockCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicCatalog, error) {
	return m.getByIDFunc(ctx, id)
}
func (m *mockCatalogRepo) GetLatestByDomain(ctx context.Context, d string) (*domain.TopicCatalog, error) {
	return m.getLatestByDomainFunc(ctx, d)
}
func (m *mockCatalogRepo) List(context.Context) ([]*domain.TopicCatalog, error) { return nil, nil }
func (m *mockCatalogRepo) Update(context.Context, *domain.TopicCatalog) error   { return nil }

type mockProfileRepo struct {
	getByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.LogicProfile, error)
	getDefaultByDomainFunc func(ctx context.Context, d string) (*domain.LogicProfile, error)
}

func (m *mockProfileRepo) Create(context.Context, *domain.LogicProfile) error { return nil }
func (m *mockProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LogicProfile, error) {
	return m.getByIDFunc(ctx, id)
}
func (m *mockProfileRepo) GetDefaultByDomain(ctx context.Context, d string) (*domain.LogicProfile, error) {
	return m.getDefaultByDomainFunc(ctx, d)
}
func (m *mockProfileRepo) List(context.Context) ([]*domain.LogicProfile, error) { return nil, nil }
func (m *mockProfileRepo) Update(context.Context, *domain.LogicProfile) error   { return nil }

type mockSnapshotRepo struct {
	getLatestFunc func(ctx context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error)
}

func (m *mockSnapshotRepo) Create(context.Context, *domain.ProviderSnapshot) error { return nil }
func (m *mockSnapshotRepo) GetByID(context.Context, uuid.UUID, uuid.UUID) (*domain.ProviderSnapshot, error) {
	return nil, domain.ErrNotFound
}
func (m *mockSnapshotRepo) GetLatest(ctx context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error) {
	return m.getLatestFunc(ctx, tenantID)
}
func (m *mockSnapshotRepo) ListByTenant(context.Context, uuid.UUID, int, int) ([]*domain.ProviderSnapshot, error) {
	return nil, nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (m *mockAuditRepo) Record(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListByTenant(context.Context, uuid.UUID, int, int) ([]*domain.AuditEntry, error) {
	return nil, nil
}

func (m *mockAuditRepo) ListByResource(context.Context, uuid.UUID, string, uuid.UUID) ([]*domain.AuditEntry, error) {
	return nil, nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type mockPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (m *mockPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// countByType counts published events of one type.
func (m *mockPublisher) countByType(t *testing.T, eventType mockinspect.EventType) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, p := range m.payloads {
		var ev struct {
			Type mockinspect.EventType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(p, &ev))
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, _ uuid.UUID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func testCatalog() *domain.TopicCatalog {
	return &domain.TopicCatalog{
		ID:      uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Domain:  "CQC",
		Name:    "Adult Social Care",
		Version: 1,
		Topics: []domain.Topic{
			{
				ID:                  "safe-care",
				Title:               "Safe care and treatment",
				Version:             1,
				StarterTemplateIDs:  []string{"safe-start"},
				FollowUpTemplateIDs: []string{"safe-fu-1", "safe-fu-2"},
			},
			{
				ID:                  "staffing",
				Title:               "Staffing",
				Version:             2,
				StarterTemplateIDs:  []string{"staff-start"},
				FollowUpTemplateIDs: []string{"staff-fu-1"},
			},
		},
	}
}

func testProfile(maxFollowUps, maxQuestions int) *domain.LogicProfile {
	return &domain.LogicProfile{
		ID:                  uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		Name:                "default",
		Domain:              "CQC",
		DefaultMaxFollowUps: maxFollowUps,
		DefaultMaxQuestions: maxQuestions,
	}
}

func testSnapshot() *domain.ProviderSnapshot {
	return &domain.ProviderSnapshot{
		ID:              uuid.MustParse("55555555-5555-5555-5555-555555555555"),
		TenantID:        testTenantID,
		RegulatoryState: "registered",
		ServiceTypes:    []string{"residential"},
	}
}

type testEnv struct {
	orch     *inspection.Orchestrator
	sessions *memSessionRepo
	audit    *mockAuditRepo
	pub      *mockPublisher
	notifier *mockNotifier
}

func newTestEnv(t *testing.T, maxFollowUps, maxQuestions int) *testEnv {
	t.Helper()

	catalog := testCatalog()
	profile := testProfile(maxFollowUps, maxQuestions)
	snapshot := testSnapshot()

	env := &testEnv{
		sessions: newMemSessionRepo(),
		audit:    &mockAuditRepo{},
		pub:      &mockPublisher{},
		notifier: &mockNotifier{},
	}

	env.orch = inspection.New(
		env.sessions,
		&mockCatalogRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.TopicCatalog, error) {
				if id != catalog.ID {
					return nil, domain.ErrNotFound
				}
				return catalog, nil
			},
			getLatestByDomainFunc: func(_ context.Context, d string) (*domain.TopicCatalog, error) {
				if d != catalog.Domain {
					return nil, domain.ErrNotFound
				}
				return catalog, nil
			},
		},
		&mockProfileRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.LogicProfile, error) {
				if id != profile.ID {
					return nil, domain.ErrNotFound
				}
				return profile, nil
			},
			getDefaultByDomainFunc: func(_ context.Context, d string) (*domain.LogicProfile, error) {
				if d != profile.Domain {
					return nil, domain.ErrNotFound
				}
				return profile, nil
			},
		},
		&mockSnapshotRepo{
			getLatestFunc: func(_ context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error) {
				if tenantID != testTenantID {
					return nil, domain.ErrNotFound
				}
				return snapshot, nil
			},
		},
		env.audit,
		env.pub,
		func(tenantID, sessionID uuid.UUID) string {
			return "session:" + tenantID.String() + ":" + sessionID.String()
		},
		env.notifier,
	)

	return env
}

func (e *testEnv) start(t *testing.T) *mockinspect.Session {
	t.Helper()
	s, err := e.orch.StartSession(context.Background(), testTenantID, testUserID, "CQC", nil, nil)
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// StartSession
// ---------------------------------------------------------------------------

func TestStartSession_FreezesDefaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)

	assert.Equal(t, mockinspect.StatusActive, s.Status)
	assert.Equal(t, testSnapshot().ID, s.ContextSnapshotID)
	assert.Equal(t, testProfile(2, 20).ID, s.LogicProfileID)
	assert.Equal(t, testCatalog().ID, s.CatalogID)
	assert.Equal(t, 2, s.Limits.MaxFollowUpsPerTopic)
	assert.Equal(t, 20, s.Limits.MaxTotalQuestions)
	assert.Equal(t, 1, s.Version())
	assert.NotEmpty(t, s.SessionHash)

	assert.Equal(t, []string{"session.started"}, env.audit.actions())
	assert.Equal(t, 1, env.pub.count())
}

func TestStartSession_LicenseQuota(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	env.orch.SetLicense(enterprise.NewValidator(&enterprise.License{MaxActiveSessions: 1}))

	env.start(t)

	_, err := env.orch.StartSession(context.Background(), testTenantID, testUserID, "CQC", nil, nil)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	require.ErrorIs(t, err, enterprise.ErrSessionQuota)
}

func TestStartSession_NoSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	unknownTenant := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	_, err := env.orch.StartSession(context.Background(), unknownTenant, testUserID, "CQC", nil, nil)
	require.ErrorIs(t, err, inspection.ErrSnapshotRequired)
}

// ---------------------------------------------------------------------------
// NextQuestion — catalog walk, auto-open, cyclic follow-ups
// ---------------------------------------------------------------------------

func TestNextQuestion_AutoOpensFirstTopic(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)

	q, err := env.orch.NextQuestion(context.Background(), testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)

	assert.Equal(t, "safe-care", q.TopicID)
	assert.Equal(t, "safe-start", q.TemplateID)
	assert.False(t, q.IsFollowUp)

	// The topic was opened and persisted as a side effect.
	reloaded, err := env.orch.GetSession(context.Background(), testTenantID, s.ID)
	require.NoError(t, err)
	require.Contains(t, reloaded.Topics, "safe-care")
}

func TestNextQuestion_WalksTopicsInCatalogOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	// Drive the first topic to exhaustion: starter + two follow-ups.
	var seen []string
	for range 3 {
		q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
		require.NoError(t, err)
		require.NotNil(t, q)
		require.Equal(t, "safe-care", q.TopicID)
		seen = append(seen, q.TemplateID)

		_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, q.TopicID, "...", q.IsFollowUp)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"safe-start", "safe-fu-1", "safe-fu-2"}, seen)

	// The walk now moves on to the second topic.
	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "staffing", q.TopicID)
	assert.Equal(t, "staff-start", q.TemplateID)
}

func TestNextQuestion_NilWhenAllTopicsExhausted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 1, 20)
	s := env.start(t)
	ctx := context.Background()

	for {
		q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
		require.NoError(t, err)
		if q == nil {
			break
		}
		_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, q.TopicID, "...", q.IsFollowUp)
		require.NoError(t, err)
	}

	// ceiling 1 per topic: starter + one follow-up each, two topics.
	reloaded, err := env.orch.GetSession(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.TotalQuestionsAsked)
}

// ---------------------------------------------------------------------------
// Transitions through the orchestrator
// ---------------------------------------------------------------------------

func TestDraftFinding_SimulationOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)

	updated, err := env.orch.DraftFinding(ctx, testTenantID, s.ID, q.TopicID, mockinspect.DraftFindingFields{
		Severity: "moderate",
		Summary:  "Medication records incomplete",
		Detail:   "MAR sheets missing signatures for two residents",
	})
	require.NoError(t, err)

	require.Len(t, updated.DraftFindings, 1)
	f := updated.DraftFindings[0]
	assert.Equal(t, domain.OriginSimulated, f.Origin)
	assert.Equal(t, domain.DomainSimulation, f.ReportingDomain)
	assert.Equal(t, s.ID, f.SessionID)
}

func TestComplete_ClosesOpenTopicsFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	// Open both topics but close neither.
	for _, topicID := range []string{"safe-care", "staffing"} {
		q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
		require.NoError(t, err)
		require.NotNil(t, q)
		_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, topicID, "...", q.IsFollowUp)
		require.NoError(t, err)

		if topicID == "safe-care" {
			// Exhaust safe-care so the walk opens staffing next.
			for range 2 {
				fq, ferr := env.orch.NextQuestion(ctx, testTenantID, s.ID)
				require.NoError(t, ferr)
				require.NotNil(t, fq)
				_, ferr = env.orch.AskQuestion(ctx, testTenantID, s.ID, fq.TopicID, "...", fq.IsFollowUp)
				require.NoError(t, ferr)
			}
		}
	}

	done, err := env.orch.Complete(ctx, testTenantID, testUserID, s.ID)
	require.NoError(t, err)

	assert.Equal(t, mockinspect.StatusCompleted, done.Status)
	assert.Empty(t, done.OpenTopicIDs())
	for _, ts := range done.Topics {
		assert.NotNil(t, ts.ClosedAt)
	}

	// Notification and audit trail fired.
	require.Len(t, env.notifier.messages, 1)
	assert.Contains(t, env.audit.actions(), "session.completed")
}

func TestComplete_PublishesAutoCloseEventsOnceAfterCommit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	// Open safe-care and leave it open: SESSION_STARTED, TOPIC_OPENED and
	// QUESTION_ASKED are on the wire at this point.
	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)
	_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, q.TopicID, "...", q.IsFollowUp)
	require.NoError(t, err)
	before := env.pub.count()

	// First persist loses the version race, so the transition re-runs. The
	// auto-close events from the discarded attempt must never reach
	// subscribers; only the committed attempt publishes.
	env.sessions.failNextUpdate = domain.ErrConflict

	done, err := env.orch.Complete(ctx, testTenantID, testUserID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, mockinspect.StatusCompleted, done.Status)

	assert.Equal(t, 1, env.pub.countByType(t, mockinspect.EventTopicClosed))
	assert.Equal(t, 1, env.pub.countByType(t, mockinspect.EventSessionCompleted))
	assert.Equal(t, before+2, env.pub.count())
}

func TestComplete_PersistFailurePublishesNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)
	before := env.pub.count()

	env.sessions.failNextUpdate = errors.New("connection reset")

	_, err = env.orch.Complete(ctx, testTenantID, testUserID, s.ID)
	require.Error(t, err)

	assert.Equal(t, before, env.pub.count(), "uncommitted events must not be published")
	assert.Equal(t, 0, env.pub.countByType(t, mockinspect.EventTopicClosed))
}

func TestAbandon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)

	done, err := env.orch.Abandon(context.Background(), testTenantID, testUserID, s.ID, "user closed browser")
	require.NoError(t, err)
	assert.Equal(t, mockinspect.StatusAbandoned, done.Status)
	assert.Contains(t, env.audit.actions(), "session.abandoned")
}

func TestMutationsOnMissingSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)

	_, err := env.orch.AskQuestion(context.Background(), testTenantID, uuid.New(), "safe-care", "...", false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Concurrency — ceilings hold under parallel writers
// ---------------------------------------------------------------------------

func TestConcurrentAskQuestion_CeilingHolds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 5)
	s := env.start(t)
	ctx := context.Background()

	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)

	var wg sync.WaitGroup
	errs := make([]error, 12)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.orch.AskQuestion(ctx, testTenantID, s.ID, "safe-care", "...", false)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, mockinspect.ErrLimitExceeded)
		}
	}
	assert.Equal(t, 5, succeeded)

	reloaded, err := env.orch.GetSession(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.TotalQuestionsAsked)
}

// ---------------------------------------------------------------------------
// Replay verification
// ---------------------------------------------------------------------------

func TestVerifyReplay_RoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	for range 4 {
		q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
		require.NoError(t, err)
		require.NotNil(t, q)
		_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, q.TopicID, "...", q.IsFollowUp)
		require.NoError(t, err)
	}
	_, err := env.orch.DraftFinding(ctx, testTenantID, s.ID, "safe-care", mockinspect.DraftFindingFields{
		Severity: "minor", Summary: "s", Detail: "d",
	})
	require.NoError(t, err)
	_, err = env.orch.Complete(ctx, testTenantID, testUserID, s.ID)
	require.NoError(t, err)

	report, err := env.orch.VerifyReplay(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	assert.True(t, report.Safe)
	assert.Empty(t, report.Violations)
}

func TestVerifyReplay_DetectsTampering(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2, 20)
	s := env.start(t)
	ctx := context.Background()

	q, err := env.orch.NextQuestion(ctx, testTenantID, s.ID)
	require.NoError(t, err)
	require.NotNil(t, q)
	_, err = env.orch.AskQuestion(ctx, testTenantID, s.ID, q.TopicID, "original", q.IsFollowUp)
	require.NoError(t, err)

	// Corrupt a stored event's chain link.
	env.sessions.mu.Lock()
	env.sessions.sessions[s.ID].Events[2].PrevHash = "forged"
	env.sessions.mu.Unlock()

	_, err = env.orch.VerifyReplay(ctx, testTenantID, s.ID)
	require.ErrorIs(t, err, mockinspect.ErrReplayMismatch)
}
