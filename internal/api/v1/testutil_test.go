package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/mockinspect"
	"github.com/careready/careready/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject tenant/user/role into context for DoCtx
// ---------------------------------------------------------------------------

func tenantCtx(tenantID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
	return ctx
}

func userCtx(tenantID, userID uuid.UUID) context.Context {
	ctx := tenantCtx(tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	return ctx
}

func adminCtx(tenantID uuid.UUID) context.Context {
	return roleCtx(tenantID, "admin")
}

func roleCtx(tenantID uuid.UUID, role string) context.Context {
	ctx := tenantCtx(tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants   domain.TenantRepository
	users     domain.UserRepository
	sessions  mockinspect.SessionRepository
	findings  domain.FindingRepository
	catalogs  domain.TopicCatalogRepository
	profiles  domain.LogicProfileRepository
	snapshots domain.ProviderSnapshotRepository
	audit     domain.AuditRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository             { return m.tenants }
func (m *mockDataStore) Users() domain.UserRepository                 { return m.users }
func (m *mockDataStore) Sessions() mockinspect.SessionRepository      { return m.sessions }
func (m *mockDataStore) Findings() domain.FindingRepository           { return m.findings }
func (m *mockDataStore) Catalogs() domain.TopicCatalogRepository      { return m.catalogs }
func (m *mockDataStore) Profiles() domain.LogicProfileRepository      { return m.profiles }
func (m *mockDataStore) Snapshots() domain.ProviderSnapshotRepository { return m.snapshots }
func (m *mockDataStore) Audit() domain.AuditRepository                { return m.audit }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc    func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc   func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getBySlugFunc func(ctx context.Context, slug string) (*domain.Tenant, error)
	updateFunc    func(ctx context.Context, t *domain.Tenant) error
	listFunc      func(ctx context.Context) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock SessionRepository
// ---------------------------------------------------------------------------

type mockSessionRepo struct {
	createFunc              func(ctx context.Context, s *mockinspect.Session) error
	getByIDFunc             func(ctx context.Context, tenantID, id uuid.UUID) (*mockinspect.Session, error)
	listByTenantFunc        func(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*mockinspect.Session, error)
	countActiveByTenantFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	updateFunc              func(ctx context.Context, s *mockinspect.Session, expectedVersion int) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s *mockinspect.Session) error {
	return m.createFunc(ctx, s)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*mockinspect.Session, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockSessionRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*mockinspect.Session, error) {
	return m.listByTenantFunc(ctx, tenantID, limit, offset)
}

func (m *mockSessionRepo) CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return m.countActiveByTenantFunc(ctx, tenantID)
}

func (m *mockSessionRepo) Update(ctx context.Context, s *mockinspect.Session, expectedVersion int) error {
	return m.updateFunc(ctx, s, expectedVersion)
}

// ---------------------------------------------------------------------------
// Mock FindingRepository
// ---------------------------------------------------------------------------

type mockFindingRepo struct {
	createFunc                func(ctx context.Context, f *domain.Finding) error
	getByIDFunc               func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Finding, error)
	listBySessionFunc         func(ctx context.Context, tenantID, sessionID uuid.UUID) ([]*domain.Finding, error)
	listByReportingDomainFunc func(ctx context.Context, tenantID uuid.UUID, rd domain.ReportingDomain, limit, offset int) ([]*domain.Finding, error)
}

func (m *mockFindingRepo) Create(ctx context.Context, f *domain.Finding) error {
	return m.createFunc(ctx, f)
}

func (m *mockFindingRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Finding, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockFindingRepo) ListBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]*domain.Finding, error) {
	return m.listBySessionFunc(ctx, tenantID, sessionID)
}

func (m *mockFindingRepo) ListByReportingDomain(ctx context.Context, tenantID uuid.UUID, rd domain.ReportingDomain, limit, offset int) ([]*domain.Finding, error) {
	return m.listByReportingDomainFunc(ctx, tenantID, rd, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock TopicCatalogRepository
// ---------------------------------------------------------------------------

type mockCatalogRepo struct {
	createFunc            func(ctx context.Context, c *domain.TopicCatalog) error
	getByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.TopicCatalog, error)
	getLatestByDomainFunc func(ctx context.Context, d string) (*domain.TopicCatalog, error)
	listFunc              func(ctx context.Context) ([]*domain.TopicCatalog, error)
	updateFunc            func(ctx context.Context, c *domain.TopicCatalog) error
}

func (m *mockCatalogRepo) Create(ctx context.Context, c *domain.TopicCatalog) error {
	return m.createFunc(ctx, c)
}

func (m *mockCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicCatalog, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCatalogRepo) GetLatestByDomain(ctx context.Context, d string) (*domain.TopicCatalog, error) {
	return m.getLatestByDomainFunc(ctx, d)
}

func (m *mockCatalogRepo) List(ctx context.Context) ([]*domain.TopicCatalog, error) {
	return m.listFunc(ctx)
}

func (m *mockCatalogRepo) Update(ctx context.Context, c *domain.TopicCatalog) error {
	return m.updateFunc(ctx, c)
}

// ---------------------------------------------------------------------------
// Mock LogicProfileRepository
// ---------------------------------------------------------------------------

type mockProfileRepo struct {
	createFunc             func(ctx context.Context, p *domain.LogicProfile) error
	getByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.LogicProfile, error)
	getDefaultByDomainFunc func(ctx context.Context, d string) (*domain.LogicProfile, error)
	listFunc               func(ctx context.Context) ([]*domain.LogicProfile, error)
	updateFunc             func(ctx context.Context, p *domain.LogicProfile) error
}

func (m *mockProfileRepo) Create(ctx context.Context, p *domain.LogicProfile) error {
	return m.createFunc(ctx, p)
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LogicProfile, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockProfileRepo) GetDefaultByDomain(ctx context.Context, d string) (*domain.LogicProfile, error) {
	return m.getDefaultByDomainFunc(ctx, d)
}

func (m *mockProfileRepo) List(ctx context.Context) ([]*domain.LogicProfile, error) {
	return m.listFunc(ctx)
}

func (m *mockProfileRepo) Update(ctx context.Context, p *domain.LogicProfile) error {
	return m.updateFunc(ctx, p)
}

// ---------------------------------------------------------------------------
// Mock ProviderSnapshotRepository
// ---------------------------------------------------------------------------

type mockSnapshotRepo struct {
	createFunc       func(ctx context.Context, s *domain.ProviderSnapshot) error
	getByIDFunc      func(ctx context.Context, tenantID, id uuid.UUID) (*domain.ProviderSnapshot, error)
	getLatestFunc    func(ctx context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error)
	listByTenantFunc func(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.ProviderSnapshot, error)
}

func (m *mockSnapshotRepo) Create(ctx context.Context, s *domain.ProviderSnapshot) error {
	return m.createFunc(ctx, s)
}

func (m *mockSnapshotRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.ProviderSnapshot, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockSnapshotRepo) GetLatest(ctx context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error) {
	return m.getLatestFunc(ctx, tenantID)
}

func (m *mockSnapshotRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.ProviderSnapshot, error) {
	return m.listByTenantFunc(ctx, tenantID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	loginFunc        func(ctx context.Context, tenantID uuid.UUID, email, password string) (string, string, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuthService) Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, tenantID, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, tenantID uuid.UUID, email, password string) (string, string, error) {
	return m.loginFunc(ctx, tenantID, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

// ---------------------------------------------------------------------------
// Mock SessionOrchestrator
// ---------------------------------------------------------------------------

type mockOrchestrator struct {
	startSessionFunc func(ctx context.Context, tenantID, userID uuid.UUID, regDomain string, profileID, catalogID *uuid.UUID) (*mockinspect.Session, error)
	getSessionFunc   func(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.Session, error)
	nextQuestionFunc func(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.QuestionContext, error)
	askQuestionFunc  func(ctx context.Context, tenantID, sessionID uuid.UUID, topicID, questionText string, isFollowUp bool) (*mockinspect.Session, error)
	draftFindingFunc func(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string, fields mockinspect.DraftFindingFields) (*mockinspect.Session, error)
	closeTopicFunc   func(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string) (*mockinspect.Session, error)
	completeFunc     func(ctx context.Context, tenantID, userID, sessionID uuid.UUID) (*mockinspect.Session, error)
	abandonFunc      func(ctx context.Context, tenantID, userID, sessionID uuid.UUID, reason string) (*mockinspect.Session, error)
	verifyReplayFunc func(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.SafetyReport, error)
}

func (m *mockOrchestrator) StartSession(ctx context.Context, tenantID, userID uuid.UUID, regDomain string, profileID, catalogID *uuid.UUID) (*mockinspect.Session, error) {
	return m.startSessionFunc(ctx, tenantID, userID, regDomain, profileID, catalogID)
}

func (m *mockOrchestrator) GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.Session, error) {
	return m.getSessionFunc(ctx, tenantID, sessionID)
}

func (m *mockOrchestrator) NextQuestion(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.QuestionContext, error) {
	return m.nextQuestionFunc(ctx, tenantID, sessionID)
}

func (m *mockOrchestrator) AskQuestion(ctx context.Context, tenantID, sessionID uuid.UUID, topicID, questionText string, isFollowUp bool) (*mockinspect.Session, error) {
	return m.askQuestionFunc(ctx, tenantID, sessionID, topicID, questionText, isFollowUp)
}

func (m *mockOrchestrator) DraftFinding(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string, fields mockinspect.DraftFindingFields) (*mockinspect.Session, error) {
	return m.draftFindingFunc(ctx, tenantID, sessionID, topicID, fields)
}

func (m *mockOrchestrator) CloseTopic(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string) (*mockinspect.Session, error) {
	return m.closeTopicFunc(ctx, tenantID, sessionID, topicID)
}

func (m *mockOrchestrator) Complete(ctx context.Context, tenantID, userID, sessionID uuid.UUID) (*mockinspect.Session, error) {
	return m.completeFunc(ctx, tenantID, userID, sessionID)
}

func (m *mockOrchestrator) Abandon(ctx context.Context, tenantID, userID, sessionID uuid.UUID, reason string) (*mockinspect.Session, error) {
	return m.abandonFunc(ctx, tenantID, userID, sessionID, reason)
}

func (m *mockOrchestrator) VerifyReplay(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.SafetyReport, error) {
	return m.verifyReplayFunc(ctx, tenantID, sessionID)
}
