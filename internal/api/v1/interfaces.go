package v1

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/mockinspect"
	"github.com/careready/careready/internal/server/middleware"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Users() domain.UserRepository
	Sessions() mockinspect.SessionRepository
	Findings() domain.FindingRepository
	Catalogs() domain.TopicCatalogRepository
	Profiles() domain.LogicProfileRepository
	Snapshots() domain.ProviderSnapshotRepository
	Audit() domain.AuditRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, tenantID uuid.UUID, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, tenantID uuid.UUID, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
}

// SessionOrchestrator abstracts the mock inspection session lifecycle for
// handler testing. *inspection.Orchestrator satisfies this interface.
type SessionOrchestrator interface {
	StartSession(ctx context.Context, tenantID, userID uuid.UUID, regDomain string, profileID, catalogID *uuid.UUID) (*mockinspect.Session, error)
	GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.Session, error)
	NextQuestion(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.QuestionContext, error)
	AskQuestion(ctx context.Context, tenantID, sessionID uuid.UUID, topicID, questionText string, isFollowUp bool) (*mockinspect.Session, error)
	DraftFinding(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string, fields mockinspect.DraftFindingFields) (*mockinspect.Session, error)
	CloseTopic(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string) (*mockinspect.Session, error)
	Complete(ctx context.Context, tenantID, userID, sessionID uuid.UUID) (*mockinspect.Session, error)
	Abandon(ctx context.Context, tenantID, userID, sessionID uuid.UUID, reason string) (*mockinspect.Session, error)
	VerifyReplay(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.SafetyReport, error)
}

// requireContentManager authorizes operations that shape inspection content:
// catalog versions, logic profiles, and real inspection findings. Admins and
// inspection leads pass; members and viewers are rejected.
func requireContentManager(ctx context.Context) error {
	role, ok := middleware.RoleFromContext(ctx)
	if !ok || (role != middleware.RoleAdmin && role != middleware.RoleInspectionLead) {
		return huma.Error403Forbidden("admin or inspection lead role required")
	}
	return nil
}
