package service

import (
	"context"
	"errors"
	"fmt"

	"agt_platform/internal/common"
	"agt_platform/internal/common/security"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/identity"
	"agt_platform/internal/platform/logger"

	"github.com/rs/zerolog"
)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *security.TokenIssuer
	provider identity.MetadataSyncer
	audit    *AuditService
	log      zerolog.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *security.TokenIssuer,
	provider identity.MetadataSyncer,
	audit *AuditService,
) *AuthService {
	if provider == nil {
		provider = identity.NoopProvider{}
	}
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		provider: provider,
		audit:    audit,
		log:      logger.Component("auth"),
	}
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type UserPage struct {
	Users  []model.User `json:"users"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// IssueToken mints a bearer token for a live user. Role comes from the users table.
func (s *AuthService) IssueToken(ctx context.Context, externalID string) (*AuthResponse, error) {
	if externalID == "" {
		return nil, common.NewValidationError("external_id", "is required")
	}
	user, err := s.userRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("user %s: %w", externalID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{User: user, Token: token}, nil
}

// ResolveUser loads the live user behind a token. Deleted users are unauthorized.
func (s *AuthService) ResolveUser(ctx context.Context, userID string) (*model.User, error) {
	if requireID("user", userID) != nil {
		return nil, common.ErrUnauthorized
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) (*UserPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, total, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Limit: limit, Offset: offset}, nil
}

// SetRole changes a user's role in the users table, records it, and mirrors it to the provider.
func (s *AuthService) SetRole(ctx context.Context, actorID, userID, role string) (*model.User, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	normalized, ok := model.NormalizeRole(role)
	if !ok {
		return nil, common.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	before, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("user %s: %w", userID, err)
	}
	if before.Role == normalized {
		return before, nil
	}
	if err := s.userRepo.UpdateRole(ctx, userID, normalized); err != nil {
		return nil, common.Errorf("failed to update role for %s: %w", userID, err)
	}

	s.audit.Record(ctx, &actorID, model.AuditRoleChanged, model.AuditTargetUser, userID,
		map[string]interface{}{"from": before.Role, "to": normalized})

	after, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.provider.SyncMetadata(ctx, after.ExternalID, identity.Metadata{DBID: after.ID, Role: after.Role}); err != nil {
		s.log.Error().Err(err).Str("user_id", after.ID).Msg("Failed to mirror role to identity provider")
	}
	s.log.Info().Str("user_id", userID).Str("actor_id", actorID).Str("role", normalized).Msg("Role changed")
	return after, nil
}
