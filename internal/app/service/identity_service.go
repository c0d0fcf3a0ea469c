package service

import (
	"context"
	"errors"
	"strings"

	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/identity"
	"agt_platform/internal/platform/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeliveryTracker remembers which webhook deliveries were already applied.
type DeliveryTracker interface {
	Seen(ctx context.Context, deliveryID string) (bool, error)
	Mark(ctx context.Context, deliveryID string) error
}

// IdentityService applies identity-provider account events to the users table.
// The users table owns roles; the provider only ever receives a copy.
type IdentityService struct {
	users    repository.UserRepository
	provider identity.MetadataSyncer
	tracker  DeliveryTracker
	audit    *AuditService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewIdentityService(
	users repository.UserRepository,
	provider identity.MetadataSyncer,
	tracker DeliveryTracker,
	audit *AuditService,
) *IdentityService {
	if provider == nil {
		provider = identity.NoopProvider{}
	}
	return &IdentityService{
		users:    users,
		provider: provider,
		tracker:  tracker,
		audit:    audit,
		validate: validator.New(),
		log:      logger.Component("identity"),
	}
}

type identityProfile struct {
	ExternalID string `validate:"required"`
	Email      string `validate:"required,email"`
	Name       string `validate:"required"`
	ImageURL   *string
}

// HandleEvent applies one verified delivery. Redelivery of an applied event is a no-op.
func (s *IdentityService) HandleEvent(ctx context.Context, deliveryID string, ev identity.Event) error {
	log := s.log.With().Str("delivery_id", deliveryID).Str("type", ev.Type).Logger()

	if s.tracker != nil && deliveryID != "" {
		seen, err := s.tracker.Seen(ctx, deliveryID)
		if err != nil {
			log.Warn().Err(err).Msg("Delivery lookup failed, processing anyway")
		} else if seen {
			log.Info().Msg("Duplicate delivery ignored")
			return nil
		}
	}

	var err error
	switch ev.Type {
	case identity.EventUserCreated:
		err = s.handleCreated(ctx, ev)
	case identity.EventUserUpdated:
		err = s.handleUpdated(ctx, ev)
	case identity.EventUserDeleted:
		err = s.handleDeleted(ctx, ev)
	default:
		log.Debug().Msg("Ignoring unhandled event type")
		return nil
	}
	if err != nil {
		return err
	}

	if s.tracker != nil && deliveryID != "" {
		if mErr := s.tracker.Mark(ctx, deliveryID); mErr != nil {
			log.Warn().Err(mErr).Msg("Failed to mark delivery as processed")
		}
	}
	return nil
}

func (s *IdentityService) handleCreated(ctx context.Context, ev identity.Event) error {
	data, err := ev.UserData()
	if err != nil {
		return common.NewValidationError("data", err.Error())
	}
	p, err := s.profile(data)
	if err != nil {
		return err
	}

	u, err := s.upsert(ctx, p)
	if err != nil {
		return err
	}
	s.log.Info().Str("external_id", u.ExternalID).Str("user_id", u.ID).Msg("User provisioned")
	s.mirror(ctx, u)
	return nil
}

func (s *IdentityService) handleUpdated(ctx context.Context, ev identity.Event) error {
	data, err := ev.UserData()
	if err != nil {
		return common.NewValidationError("data", err.Error())
	}
	p, err := s.profile(data)
	if err != nil {
		return err
	}

	u, err := s.users.UpdateProfile(ctx, p.ExternalID, p.Email, p.Name, p.ImageURL)
	if errors.Is(err, common.ErrNotFound) {
		// updated can overtake created
		s.log.Info().Str("external_id", p.ExternalID).Msg("Update for unknown user, provisioning")
		u, err = s.upsert(ctx, p)
		if err != nil {
			return err
		}
		s.mirror(ctx, u)
		return nil
	}
	if err != nil {
		return common.Errorf("failed to update user %s: %w", p.ExternalID, err)
	}

	relayed := data.MetadataRole()
	relayedRole, _ := model.NormalizeRole(relayed)
	relayedID, _ := data.PublicMetadata["dbId"].(string)
	if relayedRole != u.Role || relayedID != u.ID {
		if relayed != "" && relayedRole != u.Role {
			s.log.Warn().Str("external_id", u.ExternalID).Str("provider_role", relayed).Str("role", u.Role).
				Msg("Provider role differs from internal role, re-mirroring")
		}
		s.mirror(ctx, u)
	}
	return nil
}

func (s *IdentityService) handleDeleted(ctx context.Context, ev identity.Event) error {
	data, err := ev.DeletedData()
	if err != nil {
		return common.NewValidationError("data", err.Error())
	}
	if data.ID == "" {
		s.log.Info().Msg("Delete event without user id, nothing to do")
		return nil
	}

	u, err := s.users.SoftDelete(ctx, data.ID)
	if errors.Is(err, common.ErrNotFound) {
		s.log.Info().Str("external_id", data.ID).Msg("Delete event for unknown user, nothing to do")
		return nil
	}
	if err != nil {
		return common.Errorf("failed to delete user %s: %w", data.ID, err)
	}

	s.audit.Record(ctx, nil, model.AuditUserDeleted, model.AuditTargetUser, u.ID, map[string]interface{}{"source": "identity_provider"})
	s.log.Info().Str("user_id", u.ID).Msg("User soft-deleted")
	return nil
}

func (s *IdentityService) profile(data identity.UserData) (identityProfile, error) {
	email, ok := data.PrimaryEmail()
	if !ok {
		return identityProfile{}, common.NewValidationError("email", "no primary email address")
	}
	p := identityProfile{
		ExternalID: data.ID,
		Email:      email,
		Name:       data.DisplayName(),
	}
	if data.ImageURL != "" {
		img := data.ImageURL
		p.ImageURL = &img
	}
	if err := s.validate.Struct(p); err != nil {
		return identityProfile{}, validationFromValidator(err)
	}
	return p, nil
}

func (s *IdentityService) upsert(ctx context.Context, p identityProfile) (*model.User, error) {
	u, err := s.users.Upsert(ctx, &model.User{
		ID:         uuid.NewString(),
		ExternalID: p.ExternalID,
		Email:      p.Email,
		Name:       p.Name,
		ImageURL:   p.ImageURL,
		Role:       model.RoleUser,
	})
	if err != nil {
		return nil, common.Errorf("failed to upsert user %s: %w", p.ExternalID, err)
	}
	return u, nil
}

// mirror copies id and role to the provider. Failures are logged only.
func (s *IdentityService) mirror(ctx context.Context, u *model.User) {
	err := s.provider.SyncMetadata(ctx, u.ExternalID, identity.Metadata{DBID: u.ID, Role: u.Role})
	if err != nil {
		s.log.Error().Err(err).Str("external_id", u.ExternalID).Msg("Failed to mirror metadata to identity provider")
	}
}

// validationFromValidator reports the first failing field as a common.ValidationError.
func validationFromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return common.NewValidationError(field, "is required")
		case "email":
			return common.NewValidationError(field, "is not a valid email address")
		default:
			return common.NewValidationError(field, "failed "+fe.Tag()+" check")
		}
	}
	return common.NewValidationError("", err.Error())
}
