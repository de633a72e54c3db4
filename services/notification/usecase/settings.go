package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lecturenotify/domain"
	"lecturenotify/pkg/vault"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	settingsEntityType = "notification_settings"
	undecryptable      = "[unreadable]"
)

type settingsUC struct {
	repo    domain.SettingsRepo
	audit   domain.AuditRepo
	vault   domain.SecretVault
	log     *logrus.Logger
	TimeOut time.Duration
}

func NewSettingsUseCase(repo domain.SettingsRepo, audit domain.AuditRepo, v domain.SecretVault, log *logrus.Logger, timeOut time.Duration) domain.SettingsUseCase {
	return &settingsUC{
		repo:    repo,
		audit:   audit,
		vault:   v,
		log:     log,
		TimeOut: timeOut,
	}
}

// GetSettings returns the stored row with secrets still encrypted, or
// domain.ErrSettingsNotFound.
func (su *settingsUC) GetSettings(ctx context.Context, ownerType domain.OwnerType, ownerID int) (*domain.NotificationSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, su.TimeOut)
	defer cancel()

	return su.repo.GetByOwner(ctx, ownerType, ownerID)
}

// UpsertSettings merges patch into the owner's row, creating it on first
// use. Plaintext secrets are encrypted before anything is written, and a
// redacted diff is appended to the audit trail when something changed.
func (su *settingsUC) UpsertSettings(ctx context.Context, patch *domain.SettingsPatch, actorID int) (*domain.NotificationSettings, error) {
	if patch.OwnerType != domain.OwnerOrganization && patch.OwnerType != domain.OwnerUser {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOwnerType, patch.OwnerType)
	}

	ctx, cancel := context.WithTimeout(ctx, su.TimeOut)
	defer cancel()

	saved, action, changes, err := su.upsertOnce(ctx, patch)
	if errors.Is(err, domain.ErrSettingsConflict) {
		// A concurrent request created the row first; merge into it instead.
		saved, action, changes, err = su.upsertOnce(ctx, patch)
	}
	if err != nil {
		return nil, err
	}

	if action != "" {
		su.appendAudit(ctx, action, saved, changes, actorID)
	}
	return saved, nil
}

func (su *settingsUC) upsertOnce(ctx context.Context, patch *domain.SettingsPatch) (*domain.NotificationSettings, domain.AuditAction, map[string]FieldChange, error) {
	existing, err := su.repo.GetByOwner(ctx, patch.OwnerType, patch.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrSettingsNotFound) {
		return nil, "", nil, err
	}

	var next *domain.NotificationSettings
	if existing != nil {
		next = existing.Clone()
	} else {
		next = &domain.NotificationSettings{
			OwnerType: patch.OwnerType,
			OwnerID:   patch.OwnerID,
			Channels:  domain.Channels{},
		}
	}

	if err := su.applyPatch(next, patch); err != nil {
		return nil, "", nil, err
	}

	changes, err := diffSettings(existing, next)
	if err != nil {
		return nil, "", nil, fmt.Errorf("could not diff notification settings: %w", err)
	}

	if existing == nil {
		if err := su.repo.Create(ctx, next); err != nil {
			return nil, "", nil, err
		}
		return next, domain.AuditCreate, changes, nil
	}

	if len(changes) == 0 {
		return existing, "", nil, nil
	}
	if err := su.repo.Update(ctx, next); err != nil {
		return nil, "", nil, err
	}
	return next, domain.AuditUpdate, changes, nil
}

func (su *settingsUC) applyPatch(dst *domain.NotificationSettings, patch *domain.SettingsPatch) error {
	if dst.Channels == nil {
		dst.Channels = domain.Channels{}
	}
	for key, enabled := range patch.Channels {
		ch, err := domain.ParseChannel(string(key))
		if err != nil {
			return err
		}
		dst.Channels[ch] = enabled
	}

	if src := patch.EmailConfig; src != nil {
		if dst.EmailConfig == nil {
			dst.EmailConfig = &domain.EmailConfig{}
		}
		c := dst.EmailConfig
		mergeString(&c.Provider, src.Provider)
		mergeString(&c.SMTPHost, src.SMTPHost)
		if src.SMTPPort != 0 {
			c.SMTPPort = src.SMTPPort
		}
		mergeString(&c.Username, src.Username)
		mergeString(&c.FromName, src.FromName)
		mergeString(&c.FromEmail, src.FromEmail)
		if err := su.seal(&c.EncryptedPassword, src.Password); err != nil {
			return err
		}
		c.Password = ""
	}

	if src := patch.SMSConfig; src != nil {
		if dst.SMSConfig == nil {
			dst.SMSConfig = &domain.SMSConfig{}
		}
		c := dst.SMSConfig
		mergeString(&c.Provider, src.Provider)
		mergeString(&c.TwilioSID, src.TwilioSID)
		mergeString(&c.PhoneNumber, src.PhoneNumber)
		if err := su.seal(&c.EncryptedTwilioToken, src.TwilioToken); err != nil {
			return err
		}
		c.TwilioToken = ""
	}

	if src := patch.PushConfig; src != nil {
		if dst.PushConfig == nil {
			dst.PushConfig = &domain.PushConfig{}
		}
		c := dst.PushConfig
		if err := su.seal(&c.EncryptedServiceAccountJSON, src.ServiceAccountJSON); err != nil {
			return err
		}
		c.ServiceAccountJSON = ""
	}

	if src := patch.CalendarConfig; src != nil {
		if dst.CalendarConfig == nil {
			dst.CalendarConfig = &domain.CalendarConfig{}
		}
		c := dst.CalendarConfig
		mergeString(&c.ClientID, src.ClientID)
		mergeString(&c.RedirectURI, src.RedirectURI)
		if err := su.seal(&c.EncryptedClientSecret, src.ClientSecret); err != nil {
			return err
		}
		if err := su.seal(&c.EncryptedRefreshToken, src.RefreshToken); err != nil {
			return err
		}
		c.ClientSecret = ""
		c.RefreshToken = ""
	}
	return nil
}

// seal encrypts plaintext into *enc. Re-submitting the value that is
// already stored keeps the old ciphertext, so an unchanged secret does
// not show up as a change.
func (su *settingsUC) seal(enc *string, plaintext string) error {
	if plaintext == "" {
		return nil
	}
	if *enc != "" {
		if current, err := su.vault.Decrypt(*enc); err == nil && current == plaintext {
			return nil
		}
	}
	ct, err := su.vault.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("could not encrypt credential: %w", err)
	}
	*enc = ct
	return nil
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func (su *settingsUC) appendAudit(ctx context.Context, action domain.AuditAction, saved *domain.NotificationSettings, changes map[string]FieldChange, actorID int) {
	entry := &domain.AuditLog{
		EventID:    uuid.New(),
		UserID:     actorID,
		Action:     action,
		EntityType: settingsEntityType,
		EntityID:   saved.ID,
		Changes:    datatypes.JSONMap(changesToJSON(changes)),
	}

	if err := su.audit.Append(ctx, entry); err != nil {
		settingsAuditWrites.WithLabelValues(string(action), "error").Inc()
		su.log.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": saved.ID,
			"actor_id":  actorID,
		}).Error("failed to write settings audit entry")
		return
	}
	settingsAuditWrites.WithLabelValues(string(action), "ok").Inc()
}

// MaskedView renders settings for API responses: each secret is decrypted,
// masked and placed in its plaintext field, and ciphertext is dropped.
func (su *settingsUC) MaskedView(s *domain.NotificationSettings) *domain.NotificationSettings {
	if s == nil {
		return nil
	}
	out := s.Clone()
	if c := out.EmailConfig; c != nil {
		su.mask(&c.Password, &c.EncryptedPassword)
	}
	if c := out.SMSConfig; c != nil {
		su.mask(&c.TwilioToken, &c.EncryptedTwilioToken)
	}
	if c := out.PushConfig; c != nil {
		su.mask(&c.ServiceAccountJSON, &c.EncryptedServiceAccountJSON)
	}
	if c := out.CalendarConfig; c != nil {
		su.mask(&c.ClientSecret, &c.EncryptedClientSecret)
		su.mask(&c.RefreshToken, &c.EncryptedRefreshToken)
	}
	return out
}

func (su *settingsUC) mask(plain, enc *string) {
	defer func() { *enc = "" }()

	if *enc == "" {
		*plain = ""
		return
	}
	pt, err := su.vault.Decrypt(*enc)
	if err != nil {
		su.log.WithError(err).Warn("stored credential cannot be decrypted")
		*plain = undecryptable
		return
	}
	*plain = vault.Mask(pt)
}
