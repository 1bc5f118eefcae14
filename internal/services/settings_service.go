package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/kograph/api/internal/repositories"
)

// ErrSettingsInvalidInput signals an invalid settings update.
var ErrSettingsInvalidInput = errors.New("settings: invalid input")

// SettingsServiceDeps bundles collaborators required to construct the settings service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type settingsService struct {
	settings repositories.SettingsRepository
	policy   *bluemonday.Policy
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ SettingsService = (*settingsService)(nil)

// NewSettingsService wires dependencies into a SettingsService implementation.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &settingsService{
		settings: deps.Settings,
		policy:   newSettingsHTMLPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *settingsService) Get(ctx context.Context) (SiteSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("settings: load: %w", err)
	}
	return settings, nil
}

// Update sanitises the rich-text fields and rewrites the singleton.
func (s *settingsService) Update(ctx context.Context, cmd UpdateSettingsCommand) (SiteSettings, error) {
	settings := cmd.Settings
	if email := strings.TrimSpace(settings.ContactEmail); email != "" && !strings.Contains(email, "@") {
		return SiteSettings{}, fmt.Errorf("%w: contact email is malformed", ErrSettingsInvalidInput)
	}
	for _, entry := range settings.FAQ {
		if strings.TrimSpace(entry.Question) == "" || strings.TrimSpace(entry.Answer) == "" {
			return SiteSettings{}, fmt.Errorf("%w: faq entries need question and answer", ErrSettingsInvalidInput)
		}
	}

	settings.AboutUs = s.policy.Sanitize(settings.AboutUs)
	settings.PrivacyPolicy = s.policy.Sanitize(settings.PrivacyPolicy)
	settings.ContactEmail = strings.TrimSpace(settings.ContactEmail)
	settings.ContactPhone = strings.TrimSpace(settings.ContactPhone)
	settings.ContactWhatsapp = strings.TrimSpace(settings.ContactWhatsapp)
	settings.TelegramChatID = strings.TrimSpace(settings.TelegramChatID)
	settings.UpdatedAt = s.clock()

	if err := s.settings.Put(ctx, settings); err != nil {
		return SiteSettings{}, fmt.Errorf("settings: store: %w", err)
	}

	s.logger(ctx, "settings.updated", map[string]any{
		"faqEntries": len(settings.FAQ),
	})
	return settings, nil
}

func newSettingsHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span")
	policy.RequireNoFollowOnLinks(true)
	return policy
}
