package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
)

const (
	settingsCollection = "settings"
	settingsDocumentID = "main"
)

type faqEntryDocument struct {
	Question string `firestore:"question"`
	Answer   string `firestore:"answer"`
}

type settingsDocument struct {
	AboutUs         string             `firestore:"aboutUs,omitempty"`
	ContactEmail    string             `firestore:"contactEmail,omitempty"`
	ContactPhone    string             `firestore:"contactPhone,omitempty"`
	ContactWhatsapp string             `firestore:"contactWhatsapp,omitempty"`
	FAQ             []faqEntryDocument `firestore:"faq,omitempty"`
	PrivacyPolicy   string             `firestore:"privacyPolicy,omitempty"`
	TelegramChatID  string             `firestore:"telegramChatId,omitempty"`
	UpdatedAt       time.Time          `firestore:"updatedAt"`
}

// SettingsRepository owns the settings/main singleton document.
type SettingsRepository struct {
	provider *pfirestore.Provider
	settings *pfirestore.Collection[settingsDocument]
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[settingsDocument](provider, settingsCollection, nil)
	if err != nil {
		return nil, err
	}
	return &SettingsRepository{provider: provider, settings: collection}, nil
}

// Get loads the settings singleton. A missing document yields zero settings
// so the storefront renders before an admin ever saves anything.
func (r *SettingsRepository) Get(ctx context.Context) (domain.SiteSettings, error) {
	doc, err := r.settings.Get(ctx, settingsDocumentID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.SiteSettings{}, nil
		}
		return domain.SiteSettings{}, err
	}
	return toDomainSettings(doc), nil
}

// Put rewrites the settings singleton.
func (r *SettingsRepository) Put(ctx context.Context, settings domain.SiteSettings) error {
	return r.settings.Set(ctx, settingsDocumentID, fromDomainSettings(settings))
}

func fromDomainSettings(settings domain.SiteSettings) settingsDocument {
	doc := settingsDocument{
		AboutUs:         settings.AboutUs,
		ContactEmail:    settings.ContactEmail,
		ContactPhone:    settings.ContactPhone,
		ContactWhatsapp: settings.ContactWhatsapp,
		PrivacyPolicy:   settings.PrivacyPolicy,
		TelegramChatID:  settings.TelegramChatID,
		UpdatedAt:       settings.UpdatedAt,
	}
	for _, entry := range settings.FAQ {
		doc.FAQ = append(doc.FAQ, faqEntryDocument{Question: entry.Question, Answer: entry.Answer})
	}
	return doc
}

func toDomainSettings(doc settingsDocument) domain.SiteSettings {
	settings := domain.SiteSettings{
		AboutUs:         doc.AboutUs,
		ContactEmail:    doc.ContactEmail,
		ContactPhone:    doc.ContactPhone,
		ContactWhatsapp: doc.ContactWhatsapp,
		PrivacyPolicy:   doc.PrivacyPolicy,
		TelegramChatID:  doc.TelegramChatID,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, entry := range doc.FAQ {
		settings.FAQ = append(settings.FAQ, domain.FAQEntry{Question: entry.Question, Answer: entry.Answer})
	}
	return settings
}
