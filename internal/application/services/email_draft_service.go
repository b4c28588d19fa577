package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/money"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

const draftContextActivities = 5

const draftSystemPrompt = `You are a sales assistant writing emails on behalf of a sales representative.
Write a concise email. Reply with the subject on the first line as "Subject: <subject>",
then a blank line, then the body. Do not add any other commentary.`

// EmailDraftService drafts sales emails with the configured LLM provider.
type EmailDraftService struct {
	contacts   *persistence.ContactRepository
	companies  *persistence.CompanyRepository
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	completer  ports.Completer
	bus        ports.EventPublisher
	now        func() time.Time
}

// NewEmailDraftService creates an EmailDraftService. A nil completer makes
// Draft report the feature as unavailable.
func NewEmailDraftService(
	contacts *persistence.ContactRepository,
	companies *persistence.CompanyRepository,
	deals *persistence.DealRepository,
	activities *persistence.ActivityRepository,
	completer ports.Completer,
	bus ports.EventPublisher,
) *EmailDraftService {
	return &EmailDraftService{
		contacts:   contacts,
		companies:  companies,
		deals:      deals,
		activities: activities,
		completer:  completer,
		bus:        bus,
		now:        time.Now,
	}
}

// DraftContext is everything the prompt is built from.
type DraftContext struct {
	Contact    *models.Contact
	Company    *models.Company
	Deal       *models.Deal
	Activities []*models.Activity
	Sender     string
}

// Draft generates an email for a contact and optionally saves it to the
// contact's timeline.
func (s *EmailDraftService) Draft(ctx context.Context, user *models.UserSession, req models.EmailDraftRequest) (*models.EmailDraft, error) {
	if s.completer == nil {
		return nil, apperrors.NewUnavailableError("email drafting")
	}
	if req.Purpose == "" {
		req.Purpose = models.PurposeFollowUp
	}
	if !req.Purpose.Valid() {
		return nil, apperrors.NewValidationError("purpose", "unknown purpose "+string(req.Purpose))
	}
	if req.Tone == "" {
		req.Tone = models.ToneProfessional
	}
	if !req.Tone.Valid() {
		return nil, apperrors.NewValidationError("tone", "unknown tone "+string(req.Tone))
	}
	if req.Purpose == models.PurposeCustom && strings.TrimSpace(req.Instructions) == "" {
		return nil, apperrors.NewValidationError("instructions", "instructions are required for a custom email")
	}

	dc, err := s.loadContext(ctx, user, req)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, draftSystemPrompt, BuildPrompt(dc, req))
	if err != nil {
		zap.L().Warn("email draft failed", zap.String("provider", s.completer.Name()), zap.Error(err))
		return nil, apperrors.NewUpstreamError(s.completer.Name(), err)
	}

	subject, body := ParseDraft(reply, req.Purpose)
	if body == "" {
		return nil, apperrors.NewUpstreamError(s.completer.Name(), errors.New("empty draft"))
	}
	draft := &models.EmailDraft{Subject: subject, Body: body, Provider: s.completer.Name()}

	if req.SaveAsActivity {
		id, err := s.saveActivity(ctx, user, dc, draft)
		if err != nil {
			return nil, err
		}
		draft.ActivityID = &id
	}
	return draft, nil
}

func (s *EmailDraftService) loadContext(ctx context.Context, user *models.UserSession, req models.EmailDraftRequest) (*DraftContext, error) {
	contact, err := s.contacts.Get(ctx, user.ID, req.ContactID)
	if err != nil {
		return nil, mapRepoError(err, "Contact", req.ContactID)
	}
	dc := &DraftContext{Contact: contact, Sender: user.Name}
	if dc.Sender == "" {
		dc.Sender = user.Email
	}

	if contact.CompanyID != nil {
		company, err := s.companies.Get(ctx, user.ID, *contact.CompanyID)
		switch {
		case err == nil:
			dc.Company = company
		case !errors.Is(err, persistence.ErrNotFound):
			return nil, fmt.Errorf("load company: %w", err)
		}
	}

	if req.DealID != nil && *req.DealID != "" {
		deal, err := s.deals.Get(ctx, user.ID, *req.DealID)
		if err != nil {
			return nil, mapRepoError(err, "Deal", *req.DealID)
		}
		dc.Deal = deal
	}

	dc.Activities, err = s.activities.Timeline(ctx, user.ID, models.TimelineContact, contact.ID, draftContextActivities)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	return dc, nil
}

func (s *EmailDraftService) saveActivity(ctx context.Context, user *models.UserSession, dc *DraftContext, draft *models.EmailDraft) (string, error) {
	now := s.now().UTC()
	a := &models.Activity{
		ID:          utils.GenerateID(),
		UserID:      user.ID,
		Type:        models.ActivityEmail,
		Subject:     draft.Subject,
		Description: utils.StringPtr(draft.Body),
		ContactID:   &dc.Contact.ID,
		CompanyID:   dc.Contact.CompanyID,
		OccurredAt:  now,
		CreatedAt:   now,
	}
	if dc.Deal != nil {
		a.DealID = &dc.Deal.ID
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return "", fmt.Errorf("save draft activity: %w", err)
	}
	publish(ctx, s.bus, events.Insert, constants.TableActivities, user.ID, a.ID, a)
	return a.ID, nil
}

var purposeGoals = map[models.EmailPurpose]string{
	models.PurposeFollowUp:       "Follow up on our recent conversation and propose a next step.",
	models.PurposeIntroduction:   "Introduce yourself and your company and ask for a short call.",
	models.PurposeProposal:       "Present a proposal and summarize its value.",
	models.PurposeMeetingRequest: "Request a meeting and suggest two time slots.",
	models.PurposeThankYou:       "Thank the contact for their time and recap what was agreed.",
	models.PurposeCustom:         "Follow the additional instructions.",
}

// BuildPrompt renders the user prompt for a draft.
func BuildPrompt(dc *DraftContext, req models.EmailDraftRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Purpose: %s\n", purposeGoals[req.Purpose])
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	if dc.Sender != "" {
		fmt.Fprintf(&b, "Sender: %s\n", dc.Sender)
	}

	c := dc.Contact
	b.WriteString("\nRecipient:\n")
	fmt.Fprintf(&b, "- Name: %s\n", c.FullName())
	if c.JobTitle != nil {
		fmt.Fprintf(&b, "- Title: %s\n", *c.JobTitle)
	}
	if c.Email != nil {
		fmt.Fprintf(&b, "- Email: %s\n", *c.Email)
	}
	fmt.Fprintf(&b, "- Status: %s\n", c.Status)

	if dc.Company != nil {
		b.WriteString("\nCompany:\n")
		fmt.Fprintf(&b, "- Name: %s\n", dc.Company.Name)
		if dc.Company.Industry != nil {
			fmt.Fprintf(&b, "- Industry: %s\n", *dc.Company.Industry)
		}
	}

	if d := dc.Deal; d != nil {
		b.WriteString("\nDeal:\n")
		fmt.Fprintf(&b, "- Title: %s\n", d.Title)
		fmt.Fprintf(&b, "- Value: %s\n", money.Format(d.Value, d.Currency))
		fmt.Fprintf(&b, "- Stage: %s\n", d.Stage.Label())
		if d.ExpectedCloseDate != nil {
			fmt.Fprintf(&b, "- Expected close: %s\n", d.ExpectedCloseDate.Format("2006-01-02"))
		}
	}

	if len(dc.Activities) > 0 {
		b.WriteString("\nRecent activity (newest first):\n")
		for _, a := range dc.Activities {
			fmt.Fprintf(&b, "- %s %s: %s\n", a.OccurredAt.Format("2006-01-02"), a.Type, a.Subject)
		}
	}

	if ins := strings.TrimSpace(req.Instructions); ins != "" {
		b.WriteString("\nAdditional instructions:\n")
		b.WriteString(ins)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseDraft splits a model reply into subject and body. The subject is the
// first "Subject:" line; without one the purpose's default subject is used
// and the whole reply is the body.
func ParseDraft(reply string, purpose models.EmailPurpose) (subject, body string) {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(reply), "\r\n", "\n"), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "*# "))
		if len(trimmed) < len("subject:") || !strings.EqualFold(trimmed[:len("subject:")], "subject:") {
			continue
		}
		subject = strings.TrimSpace(strings.Trim(strings.TrimSpace(trimmed[len("subject:"):]), "*"))
		rest := append(append([]string{}, lines[:i]...), lines[i+1:]...)
		body = strings.TrimSpace(strings.Join(rest, "\n"))
		break
	}
	if subject == "" {
		subject = purpose.DefaultSubject()
		if body == "" {
			body = strings.TrimSpace(strings.Join(lines, "\n"))
		}
	}
	return subject, body
}
