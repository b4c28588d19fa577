package models

// EmailPurpose selects the drafting template.
type EmailPurpose string

const (
	PurposeFollowUp       EmailPurpose = "follow_up"
	PurposeIntroduction   EmailPurpose = "introduction"
	PurposeProposal       EmailPurpose = "proposal"
	PurposeMeetingRequest EmailPurpose = "meeting_request"
	PurposeThankYou       EmailPurpose = "thank_you"
	PurposeCustom         EmailPurpose = "custom"
)

var purposeSubjects = map[EmailPurpose]string{
	PurposeFollowUp:       "Following up",
	PurposeIntroduction:   "Introduction",
	PurposeProposal:       "Proposal",
	PurposeMeetingRequest: "Meeting request",
	PurposeThankYou:       "Thank you",
	PurposeCustom:         "Hello",
}

// Valid reports whether p is a known purpose.
func (p EmailPurpose) Valid() bool {
	_, ok := purposeSubjects[p]
	return ok
}

// DefaultSubject is used when the model reply has no subject line.
func (p EmailPurpose) DefaultSubject() string {
	if s, ok := purposeSubjects[p]; ok {
		return s
	}
	return purposeSubjects[PurposeCustom]
}

// EmailTone sets the register of a draft.
type EmailTone string

const (
	ToneProfessional EmailTone = "professional"
	ToneFriendly     EmailTone = "friendly"
	ToneFormal       EmailTone = "formal"
	ToneCasual       EmailTone = "casual"
)

// Valid reports whether t is a known tone.
func (t EmailTone) Valid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneFormal, ToneCasual:
		return true
	}
	return false
}

// EmailDraftRequest is the POST /email/draft body.
type EmailDraftRequest struct {
	ContactID      string       `json:"contact_id" binding:"required"`
	DealID         *string      `json:"deal_id"`
	Purpose        EmailPurpose `json:"purpose"`
	Tone           EmailTone    `json:"tone"`
	Instructions   string       `json:"instructions" binding:"max=2000"`
	SaveAsActivity bool         `json:"save_as_activity"`
}

// EmailDraft is a generated email.
type EmailDraft struct {
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Provider   string  `json:"provider"`
	ActivityID *string `json:"activity_id,omitempty"`
}
