package domain

import (
	"time"

	"github.com/Domenick1991/nikolaus/internal/richtext"
)

// Settings is the singleton configuration edited by the organisers.
type Settings struct {
	MaxTimeSlots           int             `json:"max_time_slots"`
	RoutePlanningDeadline  time.Time       `json:"route_planning_deadline"`
	FinalDeadline          time.Time       `json:"final_deadline"`
	ShowSearchForTimeSlots bool            `json:"show_search_for_time_slots"`
	IntroductionText       richtext.Blocks `json:"introduction_text"`
	PrivacyPolicyLink      string          `json:"privacy_policy_link"`
	LegalNoticeLink        string          `json:"legal_notice_link"`
	VerificationEmail      EmailTemplate   `json:"verification_email"`
	ConfirmationEmail      EmailTemplate   `json:"confirmation_email"`
}

type EmailTemplate struct {
	Subject string          `json:"subject"`
	Body    richtext.Blocks `json:"body"`
}

// CanEditRoutePlanning gates address and time-slot edits. A zero deadline never passes.
func (s Settings) CanEditRoutePlanning(now time.Time) bool {
	return s.RoutePlanningDeadline.IsZero() || now.Before(s.RoutePlanningDeadline)
}

// CanEdit gates every other edit.
func (s Settings) CanEdit(now time.Time) bool {
	return s.FinalDeadline.IsZero() || now.Before(s.FinalDeadline)
}
