package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/nikolaus/internal/richtext"
	"github.com/Domenick1991/nikolaus/internal/service/settings"
)

type ConfigHandler struct {
	service  settings.SettingsUseCase
	renderer *richtext.HTMLRenderer
}

// configResponse is the public part of the settings. Mail templates stay internal.
type configResponse struct {
	MaxTimeSlots           int             `json:"max_time_slots"`
	RoutePlanningDeadline  *time.Time      `json:"route_planning_deadline"`
	FinalDeadline          *time.Time      `json:"final_deadline"`
	ShowSearchForTimeSlots bool            `json:"show_search_for_time_slots"`
	IntroductionText       richtext.Blocks `json:"introduction_text"`
	IntroductionHTML       string          `json:"introduction_html"`
	PrivacyPolicyLink      string          `json:"privacy_policy_link"`
	LegalNoticeLink        string          `json:"legal_notice_link"`
}

func NewConfigHandler(service settings.SettingsUseCase, renderer *richtext.HTMLRenderer) *ConfigHandler {
	return &ConfigHandler{service: service, renderer: renderer}
}

func (h *ConfigHandler) Register(router *gin.RouterGroup) {
	router.GET("/config", h.get)
}

func (h *ConfigHandler) get(c *gin.Context) {
	s, err := h.service.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	respond(c, http.StatusOK, configResponse{
		MaxTimeSlots:           s.MaxTimeSlots,
		RoutePlanningDeadline:  optionalTime(s.RoutePlanningDeadline),
		FinalDeadline:          optionalTime(s.FinalDeadline),
		ShowSearchForTimeSlots: s.ShowSearchForTimeSlots,
		IntroductionText:       s.IntroductionText,
		IntroductionHTML:       h.renderer.Render(s.IntroductionText),
		PrivacyPolicyLink:      s.PrivacyPolicyLink,
		LegalNoticeLink:        s.LegalNoticeLink,
	}, nil)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
