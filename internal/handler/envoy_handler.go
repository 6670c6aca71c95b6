package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admission-api/internal/service"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
	"github.com/noah-isme/uni-admission-api/pkg/response"
)

// EnvoyHandler exposes envoy participation endpoints.
type EnvoyHandler struct {
	envoys  *service.EnvoyService
	rosters *service.RosterService
}

// NewEnvoyHandler creates a new handler.
func NewEnvoyHandler(envoys *service.EnvoyService, rosters *service.RosterService) *EnvoyHandler {
	return &EnvoyHandler{envoys: envoys, rosters: rosters}
}

// Join godoc
// @Summary Join an admission as envoy
// @Description Registers the caller as envoy and issues a referral code
// @Tags Envoys
// @Produce json
// @Param id path string true "Admission ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/join [post]
func (h *EnvoyHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	presenter, err := h.envoys.Join(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, presenter)
}

// Link godoc
// @Summary Shareable referral link
// @Description Returns the public application link for the caller's referral code
// @Tags Envoys
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id}/link [get]
func (h *EnvoyHandler) Link(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	presenter, err := h.envoys.Registration(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	link := h.envoys.ShareableLink(c.Request.Host, scheme, presenter.ReferralCode)
	response.JSON(c, http.StatusOK, gin.H{"referral_code": presenter.ReferralCode, "link": link}, nil)
}

// List godoc
// @Summary List an admission's envoys
// @Tags Envoys
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id}/envoys [get]
func (h *EnvoyHandler) List(c *gin.Context) {
	presenters, err := h.envoys.ListByAdmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, presenters, nil)
}

// Approve godoc
// @Summary Approve an envoy registration
// @Tags Envoys
// @Produce json
// @Param id path string true "Presenter ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /envoys/{id}/approve [post]
func (h *EnvoyHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.envoys.Approve(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove godoc
// @Summary Remove an envoy registration
// @Description Deletes the pairing; attributed enrollments go with it
// @Tags Envoys
// @Produce json
// @Param id path string true "Presenter ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /envoys/{id} [delete]
func (h *EnvoyHandler) Remove(c *gin.Context) {
	if err := h.envoys.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rewards godoc
// @Summary Envoy reward summary
// @Tags Envoys
// @Produce json
// @Param id path string true "Presenter ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /envoys/{id}/rewards [get]
func (h *EnvoyHandler) Rewards(c *gin.Context) {
	summary, err := h.rosters.Rewards(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
