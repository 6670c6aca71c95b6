package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admission-api/internal/models"
	"github.com/noah-isme/uni-admission-api/internal/service"
	appErrors "github.com/noah-isme/uni-admission-api/pkg/errors"
	"github.com/noah-isme/uni-admission-api/pkg/response"
)

// AdmissionHandler exposes campaign catalog and lifecycle endpoints.
type AdmissionHandler struct {
	service *service.AdmissionService
}

// NewAdmissionHandler creates a new handler.
func NewAdmissionHandler(svc *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{service: svc}
}

// ListAvailable godoc
// @Summary List admissions open for envoy registration
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/available [get]
func (h *AdmissionHandler) ListAvailable(c *gin.Context) {
	admissions, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, nil)
}

// ListRunning godoc
// @Summary List admissions not yet finished
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/running [get]
func (h *AdmissionHandler) ListRunning(c *gin.Context) {
	admissions, err := h.service.ListRunning(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, nil)
}

// ListFinished godoc
// @Summary List finished admissions
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/finished [get]
func (h *AdmissionHandler) ListFinished(c *gin.Context) {
	admissions, err := h.service.ListFinished(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, nil)
}

// Get godoc
// @Summary Get one admission
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Create godoc
// @Summary Open a new admission campaign
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body models.CreateAdmissionRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req models.CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}

	admission, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admission)
}

// Update godoc
// @Summary Edit an admission campaign
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body models.UpdateAdmissionRequest true "Admission payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id} [put]
func (h *AdmissionHandler) Update(c *gin.Context) {
	var req models.UpdateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}

	admission, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Finish godoc
// @Summary Close an admission campaign
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/finish [post]
func (h *AdmissionHandler) Finish(c *gin.Context) {
	if err := h.service.Finish(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an admission campaign
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id} [delete]
func (h *AdmissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTypes godoc
// @Summary List admission types
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admission-types [get]
func (h *AdmissionHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateType godoc
// @Summary Add an admission type
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Type name"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admission-types [post]
func (h *AdmissionHandler) CreateType(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "type name is required"))
		return
	}

	t, err := h.service.CreateType(c.Request.Context(), payload.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}
