package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/watchtowerdns/watchtower/internal/api/models"
	"github.com/watchtowerdns/watchtower/internal/authority"
	"github.com/watchtowerdns/watchtower/internal/dns"
)

// ListZones godoc
// @Summary List zones
// @Description Returns every zone the authority store serves
// @Tags authority
// @Produce json
// @Success 200 {object} models.ZoneListResponse
// @Security ApiKeyAuth
// @Router /authority [get]
func (h *Handler) ListZones(c *gin.Context) {
	store := h.authorityStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "authority store not ready"})
		return
	}

	zones := store.Zones()
	summaries := make([]models.ZoneSummary, 0, len(zones))
	for _, z := range zones {
		summaries = append(summaries, models.ZoneSummary{
			Domain:      z.Domain,
			MName:       z.MName,
			RName:       z.RName,
			Serial:      z.Serial,
			RecordCount: len(z.Records),
		})
	}

	c.JSON(http.StatusOK, models.ZoneListResponse{Zones: summaries, Count: len(summaries)})
}

// CreateZone godoc
// @Summary Create a zone
// @Description Creates a new authoritative zone
// @Tags authority
// @Accept json
// @Produce json
// @Param zone body models.ZoneCreateRequest true "Zone to create"
// @Success 201 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /authority [post]
func (h *Handler) CreateZone(c *gin.Context) {
	store := h.authorityStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "authority store not ready"})
		return
	}

	var req models.ZoneCreateRequest
	if err := bindAny(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	z := authority.NewZone(req.Domain, req.MName, req.RName)
	z.Serial = req.Serial
	if req.Refresh != 0 {
		z.Refresh = req.Refresh
	}
	if req.Retry != 0 {
		z.Retry = req.Retry
	}
	if req.Expire != 0 {
		z.Expire = req.Expire
	}
	if req.Minimum != 0 {
		z.Minimum = req.Minimum
	}

	if err := store.CreateZone(z); err != nil {
		if errors.Is(err, authority.ErrZoneExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.auditLog(c, "zone created", "domain", z.Domain)
	c.JSON(http.StatusCreated, models.StatusResponse{Status: "created"})
}

// GetZone godoc
// @Summary List records in a zone
// @Description Returns every record held by the named zone
// @Tags authority
// @Produce json
// @Param zone path string true "Zone domain"
// @Success 200 {object} models.ZoneDetailResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /authority/{zone} [get]
func (h *Handler) GetZone(c *gin.Context) {
	store := h.authorityStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "authority store not ready"})
		return
	}

	name := c.Param("zone")
	z := store.GetZone(name)
	if z == nil || dns.NormalizeName(z.Domain) != dns.NormalizeName(name) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "zone not found"})
		return
	}

	records := make([]models.ZoneRecord, 0, len(z.Records))
	for _, r := range z.Records {
		records = append(records, models.ZoneRecord{
			RecordType: r.Type.String(),
			Domain:     r.Domain,
			TTL:        r.TTL,
			Host:       r.Host,
		})
	}

	c.JSON(http.StatusOK, models.ZoneDetailResponse{Domain: z.Domain, Records: records})
}

// AddRecord godoc
// @Summary Add a record to a zone
// @Description Adds an A, AAAA, or CNAME record to the named zone
// @Tags authority
// @Accept json
// @Produce json
// @Param zone path string true "Zone domain"
// @Param record body models.RecordCreateRequest true "Record to add"
// @Success 201 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /authority/{zone} [post]
func (h *Handler) AddRecord(c *gin.Context) {
	store := h.authorityStore()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "authority store not ready"})
		return
	}

	zoneName := c.Param("zone")

	var req models.RecordCreateRequest
	if err := bindAny(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	recordType, err := parseRecordType(strings.ToUpper(req.RecordType))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := store.AddRecord(zoneName, recordType, req.Domain, req.Host, req.TTL); err != nil {
		if errors.Is(err, authority.ErrNotAuthoritative) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "zone not found"})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.auditLog(c, "record added", "zone", zoneName, "type", recordType.String(), "domain", req.Domain)
	c.JSON(http.StatusCreated, models.StatusResponse{Status: "created"})
}

// auditLog records an authority-mutating request under a fresh correlation
// ID, so a zone/record change can be traced back through the structured
// logs independently of the DNS query path's own per-query IDs.
func (h *Handler) auditLog(c *gin.Context, msg string, kv ...any) {
	if h.logger == nil {
		return
	}
	args := append([]any{"request_id", uuid.NewString(), "remote", c.ClientIP()}, kv...)
	h.logger.Info(msg, args...)
}

// bindAny binds the request body as JSON or form depending on Content-Type,
// per spec's "form or JSON" contract for the zone and record endpoints.
func bindAny(c *gin.Context, obj any) error {
	ct := c.ContentType()
	if ct == "application/json" {
		return c.ShouldBindJSON(obj)
	}
	return c.ShouldBind(obj)
}
