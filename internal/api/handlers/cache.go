package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/watchtowerdns/watchtower/internal/api/models"
)

// GetCache godoc
// @Summary Cache snapshot
// @Description Returns the resolver cache contents as HTML or JSON, negotiated on Accept
// @Tags cache
// @Produce json
// @Produce html
// @Success 200 {object} models.CacheSnapshotResponse
// @Security ApiKeyAuth
// @Router /cache [get]
func (h *Handler) GetCache(c *gin.Context) {
	cacheStore := h.recordCache()
	if cacheStore == nil {
		c.JSON(http.StatusOK, models.CacheSnapshotResponse{})
		return
	}

	snapshot := cacheStore.List()
	domains := make([]models.CacheDomainEntry, 0, len(snapshot))
	for _, d := range snapshot {
		records := make([]models.CacheRecord, 0, len(d.Records))
		for _, rr := range d.Records {
			records = append(records, models.CacheRecord{
				Type:  rr.QueryType().String(),
				Value: formatRecordValue(rr),
				TTL:   rr.TTL(),
			})
		}
		domains = append(domains, models.CacheDomainEntry{
			Domain:  d.Domain,
			Hits:    d.Hits,
			Updates: d.Updates,
			Records: records,
		})
	}

	resp := models.CacheSnapshotResponse{Domains: domains, Count: len(domains)}

	if wantsHTML(c.GetHeader("Accept")) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderCacheHTML(resp)))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// wantsHTML reports whether the Accept header prefers HTML over JSON.
func wantsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	htmlIdx := strings.Index(accept, "text/html")
	jsonIdx := strings.Index(accept, "application/json")
	if htmlIdx == -1 {
		return false
	}
	if jsonIdx == -1 {
		return true
	}
	return htmlIdx < jsonIdx
}

func renderCacheHTML(snap models.CacheSnapshotResponse) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>watchtower cache</title></head><body>")
	fmt.Fprintf(&b, "<h1>cache (%d domains)</h1><table border=\"1\"><tr><th>domain</th><th>hits</th><th>updates</th><th>records</th></tr>", snap.Count)
	for _, d := range snap.Domains {
		b.WriteString("<tr><td>")
		b.WriteString(d.Domain)
		fmt.Fprintf(&b, "</td><td>%d</td><td>%d</td><td><ul>", d.Hits, d.Updates)
		for _, r := range d.Records {
			fmt.Fprintf(&b, "<li>%s %d %s</li>", r.Type, r.TTL, r.Value)
		}
		b.WriteString("</ul></td></tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}
