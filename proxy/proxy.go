// Package proxy relays upstream audio streams through the API. JioSaavn's
// CDN rejects browser origins, so the player fetches those streams here
// and we forward the bytes with permissive CORS headers.
package proxy

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const upstreamTimeout = 30 * time.Second

// Some CDNs refuse requests without a browser-looking User-Agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Proxy struct {
	httpClient *http.Client
	logger     *log.Entry
}

func New() *Proxy {
	return &Proxy{
		httpClient: &http.Client{Timeout: upstreamTimeout},
		logger:     log.WithFields(log.Fields{"module": "proxy"}),
	}
}

// Stream handles GET /api/proxy/audio?url=...
func (p *Proxy) Stream(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "URL parameter is required"})
		return
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Only http(s) URLs can be proxied"})
		return
	}

	p.logger.Debugf("Proxying audio stream from %s", truncate(target, 80))

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid stream URL"})
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if r := c.GetHeader("Range"); r != "" {
		req.Header.Set("Range", r)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Errorf("Upstream fetch failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to proxy audio stream"})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mp4"
	}
	c.Header("Content-Type", contentType)
	c.Header("Accept-Ranges", "bytes")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Range")
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		c.Header("Content-Length", cl)
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// Listeners abandon streams constantly; log at trace and move on.
		p.logger.Tracef("Stream copy ended early: %v", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
