package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/substills/internal/middleware"
)

// Bridge endpoint paths
const (
	PagePath       = "/bridge/page"
	BackgroundPath = "/bridge/background"
)

// maxMessageBytes bounds one bridge message; viewport snapshots dominate
const maxMessageBytes = 64 << 20

// RegisterRoutes mounts both bridge endpoints on r. Either side may be nil
// when this process only hosts one context.
func RegisterRoutes(r gin.IRouter, auth *middleware.BridgeAuth, page PageResolver, bg BackgroundService) {
	if page != nil {
		r.POST(PagePath, auth.Require(middleware.RoleController, middleware.RoleBackground), serveHandler(PageHandler(page)))
	}
	if bg != nil {
		r.POST(BackgroundPath, auth.Require(middleware.RoleController, middleware.RolePage), serveHandler(BackgroundHandler(bg)))
	}
}

func serveHandler(handler Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBytes)

		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
			return
		}

		// failures travel inside the response envelope
		c.JSON(http.StatusOK, handler(c.Request.Context(), req))
	}
}

// HTTPTransport delivers requests to a bridge endpoint over HTTP
type HTTPTransport struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewHTTPTransport creates a transport posting to url
func NewHTTPTransport(url, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		URL:    strings.TrimRight(url, "/"),
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

// RoundTrip posts req and decodes the response envelope
func (t *HTTPTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.Token)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("bridge request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return Response{}, fmt.Errorf("bridge endpoint returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var resp Response
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxMessageBytes)).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
