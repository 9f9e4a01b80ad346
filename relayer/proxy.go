// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BridgePathPrefix is the local path prefix the bridge is mounted under.
const BridgePathPrefix = "/api/relayer/"

// defaultUpstreamTimeout bounds a single forwarded request.
const defaultUpstreamTimeout = 30 * time.Second

// Bridge is a stateless same-origin pass-through to the upstream
// threshold-decryption/coprocessor service. It preserves method, downstream
// path, query string and body byte-for-byte, returns the upstream status and
// body verbatim, and never caches, mutates, or retries. Network-level
// failures surface as HTTP 500 with a JSON error body.
type Bridge struct {
	log      *zap.Logger
	upstream *url.URL
	client   *http.Client
	metrics  *BridgeMetrics
}

// NewBridge creates a bridge forwarding to upstreamBase. A nil metrics
// disables instrumentation.
func NewBridge(log *zap.Logger, upstreamBase string, metrics *BridgeMetrics) (*Bridge, error) {
	u, err := url.Parse(upstreamBase)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream base URL: %q", upstreamBase)
	}
	return &Bridge{
		log:      log,
		upstream: u,
		client:   &http.Client{Timeout: defaultUpstreamTimeout},
		metrics:  metrics,
	}, nil
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if b.metrics != nil {
		b.metrics.requests.Inc()
	}

	downstream := strings.TrimPrefix(r.URL.Path, BridgePathPrefix)
	target := *b.upstream
	target.Path = strings.TrimSuffix(target.Path, "/") + "/" + downstream
	target.RawQuery = r.URL.RawQuery

	var (
		resp *http.Response
		err  error
	)
	switch r.Method {
	case http.MethodGet:
		resp, err = b.client.Get(target.String())
	case http.MethodPost:
		var body []byte
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(b.log, w, http.StatusBadRequest, "could not read request body")
			return
		}
		resp, err = b.client.Post(target.String(), "application/json", strings.NewReader(string(body)))
	default:
		writeJSONError(b.log, w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not supported", r.Method))
		return
	}
	if err != nil {
		if b.metrics != nil {
			b.metrics.upstreamFailures.Inc()
		}
		b.log.Warn("upstream request failed",
			zap.String("target", target.String()),
			zap.Error(err),
		)
		writeJSONError(b.log, w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if b.metrics != nil {
			b.metrics.upstreamFailures.Inc()
		}
		writeJSONError(b.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(payload); err != nil {
		b.log.Error("error writing proxied response", zap.Error(err))
	}

	if b.metrics != nil {
		b.metrics.latencyMS.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// writeJSONError writes an ErrorResponse with the given status.
func writeJSONError(log *zap.Logger, w http.ResponseWriter, statusCode int, errorMsg string) {
	resp, err := json.Marshal(ErrorResponse{Error: errorMsg})
	if err != nil {
		msg := "error marshalling JSON error response"
		log.Error(msg, zap.Error(err))
		resp = []byte(msg)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(resp); err != nil {
		log.Error("error writing error response", zap.Error(err))
	}
}
