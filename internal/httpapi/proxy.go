package httpapi

import (
	"bytes"
	"net/http"
	"net/url"

	"favorsweb/internal/backend"
)

// proxyCall describes one request relayed to the backend on behalf of the
// caller, whose bearer token (if any) is passed through.
type proxyCall struct {
	op     string
	client *backend.Client
	method string
	path   string
	query  url.Values
	body   []byte

	// failure is the message used for non-2xx responses. With passMessage
	// the backend's own message wins when it has one.
	failure     string
	passMessage bool
	// failStatus overrides the backend status on non-2xx when set.
	failStatus int
}

func (a *api) proxy(w http.ResponseWriter, r *http.Request, pc proxyCall) {
	token, _ := BearerToken(r.Context())
	resp, err := pc.client.Forward(r.Context(), backend.ForwardRequest{
		Op:     pc.op,
		Method: pc.method,
		Path:   pc.path,
		Query:  pc.query,
		Body:   pc.body,
		Token:  token,
	})
	if err != nil {
		a.logger.Error("upstream unreachable", "op", pc.op, "err", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}
	if !resp.OK() {
		a.writeUpstreamError(w, pc, resp)
		return
	}
	relay(w, resp)
}

func (a *api) writeUpstreamError(w http.ResponseWriter, pc proxyCall, resp backend.ForwardResponse) {
	msg := pc.failure
	if pc.passMessage {
		if m := backend.ErrorMessage(resp.Body); m != "" {
			msg = m
		}
	}
	status := resp.Status
	if pc.failStatus != 0 {
		status = pc.failStatus
	}
	a.logger.Debug("upstream error", "op", pc.op, "status", resp.Status, "body", string(resp.Body))
	WriteStatusError(w, status, msg)
}

func relay(w http.ResponseWriter, resp backend.ForwardResponse) {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		w.WriteHeader(resp.Status)
		return
	}
	writeRaw(w, resp.Status, resp.Body)
}
