package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"favorsweb/internal/backend"
)

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	a.proxy(w, r, proxyCall{
		op:      "proxy.friends",
		client:  a.backend,
		method:  http.MethodGet,
		path:    "/friends",
		failure: "Failed to get friends",
	})
}

func (a *api) handleFriendsCreateRequest(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if !truthy(gjson.GetBytes(body, "toUserId")) {
		WriteError(w, http.StatusBadRequest, "validation_error", "toUserId is required")
		return
	}

	a.proxy(w, r, proxyCall{
		op:      "proxy.friends.send",
		client:  a.backend,
		method:  http.MethodPost,
		path:    "/friends/requests",
		body:    body,
		failure: "Failed to send friend request",
	})
}

// truthy reports whether a JSON value counts as present: not null, false,
// zero or the empty string.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return true
	}
}

type upstreamStatusError struct {
	op     string
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.op, e.status)
}

// handleFriendRequests joins the incoming and outgoing request lists, fetched
// concurrently. Either one failing fails the whole response.
func (a *api) handleFriendRequests(w http.ResponseWriter, r *http.Request) {
	token, _ := BearerToken(r.Context())
	var incoming, outgoing json.RawMessage

	g, ctx := errgroup.WithContext(r.Context())
	fetch := func(op, path string, dst *json.RawMessage) func() error {
		return func() error {
			resp, err := a.backend.Forward(ctx, backend.ForwardRequest{
				Op:     op,
				Method: http.MethodGet,
				Path:   path,
				Token:  token,
			})
			if err != nil {
				return err
			}
			if !resp.OK() {
				return &upstreamStatusError{op: op, status: resp.Status}
			}
			*dst = resp.Body
			return nil
		}
	}
	g.Go(fetch("proxy.friends.incoming", "/friends/requests/incoming", &incoming))
	g.Go(fetch("proxy.friends.outgoing", "/friends/requests/outgoing", &outgoing))

	if err := g.Wait(); err != nil {
		var statusErr *upstreamStatusError
		if errors.As(err, &statusErr) {
			a.logger.Debug("friend requests failed", "err", err)
			WriteError(w, http.StatusInternalServerError, "backend_error", "Failed to get friend requests")
			return
		}
		a.logger.Error("upstream unreachable", "op", "proxy.friends.requests", "err", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]json.RawMessage{
		"incoming": orEmptyList(incoming),
		"outgoing": orEmptyList(outgoing),
	})
}

func orEmptyList(raw json.RawMessage) json.RawMessage {
	if !gjson.ValidBytes(raw) {
		return json.RawMessage("[]")
	}
	return raw
}
