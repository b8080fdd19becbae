package httpapi

import (
	"net/http"
	"net/url"
)

func (a *api) handleUsersSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteJSON(w, http.StatusOK, []struct{}{})
		return
	}

	a.proxy(w, r, proxyCall{
		op:      "proxy.users.search",
		client:  a.backend,
		method:  http.MethodGet,
		path:    "/users/search",
		query:   url.Values{"q": {q}},
		failure: "Failed to search users",
	})
}
