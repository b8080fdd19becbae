package httpapi

import "net/http"

func (a *api) handlePostsCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	a.proxy(w, r, proxyCall{
		op:      "proxy.posts.create",
		client:  a.backend,
		method:  http.MethodPost,
		path:    "/posts",
		body:    body,
		failure: "Failed to create post",
	})
}

// handlePostsFeed forwards every query parameter as received.
func (a *api) handlePostsFeed(w http.ResponseWriter, r *http.Request) {
	a.proxy(w, r, proxyCall{
		op:          "proxy.posts.feed",
		client:      a.backend,
		method:      http.MethodGet,
		path:        "/posts/feed",
		query:       r.URL.Query(),
		failure:     "Failed to get posts",
		passMessage: true,
	})
}
