package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type loginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	body, _ := json.Marshal(req)
	a.proxy(w, r, proxyCall{
		op:          "proxy.login",
		client:      a.auth,
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        body,
		failure:     "Invalid credentials",
		passMessage: true,
		failStatus:  http.StatusUnauthorized,
	})
}

type signupRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	body, _ := json.Marshal(req)
	a.proxy(w, r, proxyCall{
		op:          "proxy.signup",
		client:      a.backend,
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		failure:     "Registration failed",
		passMessage: true,
	})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	a.proxy(w, r, proxyCall{
		op:          "proxy.me",
		client:      a.backend,
		method:      http.MethodGet,
		path:        "/auth/me",
		failure:     "Failed to get user",
		passMessage: true,
	})
}
