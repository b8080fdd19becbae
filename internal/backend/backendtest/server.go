// Package backendtest runs an in-memory favors backend for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"favorsweb/internal/domain"
)

var signingKey = []byte("backendtest-signing-key")

type failure struct {
	status int
	body   string
}

type Server struct {
	srv *httptest.Server

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// PagedMessages wraps message lists in {"content": [...]}.
	PagedMessages bool
	// OmitClientSecret leaves stripeClientSecret out of created payments.
	OmitClientSecret bool

	mu       sync.Mutex
	clock    time.Time
	nextID   int64
	hits     map[string]int
	failures map[string]failure

	users       map[int64]domain.User
	passwords   map[int64]string
	tokens      map[string]int64
	requests    map[int64]*domain.FriendRequest
	friends     map[int64]map[int64]bool
	posts       map[int64]*domain.Post
	tasks       map[int64]*domain.TaskAssignment
	payments    map[int64]*domain.Payment
	reviews     map[int64]*domain.Review
	convs       map[int64]*domain.Conversation
	messages    map[int64][]domain.Message
	notes       map[int64][]*domain.Notification
	lastHeaders http.Header
}

func New(t testing.TB) *Server {
	s := &Server{
		TokenTTL:  time.Hour,
		clock:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		hits:      map[string]int{},
		failures:  map[string]failure{},
		users:     map[int64]domain.User{},
		passwords: map[int64]string{},
		tokens:    map[string]int64{},
		requests:  map[int64]*domain.FriendRequest{},
		friends:   map[int64]map[int64]bool{},
		posts:     map[int64]*domain.Post{},
		tasks:     map[int64]*domain.TaskAssignment{},
		payments:  map[int64]*domain.Payment{},
		reviews:   map[int64]*domain.Review{},
		convs:     map[int64]*domain.Conversation{},
		messages:  map[int64][]domain.Message{},
		notes:     map[int64][]*domain.Notification{},
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /api/health", s.handleHealth)
	s.route(mux, "POST /api/signup", s.handleRegister)
	s.route(mux, "POST /api/auth/register", s.handleRegister)
	s.route(mux, "POST /api/auth/login", s.handleLogin)
	s.route(mux, "GET /api/auth/me", s.authed(s.handleMe))

	s.route(mux, "GET /api/users/me", s.authed(s.handleMe))
	s.route(mux, "GET /api/users/search", s.authed(s.handleUsersSearch))
	s.route(mux, "GET /api/users/{id}", s.authed(s.handleUsersGet))

	s.route(mux, "GET /api/friends", s.authed(s.handleFriendIDs))
	s.route(mux, "GET /api/friends/list", s.authed(s.handleFriendsList))
	s.route(mux, "POST /api/friends/requests", s.authed(s.handleFriendRequestCreate))
	s.route(mux, "PUT /api/friends/requests/{id}/accept", s.authed(s.handleFriendRequestResolve(domain.FriendRequestAccepted)))
	s.route(mux, "PUT /api/friends/requests/{id}/decline", s.authed(s.handleFriendRequestResolve(domain.FriendRequestDeclined)))
	s.route(mux, "GET /api/friends/requests/incoming", s.authed(s.handleFriendRequestsList(true)))
	s.route(mux, "GET /api/friends/requests/outgoing", s.authed(s.handleFriendRequestsList(false)))
	s.route(mux, "DELETE /api/friends/{id}", s.authed(s.handleFriendRemove))

	s.route(mux, "POST /api/posts", s.authed(s.handlePostCreate))
	s.route(mux, "GET /api/posts/feed", s.authed(s.handlePostsFeed))
	s.route(mux, "GET /api/posts/my-posts", s.authed(s.handlePostsMine))
	s.route(mux, "GET /api/posts/accepted", s.authed(s.handlePostsAccepted))
	s.route(mux, "GET /api/posts/user/{id}", s.authed(s.handlePostsByUser))
	s.route(mux, "GET /api/posts/{id}", s.authed(s.handlePostGet))
	s.route(mux, "PUT /api/posts/{id}", s.authed(s.handlePostUpdate))

	s.route(mux, "POST /api/tasks/posts/{id}/accept", s.authed(s.handleTaskAccept))
	s.route(mux, "PUT /api/tasks/{id}/in-progress", s.authed(s.handleTaskProgress(domain.TaskStatusInProgress)))
	s.route(mux, "PUT /api/tasks/{id}/complete", s.authed(s.handleTaskProgress(domain.TaskStatusCompleted)))

	s.route(mux, "POST /api/payments", s.authed(s.handlePaymentCreate))
	s.route(mux, "PUT /api/payments/{id}/status", s.authed(s.handlePaymentStatus))
	s.route(mux, "POST /api/reviews", s.authed(s.handleReviewCreate))

	s.route(mux, "POST /api/conversations", s.authed(s.handleConversationCreate))
	s.route(mux, "GET /api/conversations/{id}/messages", s.authed(s.handleMessagesList))
	s.route(mux, "POST /api/conversations/messages", s.authed(s.handleMessageSend))

	s.route(mux, "GET /api/notifications", s.authed(s.handleNotificationsList))
	s.route(mux, "PUT /api/notifications/{id}/read", s.authed(s.handleNotificationRead))

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL, including the /api prefix.
func (s *Server) URL() string { return s.srv.URL + "/api" }

func (s *Server) Client() *http.Client { return s.srv.Client() }

// Hits returns how many times the route pattern was requested.
func (s *Server) Hits(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pattern]
}

// Fail makes every request to pattern answer with status and body.
func (s *Server) Fail(pattern string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = failure{status: status, body: body}
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders.Clone()
}

// AddUser registers a user and returns it with a fresh token.
func (s *Server) AddUser(username, password string) (domain.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(domain.RegisterRequest{
		Email:       username + "@example.com",
		Username:    username,
		Password:    password,
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
	})
	return u, s.issueLocked(u.ID)
}

// ExpiredToken returns a syntactically valid token whose exp has passed.
func (s *Server) ExpiredToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.clock
	if now := time.Now(); now.Before(exp) {
		exp = now
	}
	tok := s.sign(userID, exp.Add(-time.Minute))
	s.tokens[tok] = userID
	return tok
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[pattern]++
		s.lastHeaders = r.Header.Clone()
		f, failing := s.failures[pattern]
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		h(w, r)
	})
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tok == "" {
			writeMessage(w, http.StatusUnauthorized, "Full authentication is required")
			return
		}
		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return signingKey, nil },
			jwt.WithTimeFunc(s.now))
		s.mu.Lock()
		id, known := s.tokens[tok]
		u := s.users[id]
		s.mu.Unlock()
		if err != nil || !known {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r, u)
	}
}

func (s *Server) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// tickLocked advances the fake clock so every record gets a distinct time.
func (s *Server) tickLocked() domain.Timestamp {
	s.clock = s.clock.Add(time.Second)
	return domain.NewTimestamp(s.clock)
}

func (s *Server) idLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) sign(userID int64, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(s.clock),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) issueLocked(userID int64) string {
	// Tokens must stay valid against the wall clock the client checks them with.
	exp := time.Now().Add(s.TokenTTL)
	if s.clock.After(time.Now()) {
		exp = s.clock.Add(s.TokenTTL)
	}
	tok := s.sign(userID, exp)
	s.tokens[tok] = userID
	return tok
}

func (s *Server) addUserLocked(req domain.RegisterRequest) domain.User {
	u := domain.User{
		ID:          s.idLocked(),
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	}
	s.users[u.ID] = u
	s.passwords[u.ID] = req.Password
	return u
}

func (s *Server) notifyLocked(userID int64, typ, title, message string) {
	s.notes[userID] = append(s.notes[userID], &domain.Notification{
		ID:        s.idLocked(),
		User:      s.users[userID],
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: s.tickLocked(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON request")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "UP"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, req.Username) {
			writeMessage(w, http.StatusConflict, "Username is already taken")
			return
		}
		if strings.EqualFold(u.Email, req.Email) {
			writeMessage(w, http.StatusConflict, "Email is already in use")
			return
		}
	}
	u := s.addUserLocked(req)
	writeJSON(w, http.StatusOK, domain.AuthResponse{Token: s.issueLocked(u.ID), User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		match := (req.Username != "" && strings.EqualFold(u.Username, req.Username)) ||
			(req.Email != "" && strings.EqualFold(u.Email, req.Email))
		if match && s.passwords[u.ID] == req.Password {
			writeJSON(w, http.StatusOK, domain.AuthResponse{Token: s.issueLocked(u.ID), User: u})
			return
		}
	}
	writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, me domain.User) {
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleUsersGet(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	u, found := s.users[id]
	s.mu.Unlock()
	if !found {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUsersSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	s.mu.Lock()
	out := []domain.User{}
	for _, u := range s.users {
		if q != "" && (strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q)) {
			out = append(out, u)
		}
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b domain.User) int { return int(a.ID - b.ID) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) friendIDsLocked(id int64) []int64 {
	ids := make([]int64, 0, len(s.friends[id]))
	for f := range s.friends[id] {
		ids = append(ids, f)
	}
	slices.Sort(ids)
	return ids
}

func (s *Server) handleFriendIDs(w http.ResponseWriter, _ *http.Request, me domain.User) {
	s.mu.Lock()
	ids := s.friendIDsLocked(me.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleFriendsList(w http.ResponseWriter, _ *http.Request, me domain.User) {
	s.mu.Lock()
	out := []domain.User{}
	for _, id := range s.friendIDsLocked(me.ID) {
		out = append(out, s.users[id])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFriendRequestCreate(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.SendFriendRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	to, ok := s.users[req.ToUserID]
	switch {
	case !ok:
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	case to.ID == me.ID:
		writeMessage(w, http.StatusBadRequest, "Cannot send a friend request to yourself")
		return
	case s.friends[me.ID][to.ID]:
		writeMessage(w, http.StatusConflict, "Already friends")
		return
	}
	for _, fr := range s.requests {
		if fr.Status != domain.FriendRequestPending {
			continue
		}
		if (fr.FromUser.ID == me.ID && fr.ToUser.ID == to.ID) || (fr.FromUser.ID == to.ID && fr.ToUser.ID == me.ID) {
			writeMessage(w, http.StatusConflict, "Friend request already pending")
			return
		}
	}

	fr := &domain.FriendRequest{
		ID:        s.idLocked(),
		FromUser:  me,
		ToUser:    to,
		Status:    domain.FriendRequestPending,
		CreatedAt: s.tickLocked(),
	}
	s.requests[fr.ID] = fr
	s.notifyLocked(to.ID, "FRIEND_REQUEST", "New friend request", me.Name()+" sent you a friend request")
	writeJSON(w, http.StatusOK, fr)
}

func (s *Server) handleFriendRequestResolve(status domain.FriendRequestStatus) func(http.ResponseWriter, *http.Request, domain.User) {
	return func(w http.ResponseWriter, r *http.Request, me domain.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		fr, found := s.requests[id]
		switch {
		case !found:
			writeMessage(w, http.StatusNotFound, "Friend request not found")
			return
		case fr.ToUser.ID != me.ID:
			writeMessage(w, http.StatusForbidden, "Not your friend request")
			return
		case fr.Status != domain.FriendRequestPending:
			writeMessage(w, http.StatusConflict, "Friend request already resolved")
			return
		}
		fr.Status = status
		if status == domain.FriendRequestAccepted {
			a, b := fr.FromUser.ID, fr.ToUser.ID
			if s.friends[a] == nil {
				s.friends[a] = map[int64]bool{}
			}
			if s.friends[b] == nil {
				s.friends[b] = map[int64]bool{}
			}
			s.friends[a][b] = true
			s.friends[b][a] = true
			s.notifyLocked(a, "FRIEND_ACCEPTED", "Friend request accepted", me.Name()+" accepted your friend request")
		}
		writeJSON(w, http.StatusOK, fr)
	}
}

func (s *Server) handleFriendRequestsList(incoming bool) func(http.ResponseWriter, *http.Request, domain.User) {
	return func(w http.ResponseWriter, _ *http.Request, me domain.User) {
		s.mu.Lock()
		out := []domain.FriendRequest{}
		for _, fr := range s.requests {
			if fr.Status != domain.FriendRequestPending {
				continue
			}
			if (incoming && fr.ToUser.ID == me.ID) || (!incoming && fr.FromUser.ID == me.ID) {
				out = append(out, *fr)
			}
		}
		s.mu.Unlock()
		slices.SortFunc(out, func(a, b domain.FriendRequest) int { return int(a.ID - b.ID) })
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleFriendRemove(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.friends[me.ID][id] {
		writeMessage(w, http.StatusNotFound, "Friendship not found")
		return
	}
	delete(s.friends[me.ID], id)
	delete(s.friends[id], me.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.CreatePostRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tickLocked()
	p := &domain.Post{
		ID:              s.idLocked(),
		Author:          me,
		Type:            req.Type,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		LocationName:    req.LocationName,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
		PaymentType:     req.PaymentType,
		Price:           req.Price,
		Status:          domain.PostStatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.posts[p.ID] = p
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handlePostGet(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	p, found := s.posts[id]
	var out domain.Post
	if found {
		out = *p
	}
	s.mu.Unlock()
	if !found {
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostUpdate(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdatePostRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	switch {
	case !found:
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	case p.Author.ID != me.ID:
		writeMessage(w, http.StatusForbidden, "You can only edit your own posts")
		return
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.LocationName != nil {
		p.LocationName = *req.LocationName
	}
	if req.Latitude != nil {
		p.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		p.Longitude = req.Longitude
	}
	if req.ScheduledTime != nil {
		p.ScheduledTime = req.ScheduledTime
	}
	if req.DurationMinutes != nil {
		p.DurationMinutes = req.DurationMinutes
	}
	if req.PaymentType != nil {
		p.PaymentType = *req.PaymentType
	}
	if req.Price != nil {
		p.Price = req.Price
	}
	if req.Status != nil {
		if !p.Status.CanTransitionTo(*req.Status) {
			writeMessage(w, http.StatusBadRequest, "Invalid status transition")
			return
		}
		p.Status = *req.Status
	}
	p.UpdatedAt = s.tickLocked()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) postsLocked(keep func(*domain.Post) bool) []domain.Post {
	out := []domain.Post{}
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Post) int { return b.CreatedAt.Compare(a.CreatedAt.Time) })
	return out
}

func (s *Server) handlePostsFeed(w http.ResponseWriter, r *http.Request, _ domain.User) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	if size <= 0 {
		size = 20
	}

	s.mu.Lock()
	all := s.postsLocked(func(p *domain.Post) bool {
		if p.Status != domain.PostStatusOpen {
			return false
		}
		if t := q.Get("type"); t != "" && string(p.Type) != t {
			return false
		}
		if c := q.Get("category"); c != "" && string(p.Category) != c {
			return false
		}
		return true
	})
	s.mu.Unlock()

	start := min(page*size, len(all))
	end := min(start+size, len(all))
	writeJSON(w, http.StatusOK, domain.PostPage{
		Content:       all[start:end],
		TotalElements: int64(len(all)),
		TotalPages:    (len(all) + size - 1) / size,
	})
}

func (s *Server) handlePostsMine(w http.ResponseWriter, _ *http.Request, me domain.User) {
	s.mu.Lock()
	out := s.postsLocked(func(p *domain.Post) bool { return p.Author.ID == me.ID })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostsByUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := s.postsLocked(func(p *domain.Post) bool { return p.Author.ID == id })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostsAccepted(w http.ResponseWriter, _ *http.Request, me domain.User) {
	s.mu.Lock()
	accepted := map[int64]bool{}
	for _, t := range s.tasks {
		if t.Accepter.ID == me.ID {
			accepted[t.Post.ID] = true
		}
	}
	out := s.postsLocked(func(p *domain.Post) bool { return accepted[p.ID] })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTaskAccept(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	switch {
	case !found:
		writeMessage(w, http.StatusNotFound, "Post not found")
		return
	case p.Author.ID == me.ID:
		writeMessage(w, http.StatusBadRequest, "You cannot accept your own post")
		return
	case p.Status != domain.PostStatusOpen:
		writeMessage(w, http.StatusConflict, "Post is no longer open")
		return
	}
	p.Status = domain.PostStatusAccepted
	p.UpdatedAt = s.tickLocked()
	t := &domain.TaskAssignment{
		ID:         s.idLocked(),
		Post:       *p,
		Accepter:   me,
		AcceptedAt: p.UpdatedAt,
		Status:     domain.TaskStatusAccepted,
	}
	s.tasks[t.ID] = t
	s.notifyLocked(p.Author.ID, "TASK_ACCEPTED", "Your post was accepted", me.Name()+" accepted "+p.Title)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskProgress(status domain.TaskStatus) func(http.ResponseWriter, *http.Request, domain.User) {
	return func(w http.ResponseWriter, r *http.Request, me domain.User) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		t, found := s.tasks[id]
		switch {
		case !found:
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		case t.Accepter.ID != me.ID:
			writeMessage(w, http.StatusForbidden, "Only the accepter can update this task")
			return
		}

		p := s.posts[t.Post.ID]
		next := domain.PostStatus(status)
		if !p.Status.CanTransitionTo(next) {
			writeMessage(w, http.StatusBadRequest, "Invalid status transition")
			return
		}
		now := s.tickLocked()
		p.Status = next
		p.UpdatedAt = now
		t.Status = status
		t.Post = *p
		if status == domain.TaskStatusCompleted {
			t.CompletedAt = &now
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handlePaymentCreate(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.CreatePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, okPost := s.posts[req.PostID]
	payee, okPayee := s.users[req.PayeeID]
	if !okPost || !okPayee {
		writeMessage(w, http.StatusNotFound, "Post or payee not found")
		return
	}
	pay := &domain.Payment{
		ID:        s.idLocked(),
		Post:      *p,
		Payer:     me,
		Payee:     payee,
		Amount:    req.Amount,
		Status:    domain.PaymentStatusPending,
		CreatedAt: s.tickLocked(),
	}
	pay.StripePaymentIntentID = req.StripePaymentIntentID
	if pay.StripePaymentIntentID == "" {
		pay.StripePaymentIntentID = "pi_" + strconv.FormatInt(pay.ID, 10)
	}
	if !s.OmitClientSecret {
		pay.StripeClientSecret = pay.StripePaymentIntentID + "_secret"
	}
	s.payments[pay.ID] = pay
	writeJSON(w, http.StatusOK, pay)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req domain.UpdatePaymentStatusRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pay, found := s.payments[id]
	switch {
	case !found:
		writeMessage(w, http.StatusNotFound, "Payment not found")
		return
	case pay.Payer.ID != me.ID:
		writeMessage(w, http.StatusForbidden, "Not your payment")
		return
	}
	pay.Status = req.Status
	if req.Status == domain.PaymentStatusSucceeded {
		s.notifyLocked(pay.Payee.ID, "PAYMENT_RECEIVED", "Payment received", "You received "+pay.Amount.StringFixed(2))
	}
	writeJSON(w, http.StatusOK, pay)
}

func (s *Server) handleReviewCreate(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.CreateReviewRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[req.TaskAssignmentID]
	switch {
	case !found:
		writeMessage(w, http.StatusNotFound, "Task not found")
		return
	case t.Status != domain.TaskStatusCompleted:
		writeMessage(w, http.StatusBadRequest, "Task is not completed")
		return
	}
	reviewee := t.Post.Author
	if reviewee.ID == me.ID {
		reviewee = t.Accepter
	}
	rv := &domain.Review{
		ID:             s.idLocked(),
		TaskAssignment: *t,
		Reviewer:       me,
		Reviewee:       reviewee,
		Rating:         req.Rating,
		Comment:        req.Comment,
		CreatedAt:      s.tickLocked(),
	}
	s.reviews[rv.ID] = rv
	writeJSON(w, http.StatusOK, rv)
}

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.CreateConversationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := &domain.Conversation{ID: s.idLocked(), Type: req.Type, CreatedAt: s.tickLocked()}
	if req.TaskAssignmentID != nil {
		t, found := s.tasks[*req.TaskAssignmentID]
		if !found {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		c.TaskAssignment = t
	}
	for _, id := range req.ParticipantIDs {
		u, found := s.users[id]
		if !found {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		c.Participants = append(c.Participants, u)
	}
	if !slices.ContainsFunc(c.Participants, func(u domain.User) bool { return u.ID == me.ID }) {
		writeMessage(w, http.StatusForbidden, "You must be a participant")
		return
	}
	s.convs[c.ID] = c
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) participantLocked(convID, userID int64) (*domain.Conversation, int) {
	c, found := s.convs[convID]
	if !found {
		return nil, http.StatusNotFound
	}
	if !slices.ContainsFunc(c.Participants, func(u domain.User) bool { return u.ID == userID }) {
		return nil, http.StatusForbidden
	}
	return c, http.StatusOK
}

func (s *Server) handleMessagesList(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	_, status := s.participantLocked(id, me.ID)
	// Newest first, so clients have to order the list themselves.
	msgs := slices.Clone(s.messages[id])
	s.mu.Unlock()
	if status != http.StatusOK {
		writeMessage(w, status, "Conversation not available")
		return
	}
	slices.Reverse(msgs)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	if s.PagedMessages {
		writeJSON(w, http.StatusOK, map[string]any{"content": msgs, "totalElements": len(msgs)})
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request, me domain.User) {
	var req domain.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, status := s.participantLocked(req.ConversationID, me.ID)
	if status != http.StatusOK {
		writeMessage(w, status, "Conversation not available")
		return
	}
	m := domain.Message{
		ID:           s.idLocked(),
		Conversation: *c,
		Sender:       me,
		Body:         req.Body,
		CreatedAt:    s.tickLocked(),
	}
	s.messages[c.ID] = append(s.messages[c.ID], m)
	for _, p := range c.Participants {
		if p.ID != me.ID {
			s.notifyLocked(p.ID, "NEW_MESSAGE", "New message", me.Name()+": "+req.Body)
		}
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleNotificationsList(w http.ResponseWriter, _ *http.Request, me domain.User) {
	s.mu.Lock()
	out := make([]domain.Notification, 0, len(s.notes[me.ID]))
	for i := len(s.notes[me.ID]) - 1; i >= 0; i-- {
		out = append(out, *s.notes[me.ID][i])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request, me domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes[me.ID] {
		if n.ID == id {
			n.Read = true
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Notification not found")
}

// Price is a helper for building post fixtures.
func Price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
