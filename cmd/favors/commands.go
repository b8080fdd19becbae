package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"favorsweb/internal/debounce"
	"favorsweb/internal/domain"
	"favorsweb/internal/service"
)

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "login")
	user := fs.String("user", "", "username")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	username := strings.TrimSpace(*user)
	if username == "" {
		line, err := a.readLine("Username: ")
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	pw := *password
	if pw == "" {
		var err error
		if pw, err = a.readPassword("Password: "); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	u, err := a.session.Login(ctx, username, pw)
	if err != nil {
		return err
	}
	return a.print(u)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "register")
	email := fs.String("email", "", "email address")
	user := fs.String("user", "", "username")
	display := fs.String("display", "", "display name (defaults to username)")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := domain.RegisterRequest{
		Email:       strings.TrimSpace(*email),
		Username:    strings.TrimSpace(*user),
		DisplayName: strings.TrimSpace(*display),
		Password:    *password,
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if req.Password == "" {
		var err error
		if req.Password, err = a.readPassword("Password: "); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	u, err := a.session.Register(ctx, req)
	if err != nil {
		return err
	}
	return a.print(u)
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	return a.print(map[string]string{"status": "logged out"})
}

func cmdHealth(ctx context.Context, a *app, _ []string) error {
	h, err := a.client.Health.Check(ctx)
	if err != nil {
		return err
	}
	return a.print(h)
}

func cmdMe(ctx context.Context, a *app, _ []string) error {
	u, err := a.client.Users.GetMe(ctx)
	if err != nil {
		return err
	}
	return a.print(u)
}

func cmdFeed(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "feed")
	typ := fs.String("type", "", "OFFER or REQUEST")
	category := fs.String("category", "", "category filter")
	page := fs.Int("page", 0, "zero-based page")
	size := fs.Int("size", 0, "page size")
	sortBy := fs.String("sort", "", "sort expression, e.g. createdAt,desc")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.client.Posts.Feed(ctx, domain.FeedParams{
		Type:     domain.PostType(strings.ToUpper(*typ)),
		Category: domain.Category(strings.ToUpper(*category)),
		Page:     *page,
		Size:     *size,
		Sort:     *sortBy,
	})
	if err != nil {
		return err
	}
	return a.print(res)
}

// postFlags binds the editable post fields. Only flags that were set end up
// in an update.
type postFlags struct {
	typ, title, description, category, location string
	paymentType, price, scheduled                string
	duration                                     int
	lat, lng                                     float64
}

func bindPostFlags(fs *flag.FlagSet) *postFlags {
	p := &postFlags{}
	fs.StringVar(&p.typ, "type", "", "OFFER or REQUEST")
	fs.StringVar(&p.title, "title", "", "title")
	fs.StringVar(&p.description, "description", "", "description")
	fs.StringVar(&p.category, "category", "", "category")
	fs.StringVar(&p.location, "location", "", "location name")
	fs.Float64Var(&p.lat, "lat", 0, "latitude")
	fs.Float64Var(&p.lng, "lng", 0, "longitude")
	fs.StringVar(&p.paymentType, "payment-type", "", "FIXED, HOURLY or NEGOTIABLE")
	fs.StringVar(&p.price, "price", "", "price")
	fs.IntVar(&p.duration, "duration", 0, "duration in minutes")
	fs.StringVar(&p.scheduled, "at", "", "scheduled time, RFC 3339")
	return p
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func parsePrice(s string) (*decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return &d, nil
}

func parseScheduled(s string) (*domain.Timestamp, error) {
	ts, err := domain.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return &ts, nil
}

func (p *postFlags) createRequest(set map[string]bool) (domain.CreatePostRequest, error) {
	req := domain.CreatePostRequest{
		Type:         domain.PostType(strings.ToUpper(p.typ)),
		Title:        p.title,
		Description:  p.description,
		Category:     domain.Category(strings.ToUpper(p.category)),
		LocationName: p.location,
		PaymentType:  domain.PaymentType(strings.ToUpper(p.paymentType)),
	}
	if set["lat"] {
		req.Latitude = &p.lat
	}
	if set["lng"] {
		req.Longitude = &p.lng
	}
	if set["duration"] {
		req.DurationMinutes = &p.duration
	}
	var err error
	if set["price"] {
		if req.Price, err = parsePrice(p.price); err != nil {
			return req, err
		}
	}
	if set["at"] {
		if req.ScheduledTime, err = parseScheduled(p.scheduled); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (p *postFlags) updateRequest(set map[string]bool) (domain.UpdatePostRequest, error) {
	var req domain.UpdatePostRequest
	if set["type"] {
		t := domain.PostType(strings.ToUpper(p.typ))
		req.Type = &t
	}
	if set["title"] {
		req.Title = &p.title
	}
	if set["description"] {
		req.Description = &p.description
	}
	if set["category"] {
		c := domain.Category(strings.ToUpper(p.category))
		req.Category = &c
	}
	if set["location"] {
		req.LocationName = &p.location
	}
	if set["lat"] {
		req.Latitude = &p.lat
	}
	if set["lng"] {
		req.Longitude = &p.lng
	}
	if set["duration"] {
		req.DurationMinutes = &p.duration
	}
	if set["payment-type"] {
		pt := domain.PaymentType(strings.ToUpper(p.paymentType))
		req.PaymentType = &pt
	}
	var err error
	if set["price"] {
		if req.Price, err = parsePrice(p.price); err != nil {
			return req, err
		}
	}
	if set["at"] {
		if req.ScheduledTime, err = parseScheduled(p.scheduled); err != nil {
			return req, err
		}
	}
	return req, nil
}

func cmdPost(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + commands["post"].usage)
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "create":
		fs := newFlags(a, "post create")
		pf := bindPostFlags(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		req, err := pf.createRequest(setFlags(fs))
		if err != nil {
			return err
		}
		p, err := a.client.Posts.Create(ctx, req)
		if err != nil {
			return err
		}
		return a.print(p)

	case "get":
		id, err := idArg(rest, 0, "post id")
		if err != nil {
			return err
		}
		p, err := a.client.Posts.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.print(p)

	case "update":
		id, err := idArg(rest, 0, "post id")
		if err != nil {
			return err
		}
		fs := newFlags(a, "post update")
		pf := bindPostFlags(fs)
		status := fs.String("status", "", "new status")
		if err := fs.Parse(rest[1:]); err != nil {
			return err
		}
		set := setFlags(fs)
		req, err := pf.updateRequest(set)
		if err != nil {
			return err
		}
		if set["status"] {
			next := domain.PostStatus(strings.ToUpper(*status))
			current, err := a.client.Posts.Get(ctx, id)
			if err != nil {
				return err
			}
			if next != current.Status && !current.Status.CanTransitionTo(next) {
				return fmt.Errorf("cannot move post from %s to %s", current.Status, next)
			}
			req.Status = &next
		}
		p, err := a.client.Posts.Update(ctx, id, req)
		if err != nil {
			return err
		}
		return a.print(p)

	case "mine":
		posts, err := a.client.Posts.UserPosts(ctx, 0)
		if err != nil {
			return err
		}
		return a.print(posts)

	case "accepted":
		posts, err := a.client.Posts.Accepted(ctx)
		if err != nil {
			return err
		}
		return a.print(posts)
	}
	return fmt.Errorf("unknown post command %q", sub)
}

func cmdTask(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + commands["task"].usage)
	}
	var (
		task domain.TaskAssignment
		err  error
	)
	switch args[0] {
	case "accept":
		id, perr := idArg(args, 1, "post id")
		if perr != nil {
			return perr
		}
		task, err = a.client.Tasks.AcceptPost(ctx, id)
	case "start":
		id, perr := idArg(args, 1, "task id")
		if perr != nil {
			return perr
		}
		task, err = a.client.Tasks.MarkInProgress(ctx, id)
	case "complete":
		id, perr := idArg(args, 1, "task id")
		if perr != nil {
			return perr
		}
		task, err = a.client.Tasks.MarkComplete(ctx, id)
	default:
		return fmt.Errorf("unknown task command %q", args[0])
	}
	if err != nil {
		return err
	}
	return a.print(task)
}

func cmdFriends(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + commands["friends"].usage)
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list", "requests":
		svc := &service.FriendsService{Friends: a.client.Friends, Users: a.client.Users, Logger: a.logger}
		ov, err := svc.Overview(ctx)
		if err != nil {
			return err
		}
		if ov.Partial {
			fmt.Fprintln(a.stderr, "Some friend details may be missing.")
		}
		if sub == "list" {
			return a.print(ov.Friends)
		}
		return a.print(ov.FriendRequests)

	case "send":
		id, err := idArg(rest, 0, "user id")
		if err != nil {
			return err
		}
		if id == a.currentUser().ID {
			return errors.New("cannot send a friend request to yourself")
		}
		if err := a.client.Friends.SendRequest(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]any{"status": "sent", "toUserId": id})

	case "accept", "decline":
		id, err := idArg(rest, 0, "request id")
		if err != nil {
			return err
		}
		if sub == "accept" {
			err = a.client.Friends.Accept(ctx, id)
		} else {
			err = a.client.Friends.Decline(ctx, id)
		}
		if err != nil {
			return err
		}
		return a.print(map[string]any{"status": sub + "ed", "requestId": id})

	case "remove":
		id, err := idArg(rest, 0, "friend id")
		if err != nil {
			return err
		}
		if err := a.client.Friends.Remove(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]any{"status": "removed", "friendId": id})

	case "search":
		return friendsSearch(ctx, a, rest)
	}
	return fmt.Errorf("unknown friends command %q", sub)
}

type searchResult struct {
	Query string        `json:"query"`
	Users []domain.User `json:"users"`
}

func friendsSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "friends search")
	interactive := fs.Bool("i", false, "read queries from stdin, one per line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users := &service.UsersService{Users: a.client.Users}
	self := a.currentUser().ID
	search := func(ctx context.Context, q string) ([]domain.User, error) {
		return users.Search(ctx, q, self)
	}

	if !*interactive {
		q := strings.Join(fs.Args(), " ")
		found, err := search(ctx, q)
		if err != nil {
			return err
		}
		return a.print(searchResult{Query: q, Users: nonNil(found)})
	}

	var (
		mu     sync.Mutex
		failed error
	)
	d := debounce.New(a.cfg.SearchDebounce, search, func(q string, found []domain.User, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = err
		if err != nil {
			a.logger.Warn("search failed", "q", q, "err", err)
			return
		}
		_ = a.emit(searchResult{Query: q, Users: nonNil(found)})
	})
	for {
		line, err := a.readLine("")
		if err != nil {
			break
		}
		d.Call(ctx, line)
	}
	d.Wait()
	mu.Lock()
	defer mu.Unlock()
	return failed
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func cmdMessages(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + commands["messages"].usage)
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "open":
		fs := newFlags(a, "messages open")
		task := fs.Int64("task", 0, "task assignment id for a task thread")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		other, err := idArg(fs.Args(), 0, "user id")
		if err != nil {
			return err
		}
		me := a.currentUser().ID
		if other == me {
			return errors.New("you cannot create a direct conversation with yourself")
		}
		req := domain.CreateConversationRequest{
			Type:           domain.ConversationDirect,
			ParticipantIDs: []int64{me, other},
		}
		if *task > 0 {
			req.Type = domain.ConversationTaskThread
			req.TaskAssignmentID = task
		}
		conv, err := a.client.Messaging.CreateConversation(ctx, req.Normalize())
		if err != nil {
			return err
		}
		return a.print(conv)

	case "send":
		id, err := idArg(rest, 0, "conversation id")
		if err != nil {
			return err
		}
		msg, err := a.client.Messaging.Send(ctx, domain.SendMessageRequest{
			ConversationID: id,
			Body:           strings.TrimSpace(strings.Join(rest[1:], " ")),
		})
		if err != nil {
			return err
		}
		return a.print(msg)

	case "watch":
		return watchMessages(ctx, a, rest)
	}
	return fmt.Errorf("unknown messages command %q", sub)
}

func cmdNotifications(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		ns, err := a.client.Notifications.List(ctx)
		if err != nil {
			return err
		}
		return a.print(map[string]any{"unread": domain.UnreadCount(ns), "notifications": nonNil(ns)})
	case "read":
		id, err := idArg(args, 1, "notification id")
		if err != nil {
			return err
		}
		if err := a.client.Notifications.MarkRead(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]any{"status": "read", "id": id})
	case "watch":
		return watchNotifications(ctx, a, args[1:])
	}
	return fmt.Errorf("unknown notifications command %q", args[0])
}

func cmdPay(ctx context.Context, a *app, args []string) error {
	checkout := &service.Checkout{Payments: a.client.Payments, Logger: a.logger}

	if len(args) > 0 && args[0] == "status" {
		id, err := idArg(args, 1, "payment id")
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return errors.New("missing status (SUCCEEDED or FAILED)")
		}
		p, err := checkout.Report(ctx, id, domain.PaymentStatus(strings.ToUpper(args[2])), strings.Join(args[3:], " "))
		if err != nil {
			return err
		}
		return a.print(p)
	}

	fs := newFlags(a, "pay")
	postID := fs.Int64("post", 0, "post id")
	payeeID := fs.Int64("payee", 0, "payee user id")
	amount := fs.String("amount", "", "amount")
	status := fs.String("status", "", "outcome to report right away: SUCCEEDED or FAILED")
	message := fs.String("message", "", "error message for a FAILED outcome")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amt, err := parsePrice(*amount)
	if err != nil {
		return err
	}

	p, err := checkout.Pay(ctx, domain.CreatePaymentRequest{PostID: *postID, PayeeID: *payeeID, Amount: *amt})
	if errors.Is(err, service.ErrManualStatus) {
		if *status == "" {
			fmt.Fprintf(a.stderr, "Payment %d is %s; report the outcome with: favors pay status %d SUCCEEDED|FAILED\n", p.ID, p.Status, p.ID)
			return a.print(p)
		}
		p, err = checkout.Report(ctx, p.ID, domain.PaymentStatus(strings.ToUpper(*status)), *message)
	}
	if err != nil {
		return err
	}
	return a.print(p)
}

func cmdReview(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "review")
	task := fs.Int64("task", 0, "task assignment id")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	comment := fs.String("comment", "", "comment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := domain.CreateReviewRequest{TaskAssignmentID: *task, Rating: *rating, Comment: *comment}
	r, err := a.client.Reviews.Create(ctx, req.Normalize())
	if err != nil {
		return err
	}
	return a.print(r)
}

// untilDone blocks until ctx ends or, when d > 0, d elapses.
func untilDone(ctx context.Context, d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if d <= 0 {
			<-ctx.Done()
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}()
	return done
}
