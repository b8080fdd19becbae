package domain

type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

// Name is what a user is shown as: display name when set, else username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	fields := map[string]string{}
	if r.Username == "" {
		fields["username"] = "required"
	}
	if r.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (r RegisterRequest) Validate() error {
	fields := map[string]string{}
	if r.Email == "" {
		fields["email"] = "required"
	}
	if r.Username == "" {
		fields["username"] = "required"
	}
	if r.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type HealthStatus struct {
	Status string `json:"status"`
}
