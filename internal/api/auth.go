package api

import (
	"context"
	"strings"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Login authenticates and stores the session cookies in the client's jar.
// The server's user payload is returned, or just the username when the
// response carries none.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.Post(ctx, "/auth/login", credentials{Username: username, Password: password}, &resp); err != nil {
		return User{}, err
	}
	if resp.User == nil || strings.TrimSpace(resp.User.Username) == "" {
		return User{Username: username}, nil
	}
	return *resp.User, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.Post(ctx, "/auth/register", credentials{Username: username, Email: email, Password: password}, nil)
}

// Logout ends the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", struct{}{}, nil)
}

// CurrentUser returns the user of the current session.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.Get(ctx, "/api/user/isLogin", &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ResetUsername renames the current user.
func (c *Client) ResetUsername(ctx context.Context, newUsername string) error {
	body := struct {
		NewUsername string `json:"new_username"`
	}{NewUsername: newUsername}
	return c.Post(ctx, "/api/user/reset-username", body, nil)
}
