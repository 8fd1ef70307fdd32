package supabase

import (
	"context"
	"net/url"
	"time"

	"caltodo/backend"
	"caltodo/model"
)

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         authUser `json:"user"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignIn exchanges credentials for a session via the password grant.
func (c *Client) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	q := url.Values{"grant_type": {"password"}}
	req, err := c.newRequest("POST", authPath+"/token", q, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return backend.Session{}, err
	}
	req = req.WithContext(ctx)

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return backend.Session{}, err
	}

	sess := backend.Session{
		User:         model.User{ID: tok.User.ID, Email: tok.User.Email},
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	c.setSession(sess)
	c.logger.Debug("signed in", "user", sess.User.ID)
	return sess, nil
}

// SignUp registers an account. The service sends a confirmation email;
// no session is stored.
func (c *Client) SignUp(ctx context.Context, email, password string) (model.User, error) {
	req, err := c.newRequest("POST", authPath+"/signup", nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return model.User{}, err
	}
	req = req.WithContext(ctx)

	var u authUser
	if err := c.do(req, &u); err != nil {
		return model.User{}, err
	}
	return model.User{ID: u.ID, Email: u.Email}, nil
}

// SignOut revokes the session on the backend and drops it locally.
// The local session is cleared even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	req, err := c.newRequest("POST", authPath+"/logout", nil, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	err = c.do(req, nil)
	c.clearSession()
	return err
}

// CurrentUser asks the backend who the bearer token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	if c.accessToken() == "" {
		return model.User{}, backend.ErrUnauthorized
	}
	req, err := c.newRequest("GET", authPath+"/user", nil, nil)
	if err != nil {
		return model.User{}, err
	}
	req = req.WithContext(ctx)

	var u authUser
	if err := c.do(req, &u); err != nil {
		return model.User{}, err
	}
	return model.User{ID: u.ID, Email: u.Email}, nil
}
