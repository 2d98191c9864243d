package api

import (
	"context"
	"net/url"
)

// Users lists every user.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	p, err := c.Get(ctx, "/users")
	if err != nil {
		return nil, err
	}
	var users []User
	if err := p.Decode(&users); err != nil {
		return nil, err
	}
	return users, nil
}

// User fetches one user. A missing user is a 404 *Error.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	p, err := c.Get(ctx, "/users/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var u User
	if err := p.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Search runs a text search. limit <= 0 uses the server default.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	var q Query
	if limit > 0 {
		q = Query{"limit": limit}
	}
	p, err := c.Get(ctx, "/search/"+url.PathEscape(query), WithQuery(q))
	if err != nil {
		return nil, err
	}
	results := []SearchResult{}
	if err := p.Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

// SignIn exchanges credentials for a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	p, err := c.Post(ctx, "/auth/signin", Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var res SignInResult
	if err := p.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignOut ends the session on the server.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.Post(ctx, "/auth/signout", nil)
	return err
}

// Authenticated reports whether the client's token is valid.
func (c *Client) Authenticated(ctx context.Context) (bool, error) {
	p, err := c.Get(ctx, "/auth/authenticated")
	if err != nil {
		return false, err
	}
	return p.Value().Bool(), nil
}
