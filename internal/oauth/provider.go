// Package oauth runs the authorization code flow against external identity
// providers and resolves the signed-in account.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	GitHub = "github"
	Google = "google"

	StateCookie = "oauthState"

	githubUserURL = "https://api.github.com/user"
	googleUserURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var (
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	ErrExchange        = errors.New("oauth: code exchange failed")
	ErrUserInfo        = errors.New("oauth: userinfo request failed")
)

// UserInfo is the account reported by a provider.
type UserInfo struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	decode      func([]byte) (UserInfo, error)
}

type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry registers a provider for every entry with a client id.
func NewRegistry(redirectBase string, creds map[string]Credentials) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}
	base := strings.TrimRight(redirectBase, "/")

	for name, c := range creds {
		if c.ClientID == "" {
			continue
		}
		cfg := &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  base + "/auth/oauth/" + name + "/callback",
		}
		switch name {
		case GitHub:
			cfg.Endpoint = endpoints.GitHub
			cfg.Scopes = []string{"read:user", "user:email"}
			r.Add(NewGitHubProvider(cfg, githubUserURL))
		case Google:
			cfg.Endpoint = endpoints.Google
			cfg.Scopes = []string{"openid", "email", "profile"}
			r.Add(NewGoogleProvider(cfg, googleUserURL))
		}
	}
	return r
}

func (r *Registry) Add(p *Provider) {
	r.providers[p.Name] = p
}

func (r *Registry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}

func NewGitHubProvider(cfg *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{Name: GitHub, Config: cfg, UserInfoURL: userInfoURL, decode: decodeGitHub}
}

func NewGoogleProvider(cfg *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{Name: Google, Config: cfg, UserInfoURL: userInfoURL, decode: decodeGoogle}
}

func NewState() string {
	return uuid.NewString()
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the account behind it.
func (p *Provider) Exchange(ctx context.Context, code string) (UserInfo, error) {
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Config.Client(ctx, tok).Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	info, err := p.decode(body)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	if info.Subject == "" {
		return UserInfo{}, fmt.Errorf("%w: empty subject", ErrUserInfo)
	}
	info.Provider = p.Name
	return info, nil
}

func decodeGitHub(body []byte) (UserInfo, error) {
	var u struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return UserInfo{}, err
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	var sub string
	if u.ID != 0 {
		sub = strconv.FormatInt(u.ID, 10)
	}
	return UserInfo{Subject: sub, Email: u.Email, Name: name}, nil
}

func decodeGoogle(body []byte) (UserInfo, error) {
	var u struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return UserInfo{}, err
	}
	email := u.Email
	if !u.EmailVerified {
		email = ""
	}
	return UserInfo{Subject: u.Sub, Email: email, Name: u.Name}, nil
}
