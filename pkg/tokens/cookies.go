package tokens

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type Cookies struct {
	Secure bool
}

func (c Cookies) Create(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c Cookies) Delete(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	AccessExp    time.Time `json:"accessExp"`
	RefreshExp   time.Time `json:"refreshExp"`
}

// Set returns the session cookies carrying p.
func (c Cookies) Set(p Pair) []*http.Cookie {
	return []*http.Cookie{
		c.Create(AccessCookie, p.AccessToken, "/", p.AccessExp),
		c.Create(RefreshCookie, p.RefreshToken, "/", p.RefreshExp),
	}
}

// Clear returns cookies that remove the session.
func (c Cookies) Clear() []*http.Cookie {
	return []*http.Cookie{
		c.Delete(AccessCookie, "/"),
		c.Delete(RefreshCookie, "/"),
	}
}
