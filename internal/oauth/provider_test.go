package oauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeProvider(t *testing.T, userJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, userJSON)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/oauth/test/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/authorize",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestProvider_Exchange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider func(*oauth2.Config, string) *Provider
		userJSON string
		want     UserInfo
	}{
		{
			name:     "github falls back to login",
			provider: NewGitHubProvider,
			userJSON: `{"id":42,"login":"octo","email":"octo@example.com"}`,
			want:     UserInfo{Provider: GitHub, Subject: "42", Email: "octo@example.com", Name: "octo"},
		},
		{
			name:     "google drops unverified email",
			provider: NewGoogleProvider,
			userJSON: `{"sub":"g-1","email":"x@example.com","email_verified":false,"name":"X"}`,
			want:     UserInfo{Provider: Google, Subject: "g-1", Name: "X"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := fakeProvider(t, tt.userJSON)
			p := tt.provider(testConfig(srv), srv.URL+"/user")

			got, err := p.Exchange(context.Background(), "good-code")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_ExchangeErrors(t *testing.T) {
	t.Parallel()

	srv := fakeProvider(t, `{"login":"nobody"}`)
	p := NewGitHubProvider(testConfig(srv), srv.URL+"/user")

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, ErrExchange)

	_, err = p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrUserInfo)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry("http://localhost:8080/", map[string]Credentials{
		GitHub: {ClientID: "gh", ClientSecret: "s"},
		Google: {},
	})

	assert.Equal(t, []string{GitHub}, r.Names())

	_, err := r.Get(Google)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	p, err := r.Get(GitHub)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/auth/oauth/github/callback", p.Config.RedirectURL)

	u, err := url.Parse(p.AuthCodeURL("st-1"))
	require.NoError(t, err)
	assert.Equal(t, "st-1", u.Query().Get("state"))
	assert.Equal(t, "gh", u.Query().Get("client_id"))
}
