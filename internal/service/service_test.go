package service

import (
	"testing"

	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/internal/testutil"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

type testEnv struct {
	Repo   *repo.GormRepo
	Events *testutil.Events
	Auth   *AuthService
	Cart   *CartService
	Orders *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	r := repo.New(testutil.InitTestDB(t))
	ev := &testutil.Events{}
	return &testEnv{
		Repo:   r,
		Events: ev,
		Auth: &AuthService{
			Repo:   r,
			Tokens: tokens.NewIssuer([]byte("test-jwt-secret"), []byte("test-refresh-secret")),
			Events: ev,
		},
		Cart:   &CartService{Repo: r, Events: ev},
		Orders: &OrderService{Repo: r, Events: ev},
	}
}
