package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// Authenticator checks credentials from Config and issues session cookies.
type Authenticator struct {
	cfg    *Config
	Tokens *Tokens
	logger *slog.Logger
}

func NewAuthenticator(cfg *Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		cfg:    cfg,
		Tokens: NewTokens(cfg.Cookie.Key, cfg.Cookie.Expiry()),
		logger: logger,
	}
}

// CookieName is the name of the session cookie.
func (a *Authenticator) CookieName() string {
	return a.cfg.Cookie.Name
}

// Login returns the display name for valid credentials. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: ユーザー名とパスワードを入力してください", common.ErrInvalidInput)
	}
	u, ok := a.cfg.Credentials.Usernames[username]
	if !ok || !VerifyPassword(u.Password, password) {
		a.logger.Warn("auth.login.rejected", "user", username, "known", ok)
		return "", fmt.Errorf("%w: ユーザー名またはパスワードが間違っています", common.ErrUnauthorized)
	}
	name := u.Name
	if name == "" {
		name = username
	}
	a.logger.Info("auth.login.ok", "user", username)
	return name, nil
}
