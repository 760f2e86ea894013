package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// Config is the credentials file. The layout is:
//
//	credentials:
//	  usernames:
//	    tanaka:
//	      name: 田中
//	      password: $2b$12$...
//	cookie:
//	  name: quote_compare
//	  key: some-signing-key
//	  expiry_days: 30
type Config struct {
	Credentials Credentials  `yaml:"credentials"`
	Cookie      CookieConfig `yaml:"cookie"`
}

type Credentials struct {
	Usernames map[string]User `yaml:"usernames"`
}

// User is one credentials entry. Password is a bcrypt hash or, for
// hand-written files, plain text.
type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password"`
}

type CookieConfig struct {
	Name       string  `yaml:"name"`
	Key        string  `yaml:"key"`
	ExpiryDays float64 `yaml:"expiry_days"`
}

// Expiry is the cookie lifetime; zero days means one day.
func (c CookieConfig) Expiry() time.Duration {
	if c.ExpiryDays <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ExpiryDays * float64(24*time.Hour))
}

// LoadConfig reads and validates the credentials file at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("認証設定ファイル (%s) が見つかりません", path), common.ErrConfig)
		}
		return nil, common.NewAppError("CONFIG_ERROR", "read auth config", fmt.Errorf("%w: %v", common.ErrConfig, err))
	}
	return ParseConfig(b)
}

// ParseConfig decodes and validates a credentials document.
func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "parse auth config", fmt.Errorf("%w: %v", common.ErrConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	v := common.NewValidator().
		Field("cookie.name", c.Cookie.Name, common.Required).
		Field("cookie.key", c.Cookie.Key, common.Required).
		Field("credentials.usernames", len(c.Credentials.Usernames), common.Positive)
	for name, u := range c.Credentials.Usernames {
		v.Field("credentials.usernames."+name+".password", u.Password, common.Required)
	}
	if v.HasErrors() {
		return common.NewAppError("CONFIG_ERROR", v.ErrorMessage(), common.ErrConfig)
	}
	return nil
}
