package config

import "time"

const (
	// DefaultRefreshInterval is how often the session token is checked.
	DefaultRefreshInterval = 6 * time.Second
	// DefaultMinValidity is the remaining validity, in seconds, below which the token is renewed.
	DefaultMinValidity = 70
	// DefaultOnLoad forces a login before the shell is mounted.
	DefaultOnLoad = "login-required"
)

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetMinValidity() int
	GetMaxRefreshFailures() int
	GetOnLoad() string
}

type Session struct {
	// MaxRefreshFailures is the number of consecutive failed refreshes tolerated
	// before the session is considered dead. 0, the default, keeps refreshing forever.
	MaxRefreshFailures int `env:"MAX_REFRESH_FAILURES" envDefault:"0"`
}

var _ SessionConfig = Session{}

func (Session) GetRefreshInterval() time.Duration {
	return DefaultRefreshInterval
}

func (Session) GetMinValidity() int {
	return DefaultMinValidity
}

func (s Session) GetMaxRefreshFailures() int {
	if s.MaxRefreshFailures < 0 {
		return 0
	}
	return s.MaxRefreshFailures
}

func (Session) GetOnLoad() string {
	return DefaultOnLoad
}
