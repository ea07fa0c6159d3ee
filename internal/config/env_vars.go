package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port         string `env:"PORT" envDefault:"8080"`
	AppName      string `env:"APP_NAME" envDefault:"XLSX Validator"`
	Env          string `env:"ENV" envDefault:"DEV"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	SettingsFile string `env:"SETTINGS_FILE" envDefault:"env.json"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetSettingsFile returns the path of the file holding AUTH_URL, REALM, CLIENT_ID and API_URL.
func (e EnvVars) GetSettingsFile() string {
	return e.SettingsFile
}
