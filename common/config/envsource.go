package config

import (
	"os"
	"strings"
)

// EnvSource reads options from the environment, "minebot.mute_role"
// resolves to MINEBOT_MUTE_ROLE
type EnvSource struct{}

func (e *EnvSource) GetValue(key string) interface{} {
	properKey := strings.ToUpper(key)
	properKey = strings.Replace(properKey, ".", "_", -1)
	v := os.Getenv(properKey)
	if v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}
