package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon":
		return daemonTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const daemonTemplate = `name = "charta"
addr = ":9400"
repository_path = "charta.db"
auth_token = "temp-auth-key"
cors_origins = ["http://localhost:3000"]

[[domains]]
name = "wiki"
workspace = "collaboration"
entities = ["wiki.page", "wiki.attachment"]

[[domains]]
name = "portal"
workspace = "portal_system"
entities = ["portal.preferences"]
`
