package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	profileFile    = "profile.yaml"
	cartFile       = "cart.json"
	defaultAPIURL  = "http://localhost:5000/api"
	configDirEnv   = "FARMLINK_CONFIG_DIR"
	profileDirName = "farmlink"
)

// Profile is the signed-in state kept between invocations.
type Profile struct {
	APIURL       string `yaml:"api_url"`
	Token        string `yaml:"token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	UserID       string `yaml:"user_id,omitempty"`
	Email        string `yaml:"email,omitempty"`
	Role         string `yaml:"role,omitempty"`
}

// SignedIn reports whether a token is on file.
func (p Profile) SignedIn() bool {
	return p.Token != ""
}

func (p *Profile) clearSession() {
	p.Token = ""
	p.RefreshToken = ""
	p.UserID = ""
	p.Email = ""
	p.Role = ""
}

// resolveConfigDir picks the flag, then the environment, then the user config dir.
func resolveConfigDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(configDirEnv); env != "" {
		return env, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, profileDirName), nil
}

func loadProfile(dir string) (Profile, error) {
	data, err := os.ReadFile(filepath.Join(dir, profileFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{APIURL: defaultAPIURL}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.APIURL == "" {
		p.APIURL = defaultAPIURL
	}
	return p, nil
}

func saveProfile(dir string, p Profile) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, profileFile), data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
