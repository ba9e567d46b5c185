package main

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// Profile is the persistent identity stored in ~/.rentchat/profile.toml.
// Tuning knobs (intervals, buffers) stay environment-only.
type Profile struct {
	Default ProfileDefault `toml:"default"`
}

type ProfileDefault struct {
	UserID     string `toml:"user_id"`
	APIBaseURL string `toml:"api_base_url"`
	PushURL    string `toml:"push_url"`
	APIToken   string `toml:"api_token"`
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the stored connection profile",
	Long:  "View or modify the connection profile stored in ~/.rentchat/profile.toml.",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current profile file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := profilePath()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No profile found. Run 'rentchat profile set <key> <value>' to create one.")
				return nil
			}
			return fmt.Errorf("cannot read profile: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile value",
	Long:  "Set a profile value.\nExample: rentchat profile set api_token eyJhbGciOi...",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		profile, err := loadProfile()
		if err != nil {
			return err
		}

		switch key {
		case "user_id":
			profile.Default.UserID = value
		case "api_base_url":
			profile.Default.APIBaseURL = value
		case "push_url":
			profile.Default.PushURL = value
		case "api_token":
			profile.Default.APIToken = value
		default:
			return fmt.Errorf("unknown profile key %q", key)
		}

		if err := saveProfile(profile); err != nil {
			return err
		}
		fmt.Printf("Set %s\n", key)
		return nil
	},
}

func profileDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".rentchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create profile directory: %w", err)
	}
	return dir, nil
}

func profilePath() (string, error) {
	dir, err := profileDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.toml"), nil
}

// loadProfile reads the profile file, returning a zero profile when none
// exists yet.
func loadProfile() (*Profile, error) {
	path, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("cannot read profile: %w", err)
	}
	var profile Profile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("cannot parse profile: %w", err)
	}
	return &profile, nil
}

func saveProfile(profile *Profile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("cannot encode profile: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// fillEnviron exports profile values as env vars when the environment does
// not already define them, so env always wins.
func (p *Profile) fillEnviron() {
	for key, value := range map[string]string{
		"USER_ID":      p.Default.UserID,
		"API_BASE_URL": p.Default.APIBaseURL,
		"PUSH_URL":     p.Default.PushURL,
		"API_TOKEN":    p.Default.APIToken,
	} {
		if value == "" {
			continue
		}
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}
