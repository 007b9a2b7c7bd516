package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/almforge/go-polarion"
)

// Profile holds the connection settings for one server, read from
// ~/.polarion.yaml or the path given with --config. Flags override
// profile values; the password also reads from POLARION_PASSWORD.
type Profile struct {
	// URL is the Polarion base URL, e.g. "https://alm.example.com/polarion".
	URL string `yaml:"url"`

	// User is the login user id.
	User string `yaml:"user"`

	// Password is the login password. Prefer the POLARION_PASSWORD
	// environment variable over writing it into the profile.
	Password string `yaml:"password"`

	// Project is the default project id commands operate in.
	Project string `yaml:"project"`

	// StaticServices skips the service catalog discovery request.
	StaticServices bool `yaml:"static_services"`

	// SkipVerify disables TLS certificate verification.
	SkipVerify bool `yaml:"skip_verify"`

	// RepositoryURL replaces the repository base of attachment
	// download URLs.
	RepositoryURL string `yaml:"repository_url"`
}

// loadProfile reads the profile and layers the flag and environment
// overrides on top. A missing default profile is not an error; a
// missing --config path is.
func loadProfile() (Profile, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".polarion.yaml")
		}
	}

	var p Profile
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &p); err != nil {
				return Profile{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No profile; flags must carry the connection.
		default:
			return Profile{}, err
		}
	}

	if serverURL != "" {
		p.URL = serverURL
	}
	if loginUser != "" {
		p.User = loginUser
	}
	if loginPass != "" {
		p.Password = loginPass
	}
	if env := os.Getenv("POLARION_PASSWORD"); env != "" && loginPass == "" {
		p.Password = env
	}
	if projectID != "" {
		p.Project = projectID
	}
	return p, nil
}

// connect logs into the server described by the profile.
func connect(ctx context.Context) (*polarion.Client, Profile, error) {
	p, err := loadProfile()
	if err != nil {
		return nil, Profile{}, err
	}
	if p.URL == "" {
		return nil, Profile{}, fmt.Errorf("no server url: set --url or the profile")
	}

	opts := []polarion.Option{polarion.WithLogger(slog.Default())}
	if p.StaticServices {
		opts = append(opts, polarion.WithStaticServices(true))
	}
	if p.SkipVerify {
		opts = append(opts, polarion.WithSkipVerify(true))
	}
	if p.RepositoryURL != "" {
		opts = append(opts, polarion.WithRepositoryURL(p.RepositoryURL))
	}

	client, err := polarion.NewClient(ctx, p.URL, p.User, p.Password, opts...)
	if err != nil {
		return nil, Profile{}, err
	}
	return client, p, nil
}

// openProject loads the project the profile or --project selects.
func openProject(ctx context.Context, client *polarion.Client, p Profile) (*polarion.Project, error) {
	if p.Project == "" {
		return nil, fmt.Errorf("no project: set --project or the profile")
	}
	return client.Project(ctx, p.Project)
}
