package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration is usable for the given mode
// before any work starts. Modes: "import", "ingest", "refresh",
// "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver (RACEDIR_STORE_DATABASE_URL)")
		}
	}
	checkRunSignup := func() {
		if c.RunSignup.APIKey == "" {
			problems = append(problems, "runsignup.api_key is required (RACEDIR_RUNSIGNUP_API_KEY)")
		}
		if c.RunSignup.APISecret == "" {
			problems = append(problems, "runsignup.api_secret is required (RACEDIR_RUNSIGNUP_API_SECRET)")
		}
	}

	switch mode {
	case "import":
		checkStore()
	case "ingest", "refresh":
		checkStore()
		checkRunSignup()
	case "serve":
		checkStore()
		// The refresh endpoint needs the registry client even when no
		// schedule is configured.
		checkRunSignup()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Import.FuzzyThreshold < 0 || c.Import.FuzzyThreshold > 1 {
		problems = append(problems, "import.fuzzy_threshold must be between 0 and 1")
	}
	if c.Import.InactiveAfter <= 0 {
		problems = append(problems, "import.inactive_after must be positive")
	}
	if len(c.Import.States) == 0 && (mode == "ingest" || mode == "refresh") {
		problems = append(problems, "import.states must not be empty")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
