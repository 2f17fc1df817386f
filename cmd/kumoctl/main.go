// Kumoctl inspects and controls Kumo Cloud devices from the command line.
//
// Credentials come from the config file or from the KUMO2MQTT_USERNAME and
// KUMO2MQTT_PASSWORD environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/config"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
	"github.com/joshp123/kumo2mqtt/internal/logging"
	"github.com/joshp123/kumo2mqtt/internal/version"
)

const (
	usernameEnvVar = "KUMO2MQTT_USERNAME"
	passwordEnvVar = "KUMO2MQTT_PASSWORD"
)

var (
	configPath   string
	siteFlag     string
	unitsFlag    string
	usernameFlag string
	passwordFlag string
	out          outputMode
)

var rootCmd = &cobra.Command{
	Use:           "kumoctl",
	Short:         "Inspect and control Kumo Cloud devices",
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("kumoctl %s\n", version.Full())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOrDefault("KUMO2MQTT_CONFIG", config.DefaultPath), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&siteFlag, "site", "", "Site ID (defaults to the configured or only site)")
	rootCmd.PersistentFlags().StringVar(&unitsFlag, "units", "", "Temperature units: celsius or fahrenheit")
	rootCmd.PersistentFlags().StringVar(&usernameFlag, "username", "", "Kumo Cloud username")
	rootCmd.PersistentFlags().StringVar(&passwordFlag, "password", "", "Kumo Cloud password")
	rootCmd.PersistentFlags().BoolVar(&out.json, "json", false, "Print raw JSON")
	rootCmd.AddCommand(accountCmd, sitesCmd, zonesCmd, devicesCmd, deviceCmd, dumpCmd, setCmd, versionCmd)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// newClient builds a connected client. Credential precedence: flags, then
// environment, then the config file; the file is optional while both
// credentials come from elsewhere.
func newClient(ctx context.Context) (*kumo.Client, *config.Config, error) {
	username := envOrDefault(usernameEnvVar, "")
	password := envOrDefault(passwordEnvVar, "")
	if usernameFlag != "" {
		username = usernameFlag
	}
	if passwordFlag != "" {
		password = passwordFlag
	}

	var cfg *config.Config
	if loaded, err := config.Load(configPath); err == nil {
		cfg = loaded
	} else if username == "" || password == "" {
		return nil, nil, fmt.Errorf("no credentials: pass --username/--password, set %s and %s, or provide --config: %w",
			usernameEnvVar, passwordEnvVar, err)
	}
	if username == "" {
		username = cfg.Kumo.Username
	}
	if password == "" {
		password = cfg.Kumo.Password
	}

	clientCfg := kumo.Config{Username: username, Password: password}
	if cfg != nil {
		clientCfg.StateFile = cfg.Kumo.StateFile
	}

	client, err := kumo.NewClient(clientCfg, logging.Logger())
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// resolveSiteID applies the flag, then the config, then the only site.
func resolveSiteID(ctx context.Context, client *kumo.Client, cfg *config.Config) (string, error) {
	if siteFlag != "" {
		return siteFlag, nil
	}
	if cfg != nil && cfg.Kumo.SiteID != "" {
		return cfg.Kumo.SiteID, nil
	}

	sites, err := client.Sites(ctx)
	if err != nil {
		return "", fmt.Errorf("list sites: %w", err)
	}
	switch len(sites) {
	case 0:
		return "", fmt.Errorf("account has no sites")
	case 1:
		return sites[0].ID, nil
	default:
		labels := make([]string, 0, len(sites))
		for _, site := range sites {
			labels = append(labels, fmt.Sprintf("%s (%s)", site.Name, site.ID))
		}
		return "", fmt.Errorf("account has %d sites, pass --site with one of: %s",
			len(sites), strings.Join(labels, ", "))
	}
}

func displayUnits(cfg *config.Config) (climate.Units, error) {
	raw := unitsFlag
	if raw == "" && cfg != nil {
		raw = cfg.Units
	}
	return climate.ParseUnits(raw)
}
