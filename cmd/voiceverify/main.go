package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pitabwire/util"
	"github.com/spf13/cobra"

	"github.com/pitabwire/voiceverify"
	"github.com/pitabwire/voiceverify/config"
	"github.com/pitabwire/voiceverify/ratelimiter"
	"github.com/pitabwire/voiceverify/version"
)

var (
	envFiles   []string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "voiceverify",
	Short: "Serve spoken verification code announcements",
	Long: `voiceverify answers the telephony provider's callback for a verification call
with the TwiML that reads the code out in the caller's language.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadEnvFiles(envFiles)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var describeCmd = &cobra.Command{
	Use:   "describe <code>",
	Short: "Print the TwiML served for a code",
	Long: `Print the TwiML document the service would return for a code and a set of
locale preferences. Validation and locale negotiation behave exactly as on the
HTTP endpoint, so malformed input fails the same way.`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading configuration")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file, overrides environment values")
	describeCmd.Flags().StringArrayP("locale", "l", nil, "locale preference, may be repeated")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFiles loads each file that exists. Variables already set in the environment win.
func loadEnvFiles(files []string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("could not load %s: %w", file, err)
		}
	}
	return nil
}

func loadConfig() (*config.ConfigurationVoice, error) {
	var (
		cfg config.ConfigurationVoice
		err error
	)
	if configFile != "" {
		cfg, err = config.FromFile[config.ConfigurationVoice](configFile)
	} else {
		cfg, err = config.FromEnv[config.ConfigurationVoice]()
	}
	if err != nil {
		return nil, err
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = version.Current()
	}
	return &cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	describer, err := voiceverify.NewDescriber(cfg)
	if err != nil {
		return err
	}

	var limiter *ratelimiter.KeyedLimiter
	if cfg.RateLimitEnabled() {
		limiter = ratelimiter.NewKeyedLimiter(ratelimiter.ConfigFrom(cfg))
	}

	ctx, srv := voiceverify.NewServiceWithContext(cmd.Context(), cfg.Name(),
		voiceverify.WithConfig(cfg),
		voiceverify.WithVoiceDescriber(describer, limiter),
	)

	srv.Log(ctx).
		WithField("supported_locales", cfg.LocalesSupported()).
		WithField("default_locale", cfg.LocaleDefault()).
		WithField("mode", cfg.AnnouncementMode).
		Info("voice description endpoint ready")

	return srv.Run(ctx, "")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	locales, err := cmd.Flags().GetStringArray("locale")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	describer, err := voiceverify.NewDescriber(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	desc, err := describer.Describe(ctx, args[0], locales)
	if err != nil {
		util.Log(ctx).WithError(err).Debug("describe failed")
		return err
	}

	_, err = desc.Response.WriteTo(cmd.OutOrStdout())
	return err
}
