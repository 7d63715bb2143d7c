package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	roundDuration    time.Duration
	roundGrace       time.Duration
	preGameDuration  time.Duration
	playerReconnect  time.Duration
	durationPerEvent time.Duration
	piecesPerPlayer  int

	gcInterval       time.Duration
	minLobbyLifespan time.Duration
	maxLobbyLifespan time.Duration
	joinCodeMinLen   int

	// baseURL *url.URL
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.piecesPerPlayer < 1 {
		return fmt.Errorf("invalid pieces-per-player (must be >= 1): %d", c.piecesPerPlayer)
	}
	if c.minLobbyLifespan > c.maxLobbyLifespan {
		return errors.New("--min-lobby-lifespan must not exceed --max-lobby-lifespan")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PUSHARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "pusharena",
		Short:         "A real-time, turn-based, push-resolution grid game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PUSHARENA_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PUSHARENA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PUSHARENA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PUSHARENA_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PUSHARENA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PUSHARENA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PUSHARENA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PUSHARENA_VERSION)")

	fs.DurationVar(&cfg.roundDuration, "round-duration", 10*time.Second, "time allotted for submitting moves each round (env: PUSHARENA_ROUND_DURATION)")
	fs.DurationVar(&cfg.roundGrace, "round-grace", 2*time.Second, "extra time granted after round-duration for stragglers (env: PUSHARENA_ROUND_GRACE)")
	fs.DurationVar(&cfg.preGameDuration, "pre-game-duration", 5*time.Second, "countdown between server_start_game and the first round (env: PUSHARENA_PRE_GAME_DURATION)")
	fs.DurationVar(&cfg.playerReconnect, "player-reconnect", 10*time.Second, "window a disconnected player has to reconnect before being dropped (env: PUSHARENA_PLAYER_RECONNECT)")
	fs.DurationVar(&cfg.durationPerEvent, "duration-per-event", 5*time.Second, "time granted for ready_for_next_round per timeline event, while clients animate (env: PUSHARENA_DURATION_PER_EVENT)")
	fs.IntVar(&cfg.piecesPerPlayer, "pieces-per-player", 3, "pieces placed for each player at game start (env: PUSHARENA_PIECES_PER_PLAYER)")

	fs.DurationVar(&cfg.gcInterval, "gc-interval", 300*time.Second, "interval between lobby garbage-collection sweeps (env: PUSHARENA_GC_INTERVAL)")
	fs.DurationVar(&cfg.minLobbyLifespan, "min-lobby-lifespan", 5*time.Minute, "minimum age before an empty lobby is eligible for collection (env: PUSHARENA_MIN_LOBBY_LIFESPAN)")
	fs.DurationVar(&cfg.maxLobbyLifespan, "max-lobby-lifespan", 6*time.Hour, "maximum age before any lobby is force-collected (env: PUSHARENA_MAX_LOBBY_LIFESPAN)")
	fs.IntVar(&cfg.joinCodeMinLen, "join-code-length", 4, "minimum length of minted join codes (env: PUSHARENA_JOIN_CODE_LENGTH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("pusharena v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
