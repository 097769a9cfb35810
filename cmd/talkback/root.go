package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/talkback/internal/config"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/turnclient"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	verbose    bool
	baseURL    string
	configPath string
	sessionID  string
	logFile    string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "talkback",
		Short: "Talk to the voice agent from your terminal",
		Long: `talkback records your voice, sends each turn to the agent server and
plays the spoken reply, then starts listening again.

Quick Start:
  talkback talk                      # start a conversation
  talkback history show <session>    # print a session's transcript
  talkback watch <session>           # follow a session live`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logx.SetVerbose(o.verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&o.baseURL, "base-url", "", "Agent server base URL (overrides TALKBACK_BASE_URL)")
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "YAML settings file (overrides TALKBACK_CONFIG)")
	cmd.PersistentFlags().StringVar(&o.sessionID, "session", "", "Resume an existing session id")
	cmd.PersistentFlags().StringVar(&o.logFile, "log-file", "", "Write diagnostics to this file")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newTalkCmd(o),
		newSessionCmd(o),
		newHistoryCmd(o),
		newWatchCmd(o),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// clientConfig loads settings from the environment and applies flag overrides.
func (o *rootOptions) clientConfig() (config.ClientConfig, error) {
	if p := strings.TrimSpace(o.configPath); p != "" {
		if err := os.Setenv("TALKBACK_CONFIG", p); err != nil {
			return config.ClientConfig{}, err
		}
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return config.ClientConfig{}, err
	}
	if v := strings.TrimSpace(o.baseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(o.sessionID); v != "" {
		cfg.SessionID = v
	}
	if v := strings.TrimSpace(o.logFile); v != "" {
		cfg.LogFile = v
	}
	if err := cfg.Validate(); err != nil {
		return config.ClientConfig{}, err
	}
	return cfg, nil
}

func newClient(cfg config.ClientConfig) (*turnclient.Client, error) {
	return turnclient.New(turnclient.Options{
		BaseURL:        cfg.BaseURL,
		SubmitTimeout:  cfg.SubmitTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
}

// sessionArg picks the session id from the first positional argument, then
// from --session or TALKBACK_SESSION_ID.
func sessionArg(cfg config.ClientConfig, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if cfg.SessionID != "" {
		return cfg.SessionID, nil
	}
	return "", fmt.Errorf("a session id is required (argument or --session)")
}

// setupLogging points logx at the log file, or at fallback when none is set.
// The returned func closes the file.
func setupLogging(path string, fallback io.Writer) (func(), error) {
	if path == "" {
		logx.SetOutput(fallback)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logx.SetOutput(f)
	return func() { _ = f.Close() }, nil
}
