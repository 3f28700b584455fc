package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bazelment/yoloswe/acprelay/config"
)

var checkSession string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect projection configuration",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return err
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a config file and print the config a session resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		f, err := config.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return printResolved(cmd.OutOrStdout(), f, checkSession)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configCheckCmd)
	configCheckCmd.Flags().StringVar(&checkSession, "session", "", "Session key to resolve (default: the file's defaults)")
}

// resolvedView is the YAML rendering of a projection.Config.
type resolvedView struct {
	Session          string          `yaml:"session,omitempty"`
	MetaMode         string          `yaml:"meta_mode"`
	DeliveryMode     string          `yaml:"delivery_mode"`
	TypingTrigger    string          `yaml:"typing_trigger"`
	TypingInterval   string          `yaml:"typing_interval"`
	TruncationNotice string          `yaml:"truncation_notice"`
	TagVisibility    map[string]bool `yaml:"tag_visibility,omitempty"`
	MaxTurnChars     int             `yaml:"max_turn_chars"`
	MaxToolSummary   int             `yaml:"max_tool_summary_chars"`
	MaxStatus        int             `yaml:"max_status_chars"`
	MaxMetaEvents    int             `yaml:"max_meta_events_per_turn"`
	ShowUsage        bool            `yaml:"show_usage"`
	Patterns         []string        `yaml:"patterns,omitempty"`
}

func printResolved(w io.Writer, f *config.File, session string) error {
	cfg := f.Resolve(session)
	view := resolvedView{
		Session:          session,
		MetaMode:         string(cfg.MetaMode),
		DeliveryMode:     string(cfg.DeliveryMode),
		TypingTrigger:    string(cfg.TypingTrigger),
		TypingInterval:   cfg.TypingInterval.String(),
		TruncationNotice: cfg.TruncationNotice,
		MaxTurnChars:     cfg.MaxTurnChars,
		MaxToolSummary:   cfg.MaxToolSummaryChars,
		MaxStatus:        cfg.MaxStatusChars,
		MaxMetaEvents:    max(cfg.MaxMetaEventsPerTurn, 0),
		ShowUsage:        cfg.ShowUsage,
	}
	if len(cfg.TagVisibility) > 0 {
		view.TagVisibility = make(map[string]bool, len(cfg.TagVisibility))
		for c, v := range cfg.TagVisibility {
			view.TagVisibility[c.String()] = v
		}
	}
	for k := range f.Sessions {
		view.Patterns = append(view.Patterns, k)
	}
	sort.Strings(view.Patterns)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}
