package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	draft "github.com/goliatone/go-draft"
	"github.com/goliatone/go-draft/generate"
	"github.com/goliatone/go-draft/internal/app"
	"github.com/goliatone/go-draft/internal/config"
	"github.com/goliatone/go-draft/pkg/activity"
	"github.com/goliatone/go-draft/pkg/state"
	"github.com/goliatone/go-draft/pkg/zaplog"
)

var errNoDraft = errors.New("no stored draft for this description; run generate first")

type cli struct {
	configFile string
	apiURL     string
	storeName  string
	dsn        string
	database   string
	verbose    bool

	cfg     config.Config
	logger  *zap.Logger
	store   *state.DraftStore
	closeFn app.CloseFunc
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "draftctl",
		Short:         "Generate and edit survey drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "path to a YAML config file")
	flags.StringVar(&c.apiURL, "api", "", "generation API base URL")
	flags.StringVar(&c.storeName, "store", "", "draft store: memory, redis, sqlite, postgres or mongo")
	flags.StringVar(&c.dsn, "dsn", "", "draft store connection string")
	flags.StringVar(&c.database, "database", "", "mongo database name")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.generateCmd(),
		c.regenerateCmd(),
		c.showCmd(),
		c.setTitleCmd(),
		c.addQuestionCmd(),
		c.removeQuestionCmd(),
		c.discardCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{File: c.configFile})
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if c.storeName != "" {
		cfg.Store.Driver = strings.ToLower(c.storeName)
	}
	if c.dsn != "" {
		cfg.Store.DSN = c.dsn
	}
	if c.database != "" {
		cfg.Store.Database = c.database
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.logger, err = zaplog.New(c.verbose || cfg.Verbose)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	backend, closeFn, err := app.OpenBackend(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	c.closeFn = closeFn
	c.store = state.NewDraftStore(backend, state.WithStoreLogger(zaplog.State(c.logger)))
	return nil
}

func (c *cli) teardown(ctx context.Context) error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn(context.WithoutCancel(ctx))
}

func (c *cli) newSession() *state.Session {
	events := c.logger.Named("activity")
	return state.NewSession(c.store,
		state.WithLogger(zaplog.State(c.logger)),
		state.WithAutosaveDelay(c.cfg.Session.AutosaveDelay.Std()),
		state.WithActivityHooks(
			activity.HookFunc(func(_ context.Context, e activity.Event) error {
				events.Debug(e.Verb, zap.String("key", e.ObjectID), zap.Any("metadata", e.Metadata))
				return nil
			}),
			activity.Only(activity.HookFunc(func(_ context.Context, e activity.Event) error {
				events.Warn("draft not saved", zap.String("key", e.ObjectID), zap.Any("error", e.Metadata["error"]))
				return nil
			}), activity.VerbDraftSaveFailed),
		),
	)
}

// restore opens a session over the stored draft for description. Anything
// other than a valid stored draft is reported as errNoDraft.
func (c *cli) restore(ctx context.Context, description string) (*state.Session, error) {
	session := c.newSession()
	if _, err := session.Restore(ctx, description); err != nil {
		session.Close(ctx)
		if errors.Is(err, state.ErrDraftNotFound) {
			return nil, fmt.Errorf("%w: %v", errNoDraft, err)
		}
		return nil, err
	}
	return session, nil
}

type output struct {
	Decision *state.Decision `json:"decision,omitempty"`
	Key      string          `json:"key"`
	Status   string          `json:"status,omitempty"`
	Draft    *draft.Draft    `json:"draft,omitempty"`
}

func writeOutput(w io.Writer, out output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func sessionOutput(session *state.Session) output {
	decision := session.LastDecision()
	d := session.Draft()
	return output{Decision: &decision, Key: session.Key(), Draft: &d}
}

func (c *cli) fetch(ctx context.Context, description string, fresh bool) (*draft.RawSurvey, error) {
	return generate.NewClient(c.cfg.API.BaseURL).Generate(ctx, description, fresh)
}

func (c *cli) generateCmd() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a survey and restore or create its draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := c.fetch(ctx, args[0], fresh)
			if err != nil {
				return err
			}
			session := c.newSession()
			defer session.Close(ctx)
			session.Ingest(ctx, raw)
			session.Flush(ctx)
			return writeOutput(cmd.OutOrStdout(), sessionOutput(session))
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass the generation cache")
	return cmd
}

func (c *cli) regenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <description>",
		Short: "Discard the stored draft and rebuild it from a fresh generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := c.fetch(ctx, args[0], true)
			if err != nil {
				return err
			}
			session := c.newSession()
			defer session.Close(ctx)
			if _, err := session.Regenerate(ctx, raw); err != nil {
				return err
			}
			session.Flush(ctx)
			return writeOutput(cmd.OutOrStdout(), sessionOutput(session))
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <description>",
		Short: "Print the stored draft for a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := state.DeriveKey(args[0])
			lookup := c.store.Get(cmd.Context(), key)
			out := output{Key: key, Status: string(lookup.Status)}
			if lookup.Found() {
				out.Draft = &lookup.Draft
			}
			return writeOutput(cmd.OutOrStdout(), out)
		},
	}
}

func (c *cli) setTitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-title <description> <title>",
		Short: "Change the title of a stored draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := c.restore(ctx, args[0])
			if err != nil {
				return err
			}
			defer session.Close(ctx)
			session.SetTitle(ctx, args[1])
			session.Flush(ctx)
			return writeOutput(cmd.OutOrStdout(), sessionOutput(session))
		},
	}
}

func (c *cli) addQuestionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-question <description> <type>",
		Short: "Append a blank question (multipleChoice, singleChoice or shortAnswer)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			questionType := draft.QuestionType(args[1])
			if !questionType.Known() {
				return fmt.Errorf("unknown question type %q", args[1])
			}
			session, err := c.restore(ctx, args[0])
			if err != nil {
				return err
			}
			defer session.Close(ctx)
			if _, err := session.AddQuestion(ctx, questionType); err != nil {
				return err
			}
			session.Flush(ctx)
			return writeOutput(cmd.OutOrStdout(), sessionOutput(session))
		},
	}
}

func (c *cli) removeQuestionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-question <description> <question-id>",
		Short: "Remove a question from a stored draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := c.restore(ctx, args[0])
			if err != nil {
				return err
			}
			defer session.Close(ctx)
			if err := session.RemoveQuestion(ctx, args[1]); err != nil {
				return err
			}
			session.Flush(ctx)
			return writeOutput(cmd.OutOrStdout(), sessionOutput(session))
		},
	}
}

func (c *cli) discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <description>",
		Short: "Delete the stored draft for a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := c.restore(ctx, args[0])
			if err != nil {
				return err
			}
			defer session.Close(ctx)
			session.DiscardStored(ctx)
			return writeOutput(cmd.OutOrStdout(), output{Key: session.Key(), Status: "discarded"})
		},
	}
}
