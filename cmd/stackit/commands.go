package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/domain/config"
	"stackit/domain/events"
	"stackit/infrastructure/authority"
	"stackit/infrastructure/identity"
	"stackit/pkg/auth"
	pkgerrors "stackit/pkg/errors"
	"stackit/pkg/observability"
)

// options are the persistent flags shared by every command
type options struct {
	authority string
	token     string
	secret    string
	timeout   time.Duration
	json      bool
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "stackit",
		Short: "Read, vote on and answer StackIt questions from the terminal",
		Long: `stackit talks to a StackIt authority directly. Votes are applied
locally first and confirmed in the background; answers are shown as pending
until the authority assigns an id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.authority, "authority", envOr("AUTHORITY_BASE_URL", "http://localhost:8090"), "Base URL of the authority")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", envOr("STACKIT_TOKEN", ""), "Access token used for voting and answering")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "jwt-secret", envOr("JWT_SECRET", ""), "Verify JWT signatures with this secret")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "Timeout for each authority call")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the board as JSON")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	showCmd := &cobra.Command{
		Use:   "show <questionID>",
		Short: "Show a question and its answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, opts, args[0], func(b *board.Board) error {
				return printBoard(cmd.OutOrStdout(), b.Snapshot(), opts.json)
			})
		},
	}

	voteCmd := &cobra.Command{
		Use:   "vote <questionID> <answerID>",
		Short: "Upvote an answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, opts, args[0], func(b *board.Board) error {
				if err := b.Vote(args[1]); err != nil {
					return err
				}
				b.Wait()
				return printBoard(cmd.OutOrStdout(), b.Snapshot(), opts.json)
			})
		},
	}

	answerCmd := &cobra.Command{
		Use:   "answer <questionID> <text...>",
		Short: "Post an answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, opts, args[0], func(b *board.Board) error {
				sub, err := b.SubmitAnswer(strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout+time.Second)
				defer cancel()
				if err := sub.Wait(ctx); err != nil {
					return err
				}
				return printBoard(cmd.OutOrStdout(), b.Snapshot(), opts.json)
			})
		},
	}

	rootCmd.AddCommand(showCmd, voteCmd, answerCmd)
	return rootCmd
}

// withBoard loads questionID into a fresh board and hands it to fn once the
// load has settled
func withBoard(cmd *cobra.Command, opts *options, questionID string, fn func(b *board.Board) error) error {
	logger, err := observability.NewLogger("development", opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := authority.NewHTTPClient(authority.ClientConfig{
		BaseURL: opts.authority,
		Timeout: opts.timeout,
		Breaker: authority.DefaultBreakerConfig("authority"),
	}, logger)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	domain := config.DefaultDomainConfig()
	domain.ConfirmTimeout = opts.timeout
	domain.LoadTimeout = opts.timeout

	b := board.New(client, identity.NewStatic(opts.token, auth.NewTokenChecker(opts.secret)), board.Options{
		Config: domain,
		Logger: logger,
	})
	defer b.Close()

	stderr := cmd.ErrOrStderr()
	unsubscribe := b.Subscribe(func(event events.DomainEvent) {
		switch e := event.(type) {
		case events.QuestionFallback:
			fmt.Fprintf(stderr, "warning: could not load question %s (%s), showing the sample question\n", e.RequestedID, e.Reason)
		case events.VoteConfirmFailed:
			fmt.Fprintf(stderr, "warning: vote on answer %s was not confirmed: %s\n", e.AnswerID, e.Reason)
		}
	})
	defer unsubscribe()

	if err := b.Load(questionID); err != nil {
		return err
	}
	b.Wait()

	if err := fn(b); err != nil {
		return err
	}
	for _, n := range b.DrainNotices() {
		logger.Debug("notice", zap.String("local_id", n.LocalID), zap.String("message", n.Message))
	}
	return nil
}

// exitCode maps errors the caller can fix to 1 and everything else to 2
func exitCode(err error) int {
	switch {
	case pkgerrors.IsUnauthorized(err), pkgerrors.IsEmptyInput(err), pkgerrors.IsSubmissionFailed(err):
		return 1
	default:
		return 2
	}
}
