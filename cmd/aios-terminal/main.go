package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	terminal "github.com/EricSpencer00/ai-os-sub000"
	"github.com/EricSpencer00/ai-os-sub000/service/coordinator"
)

var (
	configURL    string
	traceFile    string
	enableTraces bool
)

var rootCmd = &cobra.Command{
	Use:   "aios-terminal",
	Short: "AI-driven terminal: reads intents from stdin and executes synthesized commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		config := terminal.DefaultConfig()
		if configURL != "" {
			loaded, err := terminal.LoadConfig(ctx, configURL)
			if err != nil {
				return err
			}
			config = loaded
		}

		options := []terminal.Option{terminal.WithConfig(config)}
		if enableTraces {
			options = append(options, terminal.WithTracing("aios-terminal", "0.1.0", traceFile))
		}
		srv := terminal.New(options...)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		// Close on every exit path so the shell process never outlives us.
		// The REPL blocks on stdin, so termination signals close the
		// session directly instead of waiting for the next line.
		defer srv.Close()
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-signals
			_ = srv.Close()
			os.Exit(130)
		}()

		return repl(ctx, srv)
	},
}

func repl(ctx context.Context, srv *terminal.Service) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("intent> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		intent := strings.TrimSpace(scanner.Text())
		if intent == "" {
			continue
		}
		if intent == "exit" || intent == "quit" {
			return nil
		}
		outcome, err := srv.Submit(ctx, intent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		report(outcome)
	}
}

func report(outcome *coordinator.Outcome) {
	for _, attempt := range outcome.Attempts {
		if attempt.Rejected {
			fmt.Printf("[%d] rejected: %s\n", attempt.Number, attempt.Reason)
			continue
		}
		fmt.Printf("[%d] $ %s\n", attempt.Number, attempt.Command)
		if attempt.Output != "" {
			fmt.Println(attempt.Output)
		}
		fmt.Printf("[%d] exit %d in %s\n", attempt.Number, attempt.ExitCode, attempt.Duration)
	}
	fmt.Printf("status: %s (cwd %s)\n", outcome.Status, outcome.LastCwd)
}

func main() {
	rootCmd.Flags().StringVarP(&configURL, "config", "c", "", "config URL (YAML; file://, mem://, embed://)")
	rootCmd.Flags().BoolVar(&enableTraces, "trace", false, "emit OpenTelemetry spans")
	rootCmd.Flags().StringVar(&traceFile, "trace-file", "", "write spans to file instead of stdout")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
