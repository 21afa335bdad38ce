// Package terminal provides the autonomous command-execution engine behind
// the AI-OS terminal: one persistent shell session under a pseudo-terminal,
// a validation pipeline for machine-synthesized command text, framed
// execution with unambiguous exit-code and working-directory capture, and a
// bounded retry loop that feeds failure context back to the synthesizer.
//
// End-users interact with the engine via the Service façade exposed by this
// root package:
//
//	srv := terminal.New(terminal.WithConfig(cfg))
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
//	outcome, err := srv.Submit(ctx, "show free disk space")
//
// The engine is not a terminal emulator and its validation layer is
// heuristic filtering, not a sandbox; see the individual sub-packages for
// the component contracts.
package terminal
