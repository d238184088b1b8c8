// Command academic-reader reads processed documents in the terminal and
// uploads new ones for processing.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
)

const usage = `usage: academic-reader <command> [flags]

commands:
  read [-page n] [-original] <document-id>
      open a document in the three-pane reader
  upload [-title t] [-collection id] [-zotero key]... [file-or-url]...
      upload files for processing and wait until every job ends
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "read":
		err = runRead(ctx, cfg, os.Args[2:])
	case "upload":
		err = runUpload(ctx, cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "academic-reader: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config, screen bool) (logger.Logger, error) {
	lc := cfg.LoggerConfig()
	// the reader owns the terminal
	if screen && lc.Output != "file" {
		lc.Output = "file"
	}
	return logger.NewLogger(lc)
}

// promptChallenger asks on the terminal whether to retry a refused action
// after the user has sorted out access.
func promptChallenger() permission.Challenger {
	return newPromptChallenger(os.Stdin, os.Stderr)
}

// newPromptChallenger reads answers from in with a single goroutine for the
// life of the process, so an abandoned prompt never leaves a second reader
// behind. Lines typed while no prompt is open are discarded.
func newPromptChallenger(in io.Reader, out io.Writer) permission.Challenger {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return permission.ChallengerFunc(func(ctx context.Context, req permission.Request) (bool, error) {
	drain:
		for {
			select {
			case _, ok := <-lines:
				if !ok {
					break drain
				}
			default:
				break drain
			}
		}
		fmt.Fprintf(out, "Access denied: %s.\nGrant access in the web app, then press y to continue [y/N]: ", req.Action)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return false, nil
			}
			line = strings.ToLower(strings.TrimSpace(line))
			return line == "y" || line == "yes", nil
		}
	})
}
