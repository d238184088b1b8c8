package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Epistemic-Technology/academic-reader/internal/permission"
)

type challengeResult struct {
	granted bool
	err     error
}

func challenge(ctx context.Context, c permission.Challenger) <-chan challengeResult {
	done := make(chan challengeResult, 1)
	go func() {
		granted, err := c.Challenge(ctx, permission.Request{Action: "upload a.pdf"})
		done <- challengeResult{granted, err}
	}()
	return done
}

// readPrompt blocks until the challenger has printed its question.
func readPrompt(t *testing.T, out io.Reader) {
	t.Helper()
	buf := make([]byte, 512)
	n, err := out.Read(buf)
	if err != nil {
		t.Fatalf("reading prompt: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "upload a.pdf") {
		t.Fatalf("prompt = %q", buf[:n])
	}
}

func result(t *testing.T, done <-chan challengeResult) challengeResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("challenge did not return")
		return challengeResult{}
	}
}

func TestPromptChallengerSurvivesCancelledPrompt(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	c := newPromptChallenger(inR, outW)

	ctx, cancel := context.WithCancel(context.Background())
	done := challenge(ctx, c)
	readPrompt(t, outR)
	cancel()
	if r := result(t, done); !errors.Is(r.err, context.Canceled) {
		t.Fatalf("cancelled prompt = %+v", r)
	}

	done = challenge(context.Background(), c)
	readPrompt(t, outR)
	if _, err := io.WriteString(inW, "y\n"); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if r := result(t, done); r.err != nil || !r.granted {
		t.Errorf("second prompt = %+v, want granted", r)
	}
}

func TestPromptChallengerAnswers(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			inR, inW := io.Pipe()
			outR, outW := io.Pipe()
			defer inW.Close()
			c := newPromptChallenger(inR, outW)

			done := challenge(context.Background(), c)
			readPrompt(t, outR)
			if _, err := io.WriteString(inW, tt.answer); err != nil {
				t.Fatalf("write answer: %v", err)
			}
			if r := result(t, done); r.err != nil || r.granted != tt.want {
				t.Errorf("answer %q = %+v, want %v", tt.answer, r, tt.want)
			}
		})
	}
}

func TestPromptChallengerClosedInputDenies(t *testing.T) {
	outR, outW := io.Pipe()
	c := newPromptChallenger(strings.NewReader(""), outW)

	done := challenge(context.Background(), c)
	readPrompt(t, outR)
	if r := result(t, done); r.err != nil || r.granted {
		t.Errorf("closed input = %+v, want denied", r)
	}
}
