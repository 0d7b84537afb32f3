package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"dispensary/internal/booking"
)

// prompt asks yes/no questions on a terminal. Anything but y/yes is a no.
type prompt struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompt(in io.Reader, out io.Writer) *prompt {
	return &prompt{in: bufio.NewReader(in), out: out}
}

func (p *prompt) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// readLine prints label and returns the trimmed answer.
func (p *prompt) readLine(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type autoConfirm struct{}

func (autoConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

// consoleNotifier prints workflow notifications one per line.
type consoleNotifier struct {
	out io.Writer
}

func newConsoleNotifier(out io.Writer) *consoleNotifier {
	return &consoleNotifier{out: out}
}

func (n *consoleNotifier) Notify(level booking.Level, message string) {
	fmt.Fprintf(n.out, "[%s] %s\n", strings.ToUpper(string(level)), message)
}
