// Package tmscript interprets line-oriented scripts that drive a traffic manager device.
//
// Each line is split into shell-quoted tokens. The first one or two tokens select a command;
// remaining tokens are positional arguments. A token "$name" refers to a variable
// saved by a command ending with "as name". Lines starting with '#' are comments.
//
// Commands that return values print one JSON document per line.
package tmscript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

var logger = logging.New("TmScript")

// ErrUnknownCommand indicates the command name is not recognized.
var ErrUnknownCommand = errors.New("unknown command")

type command struct {
	nArgs    int
	variadic bool
	usage    string
	run      func(in *Interpreter, a *argList) (result any, e error)
}

var commands = map[string]command{}

func defineCommand(name string, nArgs int, usage string, run func(in *Interpreter, a *argList) (any, error)) {
	commands[name] = command{nArgs: nArgs, usage: usage, run: run}
}

func defineVariadic(name string, nArgs int, usage string, run func(in *Interpreter, a *argList) (any, error)) {
	commands[name] = command{nArgs: nArgs, variadic: true, usage: usage, run: run}
}

// Usage lists command synopses, sorted by name.
func Usage() (list []string) {
	for name, cmd := range commands {
		list = append(list, strings.TrimSpace(name+" "+cmd.usage))
	}
	sort.Strings(list)
	return list
}

// Interpreter executes script lines against a Device.
type Interpreter struct {
	dev    *tm.Device
	out    io.Writer
	logger *zap.Logger
	vars   map[string]string
}

// New creates an Interpreter.
// Command results are written to out.
func New(dev *tm.Device, out io.Writer) *Interpreter {
	return &Interpreter{
		dev:    dev,
		out:    out,
		logger: logger.With(dev.ID().ZapField("dev")),
		vars:   map[string]string{},
	}
}

// Var returns a saved variable.
func (in *Interpreter) Var(name string) (value string, ok bool) {
	value, ok = in.vars[name]
	return
}

// Run executes every line from r, stopping at the first error.
func (in *Interpreter) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if e := in.Exec(scanner.Text()); e != nil {
			return fmt.Errorf("line %d: %w", lineNo, e)
		}
	}
	return scanner.Err()
}

// Exec executes one line.
func (in *Interpreter) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	tokens, e := shellquote.Split(line)
	if e != nil {
		return fmt.Errorf("%w: %v", tmdef.ErrInvalidArg, e)
	}
	return in.execTokens(tokens)
}

func (in *Interpreter) execTokens(tokens []string) error {
	if len(tokens) >= 2 && tokens[0] == "expect" {
		return in.expect(tokens[1], tokens[2:])
	}

	saveAs := ""
	if n := len(tokens); n >= 3 && tokens[n-2] == "as" {
		saveAs, tokens = tokens[n-1], tokens[:n-2]
	}
	for i, token := range tokens {
		if name := strings.TrimPrefix(token, "$"); name != token {
			value, ok := in.vars[name]
			if !ok {
				return fmt.Errorf("%w: undefined variable %q", tmdef.ErrInvalidArg, name)
			}
			tokens[i] = value
		}
	}

	cmd, args, name := lookup(tokens)
	if name == "" {
		return fmt.Errorf("%w %q", ErrUnknownCommand, shellquote.Join(tokens...))
	}
	if len(args) < cmd.nArgs || (!cmd.variadic && len(args) > cmd.nArgs) {
		return fmt.Errorf("%w: usage: %s %s", tmdef.ErrInvalidArg, name, cmd.usage)
	}

	a := &argList{tokens: args}
	result, e := cmd.run(in, a)
	if a.e != nil {
		return a.e
	}
	if e != nil {
		in.logger.Debug("command failed", zap.String("cmd", name), zap.Strings("args", args), zap.Error(e))
		return e
	}

	if saveAs != "" {
		in.vars[saveAs] = fmt.Sprint(result)
	}
	return in.print(result)
}

func lookup(tokens []string) (cmd command, args []string, name string) {
	if len(tokens) >= 2 {
		name = tokens[0] + " " + tokens[1]
		if cmd, ok := commands[name]; ok {
			return cmd, tokens[2:], name
		}
	}
	if len(tokens) >= 1 {
		name = tokens[0]
		if cmd, ok := commands[name]; ok {
			return cmd, tokens[1:], name
		}
	}
	return cmd, nil, ""
}

// expect executes a command that must fail with the given status.
func (in *Interpreter) expect(statusName string, tokens []string) error {
	want, ok := parseStatus(statusName)
	if !ok {
		return fmt.Errorf("%w: bad status %q", tmdef.ErrInvalidArg, statusName)
	}
	e := in.execTokens(tokens)
	if errors.Is(e, ErrUnknownCommand) {
		return e
	}
	if got := tmdef.StatusOf(e); got != want {
		return fmt.Errorf("%w: expected %q, got %q (%v)", tmdef.ErrUnexpected, want, got, e)
	}
	return nil
}

func (in *Interpreter) print(result any) error {
	switch r := result.(type) {
	case nil:
		return nil
	case string:
		_, e := fmt.Fprintln(in.out, r)
		return e
	case fmt.Stringer:
		_, e := fmt.Fprintln(in.out, r.String())
		return e
	}
	j, e := json.Marshal(result)
	if e != nil {
		return e
	}
	_, e = fmt.Fprintln(in.out, string(j))
	return e
}
