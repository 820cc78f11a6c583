// Package credentials keeps broker passwords in the OS keychain and asks
// for them once, on first use.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rustyeddy/fxtrader/config"
	"github.com/rustyeddy/fxtrader/fxerr"
)

// Service returns the keychain service name for an account.
func Service(a config.Account) string {
	if a == config.Live {
		return "com.gain_capital_forex.live_account/Live_Account"
	}
	return "com.gain_capital_forex.test_account/Test_Account"
}

// Prompt asks the operator for a secret.
type Prompt func(label string) (string, error)

// Store reads and writes one account's passwords.
type Store struct {
	account config.Account
	prompt  Prompt
	log     *zap.Logger
}

type Option func(*Store)

func WithPrompt(p Prompt) Option { return func(s *Store) { s.prompt = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

func New(account config.Account, opts ...Option) *Store {
	s := &Store{
		account: account,
		prompt:  TerminalPrompt(os.Stdin, os.Stderr),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("component", "credentials"), zap.String("account", string(account)))
	return s
}

// Password returns the stored password for username. When none is stored
// the operator is prompted and the answer is saved.
func (s *Store) Password(username string) (string, error) {
	const op = "credentials.Password"

	if username == "" {
		return "", fxerr.Errorf(op, fxerr.Credential, "no username for %s account", s.account)
	}
	svc := Service(s.account)

	pw, err := keyring.Get(svc, username)
	if err == nil {
		return pw, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fxerr.E(op, fxerr.Credential, fmt.Errorf("keychain lookup: %w", err))
	}

	s.log.Info("password not in keychain, prompting", zap.String("username", username))
	label := "Test Account"
	if s.account == config.Live {
		label = "Live Account"
	}
	pw, err = s.prompt(label + " password not found. Please input password: ")
	if err != nil {
		return "", fxerr.E(op, fxerr.Credential, err)
	}
	if pw == "" {
		return "", fxerr.Errorf(op, fxerr.Credential, "empty password for %s", username)
	}
	if err := keyring.Set(svc, username, pw); err != nil {
		return "", fxerr.E(op, fxerr.Credential, fmt.Errorf("keychain store: %w", err))
	}
	return pw, nil
}

// Forget removes the stored password so the next run prompts again.
func (s *Store) Forget(username string) error {
	err := keyring.Delete(Service(s.account), username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fxerr.E("credentials.Forget", fxerr.Credential, err)
	}
	return nil
}

// TerminalPrompt reads a password from in without echo when in is a
// terminal, and a plain line otherwise.
func TerminalPrompt(in *os.File, out io.Writer) Prompt {
	return func(label string) (string, error) {
		fmt.Fprint(out, label)
		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(b)), nil
		}
		return readLine(in)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
