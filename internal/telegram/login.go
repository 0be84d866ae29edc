package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Prompter asks the operator for login input.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// PhoneNumber skips the phone prompt when set.
	PhoneNumber string
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

var _ auth.UserAuthenticator = (*Prompter)(nil)

func (p *Prompter) ask(question string) (string, error) {
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) Phone(_ context.Context) (string, error) {
	if p.PhoneNumber != "" {
		return p.PhoneNumber, nil
	}
	return p.ask("Phone number: ")
}

func (p *Prompter) Password(_ context.Context) (string, error) {
	return p.ask("2FA password: ")
}

func (p *Prompter) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return p.ask("Code: ")
}

func (p *Prompter) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (p *Prompter) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, register the number in an official client first")
}

// Login creates or refreshes the session file for opts.Name interactively.
func Login(ctx context.Context, opts Options, a auth.UserAuthenticator) (Profile, error) {
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return Profile{}, fmt.Errorf("telegram: create sessions dir: %w", err)
	}
	client := telegram.NewClient(opts.APIID, opts.APIHash, clientOptions(withDefaults(opts)))

	var profile Profile
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(a, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		var err error
		profile, err = self(ctx, client.API())
		return err
	})
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}
