package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/billstock/internal/auth"
	"github.com/wolfeidau/billstock/internal/session"
	"github.com/wolfeidau/billstock/internal/store"
)

type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Init(ctx); err != nil {
		return err
	}

	token, _ := rt.Tokens.Token(ctx)
	printState(globals.out(), rt.Manager.State(), rt.Validator, token)

	return nil
}

func printState(out io.Writer, state session.State, validator *auth.Validator, token string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "AUTHENTICATED\t%t\n", state.IsAuthenticated())
	if state.User != nil {
		fmt.Fprintf(w, "USER\t%s (id %d)\n", state.User.Username, state.User.ID)
		fmt.Fprintf(w, "ROLE\t%s\n", state.User.Role)
	}
	if token != "" {
		fmt.Fprintf(w, "EXPIRES IN\t%s\n", validator.Remaining(token).Truncate(time.Second))
	}
	if state.Error != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", state.Error)
	}
	_ = w.Flush()
}

// TokenCmd decodes the stored session token. The signature is not checked.
type TokenCmd struct{}

type tokenInfo struct {
	Claims    map[string]any `json:"claims"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
	Expired   bool           `json:"expired"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	token, err := rt.Tokens.Token(ctx)
	if errors.Is(err, store.ErrNoSession) {
		return errors.New("not logged in, run billstock login first")
	}
	if err != nil {
		return err
	}

	claims, err := rt.Validator.Claims(token)
	if err != nil {
		return err
	}

	info := tokenInfo{Claims: claims, Expired: rt.Validator.IsExpired(token)}
	if exp, err := rt.Validator.ExpiresAt(token); err == nil {
		info.ExpiresAt = exp.UTC()
	}

	enc := json.NewEncoder(globals.out())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
