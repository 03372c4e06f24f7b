package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/session"
)

// WatchCmd restores the session and reports state changes until interrupted.
type WatchCmd struct{}

func (w *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := globals.out()

	var (
		mu   sync.Mutex
		last string
	)
	report := func(s session.State) {
		if s.Loading {
			return
		}
		line := describe(s)

		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(out, line)
	}

	cancel := rt.Manager.Subscribe(report)
	defer cancel()

	if err := rt.Manager.Init(ctx); err != nil {
		return err
	}
	report(rt.Manager.State())

	log.Debug().Dur("interval", rt.Config.PollInterval).Msg("watching session")

	<-ctx.Done()

	fmt.Fprintf(out, "stopped at %s\n", rt.Router.Current())

	return nil
}

func describe(s session.State) string {
	switch {
	case s.IsAuthenticated() && s.Error != "":
		return fmt.Sprintf("signed in as %s (%s): %s", s.User.Username, s.User.Role, s.Error)
	case s.IsAuthenticated():
		return fmt.Sprintf("signed in as %s (%s)", s.User.Username, s.User.Role)
	case s.Error != "":
		return "signed out: " + s.Error
	default:
		return "signed out"
	}
}
