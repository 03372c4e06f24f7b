package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/billstock/internal/login"
)

// GuardCmd reports what the route guard decides for a path with the current session.
type GuardCmd struct {
	Path string `arg:"" help:"Application path, e.g. /admin/users"`
}

func (g *GuardCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Init(ctx); err != nil {
		return err
	}

	d := rt.Router.Visit(rt.Guard, rt.Manager.State(), g.Path)

	out := globals.out()
	switch d.Outcome {
	case login.DecisionRedirect:
		fmt.Fprintf(out, "%s -> %s\n", d.Outcome, d.Location)
		if from := login.From(d.Location); from != "" {
			fmt.Fprintf(out, "Log in with: billstock login --from %s USERNAME\n", from)
		}
	default:
		fmt.Fprintf(out, "%s %s\n", d.Outcome, g.Path)
	}

	return nil
}
