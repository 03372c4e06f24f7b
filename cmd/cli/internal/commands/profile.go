package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/session"
	"github.com/wolfeidau/billstock/internal/store"
)

type ProfileCmd struct{}

func (p *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	user, err := rt.Manager.FetchProfile(ctx)
	if err != nil {
		return err
	}

	printUser(globals.out(), user)

	return nil
}

type UpdateProfileCmd struct {
	ID       int64  `help:"User to update, defaults to the signed in user"`
	Email    string `help:"Email address"`
	FullName string `help:"Full name"`
	Phone    string `help:"Phone number"`
	Address  string `help:"Postal address"`
}

func (u *UpdateProfileCmd) Run(ctx context.Context, globals *Globals) error {
	update := session.ProfileUpdate{
		Email:    u.Email,
		FullName: u.FullName,
		Phone:    u.Phone,
		Address:  u.Address,
	}
	if update == (session.ProfileUpdate{}) {
		return errors.New("nothing to update, pass at least one field")
	}

	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	id := u.ID
	if id == 0 {
		user, err := rt.Tokens.User(ctx)
		if errors.Is(err, store.ErrNoSession) {
			return errors.New("not logged in, run billstock login first")
		}
		if err != nil {
			return err
		}
		id = user.ID
	}

	resp, err := rt.Manager.UpdateProfile(ctx, id, update)
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.out(), resp.Message)
	if resp.User != nil {
		printUser(globals.out(), resp.User)
	}

	return nil
}

func printUser(out io.Writer, user *models.User) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", user.ID)
	fmt.Fprintf(w, "USERNAME\t%s\n", user.Username)
	fmt.Fprintf(w, "ROLE\t%s\n", user.Role)
	fmt.Fprintf(w, "EMAIL\t%s\n", user.Email)
	fmt.Fprintf(w, "FULL NAME\t%s\n", user.FullName)
	if user.Phone != "" {
		fmt.Fprintf(w, "PHONE\t%s\n", user.Phone)
	}
	if user.Address != "" {
		fmt.Fprintf(w, "ADDRESS\t%s\n", user.Address)
	}
	if user.CreatedAt != nil {
		fmt.Fprintf(w, "CREATED\t%s\n", user.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
