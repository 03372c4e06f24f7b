package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/billstock/internal/login"
	"github.com/wolfeidau/billstock/internal/session"
)

type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password, prompted for when empty" env:"BILLSTOCK_PASSWORD"`
	From     string `help:"Path to continue to after login"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	password, err := newPrompter(globals).valueOr(l.Password, "Password")
	if err != nil {
		return err
	}

	resp, err := rt.Manager.Login(ctx, l.Username, password)
	if err != nil {
		return err
	}

	out := globals.out()
	fmt.Fprintf(out, "Logged in as %s (%s)\n", resp.User.Username, resp.User.Role)
	fmt.Fprintf(out, "Continue to %s\n", login.ReturnPath(l.From, rt.Config.LandingPath))

	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(globals.out(), "Logged out")

	return nil
}

type RegisterCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address" required:""`
	FullName string `help:"Full name" required:""`
	Phone    string `help:"Phone number"`
	Address  string `help:"Postal address"`
	Role     string `help:"Requested role (staff, owner, admin)" enum:"staff,owner,admin" default:"staff"`
	Password string `help:"Password, prompted for when empty" env:"BILLSTOCK_PASSWORD"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	password, err := newPrompter(globals).valueOr(r.Password, "Password")
	if err != nil {
		return err
	}

	resp, err := rt.Manager.Register(ctx, session.RegisterRequest{
		Username: r.Username,
		Email:    r.Email,
		Password: password,
		FullName: r.FullName,
		Phone:    r.Phone,
		Address:  r.Address,
		Role:     r.Role,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.out(), resp.Message)
	fmt.Fprintf(globals.out(), "Log in with: billstock login %s\n", r.Username)

	return nil
}

type PasswdCmd struct {
	Current string `help:"Current password, prompted for when empty" env:"BILLSTOCK_PASSWORD"`
	New     string `help:"New password, prompted for when empty" env:"BILLSTOCK_NEW_PASSWORD"`
}

func (p *PasswdCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := globals.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	prompt := newPrompter(globals)
	current, err := prompt.valueOr(p.Current, "Current password")
	if err != nil {
		return err
	}
	next, err := prompt.valueOr(p.New, "New password")
	if err != nil {
		return err
	}

	resp, err := rt.Manager.ChangePassword(ctx, current, next)
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.out(), resp.Message)

	return nil
}
