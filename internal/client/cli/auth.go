package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/teadiary/internal/client/services"
	"github.com/dmitrijs2005/teadiary/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a display name, an email and a password, creates the
// account and signs it in.
//
// The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter your name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	acc, err := a.auth.Register(ctx, name, email, string(password))
	if err != nil {
		return a.fail(ctx, "Registration", err)
	}

	a.signIn(ctx, acc)
	a.println(okStyle.Render("Success!"), "Signed in as", acc.Email)
	return nil
}

// Login prompts for credentials and signs in. Any failure is reported with
// the same message whatever its cause.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	acc, err := a.auth.Login(ctx, email, string(password))
	if err != nil {
		a.log.Info(ctx, "login rejected", "error", err)
		if errors.Is(err, services.ErrLoginFailed) {
			err = services.ErrLoginFailed
		}
		a.println(errorStyle.Render(fmt.Sprintf("Login unsuccessful: %v", err)))
		return err
	}

	a.signIn(ctx, acc)
	a.println(okStyle.Render("Login successful"))
	return nil
}

// Logout forgets the signed-in account. Local data stays on the device.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return a.fail(ctx, "Logout", err)
	}
	a.signOut()
	a.println("Logged out")
	return nil
}
