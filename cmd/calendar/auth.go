package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/calsync/internal/api"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/tokenstore"
)

func newLoginCmd(a *app) *cobra.Command {
	var c model.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Login(cmd.Context(), c); err != nil {
				return err
			}
			return a.report(a.session.Session())
		},
	}
	cmd.Flags().StringVarP(&c.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&c.Password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var r model.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Register(cmd.Context(), r); err != nil {
				return err
			}
			return a.report(a.session.Session())
		},
	}
	cmd.Flags().StringVarP(&r.Name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&r.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&r.Password, "password", "p", "", "account password (at least 6 characters)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.session.Logout(); err != nil {
				return err
			}
			printSession(a.out, a.session.Session())
			return nil
		},
	}
}

func newRenewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Exchange the stored token for a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.resume(cmd.Context())
			printSession(a.out, s)
			return err
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tok, ok, err := tokenstore.LoadToken(a.store)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "no session")
				return nil
			}
			fmt.Fprintf(a.out, "token stored %s\n", tok.IssuedAt.Format(time.RFC3339))
			claims, err := api.InspectToken(tok.Value)
			if err != nil {
				fmt.Fprintf(a.out, "token unreadable: %v\n", err)
				return nil
			}
			fmt.Fprintf(a.out, "user %s (uid %s)\n", claims.Name, claims.Subject)
			if !claims.ExpiresAt.IsZero() {
				state := "valid"
				if claims.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(a.out, "expires %s (%s)\n", claims.ExpiresAt.Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

// report prints the session and turns a failed sign-in into an error carrying its message.
func (a *app) report(s model.Session) error {
	if s.Status == model.StatusAuthenticated {
		printSession(a.out, s)
		return nil
	}
	if s.ErrorMessage != "" {
		return errors.New(s.ErrorMessage)
	}
	return errNotLoggedIn
}
