package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Verboo/Verboo-Realtime-go/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		user   string
		secret string
		ttl    time.Duration
		verify string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign or verify a development authentication token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = auth.Secret()
			}
			out := cmd.OutOrStdout()
			if verify != "" {
				uid, err := auth.UserID(verify, secret)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, uid)
				return nil
			}
			if user == "" {
				return fmt.Errorf("missing --user")
			}
			tok, err := auth.Sign(user, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to sign a token for")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET or the development secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	cmd.Flags().StringVar(&verify, "verify", "", "verify this token and print its user id")
	return cmd
}
