package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psyportal/portal-client/internal/core/domain"
)

func (c *cli) loginCmd() *cobra.Command {
	var creds domain.LoginCredentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := secret(creds.Password, "Password")
			if err != nil {
				return err
			}
			creds.Password = pw
			if err := resultError(c.app.store.Login(cmd.Context(), creds)); err != nil {
				return err
			}
			u := c.app.store.Snapshot().User
			fmt.Fprintf(c.out, "Signed in as %s <%s> (%s)\n", u.Name, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().BoolVar(&creds.Remember, "remember", false, "Ask the backend for a long-lived session")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Run: func(cmd *cobra.Command, _ []string) {
			c.app.store.Logout(cmd.Context())
			fmt.Fprintln(c.out, "Signed out")
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var reg domain.Registration
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := secret(reg.Password, "Password")
			if err != nil {
				return err
			}
			reg.Password, reg.PasswordConfirmation = pw, pw
			reg.Role = domain.Role(role)

			res := c.app.store.Register(cmd.Context(), reg)
			if err := resultError(res); err != nil {
				return err
			}
			fmt.Fprintln(c.out, res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password, at least 8 characters (prompted when omitted)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&role, "role", "", "client or therapist")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			printUser(c.out, c.app.store.Snapshot().User)
			return nil
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			env, err := c.app.client.Profile(cmd.Context())
			if err != nil {
				return failure(err)
			}
			printUser(c.out, env.Data)
			return nil
		},
	}

	var name, phone, avatar string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change name, phone or avatar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			var patch domain.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("phone") {
				patch.Phone = &phone
			}
			if cmd.Flags().Changed("avatar") {
				patch.Avatar = &avatar
			}
			if patch == (domain.ProfilePatch{}) {
				return fmt.Errorf("nothing to update; pass --name, --phone or --avatar")
			}
			if err := resultError(c.app.store.UpdateProfile(cmd.Context(), patch)); err != nil {
				return err
			}
			printUser(c.out, c.app.store.Snapshot().User)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "Full name")
	update.Flags().StringVar(&phone, "phone", "", "Phone number")
	update.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")
	cmd.AddCommand(update)
	return cmd
}

func (c *cli) verifyEmailCmd() *cobra.Command {
	var email, token string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm an email address with the token from the verification mail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := c.app.store.VerifyEmail(cmd.Context(), token, email)
			if err := resultError(res); err != nil {
				return err
			}
			fmt.Fprintln(c.out, orText(res.Message, "Email verified"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Address to verify")
	cmd.Flags().StringVar(&token, "token", "", "Verification token")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (c *cli) resendVerificationCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Send the verification mail again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.app.client.ResendVerification(cmd.Context(), email)
			if err != nil {
				return failure(err)
			}
			fmt.Fprintln(c.out, envMessage(env, "Verification email sent"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) forgotPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.app.client.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return failure(err)
			}
			fmt.Fprintln(c.out, envMessage(env, "Reset instructions sent"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) resetPasswordCmd() *cobra.Command {
	var reset domain.PasswordReset
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := secret(reset.Password, "New password")
			if err != nil {
				return err
			}
			reset.Password, reset.PasswordConfirmation = pw, pw
			env, err := c.app.client.ResetPassword(cmd.Context(), reset)
			if err != nil {
				return failure(err)
			}
			fmt.Fprintln(c.out, envMessage(env, "Password changed"))
			return nil
		},
	}
	cmd.Flags().StringVar(&reset.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reset.Token, "token", "", "Reset token")
	cmd.Flags().StringVar(&reset.Password, "password", "", "New password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func envMessage(env *domain.Envelope[domain.MessageData], fallback string) string {
	if env == nil || env.Data == nil {
		return fallback
	}
	return orText(env.Data.Message, fallback)
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
