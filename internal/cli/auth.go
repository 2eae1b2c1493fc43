package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/pkg/client"
)

func newRegisterCommand(opts *RootOptions) *cobra.Command {
	var (
		req   client.RegisterRequest
		phone string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a farmer or customer account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if phone != "" {
				req.Phone = &phone
			}
			res, err := s.api.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			return s.signIn(res)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (min 8 characters)")
	cmd.Flags().StringVar(&req.Role, "role", "CUSTOMER", "account role (FARMER|CUSTOMER)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCommand(opts *RootOptions) *cobra.Command {
	var req client.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session in the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			res, err := s.api.Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			return s.signIn(res)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if s.profile.SignedIn() {
				// The local token is dropped even if the server call fails.
				if err := s.api.Logout(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			s.profile.clearSession()
			if err := saveProfile(s.dir, s.profile); err != nil {
				return err
			}
			s.out.message("Logged out.")
			return nil
		},
	}
}

func newForgotPasswordCommand(opts *RootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.api.ForgotPassword(cmd.Context(), email); err != nil {
				return err
			}
			s.out.message("If the account exists, a reset code is on its way. Finish with: farmlink reset-password --email " + email + " --code <code>")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCommand(opts *RootOptions) *cobra.Command {
	var req client.ResetPasswordRequest
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with an emailed reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.api.ResetPassword(cmd.Context(), req); err != nil {
				return err
			}
			// Every session ends on the server, including this profile's.
			s.profile.clearSession()
			if err := saveProfile(s.dir, s.profile); err != nil {
				return err
			}
			s.out.message("Password reset. Sign in again with: farmlink login")
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Code, "code", "", "6-digit code from the email")
	cmd.Flags().StringVar(&req.NewPassword, "new-password", "", "new password (min 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("new-password")
	return cmd
}

func (s *session) signIn(res *client.AuthResult) error {
	s.profile.Token = res.Token
	s.profile.RefreshToken = res.RefreshToken
	s.profile.UserID = res.User.ID.String()
	s.profile.Email = res.User.Email
	s.profile.Role = res.User.Role
	if err := saveProfile(s.dir, s.profile); err != nil {
		return err
	}
	return s.out.emit(res.User, func(w io.Writer) {
		fmt.Fprintf(w, "Signed in as %s (%s)\n", res.User.Email, res.User.Role)
	})
}
