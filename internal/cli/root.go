package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/pkg/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	APIURL    string
	Format    string

	// HTTPClient and NewKey are overridden in tests.
	HTTPClient *http.Client
	NewKey     func() string
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.NewKey == nil {
		opts.NewKey = uuid.NewString
	}
	cmd := &cobra.Command{
		Use:           "farmlink",
		Short:         "Farmlink marketplace client",
		Long:          "Browse produce, manage a local cart, place orders and manage your wallet from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "directory holding profile.yaml and cart.json (env FARMLINK_CONFIG_DIR)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "API base URL, e.g. http://localhost:5000/api")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newForgotPasswordCommand(opts))
	cmd.AddCommand(newResetPasswordCommand(opts))
	cmd.AddCommand(newProductsCommand(opts))
	cmd.AddCommand(newCartCommand(opts))
	cmd.AddCommand(newCheckoutCommand(opts))
	cmd.AddCommand(newWalletCommand(opts))
	cmd.AddCommand(newOrdersCommand(opts))
	return cmd
}

// session is the per-invocation state: the profile, an API client carrying
// its token and the cart storage.
type session struct {
	dir     string
	profile Profile
	api     *client.Client
	cart    cart.FileStorage
	out     *output
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	dir, err := resolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	profile, err := loadProfile(dir)
	if err != nil {
		return nil, err
	}
	if opts.APIURL != "" {
		profile.APIURL = opts.APIURL
	}

	s := &session{
		dir:     dir,
		profile: profile,
		cart:    cart.FileStorage{Path: filepath.Join(dir, cartFile)},
		out:     &output{w: cmd.OutOrStdout(), format: opts.Format},
	}
	clientOpts := []client.Option{
		client.WithToken(profile.Token),
		client.WithUnauthorizedHook(func() {
			// A rejected token is useless; drop it so the next command asks for login.
			s.profile.clearSession()
			_ = saveProfile(s.dir, s.profile)
		}),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(opts.HTTPClient))
	}
	api, err := client.NewClient(profile.APIURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	s.api = api
	return s, nil
}

func (s *session) requireLogin() error {
	if !s.profile.SignedIn() {
		return fmt.Errorf("not logged in: run `farmlink login` first")
	}
	return nil
}

func (s *session) loadCart(ctx context.Context) (cart.Store, error) {
	return s.cart.Load(ctx)
}

func (s *session) saveCart(ctx context.Context, store cart.Store) error {
	return s.cart.Save(ctx, store)
}
