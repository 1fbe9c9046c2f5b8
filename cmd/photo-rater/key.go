package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/cli"
	"github.com/fpang/photo-rater/internal/store"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored API key",
	Long: `Key stores, shows, clears or validates the API key of the configured
provider. Environment variables (PHOTO_RATER_API_KEY, GEMINI_API_KEY,
ANTHROPIC_API_KEY) take precedence over the stored key.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = strings.TrimSpace(args[0])
		} else {
			var err error
			key, err = cli.ReadSecret(os.Stdin, cmd.ErrOrStderr(), "API key")
			if err != nil {
				return err
			}
		}
		if key == "" {
			return errors.New("API key must not be empty")
		}

		return withStore(func(kv store.KVStore) error {
			ctx := cmd.Context()
			if err := kv.Put(ctx, store.CredentialKey(cfg.Provider), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key %s\n", cfg.Provider, auth.MaskKey(key))

			conn, err := cli.Connect(ctx, chat.NewBackend, cfg.Provider, cfg.Model, kv)
			if err != nil {
				return err
			}
			if conn.Validation != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", cli.DescribeValidationError(conn.Validation))
			}
			return nil
		})
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where the API key comes from, masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(kv store.KVStore) error {
			key, source, err := auth.GetAPIKey(cmd.Context(), cfg.Provider, kv)
			if err != nil {
				return errors.New(cli.DescribeValidationError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key %s (source: %s)\n", cfg.Provider, auth.MaskKey(key), source)
			return nil
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(kv store.KVStore) error {
			if err := kv.Delete(cmd.Context(), store.CredentialKey(cfg.Provider)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted stored %s key\n", cfg.Provider)
			return nil
		})
	},
}

var keyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the API key with a minimal request",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(kv store.KVStore) error {
			conn, err := cli.Connect(cmd.Context(), chat.NewBackend, cfg.Provider, cfg.Model, kv)
			if err != nil {
				return errors.New(cli.DescribeValidationError(err))
			}
			if conn.Validation != nil {
				return errors.New(cli.DescribeValidationError(conn.Validation))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s key is valid (source: %s)\n", cfg.Provider, conn.Source)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyClearCmd, keyValidateCmd)
}

func withStore(fn func(kv store.KVStore) error) error {
	kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	return fn(kv)
}

