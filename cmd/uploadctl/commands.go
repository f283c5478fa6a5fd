package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/objectkey"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint upload tokens",
	}
	cmd.AddCommand(newClientTokenCommand(), newBackendTokenCommand())
	return cmd
}

func newClientTokenCommand() *cobra.Command {
	var (
		contentType string
		role        string
		uploadID    string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client <file-key>",
		Short: "Mint a client upload token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := cfg.BuildIssuer().IssueClientToken(token.UploadClaims{
				FileKey:     args[0],
				ContentType: contentType,
				UploadID:    uploadID,
				AccessRole:  role,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", simpleupload.DefaultContentType, "content type claim")
	cmd.Flags().StringVar(&role, "role", string(simpleupload.RoleGuest), "access role claim")
	cmd.Flags().StringVar(&uploadID, "upload-id", "", "upload id claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: configured client ttl)")
	return cmd
}

func newBackendTokenCommand() *cobra.Command {
	var (
		key    string
		keys   []string
		maxAge int
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "backend <action>",
		Short: "Mint a backend token for one worker action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fields := token.Fields{token.ClaimAction: args[0]}
			if key != "" {
				fields[token.ClaimKey] = key
			}
			if len(keys) > 0 {
				fields[token.ClaimKeys] = keys
			}
			if cmd.Flags().Changed("max-age") {
				fields[token.ClaimMaxAge] = maxAge
			}

			tok, err := cfg.BuildIssuer().IssueBackendToken(fields, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "key claim")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "keys claim (batch-delete)")
	cmd.Flags().IntVar(&maxAge, "max-age", simpleupload.DefaultOrphanMaxAge, "maxAge claim in hours (orphan actions)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: configured backend ttl)")
	return cmd
}

// NewSlugCommand creates the slug command
func NewSlugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "slug <file-name>",
		Short: "Print the storage-safe form of a file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), objectkey.Slugify(args[0]))
			return nil
		},
	}
}

// NewKeyCommand creates the key command
func NewKeyCommand() *cobra.Command {
	var role, folder string

	cmd := &cobra.Command{
		Use:   "key <file-name>",
		Short: "Derive a storage key for a server-side upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := objectkey.NewGenerator().GenerateKey(objectkey.AccessRole(role), folder, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(simpleupload.RoleGuest), "access role")
	cmd.Flags().StringVar(&folder, "folder", simpleupload.DefaultFolder, "folder")
	return cmd
}

// NewValidateURLCommand creates the validate-url command
func NewValidateURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-url <file-url>",
		Short: "Check a file URL against the worker and print its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			key, err := svc.ValidateAndExtractKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete files from the worker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				if !svc.DeleteFile(cmd.Context(), args[0]) {
					return fmt.Errorf("delete failed: %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			}

			deleted := svc.BatchDeleteFiles(cmd.Context(), args)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d\n", deleted, len(args))
			if deleted < len(args) {
				return errors.New("some files were not deleted")
			}
			return nil
		},
	}
}

// NewInfoCommand creates the info command
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <key>",
		Short: "Show worker metadata for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			info := svc.GetFileInfo(cmd.Context(), args[0])
			if info == nil {
				return fmt.Errorf("no info for %s", args[0])
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

// NewOrphansCommand creates the orphans command
func NewOrphansCommand() *cobra.Command {
	var maxAge int

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List or clean up unconfirmed uploads",
	}
	cmd.PersistentFlags().IntVar(&maxAge, "max-age", simpleupload.DefaultOrphanMaxAge, "age threshold in hours")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List orphaned uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			orphans := svc.ListOrphans(cmd.Context(), maxAge)
			if orphans == nil {
				orphans = []simpleupload.OrphanFile{}
			}
			return printJSON(cmd.OutOrStdout(), orphans)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete orphaned uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService()
			if err != nil {
				return err
			}
			result := svc.CleanupOrphans(cmd.Context(), maxAge)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d, failed %d\n", result.Deleted, result.Failed)
			return nil
		},
	})

	return cmd
}
