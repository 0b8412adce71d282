package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	apiKeyName       string
	apiKeyRole       string
	apiKeyEmployeeID uint
	apiKeyTTL        time.Duration
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key and print its secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		in := services.CreateAPIKeyInput{
			Name: apiKeyName,
			Role: models.Role(apiKeyRole),
			TTL:  apiKeyTTL,
		}
		if apiKeyEmployeeID != 0 {
			in.EmployeeID = &apiKeyEmployeeID
		}

		key, secret, err := a.service.CreateAPIKey(context.Background(), in)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "id:     %d\nrole:   %s\nsecret: %s\n", key.ID, key.Role, secret)
		fmt.Fprintln(cmd.OutOrStdout(), "Store the secret now, it cannot be shown again.")
		return nil
	},
}

var apiKeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.service.ListAPIKeys(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tEMPLOYEE\tEXPIRES\tLAST USED")
		for _, k := range keys {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				k.ID, k.Name, k.Role, optionalID(k.EmployeeID), optionalTime(k.ExpiresAt), optionalTime(k.LastUsedAt))
		}
		return w.Flush()
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid key id")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.RevokeAPIKey(context.Background(), uint(id)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked key %d\n", id)
		return nil
	},
}

func optionalID(id *uint) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	apiKeyCreateCmd.Flags().StringVar(&apiKeyName, "name", "", "key name")
	apiKeyCreateCmd.Flags().StringVar(&apiKeyRole, "role", string(models.RoleAdmin), "admin or employee")
	apiKeyCreateCmd.Flags().UintVar(&apiKeyEmployeeID, "employee-id", 0, "employee the key acts for (employee role)")
	apiKeyCreateCmd.Flags().DurationVar(&apiKeyTTL, "ttl", 0, "key lifetime, 0 for no expiry")
	_ = apiKeyCreateCmd.MarkFlagRequired("name")

	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyListCmd, apiKeyRevokeCmd)
	rootCmd.AddCommand(apiKeyCmd)
}
