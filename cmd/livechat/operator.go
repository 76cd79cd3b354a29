package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/wplc/livechat/internal/bootstrap"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/service"
)

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts",
	}
	cmd.AddCommand(newOperatorCreateCmd())
	cmd.AddCommand(newOperatorListCmd())
	return cmd
}

func newOperatorCreateCmd() *cobra.Command {
	var in service.CreateOperatorInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operator and print its bearer token",
		Long:  "Creates an operator account. The bearer token is printed once and cannot be recovered later.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := do.Invoke[service.OperatorService](bootstrap.BuildContainer())
			if err != nil {
				return err
			}
			op, token, err := ops.Create(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("create operator: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created operator %d (%s, %s)\n", op.ID, op.Email, op.Role)
			fmt.Fprintf(out, "Token: %s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Role, "role", model.RoleChatOperator, "administrator or chat_operator")
	cmd.Flags().StringVar(&in.Token, "token", "", "use this token instead of generating one")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newOperatorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List operator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := do.Invoke[service.OperatorService](bootstrap.BuildContainer())
			if err != nil {
				return err
			}
			list, err := ops.List(cmd.Context())
			if err != nil {
				return err
			}
			printOperators(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func printOperators(out io.Writer, ops []model.Operator) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, op := range ops {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", op.ID, op.Name, op.Email, op.Role)
	}
	_ = tw.Flush()
}
