package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/service"
)

func (a *app) createUserCommand() *cobra.Command {
	var input service.AccountInput
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision an account with any role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input.Role = domain.Role(role)
			if !input.Role.Valid() {
				return fmt.Errorf("unknown role %q (want User, Technician or Admin)", role)
			}
			users := service.NewUserService(a.backend.Users, a.cfg.Auth.BcryptCost)
			user, err := users.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input.Username, "username", "", "login name")
	flags.StringVar(&input.Password, "password", "", "initial password")
	flags.StringVar(&input.Name, "name", "", "display name")
	flags.StringVar(&input.Email, "email", "", "email address")
	flags.StringVar(&input.Department, "department", "", "department")
	flags.StringVar(&role, "role", string(domain.RoleUser), "User, Technician or Admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
