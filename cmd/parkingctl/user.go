package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API accounts",
}

var userAddCmd = &cobra.Command{
	Use:         "add <username>",
	Short:       "Create an account, prompting for the password",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipCoreAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		auth := service.NewAuthService(current.store.Users, current.cfg.JWT.Secret, current.cfg.JWT.Expiration())
		user, err := auth.CreateUser(cmd.Context(), args[0], password, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (id %d)\n", user.Role, user.Username, user.ID)
		return nil
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password must be typed on a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	password := strings.TrimSpace(string(first))
	if len(password) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	return password, nil
}

func init() {
	userAddCmd.Flags().String("role", domain.RoleOperator, "admin or operator")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
