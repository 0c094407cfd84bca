package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

type adminOptions struct {
	cedula   string
	nombre   string
	apellido string
	correo   string
	telefono string
}

func newCreateAdminCmd(a *app) *cobra.Command {
	opts := &adminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  "Creates an active administrator. The password is read from the terminal without echo, or from the first line of stdin when it is not a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			services, err := a.services()
			if err != nil {
				return err
			}

			rec, err := createAdmin(cmd.Context(), services.Records, opts, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s created with id %s\n", rec["correo"], rec.ID())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cedula, "cedula", "", "national id number")
	f.StringVar(&opts.nombre, "nombre", "Administrador", "given names")
	f.StringVar(&opts.apellido, "apellido", "Biblioteca", "surnames")
	f.StringVar(&opts.correo, "correo", "", "email address used to log in")
	f.StringVar(&opts.telefono, "telefono", "", "phone number")
	_ = cmd.MarkFlagRequired("cedula")
	_ = cmd.MarkFlagRequired("correo")

	return cmd
}

// createAdmin stores an administrator through the usuarios hooks, so uniqueness, normalization and hashing
// apply as they do for the API.
func createAdmin(ctx context.Context, records *service.RecordService, opts *adminOptions, password string) (store.Record, error) {
	return records.Create(ctx, domain.Usuarios, store.Record{
		"cedula":           opts.cedula,
		"nombreCompleo":    opts.nombre,
		"apellidoCompleto": opts.apellido,
		"telefono":         opts.telefono,
		"dirreccion":       "",
		"correo":           opts.correo,
		"contrasena":       password,
		"rol":              string(domain.RoleAdmin),
		"estado":           true,
	})
}

// readPassword prompts twice on a terminal. Piped input supplies the password on its first line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
