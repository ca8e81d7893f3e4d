package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/usersvc/internal/bootstrap"
	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/directory"
	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	jwtx "github.com/dropDatabas3/usersvc/internal/jwt"
	"github.com/dropDatabas3/usersvc/internal/rbac"
	"github.com/dropDatabas3/usersvc/internal/security/password"
	"github.com/dropDatabas3/usersvc/internal/store"
	"github.com/dropDatabas3/usersvc/internal/store/pg"
	migrations "github.com/dropDatabas3/usersvc/migrations/postgres"
)

func openStore(cmd *cobra.Command, g *globals) (store.Store, *config.Config, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Driver == "memory" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: storage.driver=memory, changes are discarded on exit")
	}
	ctx, cancel := g.context()
	defer cancel()
	st, err := store.Open(ctx, cfg)
	return st, cfg, err
}

func migrateCmd(g *globals) *cobra.Command {
	migrate := &cobra.Command{Use: "migrate", Short: "Migraciones PostgreSQL"}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate requires storage.driver=postgres")
			}
			ctx, cancel := g.context()
			defer cancel()

			s, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Migrate(ctx, migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			return g.print(cmd, fmt.Sprintf("applied=%v skipped=%v", res.Applied, res.Skipped), res)
		},
	})
	return migrate
}

func seedCmd(g *globals) *cobra.Command {
	var testUsers bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea la cuenta raíz y los usuarios semilla (idempotente)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openStore(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()
			if testUsers {
				cfg.Bootstrap.SeedTestUsers = true
			}
			ctx, cancel := g.context()
			defer cancel()
			if err := bootstrap.Run(ctx, st.Users(), password.NewHasher(password.Default), cfg); err != nil {
				return err
			}
			return g.print(cmd, "ok", map[string]bool{"ok": true})
		},
	}
	cmd.Flags().BoolVar(&testUsers, "test-users", false, "Incluir el set de usuarios de desarrollo")
	return cmd
}

func adminCmd(g *globals) *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Cuenta raíz"}

	var userID, plain string
	setPwd := &cobra.Command{
		Use:   "set-password",
		Short: "Cambia la contraseña de la cuenta raíz (pide confirmación si no se pasa --password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain == "" {
				p, err := bootstrap.PromptPassword(os.Stdin, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				plain = p
			}
			st, cfg, err := openStore(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()
			if userID == "" {
				userID = cfg.Bootstrap.AdminUserID
			}
			ctx, cancel := g.context()
			defer cancel()
			if err := bootstrap.SetPassword(ctx, st.Users(), password.NewHasher(password.Default), userID, plain); err != nil {
				return err
			}
			return g.print(cmd, "password updated for "+userID, map[string]string{"userid": userID})
		},
	}
	setPwd.Flags().StringVar(&userID, "userid", "", "Cuenta (default bootstrap.admin_userid)")
	setPwd.Flags().StringVar(&plain, "password", "", "Nueva contraseña (evitar en shells con historial)")
	admin.AddCommand(setPwd)
	return admin
}

func userCmd(g *globals) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Usuarios"}

	var userID, plain, role string
	var skipPolicy bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !directory.UserIDPattern.MatchString(userID) {
				return fmt.Errorf("invalid --userid %q", userID)
			}
			r, err := rbac.ParseRole(role)
			if err != nil {
				return err
			}
			if plain == "" {
				if plain, err = bootstrap.PromptPassword(os.Stdin, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			st, cfg, err := openStore(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()

			if !skipPolicy {
				pp := cfg.Security.PasswordPolicy
				bl, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
				if err != nil {
					return fmt.Errorf("password blacklist: %w", err)
				}
				pol := password.Policy{
					MinLength: pp.MinLength, MaxLength: pp.MaxLength,
					RequireUpper: pp.RequireUpper, RequireLower: pp.RequireLower,
					RequireDigit: pp.RequireDigit, RequireSymbol: pp.RequireSymbol,
					Blacklist: bl,
				}
				if ok, reasons := pol.Validate(plain); !ok {
					return errors.New(password.Describe(reasons))
				}
			}
			hash, err := password.NewHasher(password.Default).Hash(plain)
			if err != nil {
				return err
			}

			ctx, cancel := g.context()
			defer cancel()
			u, err := st.Users().Create(ctx, repository.CreateUserInput{
				UserID:       userID,
				PasswordHash: hash,
				Role:         string(r),
				IsActive:     true,
			})
			if err != nil {
				return err
			}
			return g.print(cmd, fmt.Sprintf("created %s (id=%d, role=%s)", u.UserID, u.ID, u.Role), u)
		},
	}
	create.Flags().StringVar(&userID, "userid", "", "userid (3-30: letras, dígitos, _ o -)")
	create.Flags().StringVar(&plain, "password", "", "Contraseña (si falta se pide por terminal)")
	create.Flags().StringVar(&role, "role", string(rbac.Student), "Rol: super_admin|competition_admin|teacher|student")
	create.Flags().BoolVar(&skipPolicy, "skip-policy", false, "No validar la política de contraseñas")
	_ = create.MarkFlagRequired("userid")

	var (
		listRole   string
		listActive string
		limit      int
		offset     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista usuarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repository.ListUsersFilter{Limit: limit, Offset: offset}
			if listRole != "" {
				r, err := rbac.ParseRole(listRole)
				if err != nil {
					return err
				}
				f.Roles = []string{string(r)}
			}
			switch strings.ToLower(listActive) {
			case "":
			case "true", "false":
				b := listActive == "true"
				f.Active = &b
			default:
				return fmt.Errorf("--active must be true or false")
			}

			st, _, err := openStore(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx, cancel := g.context()
			defer cancel()
			users, total, err := st.Users().List(ctx, f)
			if err != nil {
				return err
			}
			if g.out == "json" {
				return g.print(cmd, "", map[string]any{"count": total, "results": users})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERID\tROLE\tACTIVE\tLAST LOGIN")
			for _, u := range users {
				last := "-"
				if u.LastLogin != nil {
					last = u.LastLogin.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", u.ID, u.UserID, u.Role, u.IsActive, last)
			}
			fmt.Fprintf(tw, "\n%d total\n", total)
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&listRole, "role", "", "Filtrar por rol")
	list.Flags().StringVar(&listActive, "active", "", "Filtrar por estado (true|false)")
	list.Flags().IntVar(&limit, "limit", 50, "Máximo de resultados (tope 200)")
	list.Flags().IntVar(&offset, "offset", 0, "Desplazamiento")

	user.AddCommand(create, list)
	return user
}

func tokenCmd(g *globals) *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Tokens"}
	tok.AddCommand(&cobra.Command{
		Use:   "inspect <access-token>",
		Short: "Decodifica un access token sin verificar la firma",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, header, err := jwtx.ParseUnverified(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			out := map[string]any{"header": header, "claims": claims}
			var exp string
			if claims.ExpiresAt != nil {
				exp = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
				if time.Now().After(claims.ExpiresAt.Time) {
					exp += " (expired)"
				}
			}
			text := fmt.Sprintf("sub=%s uid=%d role=%s sid=%s jti=%s exp=%s",
				claims.Subject, claims.UID, claims.Role, claims.SID, claims.ID, exp)
			return g.print(cmd, text, out)
		},
	})
	return tok
}
