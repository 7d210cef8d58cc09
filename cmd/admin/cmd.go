package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/db"
	"github.com/violin-academy/academy-back/internal/repo"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = db.RunMigrations  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	profiles repo.Profiles
	sqlDB    *sql.DB
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-admin] - create a profile or reset its password, the password is prompted next")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a migration command: up, down, status, version, redo, up-to VERSION, down-to VERSION")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "Display name of the profile.")
	addUserEmail := addUserCmd.String("email", "", "Email the profile signs in with.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Give the profile the admin role.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) < auth.MinPasswordLength {
			return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
		}
		return cli.addUser(context.Background(), *addUserName, *addUserEmail, string(pwd), *addUserAdmin)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return migrateFunc(context.Background(), args[2], cli.sqlDB, args[3:]...)
	default:
		cli.printUsage()
		return errHelp
	}
}
