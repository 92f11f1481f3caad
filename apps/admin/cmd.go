package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sqlx.DB
	users  core.Table[user.User]
	usrSvc *user.Service
	files  *file.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -name NAME [-admin] - create or update a user (password prompted)")
	fmt.Println("  resetpassword -email EMAIL - reset user's password (password prompted)")
	fmt.Println("  addfile -email UPLOADER [-name NAME] [-mime TYPE] PATH - add a file to the shared documents")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (up, down, status, version, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant administrator rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	addFileCmd := flag.NewFlagSet("addfile", flag.ContinueOnError)
	addFileEmail := addFileCmd.String("email", "", "The uploader's email.")
	addFileName := addFileCmd.String("name", "", "The displayed file name (defaults to the base name of PATH).")
	addFileMime := addFileCmd.String("mime", "", "The MIME type (guessed from the extension when empty).")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "addfile":
		if err := addFileCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addFileEmail == "" || addFileCmd.NArg() != 1 {
			addFileCmd.Usage()
			return errHelp
		}
		return cli.addFile(*addFileEmail, addFileCmd.Arg(0), *addFileName, *addFileMime)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
