package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

func runUser(args []string) {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch args[0] {
	case "create":
		runUserCreate(args[1:])
	case "promote":
		runUserPromote(args[1:])
	case "password":
		runUserPassword(args[1:])
	case "delete":
		runUserDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown user command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}
}

// username pulls the single username argument off the flag set.
func username(fs *flag.FlagSet) string {
	if len(fs.Args()) != 1 {
		log.Fatal("exactly one username required")
	}
	return fs.Arg(0)
}

// readPassword prompts for a password twice, without echo.
func readPassword() string {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("cannot read password: %s", err)
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	repeat, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("cannot read password: %s", err)
	}
	if string(password) != string(repeat) {
		log.Fatal("passwords do not match")
	}
	if len(password) == 0 {
		log.Fatal("empty password not allowed")
	}
	return string(password)
}

func runUserCreate(args []string) {
	fs := flag.NewFlagSet("user create", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	admin := fs.Bool("admin", false, "grant the admin flag")
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)
	name := username(fs)

	repo := openRepo(cfg)
	defer repo.Close()

	if err := repo.CreateUser(context.Background(), name, readPassword(), *admin); err != nil {
		log.Fatalf("create user: %s", err)
	}
	fmt.Printf("created user %s\n", name)
}

func runUserPromote(args []string) {
	fs := flag.NewFlagSet("user promote", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)
	name := username(fs)

	repo := openRepo(cfg)
	defer repo.Close()

	if err := repo.PromoteUser(context.Background(), name); err != nil {
		log.Fatalf("promote user: %s", err)
	}
	fmt.Printf("promoted user %s\n", name)
}

func runUserPassword(args []string) {
	fs := flag.NewFlagSet("user password", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)
	name := username(fs)

	repo := openRepo(cfg)
	defer repo.Close()

	if err := repo.SetPassword(context.Background(), name, readPassword()); err != nil {
		log.Fatalf("set password: %s", err)
	}
	fmt.Printf("password updated for %s\n", name)
}

func runUserDelete(args []string) {
	fs := flag.NewFlagSet("user delete", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)
	name := username(fs)

	repo := openRepo(cfg)
	defer repo.Close()

	if err := repo.DeleteUser(context.Background(), name); err != nil {
		log.Fatalf("delete user: %s", err)
	}
	fmt.Printf("deleted user %s\n", name)
}
