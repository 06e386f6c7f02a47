// Command authgate-passwd prints a password hash suitable for the
// password_hash field of an authgate seed file. The hash is peppered with
// the same secret the service uses, so run it against the same pepper.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"golang.org/x/term"
)

const pepperSize = 32

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "authgate-passwd:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("authgate-passwd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defCost, err := envIntOr("AUTHGATE_BCRYPT_COST", 0)
	if err != nil {
		return err
	}

	scheme := fs.String("scheme", envOr("AUTHGATE_PASSWORD_SCHEME", string(cryptox.SchemeArgon2id)), "hash scheme: argon2id or bcrypt")
	cost := fs.Int("cost", defCost, "bcrypt cost (0 for the library default)")
	pepperFile := fs.String("pepper-file", envOr("AUTHGATE_PEPPER_FILE", filepath.Join("secrets", "pepper")), "pepper file, created when missing")
	generate := fs.Bool("generate", false, "generate a random password and print it to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pepper, err := loadPepper(*pepperFile)
	if err != nil {
		return err
	}
	hasher, err := cryptox.NewHasher(cryptox.Scheme(*scheme), *cost, pepper)
	if err != nil {
		return err
	}

	var password string
	switch {
	case *generate:
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return err
		}
		fmt.Fprintln(stderr, "generated password:", password)
	case isTerminal(int(stdin.Fd())):
		password, err = promptTwice(int(stdin.Fd()), stderr)
	default:
		password, err = readLine(stdin)
	}
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	hash, err := hasher.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func loadPepper(path string) ([]byte, error) {
	if v := os.Getenv("AUTHGATE_PEPPER"); v != "" {
		return cryptox.DecodeSecret(v, pepperSize)
	}
	return cryptox.LoadOrGenerateSecret(path, pepperSize)
}

func promptTwice(fd int, w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	fmt.Fprint(w, "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
