package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"macdesigns/internal/config"
)

var initEnvFile string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively write the site file and .env",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), initEnvFile)
	},
}

func init() {
	initCmd.Flags().StringVar(&initEnvFile, "env-file", ".env", "Environment file to create or update")
}

type prompter struct {
	r   *bufio.Reader
	out io.Writer
}

func runInit(in io.Reader, out io.Writer, envPath string) error {
	p := prompter{r: bufio.NewReader(in), out: out}

	fmt.Fprintln(out, "MAC DESIGNS Setup")
	fmt.Fprintln(out, "=================")
	fmt.Fprintln(out)

	existing, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", envPath, err)
	}
	if existing == nil {
		existing = map[string]string{}
	}

	dataPath := p.required("Data folder", fallback(existing["DATA_PATH"], "./data"))
	listenAddr := p.text("Listen address", fallback(existing["LISTEN_ADDR"], ":8080"))
	siteFile := fallback(existing["SITE_FILE"], filepath.Join(dataPath, "site.yaml"))

	mgr, err := config.NewManager(siteFile)
	if err != nil {
		return fmt.Errorf("load/create site file: %w", err)
	}
	site := mgr.Get()

	site.Title = p.text("Site title", fallback(site.Title, "MAC DESIGNS"))
	site.Owner = p.text("Owner", site.Owner)
	site.Contact.Email = p.text("Contact email", site.Contact.Email)
	site.Contact.Phone = p.text("Contact phone", site.Contact.Phone)

	fmt.Fprintf(out, "Current gate passwords: %d\n", len(site.Passwords))
	if p.yesNo("Replace the gate passwords?", false) {
		if passwords := p.passwords(); passwords != nil {
			if err := hashPasswords(passwords, p.yesNo("Store them as bcrypt hashes?", false)); err != nil {
				return err
			}
			site.Passwords = passwords
		}
	}

	if err := mgr.Update(site); err != nil {
		return fmt.Errorf("save site file: %w", err)
	}

	secret := existing["PROFILE_SECRET"]
	if secret == "" || !p.yesNo("Keep the existing PROFILE_SECRET?", true) {
		if secret, err = generateSecret(); err != nil {
			return fmt.Errorf("generate profile secret: %w", err)
		}
		fmt.Fprintln(out, "Generated a new PROFILE_SECRET.")
	}

	existing["DATA_PATH"] = dataPath
	existing["LISTEN_ADDR"] = listenAddr
	existing["PROFILE_SECRET"] = secret
	if err := godotenv.Write(existing, envPath); err != nil {
		return fmt.Errorf("write %s: %w", envPath, err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup complete.")
	fmt.Fprintf(out, "Site: %s\n", mgr.Path())
	fmt.Fprintf(out, "Env:  %s\n", envPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next: macdesigns serve")
	return nil
}

func (p prompter) text(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	line, _ := p.r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func (p prompter) required(label, def string) string {
	for {
		if v := p.text(label, def); v != "" {
			return v
		}
	}
}

func (p prompter) yesNo(question string, defYes bool) bool {
	def := "y/N"
	if defYes {
		def = "Y/n"
	}

	for {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
		line, err := p.r.ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			return defYes
		}
		if line == "y" || line == "yes" {
			return true
		}
		if line == "n" || line == "no" {
			return false
		}
		if err != nil {
			return defYes
		}
	}
}

// passwords reads a comma separated list until it holds at least one entry. It
// returns nil if input ends first.
func (p prompter) passwords() []string {
	for {
		fmt.Fprint(p.out, "Passwords (comma separated): ")
		raw, err := p.r.ReadString('\n')

		var out []string
		for _, pw := range strings.Split(raw, ",") {
			if pw = strings.TrimSpace(pw); pw != "" {
				out = append(out, pw)
			}
		}
		if len(out) > 0 {
			return out
		}
		if err != nil {
			return nil
		}
		fmt.Fprintln(p.out, "At least one password is required.")
	}
}

// hashPasswords replaces each entry with its bcrypt hash when enabled.
func hashPasswords(passwords []string, enabled bool) error {
	if !enabled {
		return nil
	}
	for i, pw := range passwords {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		passwords[i] = string(hash)
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
