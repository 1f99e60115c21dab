package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docharvest/pkg/auth"
	"docharvest/pkg/config"
	"docharvest/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage catalog session cookies",
	Long: `Manage the session cookies of catalogs that require a login.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - DOCHARVEST_COOKIE (read only)

Never share your cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a catalog session cookie securely",
	Long: `Store the Cookie header of a logged-in browser session.

The session is named after the catalog host unless a name is given.
Use --account <name> on 'docharvest run' to pick a stored session.`,
	Example: `  # Interactive login for the configured catalog
  docharvest auth login

  # Store a second session under its own name
  docharvest auth login staging`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored session",
	Long: `Remove a stored session.

If no name is provided, you will be shown a list of stored sessions
to choose from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	Long:  `List all stored sessions with their cookie values masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) (string, error) {
	fmt.Print(label)
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads a line from stdin without echoing it when stdin is a
// terminal
func readSecret(label string) (string, error) {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return prompt("")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	catalogURL := config.DefaultConfig().Catalog.URL
	if cfg, err := config.Load(configFile, globalFlags(cmd)); err == nil {
		catalogURL = cfg.Catalog.URL
	}

	auth.ShowCookieExtractionGuide(os.Stdout, catalogURL)

	host := ""
	if u, err := url.Parse(catalogURL); err == nil {
		host = u.Host
	}

	name := host
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		if name, err = prompt("📛 Session name: "); err != nil {
			return err
		}
	}

	cookie, err := readSecret("🍪 Cookie header: ")
	if err != nil {
		ui.PrintError("Failed to read cookie", err.Error())
		return err
	}
	cookie = strings.TrimPrefix(cookie, "Cookie:")

	userAgent, _ := prompt("🌐 User agent (Enter for default): ")

	session := &auth.Session{
		Name:      name,
		Host:      host,
		Cookie:    strings.TrimSpace(cookie),
		UserAgent: userAgent,
	}
	if err := manager.Store(session); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		return err
	}

	ui.PrintSuccess("Session stored: " + name)
	ui.PrintInfo("Cookie", auth.SanitizeSession(session).Cookie)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		sessions, err := manager.List()
		if err != nil || len(sessions) == 0 {
			ui.PrintWarning("No stored sessions found")
			return nil
		}

		fmt.Println("Select session to remove:")
		for i, s := range sessions {
			fmt.Printf("  %d. %s\n", i+1, s.Name)
		}
		fmt.Printf("  0. Cancel\n\n")

		input, _ := prompt("Choice: ")
		var choice int
		fmt.Sscanf(input, "%d", &choice)
		if choice == 0 {
			return nil
		}
		if choice < 0 || choice > len(sessions) {
			err := fmt.Errorf("invalid choice %q", input)
			ui.PrintError("Invalid choice", input)
			return err
		}
		name = sessions[choice-1].Name
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		return err
	}
	ui.PrintSuccess("Session removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	sessions, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list sessions", err.Error())
		return err
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'docharvest auth login' to add one")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Host", "Cookie", "Last Modified"})
	for _, s := range sessions {
		masked := auth.SanitizeSession(s)
		t.AppendRow(table.Row{masked.Name, masked.Host, masked.Cookie, masked.LastModified.Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return nil
}
