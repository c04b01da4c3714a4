package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"educahub/internal/app"
	"educahub/internal/config"
	"educahub/internal/hub"
	"educahub/internal/model"
	"educahub/internal/render"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HubApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Login", "Feed").
func newApp(ctx context.Context, operation string) (*app.HubApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHubApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// printer returns a Printer for the --output flag.
func printer(cmd *cobra.Command) (*render.Printer, error) {
	output, _ := cmd.Flags().GetString("output")
	format, err := render.ParseFormat(output)
	if err != nil {
		return nil, err
	}
	return render.New(cmd.OutOrStdout(), format), nil
}

var rootCmd = &cobra.Command{
	Use:           "educahub",
	Short:         "EducaHub client: browse and publish educational posts",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and session keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		clientID := uuid.New().String()
		cfg := config.NewConfig(clientID, defaults["base_dir"])
		if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
			cfg.API.BaseURL = apiURL
		}

		if err := app.InitClient(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		fmt.Printf("API:       %s\n", cfg.API.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Client ID:  %s\n", cfg.ClientID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("API:        %s (timeout %ds)\n", cfg.API.BaseURL, cfg.API.TimeoutSeconds)
		fmt.Printf("Storage:    %s %s\n", cfg.Storage.Type, cfg.Storage.DataDir)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		var err error
		prompt := newPrompter(cmd)
		if email == "" {
			if email, err = prompt.Line("Email: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompt.Secret("Password: "); err != nil {
				return err
			}
		}

		a, err := newApp(cmd.Context(), "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.Login(cmd.Context(), email, password)
		if err != nil {
			var authErr *hub.AuthError
			if errors.As(err, &authErr) {
				return fmt.Errorf("login failed: %s", authErr.Message)
			}
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", sess.DisplayName, sess.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		a.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "WhoAmI")
		if err != nil {
			return err
		}
		defer a.Close()

		return p.Session(a.Session())
	},
}

// posts command
var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		mine, _ := cmd.Flags().GetBool("mine")

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "Posts")
		if err != nil {
			return err
		}
		defer a.Close()

		filter := model.Filter{Title: title, Category: category}
		var l *app.Listing
		if mine {
			l, err = a.MyPosts(cmd.Context(), filter)
		} else {
			l, err = a.Feed(cmd.Context(), filter)
		}
		if err != nil {
			return err
		}

		if err := p.Posts(l.Posts); err != nil {
			return err
		}
		if l.LoadErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Some data could not be loaded (%v). Run the command again to retry.\n", l.LoadErr)
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List post categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "Categories")
		if err != nil {
			return err
		}
		defer a.Close()

		cats, err := a.Categories(cmd.Context())
		if err != nil {
			return err
		}
		return p.Categories(cats)
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View or edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "Profile")
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Profile(cmd.Context())
		if err != nil {
			return err
		}
		return p.User(u)
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your name, email or password",
	RunE: func(cmd *cobra.Command, args []string) error {
		var update model.UserUpdate
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			update.Name = &name
		}
		if cmd.Flags().Changed("email") {
			email, _ := cmd.Flags().GetString("email")
			update.Email = &email
		}
		if changePassword, _ := cmd.Flags().GetBool("password"); changePassword {
			password, err := newPrompter(cmd).Secret("New password: ")
			if err != nil {
				return err
			}
			update.Password = &password
		}

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "UpdateProfile")
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.UpdateProfile(cmd.Context(), update)
		if err != nil {
			return err
		}
		return p.User(u)
	},
}

// post command
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, edit or delete your posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a new post",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		category, _ := cmd.Flags().GetString("category")

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "CreatePost")
		if err != nil {
			return err
		}
		defer a.Close()

		draft := model.PostDraft{Title: title, Content: content, CategoryID: model.ID(category)}
		if err := hub.ValidateDraft(draft); err != nil {
			return err
		}
		if draft.CategoryID, err = a.ResolveCategory(cmd.Context(), category); err != nil {
			return err
		}

		post, err := a.CreatePost(cmd.Context(), draft)
		if err != nil {
			return fmt.Errorf("creating post: %w", err)
		}
		return p.Post(post)
	},
}

var postEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), "UpdatePost")
		if err != nil {
			return err
		}
		defer a.Close()

		id := model.ID(args[0])
		existing, err := a.FindMyPost(cmd.Context(), id)
		if err != nil {
			return err
		}

		draft := model.PostDraft{Title: existing.Title, Content: existing.Content, CategoryID: existing.CategoryID}
		if cmd.Flags().Changed("title") {
			draft.Title, _ = cmd.Flags().GetString("title")
		}
		if cmd.Flags().Changed("content") {
			draft.Content, _ = cmd.Flags().GetString("content")
		}
		if cmd.Flags().Changed("category") {
			category, _ := cmd.Flags().GetString("category")
			if draft.CategoryID, err = a.ResolveCategory(cmd.Context(), category); err != nil {
				return err
			}
		}

		post, err := a.UpdatePost(cmd.Context(), id, draft)
		if err != nil {
			return fmt.Errorf("updating post: %w", err)
		}
		return p.Post(post)
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeletePost")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeletePost(cmd.Context(), model.ID(args[0])); err != nil {
			if errors.Is(err, hub.ErrNotFound) {
				return fmt.Errorf("post %s not found", args[0])
			}
			return fmt.Errorf("deleting post: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s\n", args[0])
		return nil
	},
}

// prompter reads answers from a command's input. One prompter must serve all
// prompts of a command: its buffer may already hold the next piped line.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, reader: bufio.NewReader(in), out: cmd.ErrOrStderr()}
}

// Line reads one line after printing label.
func (p *prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Secret reads a line without echo when the input is a terminal.
func (p *prompter) Secret(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json or yaml")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("api-url", "", "Backend base URL (default "+config.DefaultAPIBaseURL+")")

	// session commands
	loginCmd.Flags().StringP("email", "e", "", "Account email (prompted when omitted)")
	loginCmd.Flags().StringP("password", "p", "", "Account password (prompted when omitted)")

	// listing commands
	postsCmd.Flags().StringP("title", "t", "", "Only posts whose title contains this text")
	postsCmd.Flags().StringP("category", "c", "", "Only posts in this category (id or name)")
	postsCmd.Flags().Bool("mine", false, "Only your own posts")

	// profile subcommands
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUpdateCmd)
	profileUpdateCmd.Flags().String("name", "", "New display name")
	profileUpdateCmd.Flags().String("email", "", "New email")
	profileUpdateCmd.Flags().Bool("password", false, "Prompt for a new password")

	// post subcommands
	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postDeleteCmd)
	for _, c := range []*cobra.Command{postCreateCmd, postEditCmd} {
		c.Flags().StringP("title", "t", "", "Post title")
		c.Flags().StringP("content", "m", "", "Post body")
		c.Flags().StringP("category", "c", "", "Category id or name")
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(postCmd)
}
