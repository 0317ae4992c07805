// Package main is the codebridge command: a stdio tool server for code
// generation, optimization, explanation and web search, plus the client
// front ends that drive it.
// file: cmd/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/cmd/client"
	"github.com/dkoosis/codebridge/cmd/server"
	"github.com/dkoosis/codebridge/internal/assistant"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/credentials"
	"github.com/dkoosis/codebridge/internal/logging"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/output"
)

// Version information, set during build via ldflags.
var (
	Version    = "0.1.0-dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "client":
		err = runClient(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "keychain":
		err = runKeychain(os.Args[2:])
	case "version":
		fmt.Printf("codebridge version %s\n", Version)
		fmt.Printf("Build: %s (%s)\n", commitHash, buildDate)
		fmt.Printf("Compiler: %s\n", runtime.Version())
	case "-h", "--help", "help":
		printUsage()
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, client.ErrToolFailed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printUsage prints usage information for the command.
func printUsage() {
	log.SetFlags(0)
	log.Println("Usage:")
	log.Println("  codebridge serve [options]     - Run the tool server on stdin/stdout")
	log.Println("  codebridge client [options]    - Run one action, or the interactive menu without -action")
	log.Println("  codebridge search [options]    - Interactive web search prompt")
	log.Println("  codebridge keychain <command>  - set|get|delete <key> or diagnose")
	log.Println("  codebridge version             - Print version information")
	log.Println("\nRun 'codebridge <command> -h' for help on a specific command.")
}

// getDefaultConfigPath returns the config file used when -config is not given
// and the file exists; otherwise "" selects the built-in defaults.
func getDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(homeDir, ".config", "codebridge", "codebridge.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", getDefaultConfigPath(), "Path to configuration file.")
	debug := fs.Bool("debug", false, "Enable debug logging.")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "failed to parse serve command flags")
	}
	return server.RunServer(server.Options{
		ConfigPath: *configPath,
		Debug:      *debug,
		Version:    Version,
	})
}

// connectFlags are shared by the client and search subcommands.
type connectFlags struct {
	configPath *string
	serverCmd  *string
	serverArgs *string
	debug      *bool
}

func addConnectFlags(fs *flag.FlagSet) connectFlags {
	return connectFlags{
		configPath: fs.String("config", getDefaultConfigPath(), "Path to configuration file."),
		serverCmd:  fs.String("server", "", "Server executable (default: this binary with 'serve')."),
		serverArgs: fs.String("server-args", "", "Space-separated extra arguments for the server executable."),
		debug:      fs.Bool("debug", false, "Enable debug logging."),
	}
}

// dial loads configuration, sets up logging and connects to the server.
func (f connectFlags) dial(ctx context.Context) (*assistant.Assistant, *config.Config, error) {
	cfg, err := server.LoadConfig(*f.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if *f.debug {
		level = "debug"
	}
	logging.SetupDefaultLogger(level)

	command := cfg.Client.ServerCommand
	serverArgs := cfg.Client.ServerArgs
	if *f.serverCmd != "" {
		command = *f.serverCmd
		serverArgs = nil
	}
	if *f.serverArgs != "" {
		serverArgs = strings.Fields(*f.serverArgs)
	}
	if command == "" && *f.configPath != "" && len(serverArgs) == 0 {
		serverArgs = []string{"serve", "-config", *f.configPath}
	}

	a, err := assistant.Dial(ctx, assistant.DialConfig{
		ServerCommand: command,
		ServerArgs:    serverArgs,
		ClientInfo:    mcptypes.Implementation{Name: "codebridge-client", Version: Version},
		Logger:        logging.GetLogger("client"),
	})
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func runClient(args []string) error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	conn := addConnectFlags(fs)
	var opts client.ActionOptions
	fs.StringVar(&opts.Action, "action", "", "generate, optimize, explain or search. Empty starts the interactive menu.")
	fs.StringVar(&opts.Language, "language", "", "Programming language.")
	fs.StringVar(&opts.Description, "description", "", "What the generated code should do.")
	fs.StringVar(&opts.Code, "code", "", "Code to optimize or explain.")
	fs.StringVar(&opts.CodeFile, "code-file", "", "File holding the code to optimize or explain.")
	fs.StringVar(&opts.Goal, "goal", "", "Optimization goal.")
	fs.StringVar(&opts.Query, "query", "", "Web search query.")
	fs.BoolVar(&opts.Save, "save", false, "Save the result to the output directory.")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "failed to parse client command flags")
	}
	if opts.Action != "" {
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cfg, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	saver := output.NewSaver(cfg.Client.OutputDir, logging.GetLogger("output"))
	if opts.Action != "" {
		return client.RunAction(ctx, a, saver, opts, os.Stdout)
	}
	m := &client.Menu{Assistant: a, Saver: saver, In: os.Stdin, Out: os.Stdout}
	return m.Run(ctx)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	conn := addConnectFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "failed to parse search command flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, _, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return client.RunSearchREPL(ctx, a, os.Stdin, os.Stdout)
}

func runKeychain(args []string) error {
	if len(args) == 0 {
		return errors.Newf("keychain requires a command: set|get|delete <key> or diagnose (keys: %s)",
			strings.Join(credentials.KnownKeys, ", "))
	}
	logging.SetupDefaultLogger("warn")
	store := credentials.NewStore(logging.GetLogger("keychain"))

	if args[0] == "diagnose" {
		printDiagnosis(store.Diagnose())
		return nil
	}
	if len(args) < 2 {
		return errors.Newf("keychain %s requires a key name", args[0])
	}
	name := args[1]
	if !credentials.IsKnownKey(name) {
		return errors.Newf("unknown key %q (known: %s)", name, strings.Join(credentials.KnownKeys, ", "))
	}

	switch args[0] {
	case "set":
		fmt.Printf("Enter value for %s: ", name)
		value, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && value == "" {
			return errors.Wrap(err, "failed to read value")
		}
		if err := store.Set(name, value); err != nil {
			return err
		}
		fmt.Printf("Stored %s in keychain service %q.\n", name, store.Service())
	case "get":
		value, err := store.Get(name)
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Printf("%s is not set.\n", name)
			return nil
		}
		fmt.Printf("%s is set (%s).\n", name, mask(value))
	case "delete":
		if err := store.Delete(name); err != nil {
			return err
		}
		fmt.Printf("Deleted %s.\n", name)
	default:
		return errors.Newf("unknown keychain command %q", args[0])
	}
	return nil
}

// mask shows only the last four characters of a secret.
func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func printDiagnosis(d credentials.Diagnosis) {
	fmt.Println("\n=== Keychain Diagnostics ===")
	fmt.Printf("Keyring Service: %s\n", d.Service)
	fmt.Printf("%-18s: %t\n", "Available", d.Available)
	fmt.Printf("%-18s: %t\n", "Set Operation", d.SetOK)
	fmt.Printf("%-18s: %t\n", "Get Operation", d.GetOK)
	fmt.Printf("%-18s: %t\n", "Get Value Match", d.Matches)
	fmt.Printf("%-18s: %t\n", "Delete Operation", d.DeleteOK)
	for _, e := range d.Errors {
		fmt.Printf("%-18s: %s\n", "Error", e)
	}

	fmt.Println("\nRecommendations:")
	if !d.Available || !d.SetOK {
		fmt.Println("The OS keychain is not usable. Set OPENAI_API_KEY and SEARCH_API_KEY in the environment instead.")
		fmt.Println("On Linux this needs a running Secret Service (for example gnome-keyring).")
		return
	}
	fmt.Println("Keychain appears to be working correctly.")
}
