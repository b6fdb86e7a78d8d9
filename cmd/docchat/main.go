package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"docchat/internal/infra/config"
)

func main() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	args, opts, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "docchat: %v\n\nRun 'docchat --help' for usage information.\n", err)
		os.Exit(2)
	}
	if opts.help {
		showUsage()
		return
	}

	cmd := "chat"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var runErr error
	switch cmd {
	case "chat":
		runErr = runChat(opts)
	case "ask":
		runErr = runAsk(opts, args)
	case "search":
		runErr = runSearch(opts, args)
	case "upload":
		runErr = runUpload(opts, args)
	case "docs":
		runErr = runDocs(opts, args)
	case "rm":
		runErr = runRemove(opts, args)
	case "doc":
		runErr = runDoc(opts, args)
	case "stats":
		runErr = runStats(opts, args)
	case "doctor":
		runErr = runDoctor(opts)
	case "config":
		runErr = runConfig(opts, args)
	case "encrypt":
		runErr = runEncrypt(args)
	case "help":
		showUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'docchat --help' for usage information.\n", cmd)
		os.Exit(2)
	}
	if runErr != nil {
		printError(cmd, runErr)
		os.Exit(1)
	}
}

// globalOptions are the flags accepted before or after the subcommand.
type globalOptions struct {
	configPath string
	mode       string
	help       bool
}

// parseGlobalFlags strips --config, --mode and --help from args and returns
// the remaining positional arguments.
func parseGlobalFlags(args []string) ([]string, globalOptions, error) {
	var opts globalOptions
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--help" || arg == "-h":
			opts.help = true
		case arg == "--config" || arg == "--mode":
			if i+1 >= len(args) {
				return nil, opts, fmt.Errorf("%s requires a value", arg)
			}
			opts.set(arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--mode="):
			name, value, _ := strings.Cut(arg, "=")
			opts.set(name, value)
		case arg == "--":
			rest = append(rest, args[i+1:]...)
			return rest, opts, nil
		default:
			rest = append(rest, arg)
		}
	}
	return rest, opts, nil
}

func (o *globalOptions) set(name, value string) {
	switch name {
	case "--config":
		o.configPath = value
	case "--mode":
		o.mode = value
	}
}

func showUsage() {
	fmt.Println(`docchat - chat with your documents from the terminal

USAGE:
    docchat [COMMAND] [FLAGS] [ARGS]

COMMANDS:
    chat                 Interactive chat (default)
    ask <question>       Ask one question and print the answer
    search <query>       Plain document search
    upload <files...>    Upload PDF/TXT documents
    docs                 List uploaded documents
    rm <id>              Remove a document
    doc <id>             Show a document and its chunks
    stats                Show collection statistics
    doctor               Check configuration and backend health
    config init          Write a default config file
    encrypt <value>      Encrypt a secret for the config file (uses DOCCHAT_CONFIG_KEY)

FLAGS:
    -h, --help           Show this help message
    --config PATH        Config file (default: ~/.docchat/config.yaml)
    --mode MODE          literal | reasoning (ask and chat)

CONFIGURATION:
    Environment: DOCCHAT_* variables override the config file.
    A .env file in the working directory is loaded first.

EXAMPLES:
    docchat config init
    docchat upload manual.pdf notes.txt
    docchat ask --mode literal "warranty period"
    docchat`)
}

func configPath(opts globalOptions) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	if p := os.Getenv("DOCCHAT_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}
