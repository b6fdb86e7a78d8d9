package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"docchat/internal/adapter/tui/chat"
	"docchat/internal/adapter/tui/theme"
	"docchat/internal/domain"
	"docchat/internal/infra/config"
	"docchat/internal/usecase"
)

const docsListLimit = 100

var errUsage = errors.New("usage")

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp wires the application, runs fn and tears everything down.
func withApp(opts globalOptions, interactive bool, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, opts, interactive)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func runChat(opts globalOptions) error {
	theme.InitSymbols()
	return withApp(opts, true, func(ctx context.Context, a *app) error {
		ui := chat.NewApp(chat.ChatModelDeps{
			Store:     a.store,
			Submitter: a.orch,
			Documents: a.docs,
			Catalog:   a.catalog,
			Logger:    a.log,
			Mode:      a.mode,
			Markdown:  a.cfg.UI.Markdown,
		})
		return ui.Run(ctx)
	})
}

func runAsk(opts globalOptions, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("%w: docchat ask [--mode literal|reasoning] <question>", errUsage)
	}
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		msg, err := a.orch.Submit(ctx, question, a.mode)
		if msg.ID != "" {
			printMessage(a.catalog, msg)
		}
		return err
	})
}

func runSearch(opts globalOptions, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("%w: docchat search <query>", errUsage)
	}
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		res, err := a.client.Search(ctx, domain.SearchQuery{
			Query:     query,
			Limit:     a.cfg.Retrieval.SearchLimit,
			Threshold: a.cfg.Retrieval.SearchThreshold,
		})
		if err != nil {
			return err
		}
		sources := usecase.NormalizeHits(res.Hits, a.log)
		if len(sources) == 0 {
			fmt.Println(a.catalog.NoResults(query))
			return nil
		}
		printSources(a.catalog, sources, a.cfg.Retrieval.PreviewChars)
		return nil
	})
}

func runUpload(opts globalOptions, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: docchat upload <file.pdf|file.txt>...", errUsage)
	}
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		files, unreadable := a.docs.ReadFiles(args)
		for _, u := range unreadable {
			printFailure(u)
		}
		if len(files) == 0 {
			return domain.NewDomainError("upload", domain.ErrUploadFailed, "no readable files")
		}
		rep, err := a.docs.Upload(ctx, files)
		for _, d := range rep.Uploaded {
			printSuccess(fmt.Sprintf("%s  %s", d.ID, d.DisplayName()))
		}
		for _, f := range rep.Failed {
			printFailure(f)
		}
		return err
	})
}

func runDocs(opts globalOptions, _ []string) error {
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		docs, err := a.docs.Refresh(ctx, 0, docsListLimit)
		if err != nil {
			return err
		}
		printDocuments(a.catalog, docs)
		return nil
	})
}

func runRemove(opts globalOptions, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: docchat rm <document-id>", errUsage)
	}
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		if err := a.docs.Remove(ctx, args[0]); err != nil {
			return err
		}
		printSuccess(a.store.State().Success)
		return nil
	})
}

func runDoc(opts globalOptions, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: docchat doc <document-id>", errUsage)
	}
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		d, err := a.docs.Get(ctx, args[0])
		if err != nil {
			return err
		}
		chunks, err := a.docs.Chunks(ctx, d.ID)
		printDocument(os.Stdout, *d, chunks, a.cfg.Retrieval.PreviewChars)
		return err
	})
}

func runStats(opts globalOptions, _ []string) error {
	return withApp(opts, false, func(ctx context.Context, a *app) error {
		st, err := a.docs.Stats(ctx)
		if err != nil {
			return err
		}
		printStats(os.Stdout, st)
		return nil
	})
}

func runConfig(opts globalOptions, args []string) error {
	if len(args) == 0 || args[0] != "init" {
		return fmt.Errorf("%w: docchat config init [--force]", errUsage)
	}
	force := len(args) > 1 && args[1] == "--force"
	return initConfig(configPath(opts), force)
}

// initConfig writes the default configuration unless a file already exists.
func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(config.Defaults(), path); err != nil {
		return err
	}
	printSuccess("wrote " + path)
	return nil
}

func runEncrypt(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: DOCCHAT_CONFIG_KEY=<passphrase> docchat encrypt <value>", errUsage)
	}
	out, err := encryptSecret(args[0], os.Getenv("DOCCHAT_CONFIG_KEY"))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// encryptSecret returns the "enc:" form accepted by config.Load.
func encryptSecret(value, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("DOCCHAT_CONFIG_KEY is not set")
	}
	enc, err := config.EncryptValue(value, passphrase)
	if err != nil {
		return "", err
	}
	return "enc:" + enc, nil
}
