package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/goliatone/go-formwizard/internal/app"
	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/pkg/renderers/tui"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func main() {
	flags := config.Flags("formwizard-cli")
	formID := flags.String("form", "", "form to fill (see --list)")
	format := flags.String("format", string(tui.OutputFormatJSON), "dry-run output format (json, form, pretty)")
	dryRun := flags.Bool("dry-run", false, "print the normalized payload instead of storing it")
	list := flags.Bool("list", false, "list the available forms and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := app.NewLogger(cfg.General, os.Stderr)

	forms, err := app.LoadForms(cfg.Forms.Dir)
	if err != nil {
		log.Fatalf("Failed to load forms: %v", err)
	}
	if *list {
		for _, form := range forms.Forms() {
			fmt.Printf("%-12s %s\n", form.ID, form.Title)
		}
		return
	}
	if strings.TrimSpace(*formID) == "" {
		log.Fatalf("--form is required; available forms: %s", strings.Join(forms.IDs(), ", "))
	}
	form, err := forms.Form(*formID)
	if err != nil {
		log.Fatalf("Unknown form: %v", err)
	}

	var (
		store    submit.Store
		captured map[string]any
	)
	if *dryRun {
		store = submit.StoreFunc(func(_ context.Context, _ string, payload map[string]any) (string, error) {
			captured = payload
			return "dry-run", nil
		})
	} else {
		docs, closeStore, err := app.OpenStore(cfg.Store)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Error("closing store failed", "error", err)
			}
		}()
		store = docs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := wizard.New(form, store, wizard.WithLogger(logger))
	outcome, err := tui.New().Run(ctx, w)
	if err != nil {
		if errors.Is(err, tui.ErrCancelled) {
			fmt.Println("Submission cancelled.")
			return
		}
		log.Fatalf("Failed to complete form: %v", err)
	}

	if *dryRun {
		out, err := tui.FormatPayload(captured, tui.OutputFormat(*format))
		if err != nil {
			log.Fatalf("Failed to format payload: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	fmt.Printf("Stored %s in %s\n", outcome.ID, form.Collection)
}
