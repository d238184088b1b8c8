package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Epistemic-Technology/academic-reader/internal/app"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/models"
)

func runUpload(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	title := fs.String("title", "", "document title (single file only)")
	collection := fs.String("collection", "", "target collection, defaults to the last one opened")
	var zoteroKeys []string
	fs.Func("zotero", "Zotero item key of an attachment to upload (repeatable)", func(v string) error {
		zoteroKeys = append(zoteroKeys, v)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 && len(zoteroKeys) == 0 {
		return fmt.Errorf("nothing to upload")
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}

	notify := upload.NotifierFunc(func(n models.Notification) {
		mark := "ok"
		if n.Kind != models.NotifySuccess {
			mark = "failed"
		}
		fmt.Printf("[%s] %s: %s\n", mark, n.FileName, n.Text)
	})
	a, err := app.New(ctx, cfg, log, app.Options{Challenger: promptChallenger(), Notifier: notify})
	if err != nil {
		return err
	}
	defer a.Close()

	var files []sources.File
	for _, arg := range fs.Args() {
		var f sources.File
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			f, err = sources.FromURL(ctx, http.DefaultClient, arg)
		} else {
			f, err = sources.FromPath(arg)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", arg, err)
			continue
		}
		files = append(files, f)
	}
	if len(zoteroKeys) > 0 {
		if a.Zotero == nil {
			return fmt.Errorf("zotero credentials are not configured")
		}
		for _, key := range zoteroKeys {
			f, err := sources.FromZotero(ctx, a.Zotero, key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping zotero item %s: %v\n", key, err)
				continue
			}
			files = append(files, f)
		}
	}

	opts := upload.SubmitOptions{Title: *title, CollectionID: *collection}
	if opts.CollectionID == "" {
		opts.CollectionID = a.Navigation.Collection()
	}

	submitted := 0
	for _, r := range a.Uploads.SubmitBatch(ctx, files, opts) {
		if r.Err != nil {
			// the notifier already reported it
			continue
		}
		submitted++
		fmt.Printf("submitted %s as job %s\n", r.FileName, r.Handle.JobID)
	}
	if submitted == 0 {
		return nil
	}

	fmt.Printf("waiting for %d job(s)...\n", submitted)
	if err := a.Uploads.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("stopped waiting; processing continues on the server")
			return nil
		}
		return err
	}
	return nil
}
