/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/natefinch/atomic"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/gitrgoliveira/go-filecrypt"
	"github.com/gitrgoliveira/go-filecrypt/internal/api"
	"github.com/gitrgoliveira/go-filecrypt/internal/config"
	"github.com/gitrgoliveira/go-filecrypt/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// loadConfig applies the config file, environment, then command-line flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.NewConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.GlobalString("storage-dir"); dir != "" {
		cfg.Vault.StorageDir = dir
	}
	if lvl := c.GlobalString("level"); lvl != "" {
		level, err := logger.GetLogLevel(lvl)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	if cfg.Vault.Passphrase == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := promptPassphrase()
		if err != nil {
			return nil, err
		}
		cfg.Vault.Passphrase = pass
	}
	return cfg, cfg.Validate()
}

func promptPassphrase() (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(b), nil
}

func openVault(c *cli.Context) (*filecrypt.Vault, *config.Config, logger.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.NewLogger(cfg.LogLevel)
	v, err := filecrypt.Open(cfg.Vault, log)
	if err != nil {
		return nil, nil, nil, err
	}
	// Each command opens a single Vault, which holds its own copy of the key.
	filecrypt.PurgeKeys()
	return v, cfg, log, nil
}

func serveAction(c *cli.Context) error {
	v, cfg, log, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	addr := cfg.Listen
	if l := c.String("listen"); l != "" {
		addr = l
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(v, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func putAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("put: at least one FILE is required")
	}
	v, _, _, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	for _, path := range c.Args() {
		data, err := os.ReadFile(path) // #nosec G304 -- user-selected input file
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		f, err := v.StoreUpload(name, data, mime.TypeByExtension(filepath.Ext(name)))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", f.Filename, f.SizeFormatted, f.SHA256)
	}
	return nil
}

func lsAction(c *cli.Context) error {
	v, _, _, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	listing, err := v.ListFiles(c.String("category"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tSIZE\tMODIFIED")
	for _, f := range listing.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Filename, f.Category, f.SizeFormatted, f.UploadedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("get: exactly one NAME is required")
	}
	v, _, _, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	p, err := v.RetrievePlaintext(c.Args().First())
	if err != nil {
		return err
	}
	if want := c.String("sha256"); want != "" {
		ok, err := filecrypt.VerifyChecksumHex(p.Data, want)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("checksum mismatch for %s", p.Name)
		}
	}

	out := c.String("out")
	if out == "" {
		out = p.Name
		if _, err := os.Lstat(out); err == nil && !c.Bool("force") {
			return fmt.Errorf("%s already exists; use --out or --force to replace it", out)
		}
	}
	if err := atomic.WriteFile(out, bytes.NewReader(p.Data)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", out, p.MimeType)
	return nil
}

func previewAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("preview: exactly one NAME is required")
	}
	v, _, _, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	p, err := v.PreviewPlaintext(c.Args().First())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func rmAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("rm: at least one NAME is required")
	}
	v, _, _, err := openVault(c)
	if err != nil {
		return err
	}
	defer v.Close()

	for _, name := range c.Args() {
		if err := v.DeleteStored(name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", name)
	}
	return nil
}
