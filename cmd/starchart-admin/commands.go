package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/backfill"
	"github.com/dukerupert/starchart/internal/backup"
	"github.com/dukerupert/starchart/internal/catalog"
	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/push"
	"github.com/dukerupert/starchart/internal/store"
)

var (
	errEmailRequired    = errors.New("--email is required")
	errPasswordRequired = errors.New("--password is required")
	errAsRequired       = errors.New("--as is required")
	errUnknownUser      = errors.New("no user with that email")
)

func addUserCmd() *command {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	email := fs.StringP("email", "e", "", "sign-in email")
	name := fs.StringP("name", "n", "", "display name")
	password := fs.StringP("password", "p", "", "password, at least 8 characters")

	return &command{
		flags: fs,
		usage: "adduser -e <email> -p <password> [-n <name>]",
		short: "Create a parent account",
		exec: func(ctx context.Context, e *env, _ []string) error {
			if *email == "" {
				return errEmailRequired
			}
			if *password == "" {
				return errPasswordRequired
			}
			provider := identity.New(store.NewUserStore(e.docs), store.NewSessionStore(e.docs), e.cfg.SessionTTL, e.logger)
			u, err := provider.CreateUser(ctx, *email, *name, *password)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "created user %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
}

func seedCmd() *command {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.StringP("file", "f", "", "catalog file (HuJSON); the built-in catalog when empty")
	as := fs.String("as", "", "email of the parent the entries are created for")

	return &command{
		flags: fs,
		usage: "seed --as <email> [-f <file>]",
		short: "Add missions and rewards from a catalog",
		exec: func(ctx context.Context, e *env, _ []string) error {
			if *as == "" {
				return errAsRequired
			}
			f, err := catalog.Load(*file)
			if err != nil {
				return err
			}
			u, err := store.NewUserStore(e.docs).GetByEmail(ctx, *as)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", errUnknownUser, *as)
			}

			ctx = auth.WithAuth(ctx, auth.AuthContext{UserID: u.ID, Email: u.Email, SessionID: "admin"})
			res, err := catalog.Seed(ctx, f, store.NewMissionStore(e.docs), store.NewRewardStore(e.docs))
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "missions added: %d, rewards added: %d, skipped: %d\n",
				res.MissionsAdded, res.RewardsAdded, res.Skipped)
			return nil
		},
	}
}

func backfillCmd() *command {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	force := fs.Bool("force", false, "run even if the backfill already completed")

	return &command{
		flags: fs,
		usage: "backfill [--force]",
		short: "Normalize legacy documents",
		exec: func(ctx context.Context, e *env, _ []string) error {
			rep, err := backfill.New(e.docs, e.logger).Run(ctx, *force)
			if err != nil {
				return err
			}
			if rep.Skipped {
				fmt.Fprintln(e.out, "backfill already applied; use --force to run again")
				return nil
			}
			fmt.Fprintf(e.out, "scanned: %d, updated: %d, failed: %d\n", rep.Scanned, rep.Updated, rep.Failed)
			return nil
		},
	}
}

func backupCmd() *command {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	list := fs.BoolP("list", "l", false, "list stored backups instead of taking one")

	return &command{
		flags: fs,
		usage: "backup [--list]",
		short: "Take a backup now, or list stored backups",
		exec: func(ctx context.Context, e *env, _ []string) error {
			m := newBackupManager(e)
			if *list {
				names, err := m.List(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(e.out, n)
				}
				return nil
			}
			res, err := m.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "wrote %s (%d bytes)\n", res.Name, res.Size)
			return nil
		},
	}
}

func restoreCmd() *command {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	name := fs.String("name", "", "backup to restore; the newest when empty")

	return &command{
		flags: fs,
		usage: "restore [--name <backup>]",
		short: "Write a backup's documents back into the database",
		exec: func(ctx context.Context, e *env, _ []string) error {
			n, err := newBackupManager(e).Restore(ctx, *name)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "restored %d documents\n", n)
			return nil
		},
	}
}

func newBackupManager(e *env) *backup.Manager {
	c := e.cfg
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  c.S3Endpoint,
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		},
		Dir:        c.BackupDir,
		Passphrase: c.BackupPassphrase,
		Keep:       c.BackupKeep,
	}, e.docs, nil, e.logger)
}

func vapidKeysCmd() *command {
	return &command{
		flags:   flag.NewFlagSet("vapidkeys", flag.ContinueOnError),
		usage:   "vapidkeys",
		short:   "Generate a VAPID key pair for web push",
		offline: true,
		exec: func(_ context.Context, e *env, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "STARCHART_VAPID_PUBLIC_KEY=%s\nSTARCHART_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
