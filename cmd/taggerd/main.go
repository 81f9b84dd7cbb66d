// Command taggerd runs the tagging pipeline service: it watches a
// music directory, scans newly discovered or changed albums, and
// drives each one through the matching/tagging Orchestrator. Flag and
// bootstrap shape is adapted from the teacher's cmd/ingest, replacing
// its one-shot-plus-optional-watch CLI with a single always-watching
// daemon, per SPEC_FULL.md's §4.10/§4.11 always-on Watcher and Work
// Queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/musictaggerz/core/internal/acoustid"
	"github.com/musictaggerz/core/internal/artwork"
	"github.com/musictaggerz/core/internal/audiofolder"
	"github.com/musictaggerz/core/internal/backup"
	"github.com/musictaggerz/core/internal/config"
	"github.com/musictaggerz/core/internal/coverartarchive"
	"github.com/musictaggerz/core/internal/events"
	"github.com/musictaggerz/core/internal/fanarttv"
	"github.com/musictaggerz/core/internal/itunes"
	"github.com/musictaggerz/core/internal/lyrics"
	"github.com/musictaggerz/core/internal/musicbrainz"
	"github.com/musictaggerz/core/internal/orchestrator"
	"github.com/musictaggerz/core/internal/queue"
	"github.com/musictaggerz/core/internal/ratelimit"
	"github.com/musictaggerz/core/internal/replaygain"
	"github.com/musictaggerz/core/internal/scanner"
	"github.com/musictaggerz/core/internal/settings"
	"github.com/musictaggerz/core/internal/store"
	"github.com/musictaggerz/core/internal/watcher"
)

const userAgent = "musictaggerz/0.1 (+https://github.com/musictaggerz/core)"

var (
	flagMusicDir   string
	flagDB         string
	flagBackupDir  string
	flagQueueDepth int
)

var rootCmd = &cobra.Command{
	Use:   "taggerd",
	Short: "Watch a music directory and auto-tag albums against MusicBrainz",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&flagMusicDir, "music-dir", config.Env("MUSIC_DIR", config.DefaultMusicDir), "Music directory to watch")
	rootCmd.Flags().StringVar(&flagDB, "db", config.DatabaseURL(), "SQLite database path")
	rootCmd.Flags().StringVar(&flagBackupDir, "backup-dir", config.Env("BACKUP_DIR", "./data/backups"), "Root directory for tag backups")
	rootCmd.Flags().IntVar(&flagQueueDepth, "queue-depth", config.EnvInt("QUEUE_DEPTH", 256), "Work queue buffer capacity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	set := settings.New()
	config.LoadSettings(set)

	db, err := store.Open(ctx, flagDB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	slog.Info("database ready", "dsn", flagDB)

	backupStore, err := backup.New(flagBackupDir)
	if err != nil {
		return fmt.Errorf("open backup store: %w", err)
	}

	bus := events.NewBus()

	mbClient := musicbrainz.New(ratelimit.New(musicbrainz.MinInterval, userAgent))
	orch := orchestrator.New(db, set, bus, mbClient)
	orch.BackupStore = backupStore
	orch.Lyrics = lyrics.New(userAgent)
	orch.ReplayGain = replaygain.SimpleAnalyzer{}
	orch.ArtworkSources = buildArtworkSources(set)
	if set.Bool(settings.KeyFingerprintEnabled, false) {
		apiKey := settingString(set, settings.KeyAcoustIDAPIKey)
		orch.FingerprintGenerator = acoustid.Generator{}
		orch.AcoustID = acoustid.New(userAgent, apiKey)
	}

	q := queue.New(flagQueueDepth, dispatch(orch), func(item queue.Item) {
		persistRetry(ctx, db, item)
	})

	patterns := audiofolder.CompilePatterns(set.List(settings.KeyDiscSubfolderPatterns))
	enqueueAlbum := func(albumPath string) {
		album, err := db.GetAlbumByPath(ctx, albumPath)
		if err != nil || album == nil {
			slog.Warn("taggerd: could not resolve scanned album for enqueue", "path", albumPath, "err", err)
			return
		}
		q.Enqueue(queue.Item{Kind: queue.KindTagAlbum, AlbumID: album.ID})
	}
	sc := scanner.New(db, patterns, enqueueAlbum)

	knownPaths, err := db.ListAlbumPaths(ctx)
	if err != nil {
		return fmt.Errorf("list known album paths: %w", err)
	}
	w := watcher.New(flagMusicDir, watcher.DefaultInterval, knownPaths, func(path string) {
		// ScanDirectory classifies the folders below its root, so the
		// changed album is reached by scanning its parent.
		if err := sc.ScanDirectory(ctx, filepath.Dir(path), false); err != nil {
			slog.Warn("taggerd: rescan of changed path failed", "path", path, "err", err)
		}
	})

	go q.Run(ctx)
	go w.Run(ctx)

	slog.Info("initial scan starting", "dir", flagMusicDir)
	if err := sc.ScanDirectory(ctx, flagMusicDir, false); err != nil {
		slog.Warn("taggerd: initial scan failed", "dir", flagMusicDir, "err", err)
	}

	slog.Info("taggerd running", "music_dir", flagMusicDir)
	<-ctx.Done()
	slog.Info("shutting down")
	q.Shutdown()
	<-q.Done()
	return nil
}

// dispatch builds the top-level queue.Handler. Folder scans run
// directly off the Watcher/Scanner, outside the queue; only
// KindTagAlbum items reach it, handed straight to the Orchestrator.
func dispatch(orch *orchestrator.Orchestrator) queue.Handler {
	return func(ctx context.Context, item queue.Item) queue.Outcome {
		switch item.Kind {
		case queue.KindTagAlbum:
			return orch.Handle(ctx, item)
		default:
			return queue.Outcome{Terminal: true, Err: fmt.Errorf("taggerd: unsupported item kind %v", item.Kind)}
		}
	}
}

func persistRetry(ctx context.Context, db *store.Store, item queue.Item) {
	if item.AlbumID == "" {
		return
	}
	album, err := db.GetAlbumByID(ctx, item.AlbumID)
	if err != nil || album == nil {
		return
	}
	album.RetryCount = item.RetryCount
	if err := db.UpsertAlbum(ctx, *album); err != nil {
		slog.Warn("taggerd: persist retry count failed", "album_id", item.AlbumID, "err", err)
	}
}

func buildArtworkSources(set *settings.Store) []artwork.Source {
	caa := coverartarchive.New(userAgent)
	it := itunes.New(userAgent)

	sources := []artwork.Source{
		artwork.FilesystemSource{},
		artwork.CoverArtArchiveSource{Client: caa},
		artwork.ITunesSource{Client: it},
	}
	if key := settingString(set, settings.KeyFanartTVAPIKey); key != "" {
		sources = append(sources, artwork.FanartTVSource{Client: fanarttv.New(userAgent, key)})
	}
	return sources
}

func settingString(set *settings.Store, key string) string {
	v, ok := set.Get(key)
	if !ok {
		return ""
	}
	return v.Value
}
