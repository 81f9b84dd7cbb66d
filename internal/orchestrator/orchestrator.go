// Package orchestrator drives one album through the full tagging
// pipeline (C8): match, score, decide, and — for the auto_tag path —
// backup, write tags, fetch and embed artwork, optionally fetch
// lyrics and compute ReplayGain, then commit. Progress is reported
// through the Event Bus (C12), grounded on the teacher's listenparty
// hub: each Publish returns after every subscriber with free buffer
// space has accepted the event; a subscriber whose buffer is full
// misses that event.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/musictaggerz/core/internal/artwork"
	"github.com/musictaggerz/core/internal/backup"
	"github.com/musictaggerz/core/internal/events"
	"github.com/musictaggerz/core/internal/fingerprint"
	"github.com/musictaggerz/core/internal/lyrics"
	"github.com/musictaggerz/core/internal/matcher"
	"github.com/musictaggerz/core/internal/model"
	"github.com/musictaggerz/core/internal/musicbrainz"
	"github.com/musictaggerz/core/internal/queue"
	"github.com/musictaggerz/core/internal/replaygain"
	"github.com/musictaggerz/core/internal/settings"
	"github.com/musictaggerz/core/internal/store"
	"github.com/musictaggerz/core/internal/tagcodec"
)

// detailFetchLimit bounds how many search stubs get the expensive
// GetRelease detail call, per spec.md §4.5's two-phase scoring.
const detailFetchLimit = 5

// searchLimit bounds MusicBrainz text search results.
const searchLimit = 15

// Orchestrator wires every collaborator C8 drives through one album's
// pipeline run.
type Orchestrator struct {
	Store    *store.Store
	Settings *settings.Store
	Bus      *events.Bus

	MusicBrainz *musicbrainz.Client

	FingerprintGenerator fingerprint.Generator
	AcoustID             fingerprint.AcoustIDClient

	ArtworkSources []artwork.Source
	BackupStore    *backup.Store
	Lyrics         *lyrics.Client
	ReplayGain     replaygain.Analyzer

	ReadTags  func(path string) (tagcodec.Record, error)
	WriteTags func(path string, rec tagcodec.Record) error
}

// New builds an Orchestrator with tagcodec.Read/Write as the default
// tag I/O.
func New(s *store.Store, set *settings.Store, bus *events.Bus, mb *musicbrainz.Client) *Orchestrator {
	return &Orchestrator{
		Store:       s,
		Settings:    set,
		Bus:         bus,
		MusicBrainz: mb,
		ReadTags:    tagcodec.Read,
		WriteTags:   tagcodec.Write,
	}
}

// Handle implements queue.Handler: it drives one KindTagAlbum item
// through the full pipeline and reports the outcome the queue needs
// to decide whether to retry.
func (o *Orchestrator) Handle(ctx context.Context, item queue.Item) queue.Outcome {
	if item.Kind != queue.KindTagAlbum {
		return queue.Outcome{Terminal: true, Err: fmt.Errorf("orchestrator: unsupported item kind %s", item.Kind)}
	}
	return o.processAlbum(ctx, item.AlbumID, item.ReleaseID, item.UserInitiated)
}

func (o *Orchestrator) processAlbum(ctx context.Context, albumID, userReleaseID string, userInitiated bool) queue.Outcome {
	album, err := o.Store.GetAlbumByID(ctx, albumID)
	if err != nil {
		return queue.Outcome{Err: fmt.Errorf("orchestrator: load album: %w", err)}
	}
	if album == nil {
		return queue.Outcome{Terminal: true, Err: fmt.Errorf("orchestrator: album %s not found", albumID)}
	}

	o.emit(albumID, "matching", "matching against remote releases", 0.0)
	album.Status = model.AlbumMatching
	if err := o.Store.UpsertAlbum(ctx, *album); err != nil {
		return queue.Outcome{Err: fmt.Errorf("orchestrator: mark matching: %w", err)}
	}

	tracks, err := o.Store.ListTracksByAlbum(ctx, albumID)
	if err != nil {
		return queue.Outcome{Err: fmt.Errorf("orchestrator: list tracks: %w", err)}
	}
	o.emit(albumID, "readLocal", "read local tags", 0.1)

	local := buildLocalAlbum(*album, tracks)

	candidates, err := o.search(ctx, *album, local, userReleaseID)
	if err != nil {
		return queue.Outcome{Err: fmt.Errorf("orchestrator: search: %w", err)}
	}
	o.emit(albumID, "search", fmt.Sprintf("found %d candidate releases", len(candidates)), 0.2)

	matcherSettings := o.matcherSettings()

	scored := o.scoreCandidates(local, candidates, nil)
	best, bestScore := pickBest(scored)

	if userReleaseID == "" && o.Settings.Bool(settings.KeyFingerprintEnabled, false) {
		fpAggs := o.fingerprintAggregates(ctx, len(candidates) == 0 || bestScore < matcherSettings.TAuto, tracks)
		if len(fpAggs) > 0 {
			if len(candidates) == 0 {
				for _, agg := range fpAggs {
					if len(candidates) >= detailFetchLimit {
						break
					}
					rel, err := o.MusicBrainz.GetRelease(ctx, agg.ReleaseID)
					if err != nil {
						slog.Warn("orchestrator: fingerprint detail fetch failed", "release_id", agg.ReleaseID, "err", err)
						continue
					}
					candidates = append(candidates, *rel)
				}
			}
			candidates, scored = o.rescoreWithFingerprint(ctx, local, candidates, fpAggs)
			best, bestScore = pickBest(scored)
		}
	}
	o.emit(albumID, "score", fmt.Sprintf("best match score %.1f", bestScore), 0.3)

	o.persistCandidates(ctx, albumID, scored, best)

	action := matcher.Decide(bestScore, matcherSettings, !o.Settings.Bool(settings.KeyAutoTagOnScan, true), userInitiated, userReleaseID)
	o.emit(albumID, "decide", fmt.Sprintf("decision: %s", action), 0.4)

	switch action {
	case matcher.ActionNeedsReview:
		return o.finishNonTagging(ctx, album, model.AlbumNeedsReview, bestScore, "needs_review")
	case matcher.ActionSkip:
		return o.finishNonTagging(ctx, album, model.AlbumSkipped, bestScore, "skipped")
	}

	if best == nil {
		return o.finishNonTagging(ctx, album, model.AlbumFailed, bestScore, "failed")
	}

	return o.autoTag(ctx, album, tracks, *best, bestScore, scored)
}

// search performs the initial discovery step: a user-supplied
// releaseId bypasses text search entirely; otherwise it tries each
// query variant in turn until one returns results, filters out
// releases whose track count can't plausibly match the local album,
// pre-scores the survivors from search-level data alone, and only
// fetches full detail for the top detailFetchLimit candidates.
func (o *Orchestrator) search(ctx context.Context, album model.Album, local matcher.LocalAlbum, userReleaseID string) ([]musicbrainz.ReleaseStub, error) {
	if userReleaseID != "" {
		rel, err := o.MusicBrainz.GetRelease(ctx, userReleaseID)
		if err != nil {
			return nil, err
		}
		return []musicbrainz.ReleaseStub{*rel}, nil
	}

	artist, title := "", ""
	if album.Artist != nil {
		artist = *album.Artist
	}
	if album.Title != nil {
		title = *album.Title
	}

	var stubs []musicbrainz.ReleaseStub
	for _, variant := range matcher.QueryVariants(title) {
		found, err := o.MusicBrainz.SearchRelease(ctx, artist, variant, searchLimit)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			stubs = found
			break
		}
	}
	if len(stubs) == 0 {
		return nil, nil
	}

	filtered := make([]musicbrainz.ReleaseStub, 0, len(stubs))
	for _, stub := range stubs {
		if local.TrackCount > 0 && stub.TotalTrackCount() > 2*local.TrackCount {
			continue
		}
		filtered = append(filtered, stub)
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	matcherSettings := o.matcherSettings()
	pre := make([]scoredCandidate, 0, len(filtered))
	for _, stub := range filtered {
		pre = append(pre, scoredCandidate{Release: stub, Score: matcher.Score(local, stub, nil, matcherSettings)})
	}
	sort.Slice(pre, func(i, j int) bool { return pre[i].Score > pre[j].Score })
	if len(pre) > detailFetchLimit {
		pre = pre[:detailFetchLimit]
	}

	out := make([]musicbrainz.ReleaseStub, 0, len(pre))
	for _, c := range pre {
		full, err := o.MusicBrainz.GetRelease(ctx, c.Release.ID)
		if err != nil {
			slog.Warn("orchestrator: detail fetch failed", "release_id", c.Release.ID, "err", err)
			continue
		}
		out = append(out, *full)
	}
	return out, nil
}

type scoredCandidate struct {
	Release musicbrainz.ReleaseStub
	Score   float64
}

func (o *Orchestrator) matcherSettings() matcher.Settings {
	return matcher.Settings{
		PreferredCountries: o.Settings.List(settings.KeyPreferredCountries),
		PreferredMedia:     o.Settings.List(settings.KeyPreferredMedia),
		TAuto:              o.Settings.Float(settings.KeyConfidenceAutoThreshold, 85),
		TReview:            o.Settings.Float(settings.KeyConfidenceReviewThreshold, 50),
	}
}

func (o *Orchestrator) scoreCandidates(local matcher.LocalAlbum, releases []musicbrainz.ReleaseStub, fpByRelease map[string]matcher.FingerprintAggregate) []scoredCandidate {
	matcherSettings := o.matcherSettings()
	out := make([]scoredCandidate, 0, len(releases))
	for _, rel := range releases {
		var fp *matcher.FingerprintAggregate
		if fpByRelease != nil {
			if agg, ok := fpByRelease[rel.ID]; ok {
				fp = &agg
			}
		}
		out = append(out, scoredCandidate{Release: rel, Score: matcher.Score(local, rel, fp, matcherSettings)})
	}
	return out
}

func pickBest(scored []scoredCandidate) (*musicbrainz.ReleaseStub, float64) {
	if len(scored) == 0 {
		return nil, 0
	}
	best := scored[0]
	for _, c := range scored[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return &best.Release, best.Score
}

// fingerprintAggregates runs the sample-and-lookup path and returns
// per-release vote tallies, only when fingerprinting should run per
// spec.md §4.5's policy (primary when text search found no candidates,
// otherwise supplementary).
func (o *Orchestrator) fingerprintAggregates(ctx context.Context, shouldRun bool, tracks []model.Track) []fingerprint.Aggregate {
	if !shouldRun || o.FingerprintGenerator == nil || o.AcoustID == nil {
		return nil
	}

	var paths []string
	var durations []float64
	for _, tr := range tracks {
		paths = append(paths, tr.AbsolutePath)
		d := 0.0
		if tr.Duration != nil {
			d = *tr.Duration
		}
		durations = append(durations, d)
	}
	sample := fingerprint.SelectSampleTracks(paths, durations)

	var perTrack [][]fingerprint.AcoustIDMatch
	for _, path := range sample {
		fp, duration, err := o.FingerprintGenerator.Fingerprint(ctx, path)
		if err != nil {
			continue
		}
		matches, err := o.AcoustID.Lookup(ctx, fp, duration)
		if err != nil {
			continue
		}
		perTrack = append(perTrack, matches)
	}
	return fingerprint.AggregateByRelease(perTrack)
}

// rescoreWithFingerprint attaches fingerprint bonuses to the existing
// text-search candidate set and rescores it. Releases known only via
// an AcoustID aggregate, with no matching search-stage stub, are not
// detail-fetched here: that keeps detail-fetch load bounded to the
// search stage's own top candidates rather than growing with every
// AcoustID hit.
func (o *Orchestrator) rescoreWithFingerprint(ctx context.Context, local matcher.LocalAlbum, existing []musicbrainz.ReleaseStub, aggs []fingerprint.Aggregate) ([]musicbrainz.ReleaseStub, []scoredCandidate) {
	fpByRelease := map[string]matcher.FingerprintAggregate{}
	for _, agg := range aggs {
		fpByRelease[agg.ReleaseID] = matcher.FingerprintAggregate{ReleaseID: agg.ReleaseID, MatchedTracks: agg.MatchedTracks, AvgScore: agg.AvgScore}
	}
	return existing, o.scoreCandidates(local, existing, fpByRelease)
}

func (o *Orchestrator) persistCandidates(ctx context.Context, albumID string, scored []scoredCandidate, chosen *musicbrainz.ReleaseStub) {
	candidates := make([]model.MatchCandidate, 0, len(scored))
	for _, c := range scored {
		rel := c.Release
		year := releaseYear(rel)
		var yearPtr, origYearPtr *int
		if y := year; y != 0 {
			yearPtr = &y
		}
		country := rel.Country
		artist := rel.ArtistName()
		title := rel.Title
		trackCount := rel.TotalTrackCount()
		candidates = append(candidates, model.MatchCandidate{
			ID:           uuid.NewString(),
			AlbumID:      albumID,
			ReleaseID:    rel.ID,
			Confidence:   c.Score,
			Artist:       &artist,
			Title:        &title,
			Year:         yearPtr,
			OriginalYear: origYearPtr,
			TrackCount:   &trackCount,
			Country:      &country,
			IsSelected:   chosen != nil && rel.ID == chosen.ID,
		})
	}
	if err := o.Store.ReplaceMatchCandidates(ctx, albumID, candidates); err != nil {
		slog.Warn("orchestrator: persist match candidates failed", "album_id", albumID, "err", err)
	}
}

func (o *Orchestrator) finishNonTagging(ctx context.Context, album *model.Album, status model.AlbumStatus, score float64, action string) queue.Outcome {
	album.Status = status
	album.MatchConfidence = &score
	if err := o.Store.UpsertAlbum(ctx, *album); err != nil {
		return queue.Outcome{Err: fmt.Errorf("orchestrator: persist %s: %w", action, err)}
	}
	o.logAndBroadcast(ctx, album.ID, action)
	return queue.Outcome{Terminal: true}
}

// autoTag runs the full write pipeline: backup, write tags, backup
// again for artwork, fetch/embed artwork, optional lyrics, optional
// ReplayGain, commit.
func (o *Orchestrator) autoTag(ctx context.Context, album *model.Album, tracks []model.Track, chosen musicbrainz.ReleaseStub, score float64, scored []scoredCandidate) queue.Outcome {
	assignments := buildTrackAssignments(tracks, chosen)

	if o.Settings.Bool(settings.KeyBackupEnabled, true) {
		if err := o.createBackup(ctx, album.ID, "pre_tag", tracks); err != nil {
			slog.Warn("orchestrator: pre-tag backup failed", "album_id", album.ID, "err", err)
		}
	}

	o.emit(album.ID, "backup", "captured pre-tag backup", 0.5)

	if err := o.writeTags(ctx, album.ID, tracks, assignments, chosen); err != nil {
		return o.fail(ctx, album, err)
	}
	o.emit(album.ID, "writeTags", "wrote tags from chosen release", 0.6)

	if o.Settings.Bool(settings.KeyBackupEnabled, true) {
		if err := o.createBackup(ctx, album.ID, "pre_artwork", tracks); err != nil {
			slog.Warn("orchestrator: pre-artwork backup failed", "album_id", album.ID, "err", err)
		}
	}

	if err := o.fetchArtwork(ctx, album, tracks, chosen, scored); err != nil {
		slog.Warn("orchestrator: artwork step failed", "album_id", album.ID, "err", err)
	}
	o.emit(album.ID, "fetchArtwork", "fetched and embedded artwork", 0.7)

	if o.Settings.Bool(settings.KeyLyricsEnabled, false) && o.Settings.Bool(settings.KeyLyricsAutoFetch, false) && o.Lyrics != nil {
		o.writeLyrics(ctx, *album, tracks)
	}
	o.emit(album.ID, "writeLyrics", "fetched lyrics where available", 0.8)

	if o.Settings.Bool(settings.KeyReplaygainEnabled, false) && o.Settings.Bool(settings.KeyReplaygainAutoCalculate, false) && o.ReplayGain != nil {
		o.writeReplayGain(ctx, album, tracks)
	}
	o.emit(album.ID, "writeReplayGain", "computed ReplayGain", 0.9)

	o.commit(ctx, album, chosen, score)
	o.emit(album.ID, "commit", "tagging complete", 1.0)
	return queue.Outcome{Terminal: true}
}

func (o *Orchestrator) fail(ctx context.Context, album *model.Album, cause error) queue.Outcome {
	msg := cause.Error()
	album.Status = model.AlbumFailed
	album.ErrorMessage = &msg
	if err := o.Store.UpsertAlbum(ctx, *album); err != nil {
		slog.Warn("orchestrator: persist failed status failed", "album_id", album.ID, "err", err)
	}
	o.logAndBroadcast(ctx, album.ID, "failed")
	return queue.Outcome{Terminal: true, Err: cause}
}

func (o *Orchestrator) createBackup(ctx context.Context, albumID, action string, tracks []model.Track) error {
	if o.BackupStore == nil {
		return nil
	}
	refs := make([]backup.TrackRef, 0, len(tracks))
	for _, tr := range tracks {
		refs = append(refs, backup.TrackRef{TrackID: tr.ID, Path: tr.AbsolutePath})
	}
	b, snapshots, err := backup.CreateBackup(ctx, o.BackupStore, albumID, action, refs, o.ReadTags)
	if err != nil {
		return err
	}
	if err := o.Store.InsertBackup(ctx, b, snapshots); err != nil {
		return err
	}
	o.pruneOldBackups(ctx, albumID)
	return nil
}

func (o *Orchestrator) pruneOldBackups(ctx context.Context, albumID string) {
	max := o.Settings.Int(settings.KeyBackupMaxPerAlbum, 5)
	backups, err := o.Store.ListBackupsByAlbum(ctx, albumID)
	if err != nil || len(backups) <= max {
		return
	}
	stale := backups[:len(backups)-max]
	for _, b := range stale {
		if err := o.BackupStore.Prune(b.ID); err != nil {
			slog.Warn("orchestrator: prune backup directory failed", "backup_id", b.ID, "err", err)
			continue
		}
		if err := o.Store.DeleteBackup(ctx, b.ID); err != nil {
			slog.Warn("orchestrator: prune backup row failed", "backup_id", b.ID, "err", err)
		}
	}
}

func (o *Orchestrator) writeTags(ctx context.Context, albumID string, tracks []model.Track, assignments map[string]trackAssignment, rel musicbrainz.ReleaseStub) error {
	artistName := rel.ArtistName()
	title := rel.Title
	releaseID := rel.ID

	successCount := 0
	for _, tr := range tracks {
		rec, err := o.ReadTags(tr.AbsolutePath)
		if err != nil {
			rec = tagcodec.Record{}
		}
		rec.AlbumArtist = &artistName
		rec.Album = &title
		rec.ReleaseID = &releaseID

		assign, ok := assignments[tr.ID]
		if ok {
			rec.TrackNumber = assign.TrackNumber
			rec.TrackTotal = assign.TrackTotal
			rec.DiscNumber = assign.DiscNumber
			rec.DiscTotal = assign.DiscTotal
			if assign.Title != nil {
				rec.Title = assign.Title
			}
			rec.RecordingID = assign.RecordingID
		}

		if err := o.WriteTags(tr.AbsolutePath, rec); err != nil {
			tr.Status = model.TrackFailed
			errMsg := err.Error()
			tr.ErrorMessage = &errMsg
			if persistErr := o.Store.UpsertTrack(ctx, tr); persistErr != nil {
				slog.Warn("orchestrator: persist failed track status failed", "track_id", tr.ID, "err", persistErr)
			}
			slog.Warn("orchestrator: write tags failed", "track_id", tr.ID, "path", tr.AbsolutePath, "err", err)
			continue
		}

		successCount++
		tr.Status = model.TrackTagged
		tr.ErrorMessage = nil
		if ok {
			tr.DiscNumber = derefInt(assign.DiscNumber, tr.DiscNumber)
			tr.TrackNumber = assign.TrackNumber
			if assign.RecordingID != nil {
				tr.RecordingID = assign.RecordingID
			}
			if assign.Title != nil {
				tr.Title = assign.Title
			}
		}
		if err := o.Store.UpsertTrack(ctx, tr); err != nil {
			slog.Warn("orchestrator: persist track after write failed", "track_id", tr.ID, "err", err)
		}
	}
	if successCount == 0 {
		return fmt.Errorf("write tags: all %d tracks failed", len(tracks))
	}
	return nil
}

func (o *Orchestrator) fetchArtwork(ctx context.Context, album *model.Album, tracks []model.Track, chosen musicbrainz.ReleaseStub, scored []scoredCandidate) error {
	if len(o.ArtworkSources) == 0 {
		return nil
	}

	var candidateIDs []string
	for _, c := range scored {
		if c.Release.ID != chosen.ID {
			candidateIDs = append(candidateIDs, c.Release.ID)
		}
	}

	artist, title := "", ""
	if album.Artist != nil {
		artist = *album.Artist
	}
	if album.Title != nil {
		title = *album.Title
	}

	req := artwork.Request{
		AlbumDir:            album.AbsolutePath,
		ReleaseID:           chosen.ID,
		CandidateReleaseIDs: candidateIDs,
		Artist:              artist,
		Album:               title,
		ReleaseGroupID:      chosen.ReleaseGroup.ID,
	}

	minSize := o.Settings.Int(settings.KeyArtworkMinSize, 500)
	cand, err := artwork.SelectBest(ctx, o.ArtworkSources, req, minSize)
	if err != nil {
		return err
	}

	data := cand.Data
	if maxSize := o.Settings.Int(settings.KeyArtworkMaxSize, 0); maxSize > 0 {
		if resized, err := artwork.ResizeDownTo(data, maxSize); err == nil {
			data = resized
		}
	}

	path, err := artwork.WriteCoverFile(album.AbsolutePath, data, cand.MimeType)
	if err != nil {
		return err
	}
	album.CoverPath = &path

	paths := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		paths = append(paths, tr.AbsolutePath)
	}
	return artwork.EmbedInTracks(paths, data, cand.MimeType)
}

func (o *Orchestrator) writeLyrics(ctx context.Context, album model.Album, tracks []model.Track) {
	artist, albumTitle := "", ""
	if album.Artist != nil {
		artist = *album.Artist
	}
	if album.Title != nil {
		albumTitle = *album.Title
	}

	for _, tr := range tracks {
		title := ""
		if tr.Title != nil {
			title = *tr.Title
		}
		durationSec := 0
		if tr.Duration != nil {
			durationSec = int(*tr.Duration)
		}

		result, err := o.Lyrics.Fetch(ctx, artist, albumTitle, title, durationSec)
		if err != nil {
			continue
		}

		rec, err := o.ReadTags(tr.AbsolutePath)
		if err != nil {
			rec = tagcodec.Record{}
		}
		synced := result.LRC != ""
		if synced {
			rec.LyricsLRC = &result.LRC
		}
		if result.Plain != "" {
			rec.LyricsPlain = &result.Plain
		}
		if err := o.WriteTags(tr.AbsolutePath, rec); err != nil {
			slog.Warn("orchestrator: write lyrics failed", "track_id", tr.ID, "err", err)
			continue
		}

		tr.HasLyrics = true
		tr.LyricsSynced = synced
		if err := o.Store.UpsertTrack(ctx, tr); err != nil {
			slog.Warn("orchestrator: persist lyrics flags failed", "track_id", tr.ID, "err", err)
		}
	}
}

func (o *Orchestrator) writeReplayGain(ctx context.Context, album *model.Album, tracks []model.Track) {
	reference := o.Settings.Float(settings.KeyReplaygainReferenceLoudness, -18)

	var sumGain float64
	var minPeak float64
	var n int
	for _, tr := range tracks {
		res, err := o.ReplayGain.Analyze(ctx, tr.AbsolutePath, reference)
		if err != nil {
			continue
		}

		rec, err := o.ReadTags(tr.AbsolutePath)
		if err != nil {
			rec = tagcodec.Record{}
		}
		gain, peak := res.TrackGain, res.TrackPeak
		rec.ReplaygainTrackGain = &gain
		rec.ReplaygainTrackPeak = &peak
		if err := o.WriteTags(tr.AbsolutePath, rec); err != nil {
			slog.Warn("orchestrator: write replaygain failed", "track_id", tr.ID, "err", err)
			continue
		}

		tr.ReplaygainTrackGain = &gain
		tr.ReplaygainTrackPeak = &peak
		if err := o.Store.UpsertTrack(ctx, tr); err != nil {
			slog.Warn("orchestrator: persist replaygain failed", "track_id", tr.ID, "err", err)
		}

		sumGain += gain
		if n == 0 || peak < minPeak {
			minPeak = peak
		}
		n++
	}
	if n == 0 {
		return
	}
	albumGain := sumGain / float64(n)
	album.ReplaygainAlbumGain = &albumGain
	album.ReplaygainAlbumPeak = &minPeak
}

func (o *Orchestrator) commit(ctx context.Context, album *model.Album, rel musicbrainz.ReleaseStub, score float64) {
	artistName := rel.ArtistName()
	title := rel.Title
	year := releaseYear(rel)
	releaseID := rel.ID
	releaseGroupID := rel.ReleaseGroup.ID

	album.Artist = &artistName
	album.Title = &title
	if year != 0 {
		album.Year = &year
	}
	album.ReleaseID = &releaseID
	album.ReleaseGroupID = &releaseGroupID
	album.Status = model.AlbumTagged
	album.MatchConfidence = &score
	album.ErrorMessage = nil

	if err := o.Store.UpsertAlbum(ctx, *album); err != nil {
		slog.Warn("orchestrator: commit failed", "album_id", album.ID, "err", err)
		return
	}
	o.logAndBroadcast(ctx, album.ID, "tagged")
}

func (o *Orchestrator) logAndBroadcast(ctx context.Context, albumID, action string) {
	if err := o.Store.AppendActivityLog(ctx, model.ActivityLog{ID: uuid.NewString(), AlbumID: &albumID, Action: action}); err != nil {
		slog.Warn("orchestrator: append activity log failed", "album_id", albumID, "err", err)
	}
	if o.Bus != nil {
		o.Bus.Publish(events.Event{Type: events.TypeAlbumUpdate, AlbumID: albumID, Status: action})
	}
}

func (o *Orchestrator) emit(albumID, status, message string, value float64) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(events.Event{Type: events.TypeProgress, AlbumID: albumID, Status: status, Message: message, Value: value})
}

func buildLocalAlbum(album model.Album, tracks []model.Track) matcher.LocalAlbum {
	local := matcher.LocalAlbum{
		TrackCount:   len(tracks),
		TrackLengths: map[[2]int]float64{},
	}
	if album.Artist != nil {
		local.Artist = *album.Artist
	}
	if album.Title != nil {
		local.Album = *album.Title
	}
	if album.Year != nil {
		local.Year = *album.Year
	}

	discs := map[int]bool{}
	for _, tr := range tracks {
		disc := tr.DiscNumber
		if disc == 0 {
			disc = 1
		}
		discs[disc] = true
		if tr.TrackNumber != nil && tr.Duration != nil {
			local.TrackLengths[[2]int{disc, *tr.TrackNumber}] = *tr.Duration
		}
	}
	local.DiscCount = len(discs)
	return local
}

func releaseYear(rel musicbrainz.ReleaseStub) int {
	if y := yearFromDate(rel.ReleaseGroup.FirstReleaseDate); y != 0 {
		return y
	}
	return yearFromDate(rel.Date)
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	n := 0
	for i := 0; i < 4; i++ {
		c := date[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// trackAssignment is the tag-writing target for one local track,
// resolved from the chosen release per spec.md §4.8's three
// track-to-release mapping cases.
type trackAssignment struct {
	DiscNumber  *int
	DiscTotal   *int
	TrackNumber *int
	TrackTotal  *int
	Title       *string
	RecordingID *string
}

// flatMBTrack is one MB track with its disc position; DiscTotal is the
// number of tracks on that disc (the medium's track count).
type flatMBTrack struct {
	Disc      int
	DiscTotal int
	Track     musicbrainz.Track
}

func flattenRelease(rel musicbrainz.ReleaseStub) []flatMBTrack {
	var out []flatMBTrack
	for _, m := range rel.Media {
		disc := m.Position
		if disc == 0 {
			disc = 1
		}
		for _, t := range m.Tracks {
			out = append(out, flatMBTrack{Disc: disc, DiscTotal: m.TrackCount, Track: t})
		}
	}
	return out
}

func localDiscCount(tracks []model.Track) int {
	discs := map[int]bool{}
	for _, tr := range tracks {
		disc := tr.DiscNumber
		if disc == 0 {
			disc = 1
		}
		discs[disc] = true
	}
	return len(discs)
}

// buildTrackAssignments implements spec.md §4.8's three cases. Case 3
// (local multi-disc, MB single-disc) is not special-cased separately:
// it runs through the same (disc,track) lookup with flat-index
// fallback as case 1, which is exactly the "behave as case 1" the
// spec calls for.
func buildTrackAssignments(tracks []model.Track, rel musicbrainz.ReleaseStub) map[string]trackAssignment {
	flat := flattenRelease(rel)
	out := map[string]trackAssignment{}
	if len(flat) == 0 {
		return out
	}

	localMultiDisc := localDiscCount(tracks) > 1
	mbMultiDisc := len(rel.Media) > 1

	if !localMultiDisc && mbMultiDisc {
		sorted := append([]model.Track{}, tracks...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].AbsolutePath < sorted[j].AbsolutePath })

		total := len(flat)
		discNum := 1
		for i, tr := range sorted {
			if i >= len(flat) {
				break
			}
			f := flat[i]
			trackNum := i + 1
			var title *string
			if f.Track.Title != "" {
				t := f.Track.Title
				title = &t
			}
			var recID *string
			if f.Track.Recording.ID != "" {
				id := f.Track.Recording.ID
				recID = &id
			}
			out[tr.ID] = trackAssignment{
				DiscNumber: &discNum, DiscTotal: &discNum, TrackNumber: &trackNum, TrackTotal: &total,
				Title: title, RecordingID: recID,
			}
		}
		return out
	}

	lookup := map[[2]int]flatMBTrack{}
	for _, f := range flat {
		lookup[[2]int{f.Disc, f.Track.Position}] = f
	}

	sorted := append([]model.Track{}, tracks...)
	sort.Slice(sorted, func(i, j int) bool {
		di, dj := sorted[i].DiscNumber, sorted[j].DiscNumber
		if di != dj {
			return di < dj
		}
		ti, tj := 0, 0
		if sorted[i].TrackNumber != nil {
			ti = *sorted[i].TrackNumber
		}
		if sorted[j].TrackNumber != nil {
			tj = *sorted[j].TrackNumber
		}
		return ti < tj
	})

	for idx, tr := range sorted {
		tn := 0
		if tr.TrackNumber != nil {
			tn = *tr.TrackNumber
		}
		disc := tr.DiscNumber
		if disc == 0 {
			disc = 1
		}

		f, ok := lookup[[2]int{disc, tn}]
		if !ok {
			if idx >= len(flat) {
				continue
			}
			f = flat[idx]
			ok = true
		}
		if !ok {
			continue
		}

		discNum, trackNum := f.Disc, f.Track.Position
		discTotal, trackTotal := len(rel.Media), f.DiscTotal
		var title *string
		if f.Track.Title != "" {
			t := f.Track.Title
			title = &t
		}
		var recID *string
		if f.Track.Recording.ID != "" {
			id := f.Track.Recording.ID
			recID = &id
		}
		out[tr.ID] = trackAssignment{
			DiscNumber: &discNum, DiscTotal: &discTotal, TrackNumber: &trackNum, TrackTotal: &trackTotal,
			Title: title, RecordingID: recID,
		}
	}
	return out
}
