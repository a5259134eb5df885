package assembly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/fetch"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/transcode"
)

// fetchStage downloads up to MaxClipsPerSentence candidates per sentence.
// Slots are indexed [sentence position][ordinal]; a nil slot is a skipped clip.
func (a *Assembler) fetchStage(ctx context.Context, r *run) ([][]*LocalClip, error) {
	slots := make([][]*LocalClip, len(r.sentences))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.FetchWorkers)

	for p, s := range r.sentences {
		candidates := s.Clips
		if limit := a.opts.MaxClipsPerSentence; limit > 0 && len(candidates) > limit {
			candidates = candidates[:limit]
		}
		slots[p] = make([]*LocalClip, len(candidates))
		if len(candidates) == 0 {
			logging.WarnWithContext(r.logger, "sentence has no candidate clips", "sentence_without_clips",
				logging.Int(logging.FieldSentence, s.Index),
				logging.String(logging.FieldErrorHint, "add clip locators for this sentence"),
				logging.String(logging.FieldImpact, "sentence is left out of the video"),
			)
			continue
		}
		for o, locator := range candidates {
			goSafe(g, r, func() error {
				clip, err := a.fetchClip(gctx, r, s.Index, o, locator)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logging.WarnWithContext(r.logger, "clip fetch failed; skipping candidate", "clip_fetch_failed",
						logging.Int(logging.FieldSentence, s.Index),
						logging.Int("ordinal", o),
						logging.String("locator", locator),
						logging.String("classification", string(services.Classify(err))),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check the clip locator is reachable"),
					)
					return nil
				}
				slots[p][o] = clip
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// goSafe schedules fn on g and turns a panic into an external tool error so
// the group unwinds normally and the run still releases its workspace.
func goSafe(g *errgroup.Group, r *run, fn func() error) {
	stage := r.stage
	g.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = recovered(r, stage, p)
			}
		}()
		return fn()
	})
}

// recovered logs a recovered panic with its stack and converts it to an error.
func recovered(r *run, stage Stage, p any) error {
	logging.ErrorWithContext(r.logger, "worker panicked", "worker_panic",
		logging.String(logging.FieldStage, string(stage)),
		logging.String("panic", fmt.Sprint(p)),
		logging.String("stack", string(debug.Stack())),
	)
	return services.Wrap(services.ErrExternalTool, string(stage), "worker", fmt.Sprintf("panic: %v", p), nil)
}

func (a *Assembler) fetchClip(ctx context.Context, r *run, sentence, ordinal int, locator string) (*LocalClip, error) {
	loc, err := fetch.ParseLocator(locator)
	if err != nil {
		return nil, &FetchError{Sentence: sentence, Ordinal: ordinal, Locator: locator, Err: err}
	}
	dest := r.ws.ClipPath(sentence, ordinal, loc.Extension(".mp4"))
	if _, err := a.fetcher.Fetch(ctx, locator, dest); err != nil {
		return nil, &FetchError{Sentence: sentence, Ordinal: ordinal, Locator: locator, Err: err}
	}
	return &LocalClip{Sentence: sentence, Ordinal: ordinal, Locator: locator, Path: dest}, nil
}

// normalizeStage trims each fetched clip to min(sentence share, measured length)
// and renders it on the canvas.
func (a *Assembler) normalizeStage(ctx context.Context, r *run, clips [][]*LocalClip) ([][]*Segment, error) {
	slots := make([][]*Segment, len(clips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.NormalizeWorkers)

	for p, row := range clips {
		slots[p] = make([]*Segment, len(row))
		usable := 0
		for _, clip := range row {
			if clip != nil {
				usable++
			}
		}
		if usable == 0 {
			continue
		}
		target := r.plan.Split(p, usable)
		for o, clip := range row {
			if clip == nil {
				continue
			}
			goSafe(g, r, func() error {
				seg, err := a.normalizeClip(gctx, r, clip, target)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logging.WarnWithContext(r.logger, "clip normalize failed; skipping candidate", "clip_normalize_failed",
						logging.Int(logging.FieldSentence, clip.Sentence),
						logging.Int("ordinal", clip.Ordinal),
						logging.String("classification", string(services.Classify(err))),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "inspect the source clip with ffprobe"),
					)
					return nil
				}
				if err := r.tracker.Accept(seg.Seconds); err != nil {
					return err
				}
				slots[p][o] = seg
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

func (a *Assembler) normalizeClip(ctx context.Context, r *run, clip *LocalClip, target float64) (*Segment, error) {
	seconds := target
	measured, err := a.engine.ProbeDuration(ctx, clip.Path)
	switch {
	case err != nil:
		r.logger.Debug("duration lookup failed; using planned share",
			logging.Int(logging.FieldSentence, clip.Sentence),
			logging.Int("ordinal", clip.Ordinal),
			logging.Error(err),
		)
	case measured > 0 && measured < target:
		seconds = measured
	}

	out := r.ws.SegmentPath(clip.Sentence, clip.Ordinal)
	req := transcode.NormalizeRequest{Input: clip.Path, Output: out, Seconds: seconds}
	if err := a.engine.TrimAndNormalize(ctx, req); err != nil {
		return nil, &NormalizeError{Sentence: clip.Sentence, Ordinal: clip.Ordinal, Path: clip.Path, Err: err}
	}
	r.logger.Debug("clip normalized",
		logging.Int(logging.FieldSentence, clip.Sentence),
		logging.Int("ordinal", clip.Ordinal),
		logging.Float64("target_seconds", target),
		logging.Float64("measured_seconds", measured),
		logging.Float64("seconds", seconds),
	)
	return &Segment{Sentence: clip.Sentence, Ordinal: clip.Ordinal, Path: out, Seconds: seconds}, nil
}

// concatSentences joins each sentence's segments in ordinal order. Sentences
// run concurrently; the returned timelines keep narration order and omit
// sentences without segments.
func (a *Assembler) concatSentences(ctx context.Context, r *run, segments [][]*Segment) ([]SentenceTimeline, error) {
	slots := make([]*SentenceTimeline, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.ConcatWorkers)

	for p, row := range segments {
		kept := make([]Segment, 0, len(row))
		for _, seg := range row {
			if seg != nil {
				kept = append(kept, *seg)
			}
		}
		sentence := r.sentences[p].Index
		if len(kept) == 0 {
			logging.WarnWithContext(r.logger, "sentence has no usable clips; omitting", "sentence_skipped",
				logging.Int(logging.FieldSentence, sentence),
				logging.String(logging.FieldImpact, "sentence is left out of the video"),
			)
			continue
		}
		goSafe(g, r, func() error {
			entries := make([]transcode.Entry, len(kept))
			total := 0.0
			for i, seg := range kept {
				entries[i] = seg.Entry()
				total += seg.Seconds
			}
			out := r.ws.SentencePath(sentence)
			manifest := r.ws.ManifestPath(fmt.Sprintf("sentence%d", sentence))
			if err := a.engine.Concatenate(gctx, entries, manifest, out); err != nil {
				return &ConcatError{Sentence: sentence, Err: err}
			}
			slots[p] = &SentenceTimeline{Sentence: sentence, Path: out, Segments: kept, Seconds: total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timelines := make([]SentenceTimeline, 0, len(slots))
	for _, tl := range slots {
		if tl != nil {
			timelines = append(timelines, *tl)
		}
	}
	return timelines, nil
}

// concatMaster joins sentence timelines in narration order and returns the
// master path and the flattened clip order it contains.
func (a *Assembler) concatMaster(ctx context.Context, r *run, timelines []SentenceTimeline) (string, []transcode.Entry, error) {
	if len(timelines) == 0 {
		return "", nil, &ConcatError{Sentence: -1, Err: ErrNoSegments}
	}
	entries := make([]transcode.Entry, len(timelines))
	groups := make([][]transcode.Entry, len(timelines))
	for i, tl := range timelines {
		entries[i] = transcode.Entry{Path: tl.Path, Sentence: tl.Sentence, Ordinal: -1}
		group := make([]transcode.Entry, len(tl.Segments))
		for j, seg := range tl.Segments {
			group[j] = seg.Entry()
		}
		groups[i] = group
	}
	master := r.ws.MasterPath()
	if err := a.engine.Concatenate(ctx, entries, r.ws.ManifestPath("master"), master); err != nil {
		return "", nil, &ConcatError{Sentence: -1, Err: err}
	}
	return master, transcode.Flatten(groups), nil
}

// compositeStage fetches the face cam into the workspace and stacks it under
// master for the planned timeline length.
func (a *Assembler) compositeStage(ctx context.Context, r *run, master string, seconds float64) (string, error) {
	loc, err := fetch.ParseLocator(r.req.FaceCam)
	if err != nil {
		return "", &CompositeError{FaceCam: r.req.FaceCam, Err: err}
	}
	face := r.ws.FaceCamPath(loc.Extension(".mp4"))
	if _, err := a.fetcher.Fetch(ctx, r.req.FaceCam, face); err != nil {
		return "", &CompositeError{FaceCam: r.req.FaceCam, Err: err}
	}
	out := r.ws.CompositePath()
	req := transcode.StackRequest{Main: master, FaceCam: face, Output: out, Seconds: seconds}
	if err := a.engine.StackFaceCam(ctx, req); err != nil {
		return "", &CompositeError{FaceCam: r.req.FaceCam, Err: err}
	}
	return out, nil
}

// overlayStage muxes the request's audio under master. The result ends with
// the shorter of the two inputs.
func (a *Assembler) overlayStage(ctx context.Context, r *run, master string) (string, error) {
	audio, err := a.resolveAudio(ctx, r)
	if err != nil {
		return "", &OverlayError{Audio: r.req.Audio, Err: err}
	}
	out := r.ws.FinalPath()
	if err := a.engine.MuxAudio(ctx, master, audio, out); err != nil {
		return "", &OverlayError{Audio: r.req.Audio, Err: err}
	}
	return out, nil
}

// resolveAudio downloads remote tracks into the workspace and resolves local
// ones, relative paths against the audio directory.
func (a *Assembler) resolveAudio(ctx context.Context, r *run) (string, error) {
	loc, err := fetch.ParseLocator(r.req.Audio)
	if err != nil {
		return "", err
	}
	if loc.IsRemote() {
		dest := r.ws.AudioPath(loc.Extension(".audio"))
		if _, err := a.fetcher.Fetch(ctx, r.req.Audio, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	path := loc.Path
	if !filepath.IsAbs(path) && a.opts.AudioDir != "" {
		path = filepath.Join(a.opts.AudioDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, string(StageOverlaying), "audio", path, err)
		}
		return "", services.Wrap(services.ErrTransient, string(StageOverlaying), "audio", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", services.Wrap(services.ErrValidation, string(StageOverlaying), "audio", path+" is not a usable audio file", nil)
	}
	return path, nil
}
