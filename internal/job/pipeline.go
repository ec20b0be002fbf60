package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/countercurse/countercurse/internal/audio"
	"github.com/countercurse/countercurse/internal/detect"
	"github.com/countercurse/countercurse/internal/splice"
)

// Pass outcomes recorded in metrics.
const (
	passCensored = "censored"
	passClean    = "clean"
	passFailed   = "failed"
)

// remuxTolerance absorbs encoder padding and container rounding.
const remuxTolerance = 0.25

// run drives job from IDLE to a terminal state. Each pass reads the previous
// pass's output; the workspace and every intermediate are removed whatever
// the outcome.
func (s *CensorService) run(ctx context.Context, job *Job) (*Result, error) {
	logger := s.logger.With(slog.String("job_id", job.ID))

	if err := job.Start(); err != nil {
		return nil, err
	}
	s.save(ctx, job)
	s.metrics.JobStarted(ctx)

	var (
		total         = job.TotalPasses
		current       = job.InputPath
		intermediates []string
		outcome       Status
		runErr        error
	)

	ws, err := s.storage.Workspace(ctx, job.ID)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(job.OutputPath), 0750)
	}
	if err != nil {
		outcome, runErr = StatusFailed, fmt.Errorf("prepare run: %w", err)
	}

	for k := 1; outcome == "" && k <= total; k++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled between passes", slog.Int("pass", k))
			outcome, runErr = StatusCancelled, err
			break
		}

		job.BeginPass(k)
		s.save(ctx, job)
		logger.Info("starting pass", slog.Int("pass", k), slog.Int("total", total))

		target := job.OutputPath
		if k < total {
			target = filepath.Join(ws, fmt.Sprintf("pass_%d%s", k, filepath.Ext(job.OutputPath)))
			intermediates = append(intermediates, target)
		}

		pass, err := s.runPass(ctx, logger, job, ws, k, current, target)
		job.RecordPass(pass)
		s.save(ctx, job)

		switch {
		case err != nil:
			s.metrics.RecordPass(ctx, passFailed, 0, pass.Duration)
			logger.Error("pass failed", slog.Int("pass", k), slog.String("error", err.Error()))
			outcome, runErr = StatusFailed, err
		case pass.Output == "":
			s.metrics.RecordPass(ctx, passClean, 0, pass.Duration)
			logger.Info("no offending words found, stopping",
				slog.Int("pass", k),
				slog.Duration("elapsed", pass.Duration),
			)
			outcome = StatusNoOffensesFound
		default:
			s.metrics.RecordPass(ctx, passCensored, pass.Intervals, pass.Duration)
			logger.Info("pass finished",
				slog.Int("pass", k),
				slog.Int("total", total),
				slog.Int("intervals", pass.Intervals),
				slog.Duration("elapsed", pass.Duration),
			)
			current = pass.Output
		}
	}
	if outcome == "" {
		outcome = StatusSucceeded
	}

	var outputPath, videoURL string
	switch outcome {
	case StatusSucceeded:
		outputPath = job.OutputPath
	case StatusNoOffensesFound:
		// The last censored pass is the result; pass 1 finding nothing
		// leaves no output at all.
		if current != job.InputPath {
			if err := s.storage.Promote(context.WithoutCancel(ctx), current, job.OutputPath); err != nil {
				outcome, runErr = StatusFailed, fmt.Errorf("promote %s: %w", filepath.Base(current), err)
			} else {
				outputPath = job.OutputPath
			}
		}
	}

	if outputPath != "" && job.PushToS3 {
		url, err := s.upload(ctx, job.ID, outputPath)
		if err != nil {
			outcome, runErr = StatusFailed, err
		} else {
			videoURL = url
		}
	}

	s.cleanup(ctx, logger, ws, intermediates)

	job.SetOutput(outputPath, videoURL)
	switch outcome {
	case StatusSucceeded:
		err = job.Succeed()
	case StatusNoOffensesFound:
		err = job.NoOffensesFound()
	case StatusCancelled:
		err = job.Cancel()
	default:
		err = job.Fail(runErr.Error())
	}
	if err != nil {
		logger.Error("failed to finish job", slog.String("error", err.Error()))
	}
	s.save(ctx, job)
	s.metrics.JobFinished(ctx, string(job.GetStatus()))

	logger.Info("job finished",
		slog.String("status", string(job.GetStatus())),
		slog.String("output", outputPath),
		slog.Any("censored_per_pass", job.CensoredPerPass()),
	)

	snapshot := job.Clone()
	return &Result{
		JobID:      snapshot.ID,
		Status:     snapshot.Status,
		OutputPath: snapshot.OutputPath,
		VideoURL:   snapshot.VideoURL,
		Passes:     snapshot.Passes,
		Err:        runErr,
	}, runErr
}

// runPass performs one extract, transcribe, detect, splice and remux cycle
// reading input and, when something was censored, writing target. The
// returned Pass has an empty Output when nothing was found.
func (s *CensorService) runPass(ctx context.Context, logger *slog.Logger, job *Job, ws string, k int, input, target string) (pass Pass, err error) {
	started := time.Now()
	pass = Pass{Index: k}

	audioPath := filepath.Join(ws, fmt.Sprintf("audio_%d.wav", k))
	speechPath := audioPath
	censoredPath := filepath.Join(ws, fmt.Sprintf("censored_%d.wav", k))

	defer func() {
		s.discard(ctx, logger, audioPath, speechPath, censoredPath)
		pass.Duration = since(started)
	}()

	if err := s.media.ExtractAudio(ctx, input, audioPath, s.sampleRate, 0); err != nil {
		return pass, fmt.Errorf("pass %d: extract audio: %w", k, err)
	}
	if s.speechSampleRate > 0 && s.speechSampleRate != s.sampleRate {
		speechPath = filepath.Join(ws, fmt.Sprintf("speech_%d.wav", k))
		if err := s.media.ExtractAudio(ctx, input, speechPath, s.speechSampleRate, 1); err != nil {
			return pass, fmt.Errorf("pass %d: extract speech track: %w", k, err)
		}
	}

	transcribeStart := time.Now()
	transcript, err := s.transcriber.Transcribe(ctx, speechPath)
	s.metrics.RecordTranscription(ctx, time.Since(transcribeStart))
	if err != nil {
		return pass, fmt.Errorf("pass %d: %w", k, err)
	}
	logger.Debug("transcribed",
		slog.Int("pass", k),
		slog.Int("words", transcript.WordCount()),
		slog.Duration("elapsed", since(transcribeStart)),
	)

	intervals := detect.Detect(transcript, s.lexicon, job.Tier)
	pass.Intervals = len(intervals)
	for _, iv := range intervals {
		pass.Words = append(pass.Words, iv.Word)
		logger.Info("offending word",
			slog.Int("pass", k),
			slog.String("word", iv.Word),
			slog.Float64("start", iv.Start),
			slog.Float64("end", iv.End),
		)
	}
	if len(intervals) == 0 {
		return pass, nil
	}

	waveform, err := audio.ReadWAVFile(audioPath)
	if err != nil {
		return pass, fmt.Errorf("pass %d: %w", k, err)
	}

	censored, warnings := splice.Censor(waveform, intervals, s.masker)
	for _, w := range warnings {
		pass.Warnings = append(pass.Warnings, w.String())
		logger.Warn("splice boundary clamped", slog.Int("pass", k), slog.String("detail", w.String()))
	}

	if err := audio.WriteWAVFile(censoredPath, censored); err != nil {
		return pass, fmt.Errorf("pass %d: %w", k, err)
	}
	if err := s.media.ReplaceAudio(ctx, input, censoredPath, target); err != nil {
		s.discard(ctx, logger, target)
		return pass, fmt.Errorf("pass %d: replace audio: %w", k, err)
	}
	if err := s.checkRemux(ctx, target, censored); err != nil {
		s.discard(ctx, logger, target)
		return pass, fmt.Errorf("pass %d: %w", k, err)
	}

	pass.Output = target
	return pass, nil
}

// checkRemux probes target and fails when it ends noticeably before the
// censored audio does.
func (s *CensorService) checkRemux(ctx context.Context, target string, censored audio.Waveform) error {
	got, err := s.media.GetMediaDuration(ctx, target)
	if err != nil {
		return fmt.Errorf("probe output: %w", err)
	}
	want := float64(censored.DurationMs()) / 1000
	if got+remuxTolerance < want {
		return fmt.Errorf("%w: %s runs %.3fs, censored audio %.3fs", ErrTruncatedOutput, filepath.Base(target), got, want)
	}
	return nil
}

// upload pushes the final output to S3 under censored/<job-id>/.
func (s *CensorService) upload(ctx context.Context, jobID, outputPath string) (string, error) {
	f, err := s.storage.Open(ctx, outputPath)
	if err != nil {
		return "", fmt.Errorf("open output for upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := path.Join("censored", jobID, filepath.Base(outputPath))
	url, err := s.storage.UploadToS3(ctx, key, f)
	if err != nil {
		return "", err
	}
	return url, nil
}

// cleanup removes the intermediates and the workspace. Failures are logged
// only.
func (s *CensorService) cleanup(ctx context.Context, logger *slog.Logger, ws string, intermediates []string) {
	s.discard(ctx, logger, intermediates...)
	if ws == "" {
		return
	}
	if err := s.storage.RemoveWorkspace(context.WithoutCancel(ctx), ws); err != nil {
		logger.Warn("failed to remove workspace",
			slog.String("workspace", ws),
			slog.String("error", fmt.Errorf("%w: %w", ErrArtifactCleanup, err).Error()),
		)
	}
}

// discard deletes paths, ignoring ones that do not exist.
func (s *CensorService) discard(ctx context.Context, logger *slog.Logger, paths ...string) {
	if len(paths) == 0 {
		return
	}
	if err := s.storage.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		logger.Warn("failed to remove artifacts",
			slog.String("error", fmt.Errorf("%w: %w", ErrArtifactCleanup, err).Error()),
		)
	}
}
