package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"postflow/internal/ratelimit"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/queue"
	"postflow/pkg/storage"
)

// UploadAudio stores an audio file and queues it for transcription. The
// audio capability, per-file size cap and per-period minute quota are all
// checked before anything is stored.
func (a *App) UploadAudio(ctx context.Context, user domain.User, filename string, size int64, r io.Reader) (queue.JobStatus, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryTranscribe); err != nil {
		return queue.JobStatus{}, err
	}
	if a.objects == nil || a.jobs == nil || a.transcriber == nil {
		return queue.JobStatus{}, errValidation("audio transcription is not enabled on this deployment")
	}
	snap, err := a.planFor(user)
	if err != nil {
		return queue.JobStatus{}, err
	}
	if !snap.Capabilities.CanUseAudio {
		return queue.JobStatus{}, errPlanRequired("audio transcription requires a plan with audio")
	}
	if snap.Limits.MaxAudioFileBytes != nil && size > *snap.Limits.MaxAudioFileBytes {
		return queue.JobStatus{}, errQuota(fmt.Sprintf("audio file exceeds the plan limit of %d bytes", *snap.Limits.MaxAudioFileBytes))
	}
	if size > a.maxUpload {
		return queue.JobStatus{}, errValidation("audio file exceeds the upload size limit")
	}
	if snap.Limits.AudioMinutesPerMonth != nil {
		usage, ok, err := a.store.GetAudioUsage(user.ID)
		if err != nil {
			return queue.JobStatus{}, fmt.Errorf("load audio usage: %w", err)
		}
		if ok && a.now().Before(usage.PeriodEnd) && usage.MinutesUsed >= *snap.Limits.AudioMinutesPerMonth {
			return queue.JobStatus{}, errQuota(fmt.Sprintf("audio minute limit of %d reached for this period", *snap.Limits.AudioMinutesPerMonth))
		}
	}
	key := storage.AudioKey(user.ID, filename)
	if err := a.objects.Put(ctx, key, r, size, "application/octet-stream"); err != nil {
		return queue.JobStatus{}, fmt.Errorf("store audio: %w", err)
	}
	job, err := a.jobs.Enqueue(ctx, user.ID, key, filename)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("enqueue transcription: %w", err)
	}
	return job, nil
}

// TranscriptionJob returns one of the user's transcription jobs.
func (a *App) TranscriptionJob(ctx context.Context, user domain.User, jobID string) (queue.JobStatus, error) {
	if a.jobs == nil {
		return queue.JobStatus{}, errNotFound("job not found")
	}
	job, ok, err := a.jobs.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("load job: %w", err)
	}
	if !ok || job.UserID != user.ID {
		return queue.JobStatus{}, errNotFound("job not found")
	}
	return job, nil
}

// HandleTranscriptionJob is the queue worker: it streams the stored audio
// through the transcriber, books the consumed minutes, and cleans up the
// object. Returning an error lets the queue retry.
func (a *App) HandleTranscriptionJob(ctx context.Context, job queue.JobStatus) (queue.TranscriptionResult, error) {
	rc, err := a.objects.Get(ctx, job.ObjectKey)
	if err != nil {
		return queue.TranscriptionResult{}, fmt.Errorf("fetch audio: %w", err)
	}
	defer rc.Close()
	transcription, err := a.transcriber.Transcribe(ctx, job.Filename, rc)
	if err != nil {
		return queue.TranscriptionResult{}, fmt.Errorf("transcribe: %w", err)
	}
	minutes := int(math.Ceil(transcription.DurationSeconds / 60))
	if minutes < 1 {
		minutes = 1
	}
	if err := a.addAudioMinutes(job.UserID, minutes); err != nil {
		slog.Warn("audio usage bookkeeping failed", "user_id", job.UserID, "err", err)
	}
	if err := a.objects.Delete(ctx, job.ObjectKey); err != nil {
		slog.Warn("audio object cleanup failed", "object_key", job.ObjectKey, "err", err)
	}
	a.publisher.Publish(ctx, events.Event{
		Type:   events.TypeTranscriptionDone,
		UserID: job.UserID,
		Metadata: map[string]string{
			"job_id":  job.ID,
			"minutes": fmt.Sprintf("%d", minutes),
		},
	})
	return queue.TranscriptionResult{Text: transcription.Text, Minutes: minutes}, nil
}
