package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"PersonaPipeline/internal/domain"
)

// processItems drives each video through download and transcription, one at
// a time. A failing item is recorded and the loop moves on; only a cancelled
// context stops it early.
func (p *Pipeline) processItems(ctx context.Context, items []domain.ContentItem, logger *slog.Logger) ([]domain.ItemResult, error) {
	results := make([]domain.ItemResult, 0, len(items))
	total := len(items)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("item processing interrupted: %w", err)
		}
		if item.Status == domain.ContentAnalyzed {
			results = append(results, domain.ItemResult{
				ItemID:    item.ID,
				SourceURL: item.SourceURL,
				Title:     item.Title,
				Outcome:   domain.OutcomeSkipped,
				Reason:    "already analyzed",
			})
			continue
		}

		logger.Info("processing item", "index", i+1, "total", total, "item_id", item.ID, "title", item.Title)
		results = append(results, p.processItem(ctx, item, logger))
	}

	return results, nil
}

func (p *Pipeline) processItem(ctx context.Context, item domain.ContentItem, logger *slog.Logger) (result domain.ItemResult) {
	result = domain.ItemResult{
		ItemID:    item.ID,
		SourceURL: item.SourceURL,
		Title:     item.Title,
	}

	defer func() {
		if r := recover(); r != nil {
			result = p.failItem(ctx, result, fmt.Errorf("panic: %v", r), logger)
		}
	}()

	words, err := p.trackItem(ctx, item)
	if err != nil {
		return p.failItem(ctx, result, err, logger)
	}

	logger.Info("item transcribed", "item_id", item.ID, "words", words)
	result.Outcome = domain.OutcomeAnalyzed
	result.WordCount = words
	return result
}

// trackItem walks one item through downloading -> transcribing -> analyzed.
// The downloaded audio is released on every path.
func (p *Pipeline) trackItem(ctx context.Context, item domain.ContentItem) (int, error) {
	if err := p.setItemStatus(ctx, item.ID, domain.ContentDownloading); err != nil {
		return 0, err
	}

	audioPath, err := p.fetcher.FetchAudio(ctx, item.SourceURL)
	if err != nil {
		return 0, fmt.Errorf("download audio: %w", err)
	}
	if audioPath == "" {
		return 0, &ItemFailure{Reason: domain.MsgDownloadFailed}
	}
	defer p.releaseAudio(audioPath)

	if err := p.setItemStatus(ctx, item.ID, domain.ContentTranscribing); err != nil {
		return 0, err
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return 0, fmt.Errorf("transcribe audio: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return 0, &ItemFailure{Reason: domain.MsgTranscriptionFailed}
	}

	words := domain.WordCount(transcript)
	if err := p.repo.UpdateContentStatus(ctx, item.ID, domain.ContentUpdate{
		Status:     domain.ContentAnalyzed,
		Transcript: &transcript,
		WordCount:  &words,
	}); err != nil {
		return 0, fmt.Errorf("store transcript: %w", err)
	}

	return words, nil
}

func (p *Pipeline) failItem(ctx context.Context, result domain.ItemResult, cause error, logger *slog.Logger) domain.ItemResult {
	result.Outcome = domain.OutcomeFailed
	result.Reason = cause.Error()

	if isItemFailure(cause) {
		logger.Warn("item failed", "item_id", result.ItemID, "reason", result.Reason)
	} else {
		logger.Error("error processing item", "item_id", result.ItemID, "title", result.Title, "error", cause)
	}

	if err := p.repo.UpdateContentStatus(context.WithoutCancel(ctx), result.ItemID, domain.ContentUpdate{
		Status:       domain.ContentError,
		ErrorMessage: result.Reason,
	}); err != nil {
		logger.Error("record item failure", "item_id", result.ItemID, "error", err)
	}
	return result
}

func (p *Pipeline) setItemStatus(ctx context.Context, id int64, status domain.ContentStatus) error {
	if err := p.repo.UpdateContentStatus(ctx, id, domain.ContentUpdate{Status: status}); err != nil {
		return fmt.Errorf("set item status %s: %w", status, err)
	}
	return nil
}

func (p *Pipeline) releaseAudio(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("remove audio file", "path", path, "error", err)
	}
}
