// Package ytdlp downloads video audio and captions through the yt-dlp CLI.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Asset describes the files and metadata produced for one video.
type Asset struct {
	VideoID       string
	Title         string
	Channel       string
	Duration      int
	UploadDate    string
	Description   string
	ThumbnailURL  string
	AudioPath     string
	CaptionPath   string
	CaptionSource string // "manual" or "auto", empty when no captions
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Downloader shells out to yt-dlp, extracting mp3 audio and any caption
// track in the configured languages.
type Downloader struct {
	binary       string
	tempDir      string
	audioQuality int
	captionLangs []string
	retries      int
	logger       *slog.Logger
	run          commandRunner
}

func NewDownloader(binary, tempDir string, audioQuality int, captionLangs []string, retries int, logger *slog.Logger) *Downloader {
	return &Downloader{
		binary:       binary,
		tempDir:      tempDir,
		audioQuality: audioQuality,
		captionLangs: captionLangs,
		retries:      retries,
		logger:       logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
			}
			return stdout.Bytes(), nil
		},
	}
}

// Available reports whether the configured binary can be found.
func (d *Downloader) Available() bool {
	_, err := exec.LookPath(d.binary)
	return err == nil
}

// Download fetches audio and captions for url into the temp directory.
// Files are named after videoID so Cleanup can remove them later.
func (d *Downloader) Download(ctx context.Context, url, videoID string) (*Asset, error) {
	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	d.logger.Info("downloading video",
		slog.String("video_id", videoID),
		slog.String("url", url))

	args := []string{
		"-o", filepath.Join(d.tempDir, videoID+".%(ext)s"),
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", strconv.Itoa(d.audioQuality) + "K",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", strings.Join(d.captionLangs, ","),
		"--sub-format", "vtt",
		"--retries", strconv.Itoa(d.retries),
		"--print-json",
		"-q", "--no-warnings",
		url,
	}
	stdout, err := d.run(ctx, d.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}

	var meta struct {
		Title      string  `json:"title"`
		Channel    string  `json:"channel"`
		Uploader   string  `json:"uploader"`
		Duration   float64 `json:"duration"`
		UploadDate string  `json:"upload_date"`
		Thumbnail  string  `json:"thumbnail"`
		Descr      string  `json:"description"`
	}
	if err := json.Unmarshal(firstJSONLine(stdout), &meta); err != nil {
		return nil, fmt.Errorf("parse download metadata for %s: %w", videoID, err)
	}

	asset := &Asset{
		VideoID:      videoID,
		Title:        meta.Title,
		Channel:      meta.Channel,
		Duration:     int(meta.Duration),
		UploadDate:   meta.UploadDate,
		Description:  meta.Descr,
		ThumbnailURL: meta.Thumbnail,
	}
	if asset.Channel == "" {
		asset.Channel = meta.Uploader
	}

	audioPath := filepath.Join(d.tempDir, videoID+".mp3")
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio missing after download for %s: %w", videoID, err)
	}
	asset.AudioPath = audioPath

	asset.CaptionPath, asset.CaptionSource = d.findBestCaption(videoID)
	return asset, nil
}

// findBestCaption prefers an exact-language manual track; yt-dlp names
// auto-generated downloads with an "-orig" or ".auto" language suffix
// depending on version, so anything else found by glob counts as auto.
func (d *Downloader) findBestCaption(videoID string) (string, string) {
	for _, lang := range d.captionLangs {
		manual := filepath.Join(d.tempDir, videoID+"."+lang+".vtt")
		if _, err := os.Stat(manual); err == nil {
			return manual, "manual"
		}
	}
	for _, lang := range d.captionLangs {
		auto := filepath.Join(d.tempDir, videoID+"."+lang+"-orig.vtt")
		if _, err := os.Stat(auto); err == nil {
			return auto, "auto"
		}
	}
	matches, _ := filepath.Glob(filepath.Join(d.tempDir, videoID+".*.vtt"))
	if len(matches) > 0 {
		return matches[0], "auto"
	}
	return "", ""
}

// Cleanup removes every temp file produced for videoID.
func (d *Downloader) Cleanup(videoID string) {
	matches, err := filepath.Glob(filepath.Join(d.tempDir, videoID+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			d.logger.Warn("failed to remove temp file",
				slog.String("path", path), slog.Any("error", err))
		}
	}
}

// firstJSONLine isolates the metadata line when yt-dlp emits trailing
// progress noise on stdout.
func firstJSONLine(out []byte) []byte {
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return bytes.TrimSpace(out)
}
