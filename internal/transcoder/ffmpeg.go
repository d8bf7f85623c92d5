package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegConfig holds configuration for the FFmpeg transcoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// AudioCodec is the audio codec to use.
	// Default: libmp3lame
	AudioCodec string

	// AudioBitrate is the target audio bitrate passed to -b:a.
	// Default: 192k
	AudioBitrate string

	// AudioExtension is the extension of the output file, without the dot.
	// Default: mp3
	AudioExtension string
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:     "ffmpeg",
		AudioCodec:     "libmp3lame",
		AudioBitrate:   "192k",
		AudioExtension: "mp3",
	}
}

var audioContentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"opus": "audio/ogg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
}

// FFmpegTranscoder implements Transcoder using FFmpeg CLI.
type FFmpegTranscoder struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegTranscoder implements Transcoder.
var _ Transcoder = (*FFmpegTranscoder)(nil)

// NewFFmpegTranscoder creates a new FFmpeg-based transcoder.
func NewFFmpegTranscoder(cfg FFmpegConfig) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		config: cfg,
	}
}

// ExtractAudio drops the video stream and re-encodes audio using FFmpeg.
// It executes FFmpeg as a subprocess and waits for completion.
func (t *FFmpegTranscoder) ExtractAudio(ctx context.Context, inputPath, outputDir string) (*AudioOutput, error) {
	if err := t.validateInput(inputPath); err != nil {
		return nil, err
	}

	if err := t.validateOutputDir(outputDir); err != nil {
		return nil, err
	}

	outputPath := t.outputPath(inputPath, outputDir)
	if outputPath == inputPath {
		return nil, fmt.Errorf("output would overwrite input: %s", inputPath)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.config.FFmpegPath, t.buildAudioArgs(inputPath, outputPath)...)
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcoding cancelled: %w", ctx.Err())
		}
		if tail := lastLine(stderr.String()); tail != "" {
			return nil, fmt.Errorf("%w: ffmpeg: %s: %w", ErrTranscodeFailed, tail, err)
		}
		return nil, fmt.Errorf("%w: ffmpeg: %w", ErrTranscodeFailed, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return nil, fmt.Errorf("%w: no output: %w", ErrTranscodeFailed, err)
	}

	return &AudioOutput{
		Path:        outputPath,
		ContentType: t.contentType(),
	}, nil
}

// validateInput checks if the input file exists and is readable.
func (t *FFmpegTranscoder) validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}

// validateOutputDir checks if the output directory exists.
func (t *FFmpegTranscoder) validateOutputDir(outputDir string) error {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", outputDir)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", outputDir)
	}

	return nil
}

// outputPath derives the audio file path from the input's base name.
func (t *FFmpegTranscoder) outputPath(inputPath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outputDir, base+"."+t.config.AudioExtension)
}

// buildAudioArgs constructs the FFmpeg command arguments.
func (t *FFmpegTranscoder) buildAudioArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn", // Drop video
		"-c:a", t.config.AudioCodec,
		"-b:a", t.config.AudioBitrate,
		"-y", // Overwrite output files without asking
		outputPath,
	}
}

func (t *FFmpegTranscoder) contentType() string {
	if ct, ok := audioContentTypes[t.config.AudioExtension]; ok {
		return ct
	}
	return "application/octet-stream"
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
