package transcoder

import (
	"context"
	"errors"
)

// ErrTranscodeFailed is returned when the encoder exits unsuccessfully or writes nothing.
var ErrTranscodeFailed = errors.New("transcode failed")

// AudioOutput contains the result of an audio extraction.
type AudioOutput struct {
	// Path is the path to the encoded audio file.
	Path string
	// ContentType is the MIME type of the encoded audio.
	ContentType string
}

// Transcoder defines the interface for converting downloaded media.
// Implementations should shell out to an external encoder rather than
// encode in-process.
type Transcoder interface {
	// ExtractAudio re-encodes the audio track of inputPath into outputDir.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - inputPath: Absolute path to the downloaded media file
	//   - outputDir: Directory where the audio file will be written
	//
	// The output file keeps the input's base name with the configured extension.
	// The output directory must exist before calling this method.
	ExtractAudio(ctx context.Context, inputPath, outputDir string) (*AudioOutput, error)
}
