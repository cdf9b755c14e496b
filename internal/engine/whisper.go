package engine

import (
	"fmt"
	"io"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperLoader opens ggml model files with the whisper.cpp Go bindings.
type whisperLoader struct{}

func (whisperLoader) Load(path string) (Model, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("whisper model %q: %w", path, err)
	}
	return &whisperModel{model: model}, nil
}

// whisperModel adapts a whisper.cpp model to the Model interface.
type whisperModel struct {
	model whisper.Model
}

// Decode runs one greedy-decoding pass over the samples. The abort callback
// is consulted from the encoder-begin hook, the decoder's granule boundary,
// and once more after processing returns; the new-segment hook does not
// consult it.
func (w *whisperModel) Decode(pcm []float32, language string, abort func() bool) (string, string, error) {
	ctx, err := w.model.NewContext()
	if err != nil {
		return "", "", fmt.Errorf("create context: %w", err)
	}

	lang := "auto"
	if language != "" && language != "auto" {
		lang = language
	}
	if w.model.IsMultilingual() {
		if err := ctx.SetLanguage(lang); err != nil {
			return "", "", fmt.Errorf("set language %q: %w", lang, err)
		}
	}

	encoderBegin := func() bool { return !abort() }
	onSegment := func(whisper.Segment) {}

	if err := ctx.Process(pcm, encoderBegin, onSegment, nil); err != nil {
		if abort() {
			return "", "", ErrCancelled
		}
		return "", "", fmt.Errorf("process: %w", err)
	}
	if abort() {
		return "", "", ErrCancelled
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}
	text := strings.TrimSpace(strings.Join(segments, " "))

	detected := ctx.Language()
	if w.model.IsMultilingual() && lang == "auto" {
		detected = ctx.DetectedLanguage()
	}
	return text, detected, nil
}

func (w *whisperModel) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}
