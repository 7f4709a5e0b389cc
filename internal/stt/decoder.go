package stt

import (
	"context"
	"fmt"

	"github.com/ambiware-labs/murmur/internal/infer"
	"github.com/ambiware-labs/murmur/internal/model"
)

// Decoder memory dimensions for the Parakeet TDT prediction network: two
// LSTM layers, batch 1, hidden size 640.
const (
	lstmLayers = 2
	lstmHidden = 640
)

// maxEmissionsPerFrame caps how many tokens may be emitted at one encoder
// frame before the pointer is forced forward.
const maxEmissionsPerFrame = 10

// Tensor names are part of the model artifact contract.
const (
	inWaveforms     = "waveforms"
	inWaveformsLens = "waveforms_lens"
	outFeatures     = "features"
	outFeaturesLens = "features_lens"

	inAudioSignal     = "audio_signal"
	inFeatureLength   = "length"
	outEmbeddings     = "outputs"
	outEncodedLengths = "encoded_lengths"

	inEncoderOutputs = "encoder_outputs"
	inTargets        = "targets"
	inTargetLength   = "target_length"
	inStates1        = "input_states_1"
	inStates2        = "input_states_2"
	outJoint         = "outputs"
	outStates1       = "output_states_1"
	outStates2       = "output_states_2"
)

// Transcribe runs the full pipeline over one utterance: preprocess, encode,
// then frame-synchronous greedy TDT decode. Empty input short-circuits to an
// empty transcript with zero engine calls. Transcription is all-or-nothing:
// any engine failure aborts the utterance without touching loaded engines.
func Transcribe(ctx context.Context, pipe *model.Pipeline, samples []float32) (string, error) {
	result, err := decodeUtterance(ctx, pipe, samples)
	if err != nil {
		return "", err
	}
	return pipe.Vocab.Detokenize(result.tokens), nil
}

// decodeResult carries the emitted token ids plus the frame pointer observed
// at each decode step (the latter is what the decode tests assert on).
type decodeResult struct {
	tokens []int64
	frames []int
}

func decodeUtterance(ctx context.Context, pipe *model.Pipeline, samples []float32) (decodeResult, error) {
	if len(samples) == 0 {
		return decodeResult{}, nil
	}

	sampleCount := int64(len(samples))
	preOut, err := pipe.Preprocessor.Run(ctx, map[string]infer.Tensor{
		inWaveforms:     infer.F32Tensor([]int64{1, sampleCount}, samples),
		inWaveformsLens: infer.I64Tensor([]int64{1}, []int64{sampleCount}),
	})
	if err != nil {
		return decodeResult{}, fmt.Errorf("preprocessor: %w", err)
	}
	features, ok := preOut[outFeatures]
	if !ok {
		return decodeResult{}, fmt.Errorf("preprocessor: missing %s output", outFeatures)
	}
	featureLens, ok := preOut[outFeaturesLens]
	if !ok {
		return decodeResult{}, fmt.Errorf("preprocessor: missing %s output", outFeaturesLens)
	}

	encOut, err := pipe.Encoder.Run(ctx, map[string]infer.Tensor{
		inAudioSignal:   features,
		inFeatureLength: featureLens,
	})
	if err != nil {
		return decodeResult{}, fmt.Errorf("encoder: %w", err)
	}
	embeddings, ok := encOut[outEmbeddings]
	if !ok || embeddings.F32 == nil {
		return decodeResult{}, fmt.Errorf("encoder: missing %s output", outEmbeddings)
	}
	if len(embeddings.Shape) != 3 {
		return decodeResult{}, fmt.Errorf("encoder: unexpected output rank %d", len(embeddings.Shape))
	}
	encodedLen, err := firstInt(encOut[outEncodedLengths])
	if err != nil {
		return decodeResult{}, fmt.Errorf("encoder: %s: %w", outEncodedLengths, err)
	}

	dim := int(embeddings.Shape[1])
	frames := int(embeddings.Shape[2])
	return decodeFrames(ctx, pipe.DecoderJoint, embeddings.F32, dim, frames, int(encodedLen), pipe.Vocab.Size(), pipe.Vocab.BlankID())
}

// decodeFrames is the TDT greedy-decode loop. Each step predicts both the
// most likely token and how many encoder frames to advance. Recurrent state
// is overwritten only when a non-blank token is emitted.
func decodeFrames(ctx context.Context, joint infer.Engine, embeddings []float32, dim, frames, encodedLen, vocabSize int, blankID int64) (decodeResult, error) {
	var result decodeResult

	state1 := make([]float32, lstmLayers*lstmHidden)
	state2 := make([]float32, lstmLayers*lstmHidden)

	limit := encodedLen
	if frames < limit {
		limit = frames
	}

	cur := cursor{}
	for cur.frame < limit {
		result.frames = append(result.frames, cur.frame)

		// Embeddings are [1, dim, frames] row-major; slice out frame t.
		frame := make([]float32, dim)
		for d := 0; d < dim; d++ {
			frame[d] = embeddings[d*frames+cur.frame]
		}

		label := blankID
		if n := len(result.tokens); n > 0 {
			label = result.tokens[n-1]
		}

		out, err := joint.Run(ctx, map[string]infer.Tensor{
			inEncoderOutputs: infer.F32Tensor([]int64{1, int64(dim), 1}, frame),
			inTargets:        infer.I32Tensor([]int64{1, 1}, []int32{int32(label)}),
			inTargetLength:   infer.I32Tensor([]int64{1}, []int32{1}),
			inStates1:        infer.F32Tensor([]int64{lstmLayers, 1, lstmHidden}, state1),
			inStates2:        infer.F32Tensor([]int64{lstmLayers, 1, lstmHidden}, state2),
		})
		if err != nil {
			return decodeResult{}, fmt.Errorf("decoder-joint at frame %d: %w", cur.frame, err)
		}

		logits, ok := out[outJoint]
		if !ok || logits.F32 == nil {
			return decodeResult{}, fmt.Errorf("decoder-joint: missing %s output", outJoint)
		}
		if len(logits.F32) < vocabSize {
			return decodeResult{}, fmt.Errorf("decoder-joint: output has %d logits, need at least %d", len(logits.F32), vocabSize)
		}

		token := int64(argmax(logits.F32[:vocabSize]))
		step := 0
		if durations := logits.F32[vocabSize:]; len(durations) > 0 {
			step = argmax(durations)
		}

		emitted := token != blankID
		if emitted {
			next1 := out[outStates1]
			next2 := out[outStates2]
			if len(next1.F32) != len(state1) || len(next2.F32) != len(state2) {
				return decodeResult{}, fmt.Errorf("recurrent state size mismatch: got %d/%d, want %d",
					len(next1.F32), len(next2.F32), len(state1))
			}
			copy(state1, next1.F32)
			copy(state2, next2.F32)
			result.tokens = append(result.tokens, token)
		}

		cur = advance(cur, emitted, step)
	}

	return result, nil
}

// cursor is the decode-loop position: the encoder frame pointer plus the
// count of consecutive emissions at that frame.
type cursor struct {
	frame     int
	emissions int
}

// advance applies the frame-advance policy for one decode step. The branches
// are mutually exclusive, in priority order: a positive duration prediction
// advances by that many frames; otherwise blank or the same-frame emission
// cap advances by one; otherwise the pointer stays for another emission at
// the same frame. The emission count resets whenever the pointer moves.
func advance(c cursor, emitted bool, step int) cursor {
	if emitted {
		c.emissions++
	}
	switch {
	case step > 0:
		return cursor{frame: c.frame + step}
	case !emitted || c.emissions >= maxEmissionsPerFrame:
		return cursor{frame: c.frame + 1}
	default:
		return c
	}
}

// argmax returns the index of the greatest value; ties break to the lowest
// index under the ascending scan.
func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func firstInt(t infer.Tensor) (int64, error) {
	switch {
	case len(t.I64) > 0:
		return t.I64[0], nil
	case len(t.I32) > 0:
		return int64(t.I32[0]), nil
	default:
		return 0, fmt.Errorf("tensor holds no integer data")
	}
}
