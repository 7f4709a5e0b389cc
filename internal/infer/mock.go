package infer

import (
	"context"
	"fmt"
)

// Mock engines stand in for the real graphs when no sidecar runner is
// configured. They produce shape-correct, all-blank outputs so the daemon and
// its control surfaces can run end to end without model weights.

const (
	mockFeatureDim   = 128
	mockEncodedDim   = 640
	mockHopSamples   = 160
	mockSubsampling  = 8
	mockDurationBins = 5
)

type mockPreprocessor struct{}

// NewMockPreprocessor returns a preprocessor that emits zeroed mel features,
// one frame per 10 ms of 16 kHz input.
func NewMockPreprocessor() Engine { return &mockPreprocessor{} }

func (m *mockPreprocessor) Run(_ context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	wave, ok := inputs["waveforms"]
	if !ok {
		return nil, fmt.Errorf("mock preprocessor: missing waveforms input")
	}
	frames := len(wave.F32) / mockHopSamples
	if frames < 1 {
		frames = 1
	}
	features := make([]float32, frames*mockFeatureDim)
	return map[string]Tensor{
		"features":      F32Tensor([]int64{1, int64(frames), mockFeatureDim}, features),
		"features_lens": I64Tensor([]int64{1}, []int64{int64(frames)}),
	}, nil
}

func (m *mockPreprocessor) Close() error { return nil }

type mockEncoder struct{}

// NewMockEncoder returns an encoder that subsamples features 8x into zeroed
// embeddings.
func NewMockEncoder() Engine { return &mockEncoder{} }

func (m *mockEncoder) Run(_ context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	features, ok := inputs["audio_signal"]
	if !ok {
		return nil, fmt.Errorf("mock encoder: missing audio_signal input")
	}
	if len(features.Shape) != 3 {
		return nil, fmt.Errorf("mock encoder: unexpected feature rank %d", len(features.Shape))
	}
	frames := int(features.Shape[1])
	encoded := frames / mockSubsampling
	if encoded < 1 {
		encoded = 1
	}
	out := make([]float32, mockEncodedDim*encoded)
	return map[string]Tensor{
		"outputs":         F32Tensor([]int64{1, mockEncodedDim, int64(encoded)}, out),
		"encoded_lengths": I64Tensor([]int64{1}, []int64{int64(encoded)}),
	}, nil
}

func (m *mockEncoder) Close() error { return nil }

type mockDecoderJoint struct {
	vocabSize int
	blankID   int64
}

// NewMockDecoderJoint returns a joint network that always predicts blank with
// a single-frame advance, yielding an empty transcript.
func NewMockDecoderJoint(vocabSize int, blankID int64) Engine {
	return &mockDecoderJoint{vocabSize: vocabSize, blankID: blankID}
}

func (m *mockDecoderJoint) Run(_ context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	state1, ok := inputs["input_states_1"]
	if !ok {
		return nil, fmt.Errorf("mock decoder-joint: missing input_states_1")
	}
	state2, ok := inputs["input_states_2"]
	if !ok {
		return nil, fmt.Errorf("mock decoder-joint: missing input_states_2")
	}

	logits := make([]float32, m.vocabSize+mockDurationBins)
	logits[m.blankID] = 10
	logits[m.vocabSize] = 10 // duration bin 0

	return map[string]Tensor{
		"outputs":         F32Tensor([]int64{int64(len(logits))}, logits),
		"output_states_1": F32Tensor(state1.Shape, append([]float32(nil), state1.F32...)),
		"output_states_2": F32Tensor(state2.Shape, append([]float32(nil), state2.F32...)),
	}, nil
}

func (m *mockDecoderJoint) Close() error { return nil }
