package infer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execEngine runs inference through a sidecar command. Each call writes a
// JSON request on stdin and reads a JSON response from stdout; tensor data
// travels as base64-encoded little-endian bytes. The command holds the graph
// open between invocations or reloads it per call, that is its business.
type execEngine struct {
	cmd       []string
	graphPath string
	threads   int
	mu        sync.Mutex
}

type wireTensor struct {
	Shape []int64 `json:"shape"`
	DType string  `json:"dtype"`
	Data  string  `json:"data_base64"`
}

type execRequest struct {
	Graph   string                `json:"graph"`
	Threads int                   `json:"threads,omitempty"`
	Inputs  map[string]wireTensor `json:"inputs"`
}

type execResponse struct {
	Outputs map[string]wireTensor `json:"outputs"`
	Error   string                `json:"error,omitempty"`
}

// NewExecEngine builds an engine that shells out to command for every call,
// evaluating the graph at graphPath.
func NewExecEngine(command, graphPath string, threads int) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command is empty")
	}
	return &execEngine{cmd: args, graphPath: graphPath, threads: threads}, nil
}

func (e *execEngine) Run(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := execRequest{Graph: e.graphPath, Threads: e.threads, Inputs: make(map[string]wireTensor, len(inputs))}
	for name, tensor := range inputs {
		wire, err := marshalTensor(tensor)
		if err != nil {
			return nil, fmt.Errorf("encode input %q: %w", name, err)
		}
		req.Inputs[name] = wire
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal engine request: %w", err)
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("engine command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("engine reported error: %s", resp.Error)
	}

	outputs := make(map[string]Tensor, len(resp.Outputs))
	for name, wire := range resp.Outputs {
		tensor, err := unmarshalTensor(wire)
		if err != nil {
			return nil, fmt.Errorf("decode output %q: %w", name, err)
		}
		outputs[name] = tensor
	}
	return outputs, nil
}

func (e *execEngine) Close() error { return nil }

func marshalTensor(t Tensor) (wireTensor, error) {
	switch {
	case t.F32 != nil:
		raw := make([]byte, 4*len(t.F32))
		for i, v := range t.F32 {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
		}
		return wireTensor{Shape: t.Shape, DType: "f32", Data: base64.StdEncoding.EncodeToString(raw)}, nil
	case t.I32 != nil:
		raw := make([]byte, 4*len(t.I32))
		for i, v := range t.I32 {
			binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
		}
		return wireTensor{Shape: t.Shape, DType: "i32", Data: base64.StdEncoding.EncodeToString(raw)}, nil
	case t.I64 != nil:
		raw := make([]byte, 8*len(t.I64))
		for i, v := range t.I64 {
			binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
		}
		return wireTensor{Shape: t.Shape, DType: "i64", Data: base64.StdEncoding.EncodeToString(raw)}, nil
	default:
		return wireTensor{}, fmt.Errorf("tensor has no data")
	}
}

func unmarshalTensor(w wireTensor) (Tensor, error) {
	raw, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("decode tensor payload: %w", err)
	}
	switch w.DType {
	case "f32":
		if len(raw)%4 != 0 {
			return Tensor{}, fmt.Errorf("f32 payload not aligned")
		}
		data := make([]float32, len(raw)/4)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return Tensor{Shape: w.Shape, F32: data}, nil
	case "i32":
		if len(raw)%4 != 0 {
			return Tensor{}, fmt.Errorf("i32 payload not aligned")
		}
		data := make([]int32, len(raw)/4)
		for i := range data {
			data[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return Tensor{Shape: w.Shape, I32: data}, nil
	case "i64":
		if len(raw)%8 != 0 {
			return Tensor{}, fmt.Errorf("i64 payload not aligned")
		}
		data := make([]int64, len(raw)/8)
		for i := range data {
			data[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return Tensor{Shape: w.Shape, I64: data}, nil
	default:
		return Tensor{}, fmt.Errorf("unknown tensor dtype %q", w.DType)
	}
}
