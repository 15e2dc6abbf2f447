package voiceprint

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"voiceclip/internal/services"
)

// speakerEmbedScript serves speechbrain speaker embeddings over stdin/stdout.
// Each request line is {"sample_rate": n, "samples": base64 little-endian
// float32}; each response line is {"embedding": [...]} or {"error": "..."}.
// The first line written is a readiness marker once the model is loaded.
const speakerEmbedScript = `#!/usr/bin/env python3
import argparse
import base64
import json
import sys
import warnings

warnings.filterwarnings("ignore")

import numpy as np
import torch
import torchaudio
from speechbrain.inference.speaker import EncoderClassifier

MODEL_RATE = 16000


def embed(classifier, device, request):
    raw = base64.b64decode(request["samples"])
    samples = np.frombuffer(raw, dtype="<f4").copy()
    if samples.size == 0:
        raise ValueError("empty window")
    wav = torch.from_numpy(samples).unsqueeze(0)
    rate = int(request.get("sample_rate", MODEL_RATE))
    if rate != MODEL_RATE:
        wav = torchaudio.functional.resample(wav, rate, MODEL_RATE)
    with torch.no_grad():
        emb = classifier.encode_batch(wav.to(device))
    return emb.squeeze().cpu().tolist()


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--model", required=True)
    parser.add_argument("--savedir", required=True)
    parser.add_argument("--device", default="cpu")
    args = parser.parse_args()

    device = args.device
    if device == "cuda" and not torch.cuda.is_available():
        device = "cpu"
    classifier = EncoderClassifier.from_hparams(
        source=args.model,
        savedir=args.savedir,
        run_opts={"device": device},
    )
    print(json.dumps({"ready": True, "model": args.model, "device": device}), flush=True)

    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            out = {"embedding": embed(classifier, device, json.loads(line))}
        except Exception as e:
            out = {"error": str(e)}
        print(json.dumps(out), flush=True)


if __name__ == "__main__":
    main()
`

// ScriptConfig configures the speechbrain embedding helper launched via uvx.
type ScriptConfig struct {
	Variant     Variant
	CUDAEnabled bool
	HFToken     string
	// ModelDir caches downloaded model files between runs.
	ModelDir string
	// ScriptDir receives the helper script. Defaults to a temp directory.
	ScriptDir string
	// Command overrides the launcher binary (default "uvx").
	Command string
}

const (
	uvxCommand   = "uvx"
	cudaIndexURL = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL = "https://pypi.org/simple"
)

type embedRequest struct {
	SampleRate int    `json:"sample_rate"`
	Samples    string `json:"samples"`
}

type embedResponse struct {
	Ready     bool      `json:"ready,omitempty"`
	Model     string    `json:"model,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ScriptEmbedder talks to a long-lived embedding helper process. A handle is
// not safe for concurrent use; wrap it with NewSerialized to share it.
type ScriptEmbedder struct {
	model  string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *tailBuffer

	broken error
	closed bool
}

// NewScriptFactory returns a Factory that starts one helper process per call.
func NewScriptFactory(cfg ScriptConfig) Factory {
	return func(ctx context.Context) (Embedder, error) {
		return StartScriptEmbedder(ctx, cfg)
	}
}

// StartScriptEmbedder launches the helper and waits for the model to load.
// The process is killed when ctx is cancelled.
func StartScriptEmbedder(ctx context.Context, cfg ScriptConfig) (*ScriptEmbedder, error) {
	scriptPath, err := writeScript(cfg.ScriptDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "embedding", "write helper script", "", err)
	}
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = uvxCommand
	}
	model := cfg.Variant.EmbeddingModel()

	cmd := exec.CommandContext(ctx, command, buildScriptArgs(cfg, scriptPath)...) //nolint:gosec
	cmd.Env = os.Environ()
	if token := strings.TrimSpace(cfg.HFToken); token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+token)
	}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	stderr := &tailBuffer{limit: 16 << 10}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("embedding helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("embedding helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "embedding", "start helper", command, err)
	}

	e := newScriptEmbedder(model, stdin, stdout)
	e.cmd = cmd
	e.stderr = stderr
	if err := e.handshake(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func newScriptEmbedder(model string, stdin io.WriteCloser, stdout io.Reader) *ScriptEmbedder {
	return &ScriptEmbedder{
		model:  model,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64<<10),
	}
}

// Model returns the speaker embedding model served by the helper.
func (e *ScriptEmbedder) Model() string {
	return e.model
}

func (e *ScriptEmbedder) handshake(ctx context.Context) error {
	resp, err := e.exchange(ctx, nil)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return services.Wrap(services.ErrExternalTool, "embedding", "load model", resp.Error, nil)
	}
	if !resp.Ready {
		return services.Wrap(services.ErrExternalTool, "embedding", "load model", "helper did not report ready", nil)
	}
	return nil
}

// Embed sends one window to the helper. Helper-reported failures wrap
// ErrOracle; a dead or unresponsive helper wraps ErrExternalTool and
// ErrUnavailable and poisons the handle.
func (e *ScriptEmbedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	if e.closed {
		return nil, services.Wrap(services.ErrExternalTool, "embedding", "embed", "handle closed", ErrUnavailable)
	}
	if e.broken != nil {
		return nil, e.broken
	}
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrOracle, "embedding", "embed", "empty window", nil)
	}
	line, err := json.Marshal(embedRequest{SampleRate: sampleRate, Samples: EncodeSamples(samples)})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}
	resp, err := e.exchange(ctx, append(line, '\n'))
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, services.Wrap(services.ErrOracle, "embedding", "embed", resp.Error, nil)
	}
	if len(resp.Embedding) == 0 {
		return nil, services.Wrap(services.ErrOracle, "embedding", "embed", "empty embedding", nil)
	}
	return resp.Embedding, nil
}

// exchange writes request (if any) and reads one response line. Cancellation
// abandons the helper because its stream position is no longer known.
func (e *ScriptEmbedder) exchange(ctx context.Context, request []byte) (embedResponse, error) {
	type reply struct {
		resp embedResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		if request != nil {
			if _, err := e.stdin.Write(request); err != nil {
				done <- reply{err: err}
				return
			}
		}
		raw, err := e.stdout.ReadBytes('\n')
		if err != nil {
			done <- reply{err: err}
			return
		}
		var resp embedResponse
		if err := json.Unmarshal(bytes.TrimSpace(raw), &resp); err != nil {
			done <- reply{err: fmt.Errorf("decode helper response: %w", err)}
			return
		}
		done <- reply{resp: resp}
	}()

	select {
	case <-ctx.Done():
		e.broken = services.Wrap(services.ErrExternalTool, "embedding", "helper stream", "abandoned after cancellation",
			fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err()))
		e.kill()
		return embedResponse{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			detail := ""
			if e.stderr != nil {
				detail = services.LastErrorLine(e.stderr.String())
			}
			e.broken = services.Wrap(services.ErrExternalTool, "embedding", "helper stream", detail,
				fmt.Errorf("%w: %w", ErrUnavailable, r.err))
			return embedResponse{}, e.broken
		}
		return r.resp, nil
	}
}

// Close stops the helper process.
func (e *ScriptEmbedder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	err := e.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("wait embedding helper: %w", err)
	}
	return nil
}

func (e *ScriptEmbedder) kill() {
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
}

func buildScriptArgs(cfg ScriptConfig, scriptPath string) []string {
	args := []string{
		"--quiet",
		"--with", "speechbrain",
		"--with", "torchaudio",
		"--with", "numpy",
	}
	if cfg.CUDAEnabled {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	}
	device := "cpu"
	if cfg.CUDAEnabled {
		device = "cuda"
	}
	modelDir := cfg.ModelDir
	if strings.TrimSpace(modelDir) == "" {
		modelDir = filepath.Join(os.TempDir(), "voiceclip-models")
	}
	model := cfg.Variant.EmbeddingModel()
	args = append(args, "python", scriptPath,
		"--model", model,
		"--savedir", filepath.Join(modelDir, filepath.Base(model)),
		"--device", device,
	)
	return args
}

var scriptOnce sync.Map

func writeScript(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "voiceclip-helpers")
	}
	path := filepath.Join(dir, "speaker_embed.py")
	if _, ok := scriptOnce.Load(path); ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(speakerEmbedScript), 0o644); err != nil {
		return "", err
	}
	scriptOnce.Store(path, struct{}{})
	return path, nil
}

// EncodeSamples packs samples as base64 little-endian float32.
func EncodeSamples(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSamples reverses EncodeSamples.
func DecodeSamples(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("sample payload length %d is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// tailBuffer keeps the most recent stderr output of the helper.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; t.limit > 0 && over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
