package qscript

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmEvaluator runs script bodies inside a WASM guest module, for hosts
// whose scripting runtime is compiled to WebAssembly. The guest must
// export:
//
//	qs_alloc(size) -> ptr
//	qs_free(ptr, size)
//	qs_eval(ptr, len) -> packed u64 (ptr << 32 | len) of the UTF-8 result
//
// The request written at ptr is the JSON encoding of wasmRequest. An
// empty result is reported as ErrUndefined.
type WasmEvaluator struct {
	rt    wazero.Runtime
	mod   api.Module
	ctx   context.Context
	alloc api.Function
	free  api.Function
	eval  api.Function
}

type wasmRequest struct {
	Body      string   `json:"body"`
	Tag       string   `json:"tag"`
	Classes   []string `json:"classes,omitempty"`
	Parent    string   `json:"parent,omitempty"`
	Slot      string   `json:"slot,omitempty"`
	Component string   `json:"component,omitempty"`
}

// NewWasmEvaluator instantiates the guest module and resolves its
// required exports.
func NewWasmEvaluator(ctx context.Context, wasmBytes []byte) (*WasmEvaluator, error) {
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	mod, err := r.Instantiate(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate evaluator module: %w", err)
	}

	alloc := mod.ExportedFunction("qs_alloc")
	free := mod.ExportedFunction("qs_free")
	eval := mod.ExportedFunction("qs_eval")
	if alloc == nil || free == nil || eval == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("missing required exports: qs_alloc, qs_free or qs_eval")
	}

	return &WasmEvaluator{rt: r, mod: mod, ctx: ctx, alloc: alloc, free: free, eval: eval}, nil
}

// Close releases the guest runtime.
func (w *WasmEvaluator) Close() error {
	return w.rt.Close(w.ctx)
}

// Evaluate implements Evaluator.
func (w *WasmEvaluator) Evaluate(body string, ectx *Context) (string, error) {
	req := wasmRequest{Body: body}
	if ectx != nil {
		req.Tag = ectx.Tag
		req.Classes = ectx.Classes
		req.Parent = ectx.Parent
		req.Slot = ectx.Slot
		req.Component = ectx.Component
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	results, err := w.alloc.Call(w.ctx, uint64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("qs_alloc failed: %w", err)
	}
	inPtr := results[0]
	if !w.mod.Memory().Write(uint32(inPtr), payload) {
		return "", fmt.Errorf("failed to write request to guest memory")
	}
	defer w.free.Call(w.ctx, inPtr, uint64(len(payload)))

	results, err = w.eval.Call(w.ctx, inPtr, uint64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("qs_eval failed: %w", err)
	}

	packed := results[0]
	ptr := uint32(packed >> 32)
	size := uint32(packed)
	if size == 0 {
		return "", ErrUndefined
	}
	out, ok := w.mod.Memory().Read(ptr, size)
	if !ok {
		return "", fmt.Errorf("failed to read result at %d (size %d)", ptr, size)
	}
	defer w.free.Call(w.ctx, uint64(ptr), uint64(size))

	return string(out), nil
}
