//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/spatial"
)

func errorValue(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

func floatsToJS(vs []float64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// chooseBreaks takes a JSON array of numbers (nulls allowed) and a class
// count, and returns {method, breaks, precision}.
func chooseBreaks(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorValue("expected (valuesJSON, k)")
	}

	var raw []*float64
	if err := json.Unmarshal([]byte(args[0].String()), &raw); err != nil {
		return errorValue("failed to parse values: %v", err)
	}
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			values = append(values, *v)
		}
	}

	breaks, method := classify.ChooseBreaks(values, args[1].Int())
	return map[string]any{
		"method":    string(method),
		"breaks":    floatsToJS(breaks),
		"precision": classify.Precision(breaks),
	}
}

// normalizeBBox takes a JSON box in array or pair form and returns it as
// [minLng, minLat, maxLng, maxLat], or null when it is not a valid box.
//
// JSON arrays always go through the lat/lng swap heuristic, so the result is
// not a fixed point: [29,40.9,29.1,41] comes back as [40.9,29,41,29.1], and
// passing that back in swaps it again. Callers keep the first result instead
// of normalizing twice.
func normalizeBBox(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorValue("expected (bboxJSON)")
	}

	var raw any
	if err := json.Unmarshal([]byte(args[0].String()), &raw); err != nil {
		return errorValue("failed to parse bbox: %v", err)
	}
	b, ok := spatial.NormalizeBoundingBox(raw)
	if !ok {
		return js.Null()
	}
	a := b.Array()
	return floatsToJS(a[:])
}

// classIndex returns the class of value under a JSON breaks array, -1 when
// the value cannot be classified.
func classIndex(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorValue("expected (value, breaksJSON)")
	}

	var breaks []float64
	if err := json.Unmarshal([]byte(args[1].String()), &breaks); err != nil {
		return errorValue("failed to parse breaks: %v", err)
	}
	return classify.ClassIndexOf(args[0].Float(), breaks)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("riskmapChooseBreaks", js.FuncOf(chooseBreaks))
	js.Global().Set("riskmapNormalizeBBox", js.FuncOf(normalizeBBox))
	js.Global().Set("riskmapClassIndex", js.FuncOf(classIndex))

	fmt.Println("riskmap WASM module loaded")
	<-c
}
