//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/LiveProof/internal/challenge"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorInvalidHash
)

// deriveChallenge lets the capture page render the same chirps and strobes
// the server will look for.
// Returns: {error: number, data: {frequencies, timings, interval, minSpacing} | string}
func deriveChallenge(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: challengeHash")
	}
	if args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "challengeHash must be a string")
	}

	c, err := challenge.Derive(args[0].String())
	if err != nil {
		return makeErrorResponse(ErrorInvalidHash, fmt.Sprintf("Invalid challenge hash: %v", err))
	}

	data := js.Global().Get("Object").New()
	data.Set("frequencies", toJSArray(c.Frequencies))
	data.Set("timings", toJSArray(c.Timings))
	data.Set("interval", c.Interval)
	data.Set("minSpacing", challenge.MinSpacing(c))

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func toJSArray(xs []int) js.Value {
	arr := js.Global().Get("Array").New(len(xs))
	for i, x := range xs {
		arr.SetIndex(i, x)
	}
	return arr
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")

	done := make(chan struct{})

	js.Global().Set("deriveChallenge", js.FuncOf(deriveChallenge))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "window object is undefined")
	}

	if !console.IsUndefined() {
		console.Call("log", "LiveProof WASM module loaded")
	}

	<-done
}
