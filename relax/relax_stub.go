// relax_stub.go - fallback for architectures/build modes without a spin-wait hint.

//go:build (!amd64 && !arm64) || noasm || nocgo || !cgo

package relax

//go:nosplit
//go:inline
func CPU() {}
