// Package coalesce turns raw change signals into debounced recompute
// requests and delays change notifications.
package coalesce

import (
	"context"
	"strings"
	"sync"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// SignalKind classifies a raw change signal.
type SignalKind uint8

const (
	ContextChanged SignalKind = iota
	RegistrationChanged
	DiagnosticsChanged
	TextChanged

	signalKindCount
)

func (k SignalKind) String() string {
	switch k {
	case ContextChanged:
		return "context"
	case RegistrationChanged:
		return "registration"
	case DiagnosticsChanged:
		return "diagnostics"
	case TextChanged:
		return "text"
	}
	return "unknown"
}

// Signal is one raw change notification. Empty Kinds means every kind is
// affected.
type Signal struct {
	Kind     SignalKind
	Document source.DocumentID
	Kinds    diag.KindSet
}

// Reasons is the set of signal kinds folded into one request.
type Reasons uint8

func (r Reasons) With(k SignalKind) Reasons { return r | 1<<k }

func (r Reasons) Has(k SignalKind) bool { return r&(1<<k) != 0 }

func (r Reasons) String() string {
	var parts []string
	for k := SignalKind(0); k < signalKindCount; k++ {
		if r.Has(k) {
			parts = append(parts, k.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Merge fans several signal streams into one. The output closes once every
// input is closed or ctx is done.
func Merge(ctx context.Context, inputs ...<-chan Signal) <-chan Signal {
	out := make(chan Signal)
	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for _, in := range inputs {
		go func(in <-chan Signal) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case s, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- s:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
