package decoder

// Observer receives structured walk events. The walker itself stays
// side-effect-free; logging and metrics live behind this interface.
type Observer interface {
	// OnSkip is called once per instruction whose program is not
	// registered or whose program index cannot be resolved.
	OnSkip(programID string)

	// OnDecodeError is called once per instruction-local decode failure.
	OnDecodeError(programID string, err error)

	// OnSummary is called when a walk's sequence is exhausted.
	OnSummary(summary Summary)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnSkip(string)               {}
func (NopObserver) OnDecodeError(string, error) {}
func (NopObserver) OnSummary(Summary)           {}
