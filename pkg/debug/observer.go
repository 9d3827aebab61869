package debug

import (
	"encoding/hex"
	"fmt"
)

// WireObserver dumps upstream frame bytes and translated events for the
// "framing" and "streaming" debug categories. It satisfies
// provider.Observer and is wired into the upstream client only when one
// of those categories is enabled.
type WireObserver struct{}

// ObserveRaw hex-dumps each chunk read from the upstream connection.
func (WireObserver) ObserveRaw(p []byte) {
	if !TraceIsEnabled("framing") {
		Log("framing", "upstream chunk", "bytes", len(p))
		return
	}
	Raw("framing", fmt.Sprintf("<- upstream %d bytes\n%s", len(p), hex.Dump(p)))
}

// ObserveTranslated prints each serialized stream event.
func (WireObserver) ObserveTranslated(p []byte) {
	if !TraceIsEnabled("streaming") {
		Log("streaming", "translated event", "bytes", len(p))
		return
	}
	Raw("streaming", "-> "+string(p))
}

// WireObserverEnabled reports whether any wire-level category is on.
// Used at startup to decide whether to attach a WireObserver at all.
func WireObserverEnabled() bool {
	return Enabled("framing") || Enabled("streaming")
}
