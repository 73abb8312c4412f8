package driver

import (
	"encoding/json"
	"fmt"

	"klibexport/internal/diag"
	"klibexport/internal/observ"
)

// timingReport is the JSON note of the OB6001 diagnostic.
type timingReport struct {
	Kind    string `json:"kind"`
	Modules int    `json:"modules"`
	Cached  int    `json:"cached"`
	observ.Report
}

// appendTimingDiagnostic adds OB6001 even when the bag is already full.
func appendTimingDiagnostic(bag *diag.Bag, rep timingReport) {
	if bag == nil {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("%s: %.2f ms for %d modules (%d cached)", rep.Kind, rep.TotalMS, rep.Modules, rep.Cached)
	if rep.Slowest != "" {
		msg += ", slowest phase " + rep.Slowest
	}
	entry := diag.New(diag.SevInfo, diag.ObsTimings, diag.Subject{}, msg).
		WithNote(diag.Subject{}, string(data))
	if !bag.Add(entry) {
		// лимит не должен скрывать тайминги
		overflow := diag.NewBag(0)
		overflow.Add(entry)
		bag.Merge(overflow)
	}
}
