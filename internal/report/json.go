package report

import (
	"encoding/json"
	"io"
)

func WriteJSON(w io.Writer, r AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
