package domain

import "strconv"

// Part is one independently selectable unit of multi-part content.
type Part struct {
	PartNumber int     `json:"part_number"`
	Title      string  `json:"title,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	URL        string  `json:"url,omitempty"`
}

// ID returns the canonical string identifier used by selections.
func (p Part) ID() string {
	return strconv.Itoa(p.PartNumber)
}

// MultiPartInfo lists the parts a source URL resolves to.
type MultiPartInfo struct {
	MainURL    string `json:"main_url,omitempty"`
	MainTitle  string `json:"main_title,omitempty"`
	TotalParts int    `json:"total_parts,omitempty"`
	Parts      []Part `json:"parts"`
}

// PartIDs returns the identifiers of all parts in listing order.
func (i MultiPartInfo) PartIDs() []string {
	ids := make([]string, 0, len(i.Parts))
	for _, p := range i.Parts {
		ids = append(ids, p.ID())
	}
	return ids
}

// MultiPartCheck is the response of the multi-part probe.
type MultiPartCheck struct {
	IsMultiPart bool           `json:"is_multipart"`
	Info        *MultiPartInfo `json:"info,omitempty"`
}
