package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/l10nmonster/lqa-boss-sub001/internal/validate"
)

// PageMetadata describes the screenshots shipped with a job and where each
// unit appears on them.
type PageMetadata struct {
	Pages []Page `json:"pages"`
}

// Page is one captured screenshot.
type Page struct {
	PageID      string    `json:"pageId"`
	ImageFile   string    `json:"imageFile,omitempty"`
	OriginalURL string    `json:"originalUrl,omitempty"`
	Segments    []Segment `json:"segments"`
}

// Segment is the on-page box of one unit, joined to it by GUID.
type Segment struct {
	GUID   string  `json:"guid"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageSegment is a Segment together with the page it belongs to.
type PageSegment struct {
	PageID string
	Segment
}

// SegmentsFor returns every on-page occurrence of guid, in page order.
func (m *PageMetadata) SegmentsFor(guid string) []PageSegment {
	if m == nil {
		return nil
	}
	var out []PageSegment
	for _, p := range m.Pages {
		for _, s := range p.Segments {
			if s.GUID == guid {
				out = append(out, PageSegment{PageID: p.PageID, Segment: s})
			}
		}
	}
	return out
}

func parsePages(data []byte) (*PageMetadata, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("empty payload")
	}
	var m PageMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Pages) == 0 {
		return nil, errors.New("no pages")
	}
	var errs validate.List
	for i, p := range m.Pages {
		prefix := fmt.Sprintf("pages[%d] (%s)", i, p.PageID)
		if strings.TrimSpace(p.PageID) == "" {
			errs.Add("%s: pageId must be non-empty", prefix)
		}
		for j, s := range p.Segments {
			sp := fmt.Sprintf("%s.segments[%d]", prefix, j)
			if strings.TrimSpace(s.GUID) == "" {
				errs.Add("%s: guid must be non-empty", sp)
			}
			validate.Rect(&errs, sp, s.X, s.Y, s.Width, s.Height)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}
