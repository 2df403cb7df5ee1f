package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/homeswipe/internal/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Loose holds a scalar that sources emit either as a string or a number.
type Loose string

// UnmarshalJSON accepts strings, numbers and null.
func (l *Loose) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*l = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*l = Loose(str)
	case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
		return eris.Errorf("extract: expected scalar, got %.20s", s)
	default:
		*l = Loose(s)
	}
	return nil
}

// UnmarshalYAML accepts any scalar node.
func (l *Loose) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return eris.Errorf("extract: line %d: expected scalar", n.Line)
	}
	if n.Tag == "!!null" {
		*l = ""
		return nil
	}
	*l = Loose(n.Value)
	return nil
}

func (l Loose) String() string { return strings.TrimSpace(string(l)) }

// RawSnapshot is a listing as emitted by a source, before validation.
type RawSnapshot struct {
	URL        string   `json:"url" yaml:"url" validate:"required,url"`
	Price      Loose    `json:"price" yaml:"price"`
	Street     string   `json:"street" yaml:"street" validate:"required"`
	Town       string   `json:"town" yaml:"town"`
	Province   string   `json:"province" yaml:"province"`
	Beds       Loose    `json:"beds" yaml:"beds"`
	Baths      Loose    `json:"baths" yaml:"baths"`
	FloorArea  Loose    `json:"floor_area" yaml:"floor_area"`
	Lat        Loose    `json:"lat" yaml:"lat"`
	Lng        Loose    `json:"lng" yaml:"lng"`
	Images     []string `json:"images" yaml:"images"`
	ListedAt   Loose    `json:"listed_at" yaml:"listed_at"`
	ObservedAt Loose    `json:"observed_at" yaml:"observed_at"`
}

// Normalize validates r and converts it into a model.Snapshot. Optional
// fields that cannot be parsed are left nil; a missing or malformed URL or
// street rejects the snapshot. now is used when the source gives no
// observation time.
func (r RawSnapshot) Normalize(now time.Time) (model.Snapshot, error) {
	r.URL = strings.TrimSpace(r.URL)
	r.Street = strings.TrimSpace(r.Street)
	if err := validate.Struct(r); err != nil {
		return model.Snapshot{}, eris.Wrapf(ErrInvalid, "%q: %v", r.URL, err)
	}

	snap := model.Snapshot{
		SourceURL:  r.URL,
		Price:      ParsePrice(r.Price.String()),
		Street:     r.Street,
		Town:       strings.TrimSpace(r.Town),
		Province:   strings.TrimSpace(r.Province),
		Images:     cleanImages(r.Images),
		ListedAt:   parseTime(r.ListedAt.String()),
		ObservedAt: now.UTC(),
	}

	if n, ok := parseNumber(r.Beds.String()); ok && n >= 0 {
		snap.Beds = model.Int(int(n))
	}
	if n, ok := parseNumber(r.Baths.String()); ok && n >= 0 {
		snap.Baths = model.Float64(n)
	}
	if n, ok := parseNumber(r.FloorArea.String()); ok && n > 0 {
		snap.FloorArea = model.Int(int(n + 0.5))
	}
	if c := parseCoordinates(r.Lat.String(), r.Lng.String()); c != nil {
		snap.Coordinates = c
	}
	if t := parseTime(r.ObservedAt.String()); t != nil {
		snap.ObservedAt = *t
	}
	return snap, nil
}

func cleanImages(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, img := range in {
		img = strings.TrimSpace(img)
		if img == "" || validate.Var(img, "url") != nil {
			continue
		}
		if _, dup := seen[img]; dup {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
	}
	return out
}

func parseCoordinates(lat, lng string) *model.Coordinates {
	la, okLat := parseCoordinate(lat)
	ln, okLng := parseCoordinate(lng)
	if !okLat || !okLng {
		return nil
	}
	if validate.Var(la, "latitude") != nil || validate.Var(ln, "longitude") != nil {
		return nil
	}
	return &model.Coordinates{Lat: la, Lng: ln}
}
