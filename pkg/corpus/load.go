package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Data is a decoded data file, ready for Build.
type Data struct {
	Groups   []Group
	Entities map[string]map[string]any
}

type rawData struct {
	Books      []rawBook                 `json:"books"`
	Characters map[string]map[string]any `json:"characters"`
}

type rawBook struct {
	Number   int          `json:"number"`
	Name     string       `json:"name"`
	Chapters []rawChapter `json:"chapters"`
}

type rawChapter struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Appearances []string `json:"appearances"`
	Active      []string `json:"active"`
	POV         string   `json:"pov"`
	Date        string   `json:"date"`
	Module      int      `json:"module"`
}

// Load reads and decodes the data file at path.
func Load(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	data, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Decode reads the books/characters JSON document.
func Decode(r io.Reader) (*Data, error) {
	var raw rawData
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	if raw.Characters == nil {
		return nil, fmt.Errorf("decoding data: missing characters table")
	}

	out := &Data{
		Groups:   make([]Group, 0, len(raw.Books)),
		Entities: raw.Characters,
	}
	for name, meta := range out.Entities {
		if meta == nil {
			out.Entities[name] = map[string]any{}
		}
	}

	for _, b := range raw.Books {
		g := Group{Number: b.Number, Name: b.Name, Events: make([]EventData, 0, len(b.Chapters))}
		for _, ch := range b.Chapters {
			g.Events = append(g.Events, EventData{
				ID:           ch.URL,
				Name:         ch.Name,
				Presence:     ch.Appearances,
				Active:       ch.Active,
				PrimaryActor: ch.POV,
				Date:         ch.Date,
				Module:       ch.Module,
			})
		}
		out.Groups = append(out.Groups, g)
	}
	return out, nil
}

// BuildIndex is Build over decoded data.
func (d *Data) BuildIndex(opts Options) (*Index, Diagnostics) {
	return Build(d.Groups, d.Entities, opts)
}
