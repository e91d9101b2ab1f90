// Package render turns the state of a region into the artifacts consumed
// downstream: HTML fragments, pipe delimited text lines and JSON documents.
//
// Rendering is deterministic. The same input, including Input.Now, produces
// byte-identical artifacts.
package render

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name     string
	Category worldstate.Category
	Data     []byte
}

// Input is the state rendered for one region.
type Input struct {
	Snapshot *worldstate.Snapshot
	// View is the store state after the cycle applied its changesets.
	View *store.View
	// Progress holds invasion metrics by invasion id.
	Progress map[string]*worldstate.Progress
	Now      time.Time
}

// Output is the result of rendering a region.
type Output struct {
	Artifacts []Artifact

	// AlertsGCM and InvasionsGCM are the line formats sent to devices.
	AlertsGCM    string
	InvasionsGCM string
	// EarliestExpiry is the soonest expiry among rendered alerts, zero when
	// no alert was rendered.
	EarliestExpiry int64
}

// Artifact returns the named artifact.
func (o *Output) Artifact(name string) (Artifact, bool) {
	for _, a := range o.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

// Renderer renders region state using a name resolver.
type Renderer struct {
	names   names.Resolver
	printer *message.Printer
}

// New creates a Renderer.
func New(resolver names.Resolver) *Renderer {
	return &Renderer{
		names:   resolver,
		printer: message.NewPrinter(language.English),
	}
}

// Render produces every artifact of a region.
func (r *Renderer) Render(in Input) (*Output, error) {
	if in.Snapshot == nil {
		return nil, errors.NewValidationError("snapshot", nil, "nothing to render")
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.View == nil {
		in.View = &store.View{Region: in.Snapshot.Region}
	}

	out := &Output{}
	steps := []func(Input, *Output) error{
		r.alerts,
		r.invasions,
		r.news,
		r.flashSales,
		r.dailyDeals,
		r.voidTraders,
		r.sorties,
		r.fissures,
		r.persistentEnemies,
		r.library,
		r.badlands,
		r.notifications,
	}
	for _, step := range steps {
		if err := step(in, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (o *Output) add(category worldstate.Category, name string, data []byte) {
	o.Artifacts = append(o.Artifacts, Artifact{Name: name, Category: category, Data: data})
}

func (o *Output) addJSON(category worldstate.Category, name string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return errors.WrapParse("json", name, err)
	}
	o.add(category, name, data)
	return nil
}

// marshal encodes v without escaping HTML characters, since fragments of
// markup are part of the documents.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// n0 formats an integer with thousands separators.
func (r *Renderer) n0(v int) string {
	return r.printer.Sprintf("%d", v)
}

func (r *Renderer) planet(node string) string {
	planet, _ := r.names.Region(node)
	return planet
}

func (r *Renderer) region(node string) string {
	_, region := r.names.Region(node)
	return region
}

// byRegionThenActivation orders nodes by region name, activation and id.
func (r *Renderer) byRegionThenActivation(n int, node func(int) string, activation func(int) int64, id func(int) string) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		ra, rb := r.region(node(ia)), r.region(node(ib))
		if ra != rb {
			return ra < rb
		}
		if activation(ia) != activation(ib) {
			return activation(ia) < activation(ib)
		}
		return id(ia) < id(ib)
	})
	return idx
}
