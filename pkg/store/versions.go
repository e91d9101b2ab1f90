package store

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Versions returns the detected build labels of a region, newest first.
func (r *Regional) Versions() ([]worldstate.VersionRecord, error) {
	path := filepath.Join(r.dir, constants.VersionHistoryFile)
	data, err := readIfExists(path)
	if err != nil || data == nil {
		return nil, err
	}
	var history []worldstate.VersionRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return history, nil
}

// AppendVersion records a build label transition and regenerates the
// markdown changelog.
func (r *Regional) AppendVersion(rec worldstate.VersionRecord) error {
	history, err := r.Versions()
	if err != nil {
		return err
	}
	history = append(history, rec)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].DetectTime > history[j].DetectTime
	})

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return errors.WrapIO("encode", constants.VersionHistoryFile, err)
	}
	if err := WriteFileAtomic(filepath.Join(r.dir, constants.VersionHistoryFile), data); err != nil {
		return err
	}

	changelog, err := versionChangelog(r.Region, history)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(r.dir, constants.VersionChangelog), changelog)
}

func versionChangelog(region worldstate.Region, history []worldstate.VersionRecord) ([]byte, error) {
	rows := make([][]string, 0, len(history))
	for _, v := range history {
		rows = append(rows, []string{
			time.Unix(v.DetectTime, 0).UTC().Format(time.RFC3339),
			v.BuildLabel,
		})
	}

	var buf bytes.Buffer
	err := md.NewMarkdown(&buf).
		H2("Build history (" + region.String() + ")").
		PlainText("Build labels in the order they were first seen in the feed, newest first.").
		LF().
		Table(md.TableSet{
			Header: []string{"Detected", "Build label"},
			Rows:   rows,
		}).
		Build()
	if err != nil {
		return nil, errors.WrapIO("render", constants.VersionChangelog, err)
	}
	return buf.Bytes(), nil
}
