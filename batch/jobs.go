// Package batch evaluates many beatmaps described by a TOML job file.
package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"osupp/ruleset"
	"osupp/session"
)

// Job evaluates the same plays on every listed beatmap.
//
//	[[job]]
//	name = "dt-fc"
//	beatmaps = ["maps/blue-zenith.osu"]
//	beatmap_ids = [129891]
//	ruleset = "osu"
//	mods = ["HD", "DT"]
//	mod_options = ["DT_speed_change=1.3"]
//
//	[[job.request]]
//	accuracy = 98.5
//	misses = 1
type Job struct {
	Name       string   `toml:"name"`
	Beatmaps   []string `toml:"beatmaps"`
	BeatmapIDs []int    `toml:"beatmap_ids"`
	// Ruleset is a name or id; empty means the beatmap's own.
	Ruleset        string        `toml:"ruleset"`
	Mods           []string      `toml:"mods"`
	ModOptions     []string      `toml:"mod_options"`
	StrainTimeline *bool         `toml:"strain_timeline"`
	Requests       []RequestSpec `toml:"request"`
}

// RequestSpec is a ruleset-neutral play. Fields a ruleset does not use are
// ignored. Accuracy is a percentage.
type RequestSpec struct {
	Accuracy *float64 `toml:"accuracy" json:"accuracy,omitempty"`
	Combo    *int     `toml:"combo" json:"combo,omitempty"`
	Misses   int      `toml:"misses" json:"misses,omitempty"`
	Mehs     *int     `toml:"mehs" json:"mehs,omitempty"`
	Oks      *int     `toml:"oks" json:"oks,omitempty"`
	Goods    *int     `toml:"goods" json:"goods,omitempty"`
	Greats   *int     `toml:"greats" json:"greats,omitempty"`

	LargeTickMisses  int  `toml:"large_tick_misses" json:"large_tick_misses,omitempty"`
	SliderTailMisses int  `toml:"slider_tail_misses" json:"slider_tail_misses,omitempty"`
	LargeTickHits    *int `toml:"large_tick_hits" json:"large_tick_hits,omitempty"`
	SliderTailHits   *int `toml:"slider_tail_hits" json:"slider_tail_hits,omitempty"`
	SmallTickHits    *int `toml:"small_tick_hits" json:"small_tick_hits,omitempty"`
}

// Request builds the session request for rs.
func (r RequestSpec) Request(rs ruleset.ID) (session.Request, error) {
	switch rs {
	case ruleset.Osu:
		return session.OsuRequest{
			Accuracy:         r.Accuracy,
			Combo:            r.Combo,
			Misses:           r.Misses,
			Mehs:             r.Mehs,
			Oks:              r.Oks,
			LargeTickMisses:  r.LargeTickMisses,
			SliderTailMisses: r.SliderTailMisses,
			LargeTickHits:    r.LargeTickHits,
			SliderTailHits:   r.SliderTailHits,
		}, nil
	case ruleset.Taiko:
		return session.TaikoRequest{Accuracy: r.Accuracy, Combo: r.Combo, Misses: r.Misses, Oks: r.Oks}, nil
	case ruleset.Catch:
		return session.CatchRequest{
			Accuracy:      r.Accuracy,
			Combo:         r.Combo,
			Misses:        r.Misses,
			SmallTickHits: r.SmallTickHits,
			LargeTickHits: r.LargeTickHits,
		}, nil
	case ruleset.Mania:
		return session.ManiaRequest{
			Accuracy: r.Accuracy,
			Misses:   r.Misses,
			Mehs:     r.Mehs,
			Oks:      r.Oks,
			Goods:    r.Goods,
			Greats:   r.Greats,
		}, nil
	}
	return nil, fmt.Errorf("no request form for ruleset %s", rs)
}

func (j *Job) ruleset() (ruleset.ID, error) { return ruleset.Parse(j.Ruleset) }

func (j *Job) strain() bool {
	return j.StrainTimeline == nil || *j.StrainTimeline
}

type file struct {
	Jobs []Job `toml:"job"`
}

// LoadJobs reads and checks a job file.
func LoadJobs(path string) ([]Job, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("jobs %s: %w", path, err)
	}
	if und := md.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("jobs %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := validate(f.Jobs); err != nil {
		return nil, fmt.Errorf("jobs %s: %w", path, err)
	}
	return f.Jobs, nil
}

func validate(jobs []Job) error {
	if len(jobs) == 0 {
		return errors.New("no jobs")
	}
	seen := make(map[string]bool, len(jobs))
	for i, j := range jobs {
		if j.Name == "" {
			return fmt.Errorf("job %d has no name", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("job %q defined twice", j.Name)
		}
		seen[j.Name] = true
		if _, err := j.ruleset(); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
		if len(j.Beatmaps)+len(j.BeatmapIDs) == 0 {
			return fmt.Errorf("job %q lists no beatmaps", j.Name)
		}
	}
	return nil
}
