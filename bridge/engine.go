package bridge

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"osupp/beatmap"
	"osupp/engine"
	"osupp/hitresult"
	"osupp/ruleset"
)

var _ engine.Engine = (*Client)(nil)

func (c *Client) OpenBeatmap(ctx context.Context, path string) (*engine.Beatmap, error) {
	res, err := c.call(ctx, "open_beatmap", struct {
		Path string `json:"path"`
	}{path})
	if err != nil {
		return nil, err
	}
	rs, err := ruleset.FromInt(int(res.Get("ruleset_id").Int()))
	if err != nil {
		return nil, fmt.Errorf("bridge: open_beatmap: %w", err)
	}
	return &engine.Beatmap{
		Handle:  engine.Handle(res.Get("beatmap").String()),
		Info:    engine.Handle(res.Get("info").String()),
		Ruleset: rs,
	}, nil
}

type modsArgs struct {
	Ruleset string   `json:"ruleset"`
	Mods    []string `json:"mods"`
	Options []string `json:"mod_options"`
}

func (c *Client) ParseMods(ctx context.Context, rs ruleset.ID, acronyms, options []string) (*engine.ModSet, error) {
	args := modsArgs{Ruleset: rs.ShortName(), Mods: acronyms, Options: options}
	if args.Mods == nil {
		args.Mods = []string{}
	}
	if args.Options == nil {
		args.Options = []string{}
	}
	res, err := c.call(ctx, "parse_mods", args)
	if err != nil {
		return nil, err
	}

	set := &engine.ModSet{Handle: engine.Handle(res.Get("handle").String())}
	for _, m := range res.Get("mods").Array() {
		mod := engine.Mod{Acronym: m.Get("acronym").String(), Settings: map[string]any{}}
		m.Get("settings").ForEach(func(k, v gjson.Result) bool {
			mod.Settings[k.String()] = v.Value()
			return true
		})
		set.Mods = append(set.Mods, mod)
	}
	return set, nil
}

func (c *Client) ModSettings(ctx context.Context, rs ruleset.ID) ([]engine.ModDescriptor, error) {
	res, err := c.call(ctx, "mod_settings", struct {
		Ruleset string `json:"ruleset"`
	}{rs.ShortName()})
	if err != nil {
		return nil, err
	}

	mods := res.Get("mods").Array()
	out := make([]engine.ModDescriptor, 0, len(mods))
	for _, m := range mods {
		d := engine.ModDescriptor{Acronym: m.Get("acronym").String()}
		for _, s := range m.Get("settings").Array() {
			d.Settings = append(d.Settings, engine.SettingDescriptor{
				Name:        s.Get("name").String(),
				Type:        s.Get("type").String(),
				IsEnum:      s.Get("is_enum").Bool(),
				Label:       s.Get("label").String(),
				Description: s.Get("description").String(),
			})
		}
		out = append(out, d)
	}
	return out, nil
}

type beatmapArgs struct {
	Beatmap engine.Handle `json:"beatmap"`
	Ruleset string        `json:"ruleset,omitempty"`
	Mods    engine.Handle `json:"mods,omitempty"`
}

func newBeatmapArgs(b *engine.Beatmap, rs ruleset.ID, mods *engine.ModSet) beatmapArgs {
	args := beatmapArgs{Beatmap: b.Handle}
	if rs != ruleset.Auto {
		args.Ruleset = rs.ShortName()
	}
	if mods != nil {
		args.Mods = mods.Handle
	}
	return args
}

func (c *Client) CalculateDifficulty(ctx context.Context, b *engine.Beatmap, rs ruleset.ID, mods *engine.ModSet) (*engine.Difficulty, error) {
	res, err := c.call(ctx, "difficulty", newBeatmapArgs(b, rs, mods))
	if err != nil {
		return nil, err
	}
	return &engine.Difficulty{
		Handle: engine.Handle(res.Get("handle").String()),
		JSON:   []byte(res.Get("attributes").Raw),
	}, nil
}

func (c *Client) PlayableBeatmap(ctx context.Context, b *engine.Beatmap, rs ruleset.ID, mods *engine.ModSet) (*beatmap.Playable, error) {
	res, err := c.call(ctx, "playable", newBeatmapArgs(b, rs, mods))
	if err != nil {
		return nil, err
	}
	if rs == ruleset.Auto {
		rs = b.Ruleset
	}
	return &beatmap.Playable{
		Ruleset:    rs,
		HitObjects: hitObjects(res.Get("hit_objects")),
	}, nil
}

func hitObjects(arr gjson.Result) []beatmap.HitObject {
	items := arr.Array()
	if len(items) == 0 {
		return nil
	}
	out := make([]beatmap.HitObject, len(items))
	for i, it := range items {
		out[i] = beatmap.HitObject{
			Kind:         beatmap.ParseKind(it.Get("kind").String()),
			StartTime:    it.Get("start_time").Float(),
			AffectsCombo: it.Get("affects_combo").Bool(),
			Nested:       hitObjects(it.Get("nested")),
		}
	}
	return out
}

func (c *Client) StrainTimeline(ctx context.Context, b *engine.Beatmap, mods *engine.ModSet) (*engine.Timelines, error) {
	res, err := c.call(ctx, "strain_timeline", newBeatmapArgs(b, ruleset.Auto, mods))
	if err != nil {
		return nil, err
	}
	return &engine.Timelines{
		Aim:   strainPoints(res.Get("aim")),
		Speed: strainPoints(res.Get("speed")),
	}, nil
}

func strainPoints(arr gjson.Result) []engine.StrainPoint {
	var out []engine.StrainPoint
	arr.ForEach(func(_, p gjson.Result) bool {
		out = append(out, engine.StrainPoint{Time: p.Get("0").Float(), Value: p.Get("1").Float()})
		return true
	})
	return out
}

type scoreArgs struct {
	Accuracy   float64              `json:"accuracy"`
	MaxCombo   int                  `json:"max_combo"`
	Statistics hitresult.Statistics `json:"statistics"`
	Mods       engine.Handle        `json:"mods,omitempty"`
}

func (c *Client) CalculatePerformance(ctx context.Context, score engine.ScoreRecord, diff *engine.Difficulty) ([]byte, error) {
	if diff == nil {
		return nil, fmt.Errorf("bridge: performance: no difficulty attributes")
	}
	res, err := c.call(ctx, "performance", struct {
		Ruleset    string        `json:"ruleset"`
		Beatmap    engine.Handle `json:"beatmap"`
		Difficulty engine.Handle `json:"difficulty"`
		Score      scoreArgs     `json:"score"`
	}{
		Ruleset:    score.Ruleset.ShortName(),
		Beatmap:    score.Beatmap,
		Difficulty: diff.Handle,
		Score: scoreArgs{
			Accuracy:   score.Accuracy,
			MaxCombo:   score.MaxCombo,
			Statistics: score.Statistics,
			Mods:       score.Mods,
		},
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.Get("attributes").Raw), nil
}

func (c *Client) Serialize(ctx context.Context, h engine.Handle) ([]byte, error) {
	res, err := c.call(ctx, "serialize", struct {
		Handle engine.Handle `json:"handle"`
	}{h})
	if err != nil {
		return nil, err
	}
	return []byte(res.Get("json").Raw), nil
}

func (c *Client) Release(ctx context.Context, handles ...engine.Handle) error {
	live := make([]engine.Handle, 0, len(handles))
	for _, h := range handles {
		if h != "" {
			live = append(live, h)
		}
	}
	if len(live) == 0 {
		return nil
	}
	_, err := c.call(ctx, "release", struct {
		Handles []engine.Handle `json:"handles"`
	}{live})
	return err
}
