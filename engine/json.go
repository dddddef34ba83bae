package engine

import (
	"encoding/json"
	"strconv"
)

func appendPair(b []byte, a, c float64) []byte {
	b = append(b, '[')
	b = strconv.AppendFloat(b, a, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, c, 'g', -1, 64)
	return append(b, ']')
}

// StrainPoints travel as [time, value] pairs.
func (p StrainPoint) MarshalJSON() ([]byte, error) {
	return appendPair(nil, p.Time, p.Value), nil
}

func (p *StrainPoint) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	p.Time, p.Value = pair[0], pair[1]
	return nil
}
