package irset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"

	"github.com/muurk/switcher/internal/breeze"
)

// JSON field names of the vendor IR set format
const (
	fieldID             = "IRSetID"
	fieldOnOffType      = "OnOffType"
	fieldSeparatedSwing = "SeparatedSwing"
	fieldWaves          = "IRWaveList"
	fieldKey            = "Key"
	fieldPara           = "Para"
	fieldHexCode        = "HexCode"
)

// Parse decodes a vendor IR set document. Flags may be encoded as booleans,
// numbers or strings; unknown fields are ignored.
func Parse(data []byte) (*breeze.CapabilitySet, error) {
	doc, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid IR set JSON: %w", err)
	}

	id, ok := doc.Path(fieldID).Data().(string)
	if !ok || id == "" {
		return nil, errors.New("IR set has no " + fieldID)
	}

	children, err := doc.S(fieldWaves).Children()
	if err != nil {
		return nil, fmt.Errorf("IR set %s has no %s: %w", id, fieldWaves, err)
	}

	waves := make([]breeze.Wave, 0, len(children))
	for i, c := range children {
		key, _ := c.Path(fieldKey).Data().(string)
		if key == "" {
			return nil, fmt.Errorf("IR set %s: wave %d has no %s", id, i, fieldKey)
		}
		para, _ := c.Path(fieldPara).Data().(string)
		hexCode, _ := c.Path(fieldHexCode).Data().(string)
		waves = append(waves, breeze.Wave{Key: key, Para: para, HexCode: hexCode})
	}

	return breeze.NewCapabilitySet(id, waves,
		flag(doc.Path(fieldOnOffType).Data()),
		flag(doc.Path(fieldSeparatedSwing).Data()),
	), nil
}

// Encode renders set in the vendor format.
func Encode(set *breeze.CapabilitySet) ([]byte, error) {
	doc := gabs.New()
	if _, err := doc.Set(set.RemoteID, fieldID); err != nil {
		return nil, err
	}
	if _, err := doc.Set(boolInt(set.OnOffType), fieldOnOffType); err != nil {
		return nil, err
	}
	if _, err := doc.Set(set.SeparatedSwing, fieldSeparatedSwing); err != nil {
		return nil, err
	}
	if _, err := doc.Array(fieldWaves); err != nil {
		return nil, err
	}
	for _, w := range set.Waves {
		wave := map[string]interface{}{
			fieldKey:     w.Key,
			fieldPara:    w.Para,
			fieldHexCode: w.HexCode,
		}
		if err := doc.ArrayAppend(wave, fieldWaves); err != nil {
			return nil, err
		}
	}
	return []byte(doc.StringIndent("", "  ")), nil
}

// flag interprets the loosely typed boolean fields of the vendor format.
func flag(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err == nil {
			return b
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return err == nil && n != 0
	default:
		return false
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
