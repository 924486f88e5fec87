package simulation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parameter domains and defaults.
const (
	MinStepsPerFrame = 1
	MaxStepsPerFrame = 8
	MinDiffuseRadius = 1
	MaxDiffuseRadius = 8

	DefaultStepsPerFrame = 4
	DefaultDiffuseRadius = 4
	DefaultFeedRate      = 0.02
	DefaultRemoveRate    = 0.06
	DefaultDiffuseRateB  = 0.5

	// TimeStep is the simulated time added by one step.
	TimeStep = 0.016
)

// Parameter keys accepted by SetParameter.
const (
	KeyStepsPerFrame     = "steps_per_frame"
	KeyDiffuseRadius     = "diffuse_radius"
	KeyFeedRate          = "feed_rate"
	KeyRemoveRate        = "remove_rate"
	KeyDiffuseRateB      = "diffuse_rate_b"
	KeyUseFancyRendering = "use_fancy_rendering"
)

// ParameterKeys lists every key accepted by SetParameter.
var ParameterKeys = []string{
	KeyStepsPerFrame, KeyDiffuseRadius, KeyFeedRate,
	KeyRemoveRate, KeyDiffuseRateB, KeyUseFancyRendering,
}

// Params is the tunable state read at the start of every Update.
type Params struct {
	StepsPerFrame     int     `json:"steps_per_frame"`
	DiffuseRadius     int     `json:"diffuse_radius"`
	FeedRate          float64 `json:"feed_rate"`
	RemoveRate        float64 `json:"remove_rate"`
	DiffuseRateB      float64 `json:"diffuse_rate_b"`
	UseFancyRendering bool    `json:"use_fancy_rendering"`
}

// DefaultParams returns the stock Gray-Scott parameters.
func DefaultParams() Params {
	return Params{
		StepsPerFrame: DefaultStepsPerFrame,
		DiffuseRadius: DefaultDiffuseRadius,
		FeedRate:      DefaultFeedRate,
		RemoveRate:    DefaultRemoveRate,
		DiffuseRateB:  DefaultDiffuseRateB,
	}
}

// Validate checks every field against its domain.
func (p Params) Validate() error {
	if err := checkIntRange(KeyStepsPerFrame, p.StepsPerFrame, MinStepsPerFrame, MaxStepsPerFrame); err != nil {
		return err
	}
	if err := checkIntRange(KeyDiffuseRadius, p.DiffuseRadius, MinDiffuseRadius, MaxDiffuseRadius); err != nil {
		return err
	}
	if err := checkFloatRange(KeyFeedRate, p.FeedRate, 0, math.MaxFloat64); err != nil {
		return err
	}
	if err := checkFloatRange(KeyRemoveRate, p.RemoveRate, 0, math.MaxFloat64); err != nil {
		return err
	}
	return checkFloatRange(KeyDiffuseRateB, p.DiffuseRateB, 0, 1)
}

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	switch key {
	case KeyStepsPerFrame:
		return p.StepsPerFrame, true
	case KeyDiffuseRadius:
		return p.DiffuseRadius, true
	case KeyFeedRate:
		return p.FeedRate, true
	case KeyRemoveRate:
		return p.RemoveRate, true
	case KeyDiffuseRateB:
		return p.DiffuseRateB, true
	case KeyUseFancyRendering:
		return p.UseFancyRendering, true
	}
	return nil, false
}

// With returns a copy of p with key set from a loosely typed value, after
// validating it. p itself is never modified.
func (p Params) With(key string, value any) (Params, error) {
	next := p
	switch key {
	case KeyStepsPerFrame:
		v, err := toInt(key, value)
		if err != nil {
			return p, err
		}
		next.StepsPerFrame = v
	case KeyDiffuseRadius:
		v, err := toInt(key, value)
		if err != nil {
			return p, err
		}
		next.DiffuseRadius = v
	case KeyFeedRate:
		v, err := toFloat(key, value)
		if err != nil {
			return p, err
		}
		next.FeedRate = v
	case KeyRemoveRate:
		v, err := toFloat(key, value)
		if err != nil {
			return p, err
		}
		next.RemoveRate = v
	case KeyDiffuseRateB:
		v, err := toFloat(key, value)
		if err != nil {
			return p, err
		}
		next.DiffuseRateB = v
	case KeyUseFancyRendering:
		v, err := toBool(key, value)
		if err != nil {
			return p, err
		}
		next.UseFancyRendering = v
	default:
		return p, paramErr(key, value, ErrUnknownParameter)
	}
	if err := next.Validate(); err != nil {
		return p, err
	}
	return next, nil
}

func checkIntRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return paramErr(name, v, fmt.Errorf("%w: want integer in [%d, %d]", ErrOutOfRange, lo, hi))
	}
	return nil
}

func checkFloatRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		if hi == math.MaxFloat64 {
			return paramErr(name, v, fmt.Errorf("%w: want finite value >= %g", ErrOutOfRange, lo))
		}
		return paramErr(name, v, fmt.Errorf("%w: want value in [%g, %g]", ErrOutOfRange, lo, hi))
	}
	return nil
}

// toInt accepts integer types, integral floats and numeric strings.
func toInt(name string, value any) (int, error) {
	f, err := toFloat(name, value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, paramErr(name, value, ErrNotInteger)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, paramErr(name, value, ErrOutOfRange)
	}
	return int(f), nil
}

// toFloat accepts any numeric type and numeric strings. NaN and ±Inf are
// rejected as out of range.
func toFloat(name string, value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, paramErr(name, value, ErrWrongType)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, paramErr(name, value, ErrWrongType)
		}
		f = parsed
	default:
		return 0, paramErr(name, value, ErrWrongType)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, paramErr(name, value, ErrOutOfRange)
	}
	return f, nil
}

// toBool accepts bools and the strings strconv.ParseBool understands.
func toBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, paramErr(name, value, ErrWrongType)
		}
		return b, nil
	}
	return false, paramErr(name, value, ErrWrongType)
}
