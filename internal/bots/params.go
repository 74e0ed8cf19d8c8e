package bots

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"bot-sim-lab/internal/domain"
)

// Configuration errors. They are wrapped with the offending key.
var (
	ErrMissingParam     = errors.New("missing required parameter")
	ErrInvalidParamType = errors.New("invalid parameter type")
	ErrInvalidParam     = errors.New("invalid parameter value")
	ErrUnknownBotType   = errors.New("unknown bot type")
)

// ParseDCAParams builds DCAParams from platform-named keys.
func ParseDCAParams(m map[string]any) (domain.DCAParams, error) {
	r := paramReader{m: m}
	p := domain.DCAParams{
		Version:                     r.version(),
		BaseOrderVolume:             r.float("base_order_volume"),
		SafetyOrderVolume:           r.float("safety_order_volume"),
		MaxSafetyOrders:             r.int("max_safety_orders"),
		SafetyOrderStepPercentage:   r.float("safety_order_step_percentage"),
		MartingaleVolumeCoefficient: r.float("martingale_volume_coefficient"),
		MartingaleStepCoefficient:   r.float("martingale_step_coefficient"),
		TakeProfitPercentage:        r.float("take_profit_percentage"),
		TrailingTakeProfit:          r.boolOr("trailing_take_profit", false),
		TrailingTakeProfitDeviation: r.floatOr("trailing_take_profit_deviation", 0.5),
		StopLossPercentage:          r.optFloat("stop_loss_percentage"),
		MaxActiveDeals:              r.intOr("max_active_deals", 1),
		CooldownBetweenDeals:        int64(r.intOr("cooldown_between_deals", 0)),
		Fee:                         r.floatOr("fee", DefaultFee),
		SlippageBps:                 r.floatOr("slippage_bps", DefaultSlippageBps),
	}
	if r.err != nil {
		return domain.DCAParams{}, r.err
	}
	return p, ValidateDCAParams(p)
}

// ParseGridParams builds GridParams from platform-named keys.
func ParseGridParams(m map[string]any) (domain.GridParams, error) {
	r := paramReader{m: m}
	p := domain.GridParams{
		Version:          r.version(),
		UpperPrice:       r.float("upper_price"),
		LowerPrice:       r.float("lower_price"),
		InvestmentAmount: r.float("investment_amount"),
		GridLinesCount:   r.int("grid_lines_count"),
		GridType:         domain.GridType(r.stringOr("grid_type", string(domain.GridTypeGeometric))),
		TrailingUp:       r.boolOr("trailing_up", false),
		ExpansionDown:    r.boolOr("expansion_down", false),
		StopBotPrice:     r.optFloat("stop_bot_price"),
		Leverage:         r.intOr("leverage", 1),
		Fee:              r.floatOr("fee", DefaultFee),
		SlippageBps:      r.floatOr("slippage_bps", DefaultSlippageBps),
	}
	if r.err != nil {
		return domain.GridParams{}, r.err
	}
	return p, ValidateGridParams(p)
}

// ParseSignalParams builds SignalParams. Every key has a default.
func ParseSignalParams(m map[string]any) (domain.SignalParams, error) {
	r := paramReader{m: m}
	p := domain.SignalParams{
		Version:                    r.version(),
		PositionSize:               r.floatOr("position_size", 100),
		TakeProfitPercentage:       r.floatOr("take_profit_percentage", 2.0),
		StopLossPercentage:         r.floatOr("stop_loss_percentage", 2.0),
		TrailingStopLoss:           r.boolOr("trailing_stop_loss", false),
		TrailingStopLossPercentage: r.floatOr("trailing_stop_loss_percentage", 1.0),
		Fee:                        r.floatOr("fee", DefaultFee),
		SlippageBps:                r.floatOr("slippage_bps", DefaultSlippageBps),
	}
	if r.err != nil {
		return domain.SignalParams{}, r.err
	}
	return p, ValidateSignalParams(p)
}

// ValidateDCAParams rejects values the simulator cannot run with.
func ValidateDCAParams(p domain.DCAParams) error {
	if p.Version != domain.ParamsVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidParam, p.Version)
	}
	if p.MaxSafetyOrders < 0 {
		return fmt.Errorf("%w: max_safety_orders must be >= 0", ErrInvalidParam)
	}
	if p.MaxActiveDeals < 0 {
		return fmt.Errorf("%w: max_active_deals must be >= 0", ErrInvalidParam)
	}
	if p.CooldownBetweenDeals < 0 {
		return fmt.Errorf("%w: cooldown_between_deals must be >= 0", ErrInvalidParam)
	}
	return nil
}

// ValidateGridParams rejects grids that cannot be built.
func ValidateGridParams(p domain.GridParams) error {
	if p.Version != domain.ParamsVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidParam, p.Version)
	}
	if p.GridLinesCount < 1 {
		return fmt.Errorf("%w: grid_lines_count must be >= 1", ErrInvalidParam)
	}
	if p.LowerPrice <= 0 || p.UpperPrice <= p.LowerPrice {
		return fmt.Errorf("%w: need 0 < lower_price < upper_price", ErrInvalidParam)
	}
	if p.GridType != domain.GridTypeGeometric && p.GridType != domain.GridTypeArithmetic {
		return fmt.Errorf("%w: grid_type %q", ErrInvalidParam, p.GridType)
	}
	return nil
}

// ValidateSignalParams rejects negative sizes and percentages.
func ValidateSignalParams(p domain.SignalParams) error {
	if p.Version != domain.ParamsVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidParam, p.Version)
	}
	if p.PositionSize < 0 {
		return fmt.Errorf("%w: position_size must be >= 0", ErrInvalidParam)
	}
	if p.StopLossPercentage < 0 || p.TakeProfitPercentage < 0 {
		return fmt.Errorf("%w: take_profit/stop_loss percentages must be >= 0", ErrInvalidParam)
	}
	return nil
}

// ReadParams decodes a YAML or JSON parameter document.
// Both a flat key/value layout and the echo layout
// ({"version":..,"bot_type":..,"params":{..}}) are accepted.
// botType is empty when the document does not name one.
func ReadParams(r io.Reader) (botType domain.BotType, params map[string]any, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read params: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("decode params: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if bt, ok := doc["bot_type"].(string); ok {
		botType = domain.BotType(bt)
		delete(doc, "bot_type")
	}
	if inner, ok := doc["params"].(map[string]any); ok {
		if v, ok := doc["version"]; ok {
			inner["version"] = v
		}
		doc = inner
	}
	return botType, doc, nil
}

// paramReader extracts typed values and keeps the first error.
type paramReader struct {
	m   map[string]any
	err error
}

func (r *paramReader) fail(key string, sentinel error, v any) {
	if r.err == nil {
		if v == nil {
			r.err = fmt.Errorf("%w: %s", sentinel, key)
			return
		}
		r.err = fmt.Errorf("%w: %s=%v (%T)", sentinel, key, v, v)
	}
}

func (r *paramReader) lookup(key string) (any, bool) {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *paramReader) version() int {
	v, ok := r.lookup("version")
	if !ok {
		return domain.ParamsVersion
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail("version", ErrInvalidParamType, v)
		return 0
	}
	return int(f)
}

func (r *paramReader) float(key string) float64 {
	v, ok := r.lookup(key)
	if !ok {
		r.fail(key, ErrMissingParam, nil)
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, ErrInvalidParamType, v)
	}
	return f
}

func (r *paramReader) floatOr(key string, def float64) float64 {
	if _, ok := r.lookup(key); !ok {
		return def
	}
	return r.float(key)
}

func (r *paramReader) optFloat(key string) *float64 {
	if _, ok := r.lookup(key); !ok {
		return nil
	}
	f := r.float(key)
	return &f
}

func (r *paramReader) int(key string) int {
	f := r.float(key)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(key, ErrInvalidParamType, f)
		return 0
	}
	return int(f) // truncates toward zero
}

func (r *paramReader) intOr(key string, def int) int {
	if _, ok := r.lookup(key); !ok {
		return def
	}
	return r.int(key)
}

func (r *paramReader) boolOr(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			r.fail(key, ErrInvalidParamType, v)
		}
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	r.fail(key, ErrInvalidParamType, v)
	return def
}

func (r *paramReader) stringOr(key string, def string) string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, ErrInvalidParamType, v)
		return def
	}
	return s
}

// toFloat accepts every numeric representation YAML, JSON and callers produce.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
