package bots

import (
	"fmt"

	"bot-sim-lab/internal/domain"
)

// FromParams creates a Bot from a bot type and platform-named parameters.
// Missing or mistyped keys are returned as configuration errors.
func FromParams(botType domain.BotType, params map[string]any) (Bot, error) {
	switch botType {
	case domain.BotTypeDCA:
		p, err := ParseDCAParams(params)
		if err != nil {
			return nil, fmt.Errorf("dca params: %w", err)
		}
		return NewDCABot(p), nil
	case domain.BotTypeGrid:
		p, err := ParseGridParams(params)
		if err != nil {
			return nil, fmt.Errorf("grid params: %w", err)
		}
		return NewGridBot(p), nil
	case domain.BotTypeSignal:
		p, err := ParseSignalParams(params)
		if err != nil {
			return nil, fmt.Errorf("signal params: %w", err)
		}
		return NewSignalBot(p), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBotType, botType)
	}
}

// FromEcho rebuilds a Bot from a stored parameter echo.
func FromEcho(echo domain.ParamsEcho) (Bot, error) {
	m := echo.Map()
	m["version"] = echo.Version
	return FromParams(echo.BotType, m)
}
