package contract

import "errors"

var (
	ErrNoAPIKey           = errors.New("no api key available")
	ErrGateway            = errors.New("llm gateway request failed")
	ErrItemNotFound       = errors.New("item not found")
	ErrOutOfStock         = errors.New("item out of stock")
	ErrSimulationNotFound = errors.New("simulation not found")
	ErrValidation         = errors.New("validation failed")
)
