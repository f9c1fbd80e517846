package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

var errInvalidArgument = errors.New("invalid argument")

// arguments is the decoded argument object of one tool call. JSON numbers
// arrive as float64.
type arguments map[string]interface{}

func parseArguments(request mcp.CallToolRequest) (arguments, error) {
	if request.Params.Arguments == nil {
		return arguments{}, nil
	}
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: arguments must be an object", errInvalidArgument)
	}
	return argsMap, nil
}

func (a arguments) requireString(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", errInvalidArgument, key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", errInvalidArgument, key)
	}
	return s, nil
}

func (a arguments) optionalString(key, def string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errInvalidArgument, key)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func (a arguments) requireInt(key string) (int, error) {
	if _, ok := a[key]; !ok {
		return 0, fmt.Errorf("%w: %s is required", errInvalidArgument, key)
	}
	n, err := a.optionalInt64(key, 0)
	return int(n), err
}

func (a arguments) optionalInt(key string, def int) (int, error) {
	n, err := a.optionalInt64(key, int64(def))
	return int(n), err
}

func (a arguments) optionalInt64(key string, def int64) (int64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %s must be an integer", errInvalidArgument, key)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", errInvalidArgument, key)
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", errInvalidArgument, key)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidArgument, key)
	}
}

func (a arguments) optionalFloat(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", errInvalidArgument, key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", errInvalidArgument, key)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %s must be a number", errInvalidArgument, key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", errInvalidArgument, key)
	}
	return f, nil
}

func (a arguments) optionalBool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %s must be a boolean", errInvalidArgument, key)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean", errInvalidArgument, key)
	}
}

// format reads an output format argument; only text and json exist.
func (a arguments) format() (string, error) {
	f, err := a.optionalString("format", "text")
	if err != nil {
		return "", err
	}
	switch f = strings.ToLower(f); f {
	case "text", "json":
		return f, nil
	default:
		return "", fmt.Errorf("%w: format must be text or json, got %q", errInvalidArgument, f)
	}
}
