package osc

import (
	"fmt"
	"math"
)

// Groups splits args into consecutive groups of size. A trailing partial
// group is an error; the whole list is rejected.
func Groups(args []any, size int) ([][]any, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: group size %d", ErrArity, size)
	}
	if len(args)%size != 0 {
		return nil, fmt.Errorf("%w: %d arguments, group size %d", ErrArity, len(args), size)
	}
	groups := make([][]any, 0, len(args)/size)
	for i := 0; i < len(args); i += size {
		groups = append(groups, args[i:i+size])
	}
	return groups, nil
}

// Int coerces a numeric argument to int. Floats must be integral.
func Int(v any) (int, error) {
	switch n := v.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float32:
		if f := float64(n); f == math.Trunc(f) {
			return int(f), nil
		}
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: want integer, got %T(%v)", ErrArgumentType, v, v)
}

// Flag coerces a DAW flag argument. The extensions send 1/0 as integers;
// true booleans and 1.0 floats are accepted too.
func Flag(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, err := Int(v)
	if err != nil {
		return false, fmt.Errorf("%w: want flag, got %T(%v)", ErrArgumentType, v, v)
	}
	return n == 1, nil
}

// String returns a string argument.
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: want string, got %T(%v)", ErrArgumentType, v, v)
	}
	return s, nil
}

// IsNil reports whether v is the OSC nil argument.
func IsNil(v any) bool {
	return v == nil
}

// OptString is String that maps nil to (nil, nil).
func OptString(v any) (*string, error) {
	if IsNil(v) {
		return nil, nil
	}
	s, err := String(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OptFlag is Flag that maps nil to (nil, nil).
func OptFlag(v any) (*bool, error) {
	if IsNil(v) {
		return nil, nil
	}
	b, err := Flag(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
