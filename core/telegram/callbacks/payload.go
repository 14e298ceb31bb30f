package callbacks

import (
	"strconv"
	"strings"
)

// PayloadInt64 parses a callback payload as int64.
func PayloadInt64(payload string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
}

// PayloadParts splits a payload into parts using Separator.
func PayloadParts(payload string) ([]string, error) {
	if payload == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(payload, Separator), nil
}

// PayloadTwoInt parses a payload like "3_250" into two ints.
func PayloadTwoInt(payload string) (int, int, error) {
	parts, err := PayloadParts(payload)
	if err != nil {
		return 0, 0, err
	}
	if len(parts) != 2 {
		return 0, 0, strconv.ErrSyntax
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
