package common

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"emperror.dev/errors"
)

var ErrNotADuration = errors.NewPlain("not a duration")

var errTooLong = errors.WithMessage(ErrNotADuration, "too long")

// ParseDuration parses strings like "1d3h", "2 weeks" or "90s".
// A number without a unit is minutes, "mo" is a 30 day month.
func ParseDuration(str string) (time.Duration, error) {
	var dur time.Duration
	var num, unit strings.Builder

	flush := func() error {
		if num.Len() == 0 {
			if unit.Len() == 0 {
				return nil
			}
			return errors.WithMessage(ErrNotADuration, "'"+unit.String()+"' has no number")
		}

		d, err := parseDurationComponent(num.String(), strings.ToLower(unit.String()))
		if err != nil {
			return err
		}

		if d > math.MaxInt64-dur {
			return errTooLong
		}
		dur += d
		num.Reset()
		unit.Reset()
		return nil
	}

	for _, v := range str {
		if unicode.IsSpace(v) || v == ',' {
			continue
		}

		if unicode.IsDigit(v) {
			// a digit after a unit starts the next component
			if unit.Len() > 0 {
				if err := flush(); err != nil {
					return 0, err
				}
			}
			num.WriteRune(v)
			continue
		}

		unit.WriteRune(v)
	}

	if err := flush(); err != nil {
		return 0, err
	}

	if dur == 0 && strings.TrimSpace(str) == "" {
		return 0, ErrNotADuration
	}

	return dur, nil
}

func parseDurationComponent(numStr, modifierStr string) (time.Duration, error) {
	parsedNum, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, errors.WithMessage(ErrNotADuration, err.Error())
	}

	var unit time.Duration
	switch {
	case modifierStr == "":
		unit = time.Minute
	case strings.HasPrefix(modifierStr, "mo"):
		unit = time.Hour * 24 * 30
	case strings.HasPrefix(modifierStr, "s"):
		unit = time.Second
	case strings.HasPrefix(modifierStr, "m"):
		unit = time.Minute
	case strings.HasPrefix(modifierStr, "h"):
		unit = time.Hour
	case strings.HasPrefix(modifierStr, "d"):
		unit = time.Hour * 24
	case strings.HasPrefix(modifierStr, "w"):
		unit = time.Hour * 24 * 7
	case strings.HasPrefix(modifierStr, "y"):
		unit = time.Hour * 24 * 365
	default:
		return 0, errors.WithMessage(ErrNotADuration, "couldn't figure out what '"+numStr+modifierStr+"' was")
	}

	if parsedNum > math.MaxInt64/int64(unit) {
		return 0, errTooLong
	}

	return time.Duration(parsedNum) * unit, nil
}
